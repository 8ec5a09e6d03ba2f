package cliapp

import (
	"context"
	"testing"
)

func TestRunUnknownSubcommandIsInvalidCLI(t *testing.T) {
	code := Run(context.Background(), []string{"bogus-subcommand"})
	if code != ExitInvalidCLI {
		t.Fatalf("Run() = %d, want %d", code, ExitInvalidCLI)
	}
}

func TestRunVersionIsOK(t *testing.T) {
	code := Run(context.Background(), []string{"version"})
	if code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}
}

func TestRunHelpIsOK(t *testing.T) {
	code := Run(context.Background(), []string{"help"})
	if code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}
}

func TestRunCompletionsRejectsUnknownShell(t *testing.T) {
	code := Run(context.Background(), []string{"completions", "powershell"})
	if code != ExitInvalidCLI {
		t.Fatalf("Run() = %d, want %d", code, ExitInvalidCLI)
	}
}

func TestRunCompletionsAcceptsBash(t *testing.T) {
	code := Run(context.Background(), []string{"completions", "bash"})
	if code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}
}

func TestRunProxyCheckerRequiresSourceFlag(t *testing.T) {
	dir := t.TempDir()
	code := Run(context.Background(), []string{"proxy-checker", "-c", dir + "/tunelo.ini"})
	if code != ExitConfigError {
		t.Fatalf("Run() = %d, want %d", code, ExitConfigError)
	}
}

func TestRunProxyChainRequiresChainSource(t *testing.T) {
	dir := t.TempDir()
	code := Run(context.Background(), []string{"proxy-chain", "-c", dir + "/tunelo.ini", "--socks-port", "0", "--http-port", "0"})
	if code != ExitConfigError {
		t.Fatalf("Run() = %d, want %d", code, ExitConfigError)
	}
}
