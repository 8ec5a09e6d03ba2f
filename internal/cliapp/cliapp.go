// Package cliapp implements the tunelo binary's subcommand dispatch:
// version, completions, multi-proxy, proxy-chain, proxy-checker,
// socks-server, http-server, help. One stdlib flag.FlagSet per
// subcommand; every subcommand follows the same config-load-then-run
// shape.
package cliapp

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tunelo-project/tunelo/internal/config"
)

// Exit codes: 0 clean shutdown, 1 configuration error, 2
// all-listeners-failed, 64 invalid CLI usage.
const (
	ExitOK          = 0
	ExitConfigError = 1
	ExitAllFailed   = 2
	ExitInvalidCLI  = 64
)

const versionString = "tunelo 0.1.0"

// Run dispatches args (excluding the program name) to a subcommand and
// returns the process exit code.
func Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return runMultiProxy(ctx, nil)
	}

	// A leading -c/--config is handed on to the subcommand that follows
	// (multi-proxy when none does); subcommands without a config file
	// ignore it.
	if (args[0] == "-c" || args[0] == "--config") && len(args) >= 2 {
		rest := args[2:]
		if len(rest) == 0 {
			return runMultiProxy(ctx, args[:2])
		}
		switch rest[0] {
		case "multi-proxy", "proxy-chain", "proxy-checker", "socks-server", "http-server":
			return Run(ctx, append([]string{rest[0], args[0], args[1]}, rest[1:]...))
		}
		return Run(ctx, rest)
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return ExitOK
	case "-V", "--version", "version":
		fmt.Println(versionString)
		return ExitOK
	case "completions":
		return runCompletions(args[1:])
	case "multi-proxy":
		return runMultiProxy(ctx, args[1:])
	case "proxy-chain":
		return runProxyChain(ctx, args[1:])
	case "proxy-checker":
		return runProxyChecker(ctx, args[1:])
	case "socks-server":
		return runSocksServer(ctx, args[1:])
	case "http-server":
		return runHTTPServer(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "tunelo: unknown subcommand %q\n\n", args[0])
		printUsage(os.Stderr)
		return ExitInvalidCLI
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `tunelo: a multi-protocol proxy server

USAGE:
    tunelo [-c|--config <path>] <subcommand> [flags]

SUBCOMMANDS:
    version         Show current version
    completions     Print shell completion script (bash|zsh|fish)
    multi-proxy      Run the socks-server and http-server together
    proxy-chain      Forward connections through an upstream proxy chain
    proxy-checker    Probe upstream proxies for liveness
    socks-server     Run the SOCKS4a/SOCKS5 server alone
    http-server      Run the HTTP CONNECT/forward proxy alone
    help             Show this message

GLOBAL FLAGS:
    -c, --config <path>   Configuration file path
    -h, --help            Show help
    -V, --version         Show version
`)
}

// loadConfig loads path (or config.DefaultConfigPath when empty),
// printing a diagnostic and returning a nil *config.File plus false on
// failure — the caller should then return ExitConfigError.
func loadConfig(path string) (*config.File, bool) {
	f, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: %v\n", err)
		return nil, false
	}
	return f, true
}

// newFlagSet builds a flag.FlagSet in ContinueOnError mode so a parse
// failure returns an error instead of calling os.Exit, letting
// subcommands map it to ExitInvalidCLI.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}
