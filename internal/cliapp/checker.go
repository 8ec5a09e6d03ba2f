package cliapp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tunelo-project/tunelo/internal/chain"
	"github.com/tunelo-project/tunelo/internal/checker"
)

// runProxyChecker implements the `proxy-checker` subcommand:
// -s|--proxy-servers, -f|--file, -o|--output-file, -p|--probers,
// --max-timeout-per-probe, --resolver, --dns-server, -c|--config.
func runProxyChecker(ctx context.Context, args []string) int {
	fs := newFlagSet("proxy-checker")
	cfgPath := fs.String("config", "", "config file path")
	fs.StringVar(cfgPath, "c", *cfgPath, "config file path (shorthand)")
	servers := fs.String("proxy-servers", "", "inline list, kind://host:port[,kind://host:port...]")
	fs.StringVar(servers, "s", *servers, "shorthand for --proxy-servers")
	file := fs.String("file", "", "chain-file-format list of upstreams to probe")
	fs.StringVar(file, "f", *file, "shorthand for --file")
	outputFile := fs.String("output-file", "", "write the report table to this file instead of stdout")
	fs.StringVar(outputFile, "o", *outputFile, "shorthand for --output-file")
	probers := fs.String("probers", "", "worker pool size")
	fs.StringVar(probers, "p", *probers, "shorthand for --probers")
	maxTimeoutMS := fs.String("max-timeout-per-probe", "", "per-probe timeout in milliseconds")
	resolverKind := fs.String("resolver", "", "name resolver backend: net (default) or dns")
	dnsServer := fs.String("dns-server", "", "DNS server to query when --resolver=dns, e.g. 1.1.1.1:53")
	if err := fs.Parse(args); err != nil {
		return ExitInvalidCLI
	}

	cfgFile, ok := loadConfig(*cfgPath)
	if !ok {
		return ExitConfigError
	}
	overrideIfSet(fs, "proxy-servers", cfgFile, "proxy-checker", "proxy-servers", *servers)
	overrideIfSet(fs, "s", cfgFile, "proxy-checker", "proxy-servers", *servers)
	overrideIfSet(fs, "file", cfgFile, "proxy-checker", "file", *file)
	overrideIfSet(fs, "f", cfgFile, "proxy-checker", "file", *file)
	overrideIfSet(fs, "output-file", cfgFile, "proxy-checker", "output-file", *outputFile)
	overrideIfSet(fs, "o", cfgFile, "proxy-checker", "output-file", *outputFile)
	overrideIfSet(fs, "probers", cfgFile, "proxy-checker", "probers", *probers)
	overrideIfSet(fs, "p", cfgFile, "proxy-checker", "probers", *probers)
	overrideIfSet(fs, "max-timeout-per-probe", cfgFile, "proxy-checker", "max-timeout-per-probe-ms", *maxTimeoutMS)
	overrideIfSet(fs, "resolver", cfgFile, "proxy-checker", "resolver", *resolverKind)
	overrideIfSet(fs, "dns-server", cfgFile, "proxy-checker", "dns-server", *dnsServer)

	var c chain.Chain
	var err error
	switch {
	case cfgFile.Get("proxy-checker", "file") != "":
		c, err = chain.LoadFile(cfgFile.Get("proxy-checker", "file"), chain.Toggles{})
	case cfgFile.Get("proxy-checker", "proxy-servers") != "":
		c, err = chain.ParseInline(cfgFile.Get("proxy-checker", "proxy-servers"), chain.Toggles{})
	default:
		err = fmt.Errorf("proxy-checker: one of -s/--proxy-servers or -f/--file is required")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: %v\n", err)
		return ExitConfigError
	}

	cfg := checker.DefaultConfig()
	cfg.Probers = parseIntDefault(cfgFile.Get("proxy-checker", "probers"), cfg.Probers)
	cfg.MaxTimeoutPerProbe = time.Duration(parseIntDefault(cfgFile.Get("proxy-checker", "max-timeout-per-probe-ms"), int(cfg.MaxTimeoutPerProbe/time.Millisecond))) * time.Millisecond
	cfg.OutputFile = cfgFile.Get("proxy-checker", "output-file")
	cfg.Resolver = resolverFrom(cfgFile, "proxy-checker")

	results := checker.Run(ctx, c.Hops(), cfg)
	if err := checker.WriteReport(results, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: %v\n", err)
		return ExitConfigError
	}
	return ExitOK
}
