package cliapp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tunelo-project/tunelo/internal/httpserver"
	"github.com/tunelo-project/tunelo/internal/socksserver"
	"github.com/tunelo-project/tunelo/internal/supervisor"
)

// runMultiProxy implements the `multi-proxy` subcommand, and is also
// the default action when no subcommand is given. It runs a
// socks-server and an http-server together, both dialing targets
// directly, under one supervisor.Supervisor.
func runMultiProxy(ctx context.Context, args []string) int {
	fs := newFlagSet("multi-proxy")
	cfgPath := fs.String("config", "", "config file path")
	fs.StringVar(cfgPath, "c", *cfgPath, "config file path (shorthand)")
	status := fs.Bool("status", false, "periodically print a JSON status snapshot to stdout")
	resolverKind := fs.String("resolver", "", "name resolver backend: net (default) or dns")
	dnsServer := fs.String("dns-server", "", "DNS server to query when --resolver=dns, e.g. 1.1.1.1:53")
	family := fs.String("family", "", "outbound address-family preference: any (default), ipv4, or ipv6")
	if err := fs.Parse(args); err != nil {
		return ExitInvalidCLI
	}

	cfgFile, ok := loadConfig(*cfgPath)
	if !ok {
		return ExitConfigError
	}
	overrideIfSet(fs, "resolver", cfgFile, "multi-proxy", "resolver", *resolverKind)
	overrideIfSet(fs, "dns-server", cfgFile, "multi-proxy", "dns-server", *dnsServer)
	overrideIfSet(fs, "family", cfgFile, "multi-proxy", "family", *family)

	socksCfg := socksServerConfigFrom(cfgFile)
	httpCfg := httpServerConfigFrom(cfgFile)
	gracePeriod := parseDurationDefault(cfgFile.Get("multi-proxy", "grace-period"), 0)

	log, ring := setupLogging()
	resolver := resolverFrom(cfgFile, "multi-proxy")
	fam := familyFrom(cfgFile, "multi-proxy")

	sup := supervisor.New(log, ring, gracePeriod)
	sup.Add("socks", socksserver.NewServer(socksCfg, socksserver.DirectDialer{Resolver: resolver, Family: fam}, log))
	sup.Add("http", httpserver.NewServer(httpCfg, httpserver.DirectDialer{Resolver: resolver, Family: fam}, log))

	if *status {
		go printStatusLoop(ctx, sup)
	}

	if err := sup.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: %v\n", err)
		return ExitAllFailed
	}
	return ExitOK
}

// printStatusLoop prints a supervisor.Snapshot as JSON every 10s until ctx
// is cancelled, backing `multi-proxy --status`.
func printStatusLoop(ctx context.Context, sup *supervisor.Supervisor) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b, err := json.Marshal(sup.Snapshot())
			if err != nil {
				continue
			}
			fmt.Fprintln(os.Stdout, string(b))
		}
	}
}
