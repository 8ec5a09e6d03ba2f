package cliapp

import (
	"context"
	"fmt"
	"os"

	"github.com/tunelo-project/tunelo/internal/httpserver"
)

// runHTTPServer implements the `http-server` subcommand: --ip, --port,
// --resolver, --dns-server, --family, -c|--config.
func runHTTPServer(ctx context.Context, args []string) int {
	fs := newFlagSet("http-server")
	cfgPath := fs.String("config", "", "config file path")
	fs.StringVar(cfgPath, "c", *cfgPath, "config file path (shorthand)")
	ip := fs.String("ip", "", "listen IP")
	port := fs.String("port", "", "listen port")
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
	overrideIfSet(fs, "ip", cfgFile, "http-server", "ip", *ip)
	overrideIfSet(fs, "port", cfgFile, "http-server", "port", *port)
	overrideIfSet(fs, "resolver", cfgFile, "http-server", "resolver", *resolverKind)
	overrideIfSet(fs, "dns-server", cfgFile, "http-server", "dns-server", *dnsServer)
	overrideIfSet(fs, "family", cfgFile, "http-server", "family", *family)

	cfg := httpServerConfigFrom(cfgFile)

	log, _ := setupLogging()
	resolver := resolverFrom(cfgFile, "http-server")
	dialer := httpserver.DirectDialer{Resolver: resolver, Family: familyFrom(cfgFile, "http-server")}
	srv := httpserver.NewServer(cfg, dialer, log)

	if err := srv.Serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: http-server: %v\n", err)
		return ExitAllFailed
	}
	return ExitOK
}

func httpServerConfigFrom(f interface{ Get(section, key string) string }) httpserver.Config {
	cfg := httpserver.DefaultConfig()
	if v := f.Get("http-server", "ip"); v != "" {
		cfg.ListenIP = v
	}
	cfg.ListenPort = parseIntDefault(f.Get("http-server", "port"), cfg.ListenPort)
	return cfg
}
