package cliapp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/chain"
	"github.com/tunelo-project/tunelo/internal/httpserver"
	"github.com/tunelo-project/tunelo/internal/socksserver"
	"github.com/tunelo-project/tunelo/internal/supervisor"
)

// runProxyChain implements the `proxy-chain` subcommand: runs a
// socks-server and an http-server, both pointed at the same
// chain.Dialer, so incoming connections on either protocol are forwarded
// through the configured upstream chain.
func runProxyChain(ctx context.Context, args []string) int {
	fs := newFlagSet("proxy-chain")
	cfgPath := fs.String("config", "", "config file path")
	fs.StringVar(cfgPath, "c", *cfgPath, "config file path (shorthand)")
	socksIP := fs.String("socks-ip", "", "socks listen IP")
	socksPort := fs.String("socks-port", "", "socks listen port")
	httpIP := fs.String("http-ip", "", "http listen IP")
	httpPort := fs.String("http-port", "", "http listen port")
	chainFile := fs.String("proxy-chain-file", "", "chain file path")
	chainInline := fs.String("proxy-chain", "", "inline chain, kind://host:port[,kind://host:port...]")
	disableSocks4a := fs.String("disable-socks4a", "", "disable socks4a hops")
	disableSocks5 := fs.String("disable-socks5", "", "disable socks5 hops")
	disableHTTP := fs.String("disable-http", "", "disable http hops")
	resolverKind := fs.String("resolver", "", "name resolver backend for hop 1: net (default) or dns")
	dnsServer := fs.String("dns-server", "", "DNS server to query when --resolver=dns, e.g. 1.1.1.1:53")
	if err := fs.Parse(args); err != nil {
		return ExitInvalidCLI
	}

	cfgFile, ok := loadConfig(*cfgPath)
	if !ok {
		return ExitConfigError
	}
	overrideIfSet(fs, "socks-ip", cfgFile, "proxy-chain", "socks-ip", *socksIP)
	overrideIfSet(fs, "socks-port", cfgFile, "proxy-chain", "socks-port", *socksPort)
	overrideIfSet(fs, "http-ip", cfgFile, "proxy-chain", "http-ip", *httpIP)
	overrideIfSet(fs, "http-port", cfgFile, "proxy-chain", "http-port", *httpPort)
	overrideIfSet(fs, "proxy-chain-file", cfgFile, "proxy-chain", "proxy-chain-file", *chainFile)
	overrideIfSet(fs, "proxy-chain", cfgFile, "proxy-chain", "proxy-chain", *chainInline)
	overrideIfSet(fs, "disable-socks4a", cfgFile, "proxy-chain", "disable-socks4a", *disableSocks4a)
	overrideIfSet(fs, "disable-socks5", cfgFile, "proxy-chain", "disable-socks5", *disableSocks5)
	overrideIfSet(fs, "disable-http", cfgFile, "proxy-chain", "disable-http", *disableHTTP)
	overrideIfSet(fs, "resolver", cfgFile, "proxy-chain", "resolver", *resolverKind)
	overrideIfSet(fs, "dns-server", cfgFile, "proxy-chain", "dns-server", *dnsServer)

	toggles := chain.Toggles{
		DisableSocks4a: parseBoolDefault(cfgFile.Get("proxy-chain", "disable-socks4a"), false),
		DisableSocks5:  parseBoolDefault(cfgFile.Get("proxy-chain", "disable-socks5"), false),
		DisableHTTP:    parseBoolDefault(cfgFile.Get("proxy-chain", "disable-http"), false),
	}

	var c chain.Chain
	var err error
	switch {
	case cfgFile.Get("proxy-chain", "proxy-chain-file") != "":
		c, err = chain.LoadFile(cfgFile.Get("proxy-chain", "proxy-chain-file"), toggles)
	case cfgFile.Get("proxy-chain", "proxy-chain") != "":
		c, err = chain.ParseInline(cfgFile.Get("proxy-chain", "proxy-chain"), toggles)
	default:
		err = errors.New("proxy-chain: one of --proxy-chain-file or --proxy-chain is required")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: %v\n", err)
		return ExitConfigError
	}

	socksCfg := socksserver.DefaultConfig()
	if v := cfgFile.Get("proxy-chain", "socks-ip"); v != "" {
		socksCfg.ListenIP = v
	}
	socksCfg.ListenPort = parseIntDefault(cfgFile.Get("proxy-chain", "socks-port"), socksCfg.ListenPort)

	httpCfg := httpserver.DefaultConfig()
	if v := cfgFile.Get("proxy-chain", "http-ip"); v != "" {
		httpCfg.ListenIP = v
	}
	httpCfg.ListenPort = parseIntDefault(cfgFile.Get("proxy-chain", "http-port"), httpCfg.ListenPort)

	socksEndpoint := mustListenEndpoint(socksCfg.ListenIP, socksCfg.ListenPort)
	httpEndpoint := mustListenEndpoint(httpCfg.ListenIP, httpCfg.ListenPort)
	denyFilter := chain.NewSelfDenyFilter(socksEndpoint, httpEndpoint)
	if err := denyFilter.CheckChain(c); err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: %v\n", err)
		return ExitConfigError
	}

	log, ring := setupLogging()
	resolver := resolverFrom(cfgFile, "proxy-chain")
	dialer := chain.Dialer{Chain: c, Resolver: resolver}

	sup := supervisor.New(log, ring, 0)
	sup.Add("socks-chain", socksserver.NewServer(socksCfg, dialer, log))
	sup.Add("http-chain", httpserver.NewServer(httpCfg, dialer, log))

	if err := sup.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: %v\n", err)
		return ExitAllFailed
	}
	return ExitOK
}

func mustListenEndpoint(ip string, port int) addr.Endpoint {
	ep, err := addr.ParseEndpoint(fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		panic(err)
	}
	return ep
}
