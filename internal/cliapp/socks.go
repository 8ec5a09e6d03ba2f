package cliapp

import (
	"context"
	"fmt"
	"os"

	"github.com/tunelo-project/tunelo/internal/socksserver"
)

// runSocksServer implements the `socks-server` subcommand: --ip,
// --port, --disable-socks4a, --disable-socks5, --enable-tcp-connect,
// --enable-tcp-bind, --enable-udp-associate, --udp-ports,
// --connection-timeout, --resolver, --dns-server, --family, -c|--config.
func runSocksServer(ctx context.Context, args []string) int {
	fs := newFlagSet("socks-server")
	cfgPath := fs.String("config", "", "config file path")
	fs.StringVar(cfgPath, "c", *cfgPath, "config file path (shorthand)")
	ip := fs.String("ip", "", "listen IP")
	port := fs.String("port", "", "listen port")
	disableSocks4a := fs.String("disable-socks4a", "", "disable SOCKS4a")
	disableSocks5 := fs.String("disable-socks5", "", "disable SOCKS5")
	enableTCPConnect := fs.String("enable-tcp-connect", "", "enable CONNECT")
	enableTCPBind := fs.String("enable-tcp-bind", "", "enable BIND")
	enableUDPAssociate := fs.String("enable-udp-associate", "", "enable UDP ASSOCIATE")
	udpPorts := fs.String("udp-ports", "", "comma-separated UDP port list")
	connectionTimeout := fs.String("connection-timeout", "", "per-connection timeout")
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
	overrideIfSet(fs, "ip", cfgFile, "socks-server", "ip", *ip)
	overrideIfSet(fs, "port", cfgFile, "socks-server", "port", *port)
	overrideIfSet(fs, "disable-socks4a", cfgFile, "socks-server", "disable-socks4a", *disableSocks4a)
	overrideIfSet(fs, "disable-socks5", cfgFile, "socks-server", "disable-socks5", *disableSocks5)
	overrideIfSet(fs, "enable-tcp-connect", cfgFile, "socks-server", "enable-tcp-connect", *enableTCPConnect)
	overrideIfSet(fs, "enable-tcp-bind", cfgFile, "socks-server", "enable-tcp-bind", *enableTCPBind)
	overrideIfSet(fs, "enable-udp-associate", cfgFile, "socks-server", "enable-udp-associate", *enableUDPAssociate)
	overrideIfSet(fs, "udp-ports", cfgFile, "socks-server", "udp-ports", *udpPorts)
	overrideIfSet(fs, "connection-timeout", cfgFile, "socks-server", "connection-timeout", *connectionTimeout)
	overrideIfSet(fs, "resolver", cfgFile, "socks-server", "resolver", *resolverKind)
	overrideIfSet(fs, "dns-server", cfgFile, "socks-server", "dns-server", *dnsServer)
	overrideIfSet(fs, "family", cfgFile, "socks-server", "family", *family)

	cfg := socksServerConfigFrom(cfgFile)

	log, _ := setupLogging()
	resolver := resolverFrom(cfgFile, "socks-server")
	dialer := socksserver.DirectDialer{Resolver: resolver, Family: familyFrom(cfgFile, "socks-server")}
	srv := socksserver.NewServer(cfg, dialer, log)

	if err := srv.Serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tunelo: socks-server: %v\n", err)
		return ExitAllFailed
	}
	return ExitOK
}

func socksServerConfigFrom(f interface{ Get(section, key string) string }) socksserver.Config {
	cfg := socksserver.DefaultConfig()
	if v := f.Get("socks-server", "ip"); v != "" {
		cfg.ListenIP = v
	}
	cfg.ListenPort = parseIntDefault(f.Get("socks-server", "port"), cfg.ListenPort)
	cfg.DisableSocks4a = parseBoolDefault(f.Get("socks-server", "disable-socks4a"), cfg.DisableSocks4a)
	cfg.DisableSocks5 = parseBoolDefault(f.Get("socks-server", "disable-socks5"), cfg.DisableSocks5)
	cfg.EnableTCPConnect = parseBoolDefault(f.Get("socks-server", "enable-tcp-connect"), cfg.EnableTCPConnect)
	cfg.EnableTCPBind = parseBoolDefault(f.Get("socks-server", "enable-tcp-bind"), cfg.EnableTCPBind)
	cfg.EnableUDPAssociate = parseBoolDefault(f.Get("socks-server", "enable-udp-associate"), cfg.EnableUDPAssociate)
	cfg.UDPPorts = parseIntListDefault(f.Get("socks-server", "udp-ports"))
	cfg.ConnectionTimeout = parseDurationDefault(f.Get("socks-server", "connection-timeout"), cfg.ConnectionTimeout)
	return cfg
}
