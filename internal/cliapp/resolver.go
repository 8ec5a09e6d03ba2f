package cliapp

import (
	"strings"

	"github.com/tunelo-project/tunelo/internal/transport"
)

// defaultDNSServer is used when --resolver=dns is selected without an
// explicit --dns-server.
const defaultDNSServer = "1.1.1.1:53"

// resolverFrom builds the transport.Resolver a subcommand dials with:
// the default *net.Resolver, unless --resolver=dns or --dns-server is
// set, in which case it's a transport.DNSResolver targeting that server.
func resolverFrom(f interface{ Get(section, key string) string }, section string) transport.Resolver {
	server := f.Get(section, "dns-server")
	if !strings.EqualFold(f.Get(section, "resolver"), "dns") && server == "" {
		return transport.NewNetResolver()
	}
	if server == "" {
		server = defaultDNSServer
	}
	return transport.NewDNSResolver(server)
}

// familyFrom reads a subcommand's --family setting (any|ipv4|ipv6,
// defaulting to any) into a transport.Family.
func familyFrom(f interface{ Get(section, key string) string }, section string) transport.Family {
	switch strings.ToLower(f.Get(section, "family")) {
	case "ipv4":
		return transport.FamilyIPv4
	case "ipv6":
		return transport.FamilyIPv6
	default:
		return transport.FamilyAny
	}
}
