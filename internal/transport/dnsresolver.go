package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// DNSResolver is an alternate Resolver backend that queries a specific
// upstream DNS server directly via github.com/miekg/dns, instead of
// going through the OS resolver. Selected with --resolver=dns (or a
// configured server address) when the default net.Resolver is
// insufficient — e.g. when the host's /etc/resolv.conf is not trusted.
type DNSResolver struct {
	Server string // "host:port", e.g. "1.1.1.1:53"
	Client *dns.Client
}

// NewDNSResolver builds a DNSResolver targeting server.
func NewDNSResolver(server string) *DNSResolver {
	return &DNSResolver{Server: server, Client: &dns.Client{}}
}

func (r *DNSResolver) Resolve(ctx context.Context, domain string, family Family) ([]net.IP, error) {
	qtypes := []uint16{dns.TypeA, dns.TypeAAAA}
	switch family {
	case FamilyIPv4:
		qtypes = []uint16{dns.TypeA}
	case FamilyIPv6:
		qtypes = []uint16{dns.TypeAAAA}
	}

	var ips []net.IP
	fqdn := dns.Fqdn(domain)
	for _, qtype := range qtypes {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		msg.RecursionDesired = true

		reply, _, err := r.Client.ExchangeContext(ctx, msg, r.Server)
		if err != nil {
			return nil, fmt.Errorf("transport: dns query %s: %w", domain, err)
		}
		for _, rr := range reply.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				ips = append(ips, rec.A)
			case *dns.AAAA:
				ips = append(ips, rec.AAAA)
			}
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("transport: dns: no records for %s", domain)
	}
	return ips, nil
}
