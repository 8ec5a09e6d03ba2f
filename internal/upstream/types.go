// Package upstream implements the per-protocol outbound handshake
// clients: socks4a, socks5, and http. Each client takes an
// already-connected stream to the upstream proxy and a target endpoint,
// performs only the outbound handshake, and returns the stream
// positioned at the start of the payload byte.
package upstream

import (
	"fmt"
	"strings"

	"github.com/tunelo-project/tunelo/internal/addr"
)

// Kind is the closed variant of upstream protocols tunelo speaks
// outbound. Kept as a small closed set rather than open polymorphism so
// adding a new kind requires a deliberate, exhaustively-matched change.
type Kind int

const (
	Socks4a Kind = iota
	Socks5
	HTTP
)

func (k Kind) String() string {
	switch k {
	case Socks4a:
		return "socks4a"
	case Socks5:
		return "socks5"
	case HTTP:
		return "http"
	default:
		return "unknown"
	}
}

// ParseKind parses the scheme component of a chain-file line or CLI
// flag ("socks4a", "socks5", "http") into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "socks4a":
		return Socks4a, nil
	case "socks5":
		return Socks5, nil
	case "http":
		return HTTP, nil
	default:
		return 0, fmt.Errorf("upstream: unknown proxy kind %q", s)
	}
}

// Proxy describes an upstream proxy: a kind plus an endpoint.
// Deliberately carries no credentials.
type Proxy struct {
	Kind     Kind
	Endpoint addr.Endpoint
}

func (p Proxy) String() string {
	return fmt.Sprintf("%s://%s", p.Kind, p.Endpoint)
}
