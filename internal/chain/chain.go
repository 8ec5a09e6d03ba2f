// Package chain implements the proxy-chain engine: sequentially
// composing the per-protocol upstream clients to reach a final target
// address through an ordered list of upstream proxies.
package chain

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/transport"
	"github.com/tunelo-project/tunelo/internal/tunerr"
	"github.com/tunelo-project/tunelo/internal/upstream"
)

// Chain is an ordered, immutable sequence of upstream proxies; length
// >= 1, enforced by the loaders in load.go.
type Chain struct {
	hops []upstream.Proxy
}

// New builds a Chain from an already-validated, non-empty hop list.
func New(hops []upstream.Proxy) (Chain, error) {
	if len(hops) == 0 {
		return Chain{}, fmt.Errorf("chain: empty chain")
	}
	cp := make([]upstream.Proxy, len(hops))
	copy(cp, hops)
	return Chain{hops: cp}, nil
}

// Hops returns a copy of the chain's ordered upstream list.
func (c Chain) Hops() []upstream.Proxy {
	cp := make([]upstream.Proxy, len(c.hops))
	copy(cp, c.hops)
	return cp
}

func (c Chain) String() string {
	s := ""
	for i, h := range c.hops {
		if i > 0 {
			s += " -> "
		}
		s += h.String()
	}
	return s
}

// Dial runs the chain engine: dial hop 1 directly, run the i-th
// upstream client for i=1..N-1 with next-hop address p(i+1).endpoint,
// then run the N-th upstream client with target. The deadline (from
// ctx) is a single budget spanning the whole chain: it is also applied
// to the stream via SetDeadline around each hop's handshake, so a hop
// that accepts the TCP connection but never answers the handshake
// still aborts at the budget instead of blocking Dial forever. Any hop
// failure aborts with ChainError{HopIndex, Cause} and closes the
// partially-established stream.
func (c Chain) Dial(ctx context.Context, dialer *net.Dialer, resolver transport.Resolver, target addr.Endpoint) (net.Conn, error) {
	if len(c.hops) == 0 {
		return nil, fmt.Errorf("chain: empty chain")
	}

	first := c.hops[0]
	stream, err := transport.DialResolved(ctx, dialer, resolver, first.Endpoint.Host.String(), portOf(first.Endpoint), transport.FamilyAny)
	if err != nil {
		return nil, &tunerr.ChainError{HopIndex: 0, Cause: err}
	}

	deadline, hasDeadline := ctx.Deadline()

	for i := 0; i < len(c.hops); i++ {
		select {
		case <-ctx.Done():
			stream.Close()
			return nil, &tunerr.ChainTimeoutError{HopIndex: i}
		default:
		}

		nextHop := target
		if i+1 < len(c.hops) {
			nextHop = c.hops[i+1].Endpoint
		}

		if hasDeadline {
			stream.SetDeadline(deadline)
		}
		err := handshake(c.hops[i].Kind, stream, nextHop)
		if hasDeadline {
			stream.SetDeadline(time.Time{})
		}
		if err != nil {
			stream.Close()
			return nil, &tunerr.ChainError{HopIndex: i, Cause: err}
		}
	}

	return stream, nil
}

func handshake(kind upstream.Kind, stream net.Conn, next addr.Endpoint) error {
	switch kind {
	case upstream.Socks4a:
		return upstream.Socks4aHandshake(stream, next)
	case upstream.Socks5:
		return upstream.Socks5Handshake(stream, next)
	case upstream.HTTP:
		return upstream.HTTPHandshake(stream, next)
	default:
		return fmt.Errorf("chain: unknown upstream kind %v", kind)
	}
}

func portOf(ep addr.Endpoint) string {
	return fmt.Sprintf("%d", ep.Port)
}

// Dialer adapts a Chain into the socksserver.Dialer / httpserver.Dialer
// seam, so both server FSMs can be pointed at a proxy-chain target
// without any FSM code change.
type Dialer struct {
	Chain       Chain
	Resolver    transport.Resolver
	ChainBudget time.Duration
}

func (d Dialer) DialTarget(ctx context.Context, target addr.Endpoint) (net.Conn, error) {
	budget := d.ChainBudget
	if budget <= 0 {
		budget = 30 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return d.Chain.Dial(dialCtx, &net.Dialer{}, d.Resolver, target)
}
