package httpserver

import (
	"context"
	"net"
	"strconv"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/transport"
)

// Dialer produces a connected stream to target; shared seam with
// internal/socksserver so both FSMs can be pointed at the same
// chain-backed Dialer in proxy-chain mode.
type Dialer interface {
	DialTarget(ctx context.Context, target addr.Endpoint) (net.Conn, error)
}

// DirectDialer dials target directly, resolving domains via the
// configured resolver.
type DirectDialer struct {
	Resolver transport.Resolver
	Family   transport.Family
}

func (d DirectDialer) DialTarget(ctx context.Context, target addr.Endpoint) (net.Conn, error) {
	dialer := &net.Dialer{}
	port := strconv.Itoa(int(target.Port))
	return transport.DialResolved(ctx, dialer, d.Resolver, target.Host.String(), port, d.Family)
}
