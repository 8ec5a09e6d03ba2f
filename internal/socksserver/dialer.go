package socksserver

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/transport"
)

// Dialer produces a connected stream to target, either by dialing
// directly or, in proxy-chain mode, by running the chain engine. This is
// the seam the proxy-chain subcommand uses to reuse this FSM unchanged.
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

// withTimeout bounds a call by d, returning a context with that
// deadline when d > 0.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
