package socksserver

import (
	"context"
	"time"

	"github.com/tunelo-project/tunelo/internal/socks5"
	"github.com/tunelo-project/tunelo/internal/transport"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// dispatchConnect implements SOCKS CONNECT: dial the target with the
// session deadline, reply with the server-side local address on
// success, translate failures to the nearest SOCKS5 reply code, then
// enter the relay.
func (s *session) dispatchConnect(ctx context.Context, req socks5.Request) error {
	if !s.server.cfg.EnableTCPConnect {
		s.writeSocks5Reply(socks5.CommandNotSupported, socks5.EmptyIPv4Endpoint())
		return nil
	}

	dialCtx, cancel := withTimeout(ctx, s.server.cfg.ConnectionTimeout)
	defer cancel()
	upstream, err := s.server.dialer.DialTarget(dialCtx, req.Target)
	if err != nil {
		kind := classifyConnectErr(err)
		s.writeSocks5Reply(socks5ReplyFor(kind), socks5.EmptyIPv4Endpoint())
		return &tunerr.ConnectError{Kind: kind, Target: req.Target.String(), Err: err}
	}
	defer upstream.Close()

	local := localEndpoint(upstream)
	s.writeSocks5Reply(socks5.Success, local)

	s.setState(stateRelay)
	s.conn.SetDeadline(time.Time{})
	return translateRelayErr(transport.Relay(s.conn, upstream, s.server.cfg.ConnectionTimeout))
}
