package socksserver

import (
	"context"
	"net"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/socks5"
	"github.com/tunelo-project/tunelo/internal/transport"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// dispatchBind implements SOCKS BIND, behaviorally complete rather than
// a stub: allocates a listening socket on the server's outbound
// interface, replies with the bound address, blocks (with the
// session's connection-timeout as deadline) on exactly one accept,
// replies again with the peer address, then enters the relay.
func (s *session) dispatchBind(ctx context.Context, req socks5.Request) error {
	if !s.server.cfg.EnableTCPBind {
		s.writeSocks5Reply(socks5.CommandNotSupported, socks5.EmptyIPv4Endpoint())
		return nil
	}

	ln, err := net.ListenTCP("tcp", &net.TCPAddr{})
	if err != nil {
		s.writeSocks5Reply(socks5.GeneralFailure, socks5.EmptyIPv4Endpoint())
		return &tunerr.BindError{Addr: "bind-ephemeral", Err: err}
	}
	defer ln.Close()

	boundAddr := ln.Addr().(*net.TCPAddr)
	s.writeSocks5Reply(socks5.Success, addr.Endpoint{Host: addr.NewIP(boundAddr.IP), Port: uint16(boundAddr.Port)})

	deadline := s.server.cfg.ConnectionTimeout
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	ln.SetDeadline(time.Now().Add(deadline))

	peer, err := ln.AcceptTCP()
	if err != nil {
		s.writeSocks5Reply(socks5.GeneralFailure, socks5.EmptyIPv4Endpoint())
		return &tunerr.ConnectError{Kind: tunerr.ConnectTimeout, Target: boundAddr.String(), Err: err}
	}
	defer peer.Close()

	peerAddr := peer.RemoteAddr().(*net.TCPAddr)
	s.writeSocks5Reply(socks5.Success, addr.Endpoint{Host: addr.NewIP(peerAddr.IP), Port: uint16(peerAddr.Port)})

	s.setState(stateRelay)
	s.conn.SetDeadline(time.Time{})
	return translateRelayErr(transport.Relay(s.conn, peer, s.server.cfg.ConnectionTimeout))
}
