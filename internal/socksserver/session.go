package socksserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/socks4"
	"github.com/tunelo-project/tunelo/internal/socks5"
	"github.com/tunelo-project/tunelo/internal/transport"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// fsmState names the SOCKS FSM's current step, kept identifiable for
// logging.
type fsmState string

const (
	stateGreeting      fsmState = "greeting"
	stateMethodAck     fsmState = "method_ack"
	stateAwaitRequest  fsmState = "await_request"
	stateDispatch      fsmState = "dispatch"
	stateRelay         fsmState = "relay"
	stateClosed        fsmState = "closed"
)

// session is one accepted connection's FSM run.
type session struct {
	id     string
	conn   net.Conn
	server *Server
	log    *slog.Logger
	state  fsmState
}

func (s *session) setState(st fsmState) {
	s.state = st
	s.log.Debug("fsm state", "state", st)
}

// run executes Greeting -> MethodAck -> AwaitRequest -> Dispatch ->
// Relay/UdpRelay -> Closed for one connection.
func (s *session) run(ctx context.Context) error {
	defer s.setState(stateClosed)

	if s.server.cfg.HandshakeTimeout > 0 {
		s.conn.SetDeadline(time.Now().Add(s.server.cfg.HandshakeTimeout))
	}

	br := bufio.NewReader(s.conn)
	ver, err := br.ReadByte()
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: err}
	}

	switch ver {
	case socks4.Version:
		if s.server.cfg.DisableSocks4a {
			return nil // disabled protocols close after reading the version byte
		}
		return s.runSocks4(ctx, br)
	case socks5.Version:
		if s.server.cfg.DisableSocks5 {
			return nil
		}
		return s.runSocks5(ctx, br)
	default:
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: fmt.Errorf("unknown version byte 0x%02x", ver)}
	}
}

func (s *session) runSocks4(ctx context.Context, br *bufio.Reader) error {
	s.setState(stateAwaitRequest)
	req, err := socks4.ReadRequest(br)
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeMalformedHead, Err: err}
	}

	s.setState(stateDispatch)
	if req.Command != socks4.CmdConnect {
		s.writeSocks4Reply(socks4.Rejected, addr.Endpoint{})
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeUnsupported, Err: fmt.Errorf("socks4 command 0x%02x not supported", req.Command)}
	}
	if !s.server.cfg.EnableTCPConnect {
		s.writeSocks4Reply(socks4.Rejected, addr.Endpoint{})
		return nil
	}

	dialCtx, cancel := withTimeout(ctx, s.server.cfg.ConnectionTimeout)
	defer cancel()
	upstream, err := s.server.dialer.DialTarget(dialCtx, req.Target)
	if err != nil {
		s.writeSocks4Reply(socks4.Rejected, addr.Endpoint{})
		return &tunerr.ConnectError{Kind: classifyConnectErr(err), Target: req.Target.String(), Err: err}
	}
	defer func() {
		if upstream != nil {
			upstream.Close()
		}
	}()

	local := localEndpoint(upstream)
	s.writeSocks4Reply(socks4.Granted, local)
	upstream2 := upstream
	upstream = nil // transfer ownership to relay below

	s.setState(stateRelay)
	s.conn.SetDeadline(time.Time{})
	return translateRelayErr(transport.Relay(s.conn, upstream2, s.server.cfg.ConnectionTimeout))
}

func (s *session) writeSocks4Reply(code socks4.ReplyCode, bind addr.Endpoint) {
	if bind.Host.IP == nil && bind.Host.Kind != addr.Domain {
		bind = addr.Endpoint{Host: addr.NewIP(net.IPv4zero)}
	}
	s.conn.Write(socks4.EncodeReply(socks4.Reply{Code: code, Bind: bind}))
}

func (s *session) runSocks5(ctx context.Context, br *bufio.Reader) error {
	s.setState(stateGreeting)
	greeting, err := socks5.ReadGreeting(br)
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeMalformedHead, Err: err}
	}

	s.setState(stateMethodAck)
	method := socks5.SelectMethod(greeting.Methods)
	s.conn.Write(socks5.EncodeMethodReply(method))
	if method == socks5.MethodNoneAcceptable {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeUnsupported, Err: errors.New("no acceptable socks5 method offered")}
	}

	s.setState(stateAwaitRequest)
	req, err := socks5.ReadRequest(br)
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeMalformedHead, Err: err}
	}

	s.setState(stateDispatch)
	switch req.Command {
	case socks5.CmdConnect:
		return s.dispatchConnect(ctx, req)
	case socks5.CmdBind:
		return s.dispatchBind(ctx, req)
	case socks5.CmdUDPAssociate:
		return s.dispatchUDPAssociate(ctx, req)
	default:
		s.writeSocks5Reply(socks5.CommandNotSupported, socks5.EmptyIPv4Endpoint())
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeUnsupported, Err: fmt.Errorf("socks5 command 0x%02x not supported", req.Command)}
	}
}

func (s *session) writeSocks5Reply(code socks5.ReplyCode, bind addr.Endpoint) {
	s.conn.Write(socks5.EncodeReply(socks5.Reply{Code: code, Bind: bind}))
}

func classifyConnectErr(err error) tunerr.ConnectKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return tunerr.ConnectTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return tunerr.ConnectUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return tunerr.ConnectRefused
		}
	}
	return tunerr.ConnectOther
}

// socks5ReplyFor maps a connect-error category to the nearest SOCKS5
// reply code.
func socks5ReplyFor(kind tunerr.ConnectKind) socks5.ReplyCode {
	switch kind {
	case tunerr.ConnectRefused:
		return socks5.ConnectionRefused
	case tunerr.ConnectUnreachable:
		return socks5.HostUnreachable
	case tunerr.ConnectTimeout:
		return socks5.TTLExpired
	default:
		return socks5.GeneralFailure
	}
}

func localEndpoint(conn net.Conn) addr.Endpoint {
	if conn == nil {
		return socks5.EmptyIPv4Endpoint()
	}
	tcpAddr, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return socks5.EmptyIPv4Endpoint()
	}
	return addr.Endpoint{Host: addr.NewIP(tcpAddr.IP), Port: uint16(tcpAddr.Port)}
}

func translateRelayErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &tunerr.RelayError{Kind: tunerr.RelayIdleTimeout, Err: err}
	}
	return &tunerr.RelayError{Kind: tunerr.RelayIO, Err: err}
}
