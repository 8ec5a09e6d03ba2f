package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/httpproxy"
	"github.com/tunelo-project/tunelo/internal/transport"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

type fsmState string

const (
	stateReadHead fsmState = "read_head"
	stateClassify fsmState = "classify"
	stateTunnel   fsmState = "tunnel"
	stateForward  fsmState = "forward"
	stateRelay    fsmState = "relay"
	stateClosed   fsmState = "closed"
)

// session is one accepted connection's HTTP proxy FSM run:
// ReadHead -> Classify -> {Tunnel|Forward} -> Relay -> Closed.
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

func (s *session) run(ctx context.Context) error {
	defer s.setState(stateClosed)

	if s.server.cfg.HandshakeTimeout > 0 {
		s.conn.SetDeadline(time.Now().Add(s.server.cfg.HandshakeTimeout))
	}

	maxSize := s.server.cfg.MaxHeadSize
	if maxSize <= 0 {
		maxSize = httpproxy.DefaultMaxHeadSize
	}

	s.setState(stateReadHead)
	br := httpproxy.NewCappedReader(s.conn, maxSize)
	req, err := httpproxy.ReadHead(br, maxSize)
	if err != nil {
		if errors.Is(err, httpproxy.ErrHeadTooLarge) {
			s.writeStatusLine(431, "Request Header Fields Too Large")
			return &tunerr.HandshakeError{Kind: tunerr.HandshakeMalformedHead, Err: err}
		}
		s.writeStatusLine(400, "Bad Request")
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeMalformedHead, Err: err}
	}

	s.setState(stateClassify)
	switch httpproxy.Classify(req) {
	case httpproxy.KindConnect:
		return s.tunnel(ctx, req)
	case httpproxy.KindAbsolute:
		return s.forward(ctx, req)
	default:
		s.writeStatusLine(400, "Bad Request")
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeUnsupported, Err: fmt.Errorf("httpserver: origin-form request is not a proxy request")}
	}
}

// tunnel implements CONNECT: dial the authority-form target, reply 200
// on success or map the failure to 502/504/400, then enter a
// byte-transparent relay.
func (s *session) tunnel(ctx context.Context, req *http.Request) error {
	target, err := addr.ParseEndpoint(req.Host)
	if err != nil {
		s.writeStatusLine(400, "Bad Request")
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeMalformedHead, Err: err}
	}

	s.setState(stateTunnel)
	dialCtx, cancel := withTimeout(ctx, s.server.cfg.ConnectionTimeout)
	defer cancel()
	upstream, err := s.server.dialer.DialTarget(dialCtx, target)
	if err != nil {
		code, text := statusForConnectErr(err)
		s.writeStatusLine(code, text)
		return &tunerr.ConnectError{Kind: classifyConnectErr(err), Target: target.String(), Err: err}
	}
	defer upstream.Close()

	if _, err := s.conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return &tunerr.RelayError{Kind: tunerr.RelayIO, Err: err}
	}

	s.setState(stateRelay)
	s.conn.SetDeadline(time.Time{})
	return translateRelayErr(transport.Relay(s.conn, upstream, s.server.cfg.ConnectionTimeout))
}

// forward implements absolute-form forwarding: rewrite the request to
// origin-form, strip hop-by-hop headers, assert Connection: close, dial
// and forward, then stream the response back.
func (s *session) forward(ctx context.Context, req *http.Request) error {
	target, err := targetEndpoint(req)
	if err != nil {
		s.writeStatusLine(400, "Bad Request")
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeMalformedHead, Err: err}
	}

	httpproxy.PrepareForward(req)

	s.setState(stateForward)
	dialCtx, cancel := withTimeout(ctx, s.server.cfg.ConnectionTimeout)
	defer cancel()
	upstream, err := s.server.dialer.DialTarget(dialCtx, target)
	if err != nil {
		code, text := statusForConnectErr(err)
		s.writeStatusLine(code, text)
		return &tunerr.ConnectError{Kind: classifyConnectErr(err), Target: target.String(), Err: err}
	}
	defer upstream.Close()

	if err := req.Write(upstream); err != nil {
		return &tunerr.RelayError{Kind: tunerr.RelayIO, Err: err}
	}

	s.setState(stateRelay)
	s.conn.SetDeadline(time.Time{})
	if _, err := io.Copy(s.conn, upstream); err != nil && !errors.Is(err, io.EOF) {
		return translateRelayErr(err)
	}
	return nil
}

// targetEndpoint derives an Endpoint from an absolute-form request's
// URL authority, defaulting the port to 80 when absent; the proxy
// never MITMs, so there is no TLS-aware default to pick instead.
func targetEndpoint(req *http.Request) (addr.Endpoint, error) {
	host := req.URL.Hostname()
	portStr := req.URL.Port()
	if portStr == "" {
		portStr = "80"
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return addr.Endpoint{}, fmt.Errorf("httpserver: invalid port %q: %w", portStr, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return addr.Endpoint{Host: addr.NewIP(ip), Port: uint16(port)}, nil
	}
	a, err := addr.NewDomain(host)
	if err != nil {
		return addr.Endpoint{}, err
	}
	return addr.Endpoint{Host: a, Port: uint16(port)}, nil
}

func (s *session) writeStatusLine(code int, text string) {
	fmt.Fprintf(s.conn, "HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", code, text)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func statusForConnectErr(err error) (int, string) {
	kind := classifyConnectErr(err)
	switch kind {
	case tunerr.ConnectTimeout:
		return 504, "Gateway Timeout"
	default:
		return 502, "Bad Gateway"
	}
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
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return tunerr.ConnectRefused
	}
	return tunerr.ConnectOther
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
