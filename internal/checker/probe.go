package checker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/transport"
	"github.com/tunelo-project/tunelo/internal/tunerr"
	"github.com/tunelo-project/tunelo/internal/upstream"
)

// probeOne runs a liveness-gated, tiered probe: a cheap liveness probe
// (connect + clean close) first, which short-circuits the remaining
// tiers on a dead upstream rather than spending the rest of the probe
// budget on it; then a connect-through handshake against cfg.Target;
// then a plain-HTTP request/response through that handshake (no TLS
// variant — see DESIGN.md). Every tier shares cfg.MaxTimeoutPerProbe.
func probeOne(ctx context.Context, p upstream.Proxy, cfg Config) ProbeResult {
	if outcome := probeLiveness(ctx, p.Endpoint, cfg); outcome != nil {
		return ProbeResult{Upstream: p, Outcome: *outcome}
	}

	start := time.Now()
	conn, outcome := dialAndHandshake(ctx, p, cfg)
	if outcome != nil {
		return ProbeResult{Upstream: p, Outcome: *outcome}
	}
	defer conn.Close()

	if outcome := probeHTTP(conn, cfg); outcome != nil {
		return ProbeResult{Upstream: p, Outcome: *outcome}
	}
	return ProbeResult{Upstream: p, Outcome: Outcome{Kind: OutcomeOK, Elapsed: time.Since(start)}}
}

// probeLiveness is the LivenessProber tier: connect to the upstream's
// own endpoint and close cleanly. Returns nil when alive.
func probeLiveness(ctx context.Context, ep addr.Endpoint, cfg Config) *Outcome {
	dialCtx, cancel := context.WithTimeout(ctx, probeTimeout(cfg))
	defer cancel()
	conn, err := dialEndpoint(dialCtx, ep, cfg)
	if err != nil {
		outcome := classifyDialErr(err)
		return &outcome
	}
	conn.Close()
	return nil
}

// dialAndHandshake is the BasicProber tier: open a fresh connection to
// the upstream and run its outbound handshake against cfg.Target,
// proving the upstream can actually reach somewhere rather than just
// accept TCP connections.
func dialAndHandshake(ctx context.Context, p upstream.Proxy, cfg Config) (net.Conn, *Outcome) {
	dialCtx, cancel := context.WithTimeout(ctx, probeTimeout(cfg))
	defer cancel()

	conn, err := dialEndpoint(dialCtx, p.Endpoint, cfg)
	if err != nil {
		outcome := classifyDialErr(err)
		return nil, &outcome
	}

	conn.SetDeadline(time.Now().Add(probeTimeout(cfg)))
	if err := handshake(p.Kind, conn, cfg.target()); err != nil {
		conn.Close()
		outcome := classifyHandshakeErr(err)
		return nil, &outcome
	}
	conn.SetDeadline(time.Time{})
	return conn, nil
}

// probeHTTP is the HttpProber tier: issue a plain-HTTP GET for "/"
// through the already-handshaked stream and require a parseable status
// line back.
func probeHTTP(conn net.Conn, cfg Config) *Outcome {
	conn.SetDeadline(time.Now().Add(probeTimeout(cfg)))
	defer conn.SetDeadline(time.Time{})

	req := fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", cfg.target().Host)
	if _, err := conn.Write([]byte(req)); err != nil {
		outcome := classifyHandshakeErr(err)
		return &outcome
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		outcome := classifyHandshakeErr(err)
		return &outcome
	}
	if !bytes.HasPrefix([]byte(line), []byte("HTTP/1.")) {
		outcome := Outcome{Kind: OutcomeProtocolError, ProtocolErrKind: "http", Err: fmt.Errorf("checker: malformed status line %q", line)}
		return &outcome
	}
	return nil
}

func handshake(kind upstream.Kind, conn net.Conn, target addr.Endpoint) error {
	switch kind {
	case upstream.Socks4a:
		return upstream.Socks4aHandshake(conn, target)
	case upstream.Socks5:
		return upstream.Socks5Handshake(conn, target)
	case upstream.HTTP:
		return upstream.HTTPHandshake(conn, target)
	default:
		return fmt.Errorf("checker: unknown upstream kind %v", kind)
	}
}

func (c Config) target() addr.Endpoint {
	if c.Target.Port != 0 {
		return c.Target
	}
	return DefaultTarget
}

func probeTimeout(cfg Config) time.Duration {
	if cfg.MaxTimeoutPerProbe <= 0 {
		return 5 * time.Second
	}
	return cfg.MaxTimeoutPerProbe
}

func dialEndpoint(ctx context.Context, ep addr.Endpoint, cfg Config) (net.Conn, error) {
	dialer := &net.Dialer{}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = transport.NewNetResolver()
	}
	return transport.DialResolved(ctx, dialer, resolver, ep.Host.String(), strconv.Itoa(int(ep.Port)), transport.FamilyAny)
}

func classifyDialErr(err error) Outcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Kind: OutcomeTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return Outcome{Kind: OutcomeRefused, Err: err}
	}
	return Outcome{Kind: OutcomeIOError, Err: err}
}

func classifyHandshakeErr(err error) Outcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Kind: OutcomeTimeout, Err: err}
	}
	var hsErr *tunerr.HandshakeError
	if errors.As(err, &hsErr) {
		return Outcome{Kind: OutcomeProtocolError, ProtocolErrKind: hsErr.Kind.String(), Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return Outcome{Kind: OutcomeRefused, Err: err}
	}
	return Outcome{Kind: OutcomeIOError, Err: err}
}
