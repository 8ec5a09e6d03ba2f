package checker

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/upstream"
)

// fakeHTTPUpstream accepts connections until closed (the checker's
// liveness tier opens and closes one before the handshake tier dials
// again); on each it answers a CONNECT with 200, then answers the
// checker's follow-up GET with 200 OK.
func fakeHTTPUpstream(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				br := bufio.NewReader(conn)

				if _, err := http.ReadRequest(br); err != nil {
					return
				}
				conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))

				if _, err := http.ReadRequest(br); err != nil {
					return
				}
				conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
			}(conn)
		}
	}()
	return ln
}

func endpointOf(t *testing.T, ln net.Listener) addr.Endpoint {
	t.Helper()
	ep, err := addr.ParseEndpoint(ln.Addr().String())
	if err != nil {
		t.Fatalf("ParseEndpoint: %v", err)
	}
	return ep
}

func TestProbeOneSucceedsThroughHTTPUpstream(t *testing.T) {
	ln := fakeHTTPUpstream(t)
	defer ln.Close()

	p := upstream.Proxy{Kind: upstream.HTTP, Endpoint: endpointOf(t, ln)}
	cfg := DefaultConfig()
	result := probeOne(context.Background(), p, cfg)

	if result.Outcome.Kind != OutcomeOK {
		t.Fatalf("Outcome.Kind = %v, want OutcomeOK (err=%v, detail=%s)", result.Outcome.Kind, result.Outcome.Err, result.Outcome.ProtocolErrKind)
	}
}

func TestProbeOneRefusedWhenNothingListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ep := endpointOf(t, ln)
	ln.Close() // nothing listens on ep from here on

	p := upstream.Proxy{Kind: upstream.HTTP, Endpoint: ep}
	cfg := DefaultConfig()
	cfg.MaxTimeoutPerProbe = 500 * time.Millisecond
	result := probeOne(context.Background(), p, cfg)

	if result.Outcome.Kind != OutcomeRefused {
		t.Fatalf("Outcome.Kind = %v, want OutcomeRefused", result.Outcome.Kind)
	}
}

func TestRunPreservesInputOrder(t *testing.T) {
	lns := make([]net.Listener, 3)
	for i := range lns {
		lns[i] = fakeHTTPUpstream(t)
		defer lns[i].Close()
	}

	proxies := make([]upstream.Proxy, len(lns))
	for i, ln := range lns {
		proxies[i] = upstream.Proxy{Kind: upstream.HTTP, Endpoint: endpointOf(t, ln)}
	}

	cfg := DefaultConfig()
	cfg.Probers = 2
	results := Run(context.Background(), proxies, cfg)

	if len(results) != len(proxies) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(proxies))
	}
	for i, r := range results {
		if r.Upstream.Endpoint.String() != proxies[i].Endpoint.String() {
			t.Fatalf("results[%d].Upstream = %v, want %v", i, r.Upstream.Endpoint, proxies[i].Endpoint)
		}
	}
}
