package httpserver

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
)

type stubDialer struct {
	conn net.Conn
	err  error
}

func (d stubDialer) DialTarget(ctx context.Context, target addr.Endpoint) (net.Conn, error) {
	return d.conn, d.err
}

func newTestServer(dialer Dialer) *Server {
	return &Server{cfg: DefaultConfig(), dialer: dialer, log: slog.Default()}
}

func TestTunnelWritesConnectionEstablished(t *testing.T) {
	client, serverSide := net.Pipe()
	upstream, upstreamPeer := net.Pipe()
	defer upstreamPeer.Close()

	srv := newTestServer(stubDialer{conn: upstream})
	sess := &session{id: "t", conn: serverSide, server: srv, log: slog.Default()}

	go func() {
		client.Write([]byte("CONNECT example.test:443 HTTP/1.1\r\nHost: example.test:443\r\n\r\n"))
	}()

	done := make(chan error, 1)
	go func() { done <- sess.run(context.Background()) }()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply := make([]byte, 64)
	n, err := client.Read(reply)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	got := string(reply[:n])
	want := "HTTP/1.1 200 Connection Established\r\n\r\n"
	if got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}

	client.Close()
	upstreamPeer.Close()
	<-done
}

func TestForwardStripsHopByHopAndSetsHost(t *testing.T) {
	client, serverSide := net.Pipe()
	upstreamServer, upstreamClient := net.Pipe()

	srv := newTestServer(stubDialer{conn: upstreamClient})
	sess := &session{id: "f", conn: serverSide, server: srv, log: slog.Default()}

	reqLine := "GET http://h.test/p HTTP/1.1\r\nProxy-Connection: keep-alive\r\n\r\n"
	go func() { client.Write([]byte(reqLine)) }()

	readDone := make(chan *http.Request, 1)
	go func() {
		br := bufio.NewReader(upstreamServer)
		req, err := http.ReadRequest(br)
		if err != nil {
			readDone <- nil
			return
		}
		readDone <- req
		upstreamServer.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	}()

	done := make(chan error, 1)
	go func() { done <- sess.run(context.Background()) }()

	req := <-readDone
	if req == nil {
		t.Fatal("upstream did not receive a request")
	}
	if !strings.HasPrefix(req.RequestURI, "/p") {
		t.Fatalf("request-target = %q, want prefix /p", req.RequestURI)
	}
	if req.Header.Get("Proxy-Connection") != "" {
		t.Fatalf("Proxy-Connection header leaked through: %q", req.Header.Get("Proxy-Connection"))
	}
	if req.Host != "h.test" {
		t.Fatalf("Host = %q, want h.test", req.Host)
	}
	if req.Header.Get("Connection") != "close" {
		t.Fatalf("Connection = %q, want close", req.Header.Get("Connection"))
	}

	client.Close()
	upstreamServer.Close()
	<-done
}
