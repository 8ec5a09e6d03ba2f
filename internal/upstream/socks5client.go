package upstream

import (
	"fmt"
	"net"

	"golang.org/x/net/proxy"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// Socks5Handshake performs the outbound SOCKS5 client handshake over an
// already-connected stream: greeting with [0x00] only, expect method
// 0x00, CONNECT with the target's native address form (domains preserved
// as domain form so resolution happens at the last hop).
//
// Reuses golang.org/x/net/proxy's SOCKS5 client implementation by
// handing it a forwardDialer whose Dial call simply returns the stream
// already connected, so x/net/proxy only performs the wire handshake
// and never does any dialing of its own.
func Socks5Handshake(stream net.Conn, target addr.Endpoint) error {
	dialer, err := proxy.SOCKS5("tcp", target.String(), nil, forwardDialer{stream})
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: err}
	}
	conn, err := dialer.Dial("tcp", target.String())
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: fmt.Errorf("socks5 client: %w", err)}
	}
	if conn != stream {
		// x/net/proxy always returns the same conn it dialed through
		// forwardDialer; this only guards against a future API change.
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: fmt.Errorf("socks5 client: unexpected stream substitution")}
	}
	return nil
}

// forwardDialer hands a SOCKS5 client implementation a stream that is
// already connected to the upstream proxy, so it performs only the
// handshake and no dialing of its own.
type forwardDialer struct {
	stream net.Conn
}

func (f forwardDialer) Dial(network, addr string) (net.Conn, error) {
	return f.stream, nil
}
