package upstream

import (
	"fmt"
	"io"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/socks4"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// Socks4aHandshake performs the outbound SOCKS4a client handshake over
// an already-connected stream: send a v4a CONNECT request in domain
// form when target is a domain (so resolution happens at the upstream),
// parse the 8-byte reply, and surface anything other than Granted as a
// protocol-level failure distinct from I/O failure.
func Socks4aHandshake(stream io.ReadWriter, target addr.Endpoint) error {
	req := socks4.Request{Command: socks4.CmdConnect, Target: target}
	if target.Host.Kind == addr.Domain {
		req.Domain = target.Host.Domain
	}
	wire, err := socks4.EncodeRequest(req)
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: err}
	}
	if _, err := stream.Write(wire); err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: fmt.Errorf("socks4a client: write request: %w", err)}
	}

	reply, err := socks4.ReadReply(stream)
	if err != nil {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: err}
	}
	if reply.Code != socks4.Granted {
		return &tunerr.HandshakeError{Kind: tunerr.HandshakeProtocol, Err: fmt.Errorf("socks4a client: upstream refused, code 0x%02x", byte(reply.Code))}
	}
	return nil
}
