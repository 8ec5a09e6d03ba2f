package socksserver

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/tunelo-project/tunelo/internal/addr"
	"github.com/tunelo-project/tunelo/internal/socks5"
	"github.com/tunelo-project/tunelo/internal/transport"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// udpAssociation is bound one-way to its controlling TCP session:
// closing the TCP half unconditionally tears down the UDP socket —
// dispatchUDPAssociate defers relaySocket.Close() and returns once the
// controlling conn's Read returns.
//
// Per-target outbound sockets are tracked in a map with a periodic
// cleanup ticker; the client source is locked to the first observed
// address, and unauthorized sources and fragmented datagrams are
// dropped silently.
type udpAssociation struct {
	relaySocket *net.UDPConn
	clientAddr  *net.UDPAddr // locked on first observed datagram, or pre-set below when declared
	resolver    transport.Resolver

	mu      sync.Mutex
	targets map[string]*udpTarget

	droppedFrames int // fragmented/unauthorized datagrams dropped
}

type udpTarget struct {
	conn       *net.UDPConn
	target     addr.Endpoint
	lastActive time.Time
}

const (
	udpTargetCleanupInterval = 30 * time.Second
	udpTargetExpiry          = 1 * time.Minute
)

// dispatchUDPAssociate implements SOCKS UDP_ASSOCIATE: allocate a UDP
// socket from the configured port pool, reply with its address, then
// relay datagrams until the controlling TCP connection closes.
func (s *session) dispatchUDPAssociate(ctx context.Context, req socks5.Request) error {
	if !s.server.cfg.EnableUDPAssociate {
		s.writeSocks5Reply(socks5.CommandNotSupported, socks5.EmptyIPv4Endpoint())
		return nil
	}

	port, ok := s.server.ports.Acquire()
	if !ok {
		s.writeSocks5Reply(socks5.GeneralFailure, socks5.EmptyIPv4Endpoint())
		return &tunerr.BindError{Addr: "udp-port-pool", Err: errPoolExhausted}
	}

	relaySocket, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		s.server.ports.Release(port)
		s.writeSocks5Reply(socks5.GeneralFailure, socks5.EmptyIPv4Endpoint())
		return &tunerr.BindError{Addr: "udp", Err: err}
	}
	defer func() {
		relaySocket.Close()
		s.server.ports.Release(port)
	}()

	bound := relaySocket.LocalAddr().(*net.UDPAddr)
	s.writeSocks5Reply(socks5.Success, addr.Endpoint{Host: addr.NewIP(bound.IP), Port: uint16(bound.Port)})

	assoc := &udpAssociation{relaySocket: relaySocket, targets: map[string]*udpTarget{}}
	if req.Target.Port != 0 {
		if ip := net.ParseIP(req.Target.Host.String()); ip != nil && !ip.IsUnspecified() {
			assoc.clientAddr = &net.UDPAddr{IP: ip, Port: int(req.Target.Port)}
		}
	}

	done := make(chan struct{})
	go func() {
		assoc.relayLoop()
		close(done)
	}()

	// The TCP connection's only remaining job is to detect closure; a
	// single one-byte read blocks until the client closes, errors, or
	// sends anything, and any of these tears down the UDP socket.
	buf := make([]byte, 1)
	_, waitErr := s.conn.Read(buf)

	relaySocket.SetReadDeadline(time.Now())
	<-done
	s.setState(stateClosed)
	if waitErr != nil {
		return nil // peer closed; this is the expected teardown trigger
	}
	return nil
}

var errPoolExhausted = &poolExhaustedErr{}

type poolExhaustedErr struct{}

func (*poolExhaustedErr) Error() string { return "udp port pool exhausted" }

// relayLoop reads datagrams from the client and forwards them to their
// declared target, and relays target responses back to the client,
// until the relay socket is closed (signalled via a read deadline set
// by dispatchUDPAssociate on TCP teardown).
func (a *udpAssociation) relayLoop() {
	cleanup := time.NewTicker(udpTargetCleanupInterval)
	defer cleanup.Stop()

	buf := make([]byte, socks5.MaxUDPPacketSize)
	for {
		n, from, err := a.relaySocket.ReadFromUDP(buf)
		if err != nil {
			return
		}
		a.handleClientDatagram(buf[:n], from)

		select {
		case <-cleanup.C:
			a.sweepExpired()
		default:
		}
	}
}

// acceptSource locks clientAddr to the first observed source (or to the
// request-declared source, set before relayLoop starts) and reports
// whether from matches it. Guarded by mu since pumpTargetReplies reads
// clientAddr from a different goroutine.
func (a *udpAssociation) acceptSource(from *net.UDPAddr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.clientAddr == nil {
		a.clientAddr = from
		return true
	}
	return addrEqual(a.clientAddr, from)
}

func (a *udpAssociation) handleClientDatagram(pkt []byte, from *net.UDPAddr) {
	if !a.acceptSource(from) {
		a.droppedFrames++ // unauthorized source: drop silently
		return
	}

	hdr, payload, err := socks5.DecodeUDPDatagram(pkt)
	if err != nil {
		a.droppedFrames++
		return
	}
	if hdr.Frag != 0 {
		a.droppedFrames++ // fragmentation not supported: drop silently
		return
	}

	targetAddr := net.JoinHostPort(hdr.Target.Host.String(), strconv.Itoa(int(hdr.Target.Port)))
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddr)
	if err != nil {
		a.droppedFrames++
		return
	}

	key := udpAddr.String()
	a.mu.Lock()
	tgt, ok := a.targets[key]
	if !ok {
		conn, err := net.DialUDP("udp", nil, udpAddr)
		if err != nil {
			a.mu.Unlock()
			a.droppedFrames++
			return
		}
		tgt = &udpTarget{conn: conn, target: hdr.Target}
		a.targets[key] = tgt
		go a.pumpTargetReplies(key, tgt)
	}
	tgt.lastActive = time.Now()
	a.mu.Unlock()

	tgt.conn.Write(payload)
}

// pumpTargetReplies forwards one target's responses back to the client,
// rewrapping them with the SOCKS5 UDP header.
func (a *udpAssociation) pumpTargetReplies(key string, tgt *udpTarget) {
	buf := make([]byte, socks5.MaxUDPPacketSize)
	for {
		n, err := tgt.conn.Read(buf)
		if err != nil {
			return
		}
		a.mu.Lock()
		tgt.lastActive = time.Now()
		client := a.clientAddr
		a.mu.Unlock()
		if client == nil {
			continue
		}
		wrapped := socks5.EncodeUDPDatagram(tgt.target, buf[:n])
		a.relaySocket.WriteToUDP(wrapped, client)
	}
}

func (a *udpAssociation) sweepExpired() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	for key, tgt := range a.targets {
		if now.Sub(tgt.lastActive) > udpTargetExpiry {
			tgt.conn.Close()
			delete(a.targets, key)
		}
	}
}

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
