package socksserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// Server owns one SOCKS4a/5 listener and spawns one session goroutine
// per accepted connection.
type Server struct {
	cfg    Config
	dialer Dialer
	ports  *PortPool
	log    *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a Server. dialer is consulted for CONNECT/BIND
// targets; pass a DirectDialer for a standalone socks-server, or a
// chain-backed Dialer for proxy-chain mode.
func NewServer(cfg Config, dialer Dialer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, dialer: dialer, ports: NewPortPool(cfg.UDPPorts), log: log}
}

// Serve binds the listener and accepts connections until ctx is
// cancelled. It returns nil on a clean shutdown triggered by ctx, and a
// non-nil error on a bind failure or an unrecoverable accept failure.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ListenIP, s.cfg.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &tunerr.BindError{Addr: addr, Err: err}
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("socks server listening", "addr", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return &tunerr.AcceptError{Err: err}
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Close stops the listener; in-flight sessions are left to the caller's
// shutdown grace period (the supervisor owns that timing).
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()
	sess := &session{
		id:     id,
		conn:   conn,
		server: s,
		log:    s.log.With("component", "socks", "session_id", shortID(id)),
	}
	defer conn.Close()
	if err := sess.run(ctx); err != nil {
		sess.log.Warn("session terminated", "err", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
