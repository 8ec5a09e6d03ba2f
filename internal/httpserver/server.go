package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/tunelo-project/tunelo/internal/tunerr"
)

// Server owns one HTTP proxy listener and spawns one session goroutine
// per accepted connection, mirroring internal/socksserver.Server.
type Server struct {
	cfg    Config
	dialer Dialer
	log    *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(cfg Config, dialer Dialer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, dialer: dialer, log: log}
}

func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ListenIP, s.cfg.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &tunerr.BindError{Addr: addr, Err: err}
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("http server listening", "addr", addr)

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
		log:    s.log.With("component", "http", "session_id", shortID(id)),
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
