// Package server owns the TCP listener and hands each accepted connection to
// the chat protocol handler on its own goroutine.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"labchat/internal/chat"
)

type Server struct {
	addr    string
	handler *chat.Handler
	log     *slog.Logger
	ln      net.Listener
}

func New(addr string, handler *chat.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{addr: addr, handler: handler, log: log}
}

// Listen binds the TCP address. This is the only fatal failure in the
// system; everything past a successful bind is handled per connection.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.log.Info("server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, useful when the port was :0.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener fails.
// Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "err", err)
			continue
		}
		go s.handler.Handle(conn)
	}
}
