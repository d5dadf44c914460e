package server

import (
	"errors"
	"fmt"
	"log"
	"time"

	"tcptalk/internal/protocol"
)

// Option configures a Server.
type Option func(s *Server) error

func setup(s *Server, options ...Option) error {
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger - replaces the default logger for operator output.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("server.WithLogger: logger is nil")
		}
		s.log = logger
		return nil
	}
}

// WithWriteTimeout - sets a write deadline on every write to a peer.
// Zero disables deadlines.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) error {
		if timeout < 0 {
			return fmt.Errorf("server.WithWriteTimeout: invalid timeout (%v)", timeout)
		}
		s.writeTimeout = timeout
		return nil
	}
}

// WithMaxLine - overrides the longest line read from a peer in one piece.
// Longer input is relayed in fragments of this size.
func WithMaxLine(n int) Option {
	return func(s *Server) error {
		if n <= protocol.MaxUsernameLen+1 {
			return fmt.Errorf("server.WithMaxLine: line limit %d is too small", n)
		}
		s.maxLine = n
		return nil
	}
}
