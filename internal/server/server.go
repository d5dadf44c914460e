// Package server implements the tcptalk chat relay.
//
// Concurrency overview
// --------------------
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Listener goroutine (one per TCP listener)               │
//	│  Accepts connections; spawns one session goroutine each. │
//	└───────────────────┬─────────────────────────────────────┘
//	                    │  Insert / Remove / Broadcast
//	                    ▼
//	┌─────────────────────────────────────────────────────────┐
//	│  Registry  (sync.Mutex)                                  │
//	│  Ordered addr → Conn table; every write to an admitted   │
//	│  peer happens under its lock, one pass at a time.        │
//	└─────────────────────────────────────────────────────────┘
//
// Session goroutines block on their own socket reads outside the lock.  A
// stalled peer can delay a broadcast pass for everyone (head-of-line
// blocking); WithWriteTimeout bounds that when configured.
package server

import (
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tcptalk/internal/protocol"
)

// Server ties together the Registry, the Negotiator and the listeners.
type Server struct {
	registry   *Registry
	negotiator Negotiator
	log        *log.Logger

	writeTimeout time.Duration
	maxLine      int
	upgrader     websocket.Upgrader

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	peers     map[Peer]struct{} // every open session, admitted or not
	closed    bool
	sessions  sync.WaitGroup
}

// New creates a Server configured by opts.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		log:       log.Default(),
		maxLine:   protocol.DefaultMaxLine,
		listeners: make(map[net.Listener]struct{}),
		peers:     make(map[Peer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may connect; the relay has no notion of accounts.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if err := setup(s, opts...); err != nil {
		return nil, err
	}
	s.registry = NewRegistry(s.log)
	s.negotiator = Negotiator{Registry: s.registry}
	return s, nil
}

// Registry returns the server's connection registry.
func (s *Server) Registry() *Registry { return s.registry }

// ListenAndServe binds addr and serves it until Shutdown.  A bind failure is
// returned immediately.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Printf("[server] listening on %s", ln.Addr())
	return s.Serve(ln)
}

// Serve accepts connections on ln, one session goroutine per connection.
// It returns ErrServerClosed after Shutdown, or the accept error that
// stopped the loop.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Printf("[server] accept error: %v", err)
				continue
			}
			return err
		}
		if !s.trackPeer(conn) {
			conn.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.untrackPeer(conn)
			s.serveConn(conn)
		}()
	}
}

// Shutdown closes every listener and every open connection, then waits for
// the sessions to finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for ln := range s.listeners {
		ln.Close()
	}
	for p := range s.peers {
		p.Close()
	}
	s.mu.Unlock()

	s.sessions.Wait()
	s.log.Println("[server] shut down")
}

// ---------------------------------------------------------------------------
// Listener / peer tracking
// ---------------------------------------------------------------------------

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// trackPeer registers p as an open session; the caller must pair it with
// untrackPeer.
func (s *Server) trackPeer(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.peers[p] = struct{}{}
	s.sessions.Add(1)
	return true
}

func (s *Server) untrackPeer(p Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	s.sessions.Done()
}
