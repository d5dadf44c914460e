package server

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketPath is where Handler accepts WebSocket upgrades.
const WebSocketPath = "/ws"

// Handler returns an http.Handler that upgrades WebSocket requests on
// WebSocketPath and runs them as ordinary chat sessions.  Every text frame
// from the browser is one line; every server write becomes one text frame.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.serveWebSocket)
	return mux
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.log.Printf("[ws] upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	p := &wsPeer{ws: ws}
	if !s.trackPeer(p) {
		ws.Close()
		return
	}
	defer s.untrackPeer(p)
	s.serveConn(p)
}

// wsPeer adapts a WebSocket connection to the byte-stream Peer interface.
type wsPeer struct {
	ws   *websocket.Conn
	r    io.Reader // current frame, nil between frames
	last byte      // last byte handed to the caller
}

// Read streams frame payloads back to back.  A frame that does not end in a
// newline is terminated with one, so each frame frames exactly one line.
func (p *wsPeer) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for {
		if p.r == nil {
			_, r, err := p.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			p.r = r
			p.last = '\n'
		}

		n, err := p.r.Read(b)
		if n > 0 {
			p.last = b[n-1]
			return n, nil
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return 0, err
		}

		p.r = nil
		if p.last != '\n' {
			p.last = '\n'
			b[0] = '\n'
			return 1, nil
		}
	}
}

func (p *wsPeer) Write(b []byte) (int, error) {
	if err := p.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (p *wsPeer) Close() error { return p.ws.Close() }

func (p *wsPeer) RemoteAddr() net.Addr { return p.ws.RemoteAddr() }

func (p *wsPeer) SetWriteDeadline(t time.Time) error { return p.ws.SetWriteDeadline(t) }
