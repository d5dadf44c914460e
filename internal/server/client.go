package server

import (
	"bufio"
	"io"
	"net"
	"time"
)

// Peer is one end of an accepted connection.  net.Conn satisfies it, and so
// does the WebSocket adapter.
type Peer interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Conn represents one admitted connection: its peer address, the username it
// negotiated, and the write side of its socket.
//
// Once a Conn is in the Registry, every write to it happens under the
// Registry lock, which serialises broadcasts and private replies per peer.
// The read side stays with the session goroutine.
type Conn struct {
	addr     string
	username string

	peer         io.WriteCloser
	w            *bufio.Writer
	writeTimeout time.Duration // zero means no deadline
}

func newConn(addr string, peer io.WriteCloser, writeTimeout time.Duration) *Conn {
	return &Conn{
		addr:         addr,
		peer:         peer,
		w:            bufio.NewWriter(peer),
		writeTimeout: writeTimeout,
	}
}

// Addr returns the peer address the connection is registered under.
func (c *Conn) Addr() string { return c.addr }

// Username returns the negotiated username.
func (c *Conn) Username() string { return c.username }

// write sends the full payload and flushes it.
func (c *Conn) write(payload []byte) error {
	if c.writeTimeout > 0 {
		if d, ok := c.peer.(writeDeadliner); ok {
			d.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
	}
	if _, err := c.w.Write(payload); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *Conn) close() error {
	return c.peer.Close()
}
