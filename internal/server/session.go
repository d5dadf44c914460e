package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"

	"github.com/google/uuid"

	"tcptalk/internal/protocol"
)

// session carries one connection through
// Connecting → Negotiating → Active → Closing → Closed.
type session struct {
	srv   *Server
	conn  *Conn
	lines *protocol.LineReader
	log   *log.Logger
	tag   string
}

// serveConn runs the session for peer until it disconnects.  Errors end only
// this session; they are logged and never reach other sessions except
// through the registry.
func (s *Server) serveConn(peer Peer) {
	defer peer.Close()

	addr := peer.RemoteAddr().String()
	ss := &session{
		srv:   s,
		conn:  newConn(addr, peer, s.writeTimeout),
		lines: protocol.NewLineReader(peer, s.maxLine),
		log:   s.log,
		tag:   "[session " + uuid.NewString() + "]",
	}
	ss.log.Printf("%s accepted %s", ss.tag, addr)

	if err := ss.admit(); err != nil {
		ss.log.Printf("%s %s dropped before joining: %v", ss.tag, addr, err)
		return
	}
	ss.join()
	ss.relay()
	ss.leave()
}

// admit negotiates a username and inserts the connection into the registry.
// Losing a race for a name re-enters negotiation.
func (ss *session) admit() error {
	for {
		name, err := ss.srv.negotiator.Negotiate(ss.lines, ss.conn.write)
		if err != nil {
			return err
		}
		ss.conn.username = name

		err = ss.srv.registry.Insert(ss.conn)
		if err == nil {
			return nil
		}
		msg := rejection(err)
		if msg == "" {
			return err
		}
		if err := ss.conn.write([]byte(msg)); err != nil {
			return fmt.Errorf("%w: reject: %w", ErrNegotiation, err)
		}
	}
}

func (ss *session) join() {
	c := ss.conn
	reg := ss.srv.registry
	ss.log.Printf("%s %s connected from %s (Total: %d)", ss.tag, c.username, c.addr, reg.Len())

	reg.Broadcast(protocol.JoinNotice(c.username), c.addr)
	reg.BroadcastUserList()
}

// relay reads framed lines until the peer goes away: GET_USERS is answered
// privately, everything else is relayed to the other members.
func (ss *session) relay() {
	c := ss.conn
	reg := ss.srv.registry
	for {
		line, err := ss.lines.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				ss.log.Printf("%s read from %s: %v", ss.tag, c.username, err)
			}
			return
		}

		if protocol.IsGetUsers(string(line)) {
			if err := reg.SendUserList(c.addr); err != nil {
				ss.log.Printf("%s user list for %s: %v", ss.tag, c.username, err)
			}
			continue
		}

		msg := protocol.ChatLine(c.username, string(line))
		ss.log.Printf("%s %s", ss.tag, msg[:len(msg)-1])
		reg.Broadcast(msg, c.addr)
	}
}

func (ss *session) leave() {
	c := ss.conn
	reg := ss.srv.registry
	reg.Remove(c.addr)
	ss.log.Printf("%s %s disconnected from %s (Total: %d)", ss.tag, c.username, c.addr, reg.Len())

	reg.Broadcast(protocol.LeaveNotice(c.username), "")
	reg.BroadcastUserList()
}
