package server

import "tcptalk/internal/protocol"

// Broadcast writes payload to every registered connection except exclude and
// returns how many peers received it.  A peer whose write or flush fails is
// evicted; the pass always continues to the remaining peers.
//
// All calls are serialised by the registry lock, so every peer observes
// payloads in the order Broadcast was called.
func (r *Registry) Broadcast(payload []byte, exclude string) int {
	var delivered int
	r.Visit(exclude, func(c *Conn) error {
		if err := c.write(payload); err != nil {
			return err
		}
		delivered++
		return nil
	})
	return delivered
}

// BroadcastUserList sends the current roster to every member, including one
// that has just joined.  The roster is composed under the same lock as the
// pass, so what each peer receives matches the registry at that moment.
func (r *Registry) BroadcastUserList() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload := protocol.EncodeUserList(r.usernamesLocked())
	var delivered int
	r.visitLocked(
		func(*Conn) bool { return true },
		func(c *Conn) error {
			if err := c.write(payload); err != nil {
				return err
			}
			delivered++
			return nil
		},
	)
	return delivered
}

// SendUserList answers a roster request privately.  It fails with
// ErrNotRegistered when addr is unknown; a failed write evicts the peer and
// is returned.
func (r *Registry) SendUserList(addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[addr]; !ok {
		return ErrNotRegistered
	}
	payload := protocol.EncodeUserList(r.usernamesLocked())
	var werr error
	r.visitLocked(
		func(c *Conn) bool { return c.addr == addr },
		func(c *Conn) error {
			werr = c.write(payload)
			return werr
		},
	)
	return werr
}
