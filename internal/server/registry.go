package server

import (
	"log"
	"strings"
	"sync"

	"tcptalk/internal/protocol"
)

// Registry is the table of admitted connections, keyed by peer address and
// kept in insertion order for roster presentation.
//
// A single mutex guards it.  Every method holds the lock for exactly one pass
// (insert, remove or a write pass over the members) and never across a read.
type Registry struct {
	mu    sync.Mutex
	order []string         // addresses in insertion order
	conns map[string]*Conn // addr → Conn
	log   *log.Logger
}

// NewRegistry returns an empty Registry.  A nil logger selects log.Default().
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		conns: make(map[string]*Conn),
		log:   logger,
	}
}

// Insert admits c.  The username is re-validated inside the same critical
// section as the insertion, so two sessions racing for one name cannot both
// be admitted; the loser gets ErrUsernameTaken.
func (r *Registry) Insert(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.addr]; ok {
		return ErrDuplicateAddress
	}
	if err := checkUsername(c.username); err != nil {
		return err
	}
	if r.takenLocked(c.username) {
		return ErrUsernameTaken
	}
	r.conns[c.addr] = c
	r.order = append(r.order, c.addr)
	return nil
}

// Remove drops addr from the registry.  It is a no-op when addr is absent
// and reports whether anything was removed.
func (r *Registry) Remove(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(addr) != nil
}

// Visit calls fn once for every registered connection except exclude (an
// empty exclude skips nobody), holding the lock for the whole pass.
// Connections for which fn fails are evicted after the pass and their sockets
// closed.  The evicted addresses are returned.
func (r *Registry) Visit(exclude string, fn func(*Conn) error) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visitLocked(func(c *Conn) bool { return c.addr != exclude }, fn)
}

// Usernames returns the usernames of all registered connections in
// insertion order.
func (r *Registry) Usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usernamesLocked()
}

// Taken reports whether name case-insensitively matches a registered username.
func (r *Registry) Taken(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.takenLocked(name)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// ---------------------------------------------------------------------------
// internal helpers, callers hold r.mu
// ---------------------------------------------------------------------------

func (r *Registry) visitLocked(match func(*Conn) bool, fn func(*Conn) error) []string {
	var failed []string
	for _, addr := range r.order {
		c := r.conns[addr]
		if !match(c) {
			continue
		}
		if err := fn(c); err != nil {
			r.log.Printf("[registry] write to %s (%s) failed: %v", c.username, addr, err)
			failed = append(failed, addr)
		}
	}

	// Evict only after the pass so the order slice is never mutated mid-iteration.
	for _, addr := range failed {
		if c := r.removeLocked(addr); c != nil {
			c.close()
			r.log.Printf("[registry] Removed dead connection: %s (Total: %d)", addr, len(r.conns))
		}
	}
	return failed
}

func (r *Registry) removeLocked(addr string) *Conn {
	c, ok := r.conns[addr]
	if !ok {
		return nil
	}
	delete(r.conns, addr)
	for i, a := range r.order {
		if a == addr {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return c
}

func (r *Registry) usernamesLocked() []string {
	out := make([]string, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.conns[addr].username)
	}
	return out
}

func (r *Registry) takenLocked(name string) bool {
	for _, c := range r.conns {
		if strings.EqualFold(c.username, name) {
			return true
		}
	}
	return false
}

// checkUsername applies the checks that need no registry state.
func checkUsername(name string) error {
	switch {
	case name == "":
		return ErrUsernameEmpty
	case strings.EqualFold(name, protocol.ReservedName):
		return ErrUsernameReserved
	case len(name) > protocol.MaxUsernameLen:
		return ErrUsernameTooLong
	}
	return nil
}
