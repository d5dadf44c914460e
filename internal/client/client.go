// Package client speaks the tcptalk protocol from the terminal side: it
// answers the username prompt, then turns the inbound byte stream into
// classified lines.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"tcptalk/internal/protocol"
)

// AskFunc supplies a username.  notice holds the server's rejection of the
// previous attempt, or "" on the first prompt.
type AskFunc func(notice string) (string, error)

// Client is one connection to a tcptalk server.  Send and RequestUsers may be
// called from any goroutine; Next must be called from a single reader.
type Client struct {
	conn  io.ReadWriteCloser
	br    *bufio.Reader
	lines *protocol.LineReader

	wmu sync.Mutex // serialises writes from the UI goroutine

	username string
	users    []string
	backlog  []protocol.Line // relayed lines that overtook the admitting roster
}

// Dial connects to a server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn io.ReadWriteCloser) *Client {
	br := bufio.NewReaderSize(conn, protocol.DefaultMaxLine)
	return &Client{
		conn: conn,
		br:   br,
		// Same size as br, so the LineReader reuses it and no bytes are stranded
		// between the handshake and the stream.
		lines: protocol.NewLineReader(br, protocol.DefaultMaxLine),
	}
}

// Handshake answers prompts with names from ask until the server admits the
// connection, which it signals with the first roster line.
func (c *Client) Handshake(ask AskFunc) error {
	var (
		pending strings.Builder
		notices []string
		offered string
	)
	for {
		b, err := c.br.ReadByte()
		if err != nil {
			return fmt.Errorf("client: handshake: %w", err)
		}
		pending.WriteByte(b)
		s := pending.String()

		switch {
		case b == '\n':
			pending.Reset()
			line := strings.TrimSpace(s)
			if strings.HasPrefix(line, protocol.UserListPrefix) {
				users, err := protocol.ParseUserList(line)
				if err != nil {
					return fmt.Errorf("client: handshake: %w", err)
				}
				c.username = offered
				c.users = users
				return nil
			}
			if isRejection(line) {
				notices = append(notices, line)
			} else if l, ok := protocol.Classify(line); ok {
				c.backlog = append(c.backlog, l)
			}

		case strings.HasSuffix(s, protocol.Prompt):
			pending.Reset()
			name, err := ask(strings.Join(notices, "\n"))
			if err != nil {
				return fmt.Errorf("client: handshake: %w", err)
			}
			notices = notices[:0]
			offered = strings.TrimSpace(name)
			if err := c.write(offered + "\n"); err != nil {
				return fmt.Errorf("client: handshake: %w", err)
			}
		}
	}
}

// Username returns the name the server accepted.
func (c *Client) Username() string { return c.username }

// Users returns the roster received when the handshake completed.
func (c *Client) Users() []string { return c.users }

// RequestUsers asks the server to resend the roster to this client only.
func (c *Client) RequestUsers() error {
	return c.write(protocol.CmdGetUsers + "\n")
}

// Send submits one chat line.
func (c *Client) Send(text string) error {
	return c.write(strings.TrimRight(text, "\r\n") + "\n")
}

// Next blocks until the next renderable line arrives.  Blank and malformed
// roster lines are skipped.  It returns io.EOF when the server hangs up.
func (c *Client) Next() (protocol.Line, error) {
	if len(c.backlog) > 0 {
		l := c.backlog[0]
		c.backlog = c.backlog[1:]
		return l, nil
	}
	for {
		raw, err := c.lines.ReadLine()
		if err != nil {
			return protocol.Line{}, err
		}
		if l, ok := protocol.Classify(string(raw)); ok {
			return l, nil
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

func isRejection(line string) bool {
	switch line + "\n" {
	case protocol.MsgNameEmpty, protocol.MsgNameReserved, protocol.MsgNameTooLong, protocol.MsgNameTaken:
		return true
	}
	return false
}

func (c *Client) write(s string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := io.WriteString(c.conn, s)
	return err
}
