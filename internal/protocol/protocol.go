// Package protocol defines the wire format for all client-server communication.
// Every message is plain text; lines end with a newline character (\n) except
// the username prompt, which leaves the cursor on the same line.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultPort is the TCP port the server listens on unless configured otherwise.
const DefaultPort = 2133

const (
	// Server → Client, negotiation
	Prompt          = "Enter your username: "
	MsgNameEmpty    = "Username cannot be empty. Please try again.\n"
	MsgNameReserved = "Username 'System' is reserved. Please choose another.\n"
	MsgNameTooLong  = "Username is too long (max 31 bytes). Please choose another.\n"
	MsgNameTaken    = "Username is already taken. Please choose another.\n"

	// Client → Server
	CmdGetUsers = "GET_USERS"

	// Server → Client
	UserListPrefix = "USER_LIST:"
)

const (
	// ReservedName is the author used for server notices; no client may take it.
	ReservedName = "System"

	// MaxUsernameLen is the longest accepted username, in bytes.
	MaxUsernameLen = 31
)

// ChatLine formats text sent by user for relay to the other members.
// A newline is appended when text does not already end with one.
func ChatLine(user, text string) []byte {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return []byte(user + ": " + text)
}

// JoinNotice is broadcast when user has been admitted.
func JoinNotice(user string) []byte {
	return []byte(user + " has joined the chat\n")
}

// LeaveNotice is broadcast when user's session has ended.
func LeaveNotice(user string) []byte {
	return []byte(user + " has left the chat\n")
}

// EncodeUserList returns the roster control message for names.
func EncodeUserList(names []string) []byte {
	if names == nil {
		names = []string{}
	}
	raw, err := json.Marshal(names)
	if err != nil {
		// a []string always marshals
		panic(err)
	}
	out := make([]byte, 0, len(UserListPrefix)+len(raw)+1)
	out = append(out, UserListPrefix...)
	out = append(out, raw...)
	return append(out, '\n')
}

// ParseUserList decodes a roster control message.  Surrounding whitespace is
// ignored.
func ParseUserList(line string) ([]string, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(line), UserListPrefix)
	if !ok {
		return nil, fmt.Errorf("protocol: missing %q prefix", UserListPrefix)
	}
	var names []string
	if err := json.Unmarshal([]byte(body), &names); err != nil {
		return nil, fmt.Errorf("protocol: parse user list: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// IsGetUsers reports whether raw client input is the roster request command.
func IsGetUsers(raw string) bool {
	return strings.TrimSpace(raw) == CmdGetUsers
}
