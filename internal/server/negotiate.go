package server

import (
	"errors"
	"fmt"
	"strings"

	"tcptalk/internal/protocol"
)

// Negotiator runs the username handshake for connections that have not been
// admitted yet.
type Negotiator struct {
	Registry *Registry
}

// Negotiate prompts until the peer offers an acceptable username and
// returns it trimmed.  Each rejection is answered with its message and a new
// prompt.  Any I/O failure aborts with an error wrapping ErrNegotiation.
//
// The uniqueness check here only filters obvious collisions early;
// Registry.Insert repeats it atomically with the insertion.
func (n Negotiator) Negotiate(lines *protocol.LineReader, send func([]byte) error) (string, error) {
	for {
		if err := send([]byte(protocol.Prompt)); err != nil {
			return "", fmt.Errorf("%w: prompt: %w", ErrNegotiation, err)
		}
		line, err := lines.ReadLine()
		if err != nil {
			return "", fmt.Errorf("%w: read: %w", ErrNegotiation, err)
		}

		name := strings.TrimSpace(string(line))
		err = n.Validate(name)
		if err == nil {
			return name, nil
		}
		if err := send([]byte(rejection(err))); err != nil {
			return "", fmt.Errorf("%w: reject: %w", ErrNegotiation, err)
		}
	}
}

// Validate checks name in protocol order: empty, reserved, too long, taken.
func (n Negotiator) Validate(name string) error {
	if err := checkUsername(name); err != nil {
		return err
	}
	if n.Registry != nil && n.Registry.Taken(name) {
		return ErrUsernameTaken
	}
	return nil
}

// rejection maps a validation error to the message sent to the peer.  It
// returns "" for errors that are not username rejections.
func rejection(err error) string {
	switch {
	case errors.Is(err, ErrUsernameEmpty):
		return protocol.MsgNameEmpty
	case errors.Is(err, ErrUsernameReserved):
		return protocol.MsgNameReserved
	case errors.Is(err, ErrUsernameTooLong):
		return protocol.MsgNameTooLong
	case errors.Is(err, ErrUsernameTaken):
		return protocol.MsgNameTaken
	default:
		return ""
	}
}
