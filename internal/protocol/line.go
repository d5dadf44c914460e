package protocol

import (
	"strings"
)

// Kind identifies how a server line is rendered by a client.
type Kind int

const (
	KindChat   Kind = iota // "author: content"
	KindNotice             // join/leave notices and anything without a colon
	KindRoster             // USER_LIST control message
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindNotice:
		return "notice"
	case KindRoster:
		return "roster"
	default:
		return "unknown"
	}
}

// Line is one classified server line.
type Line struct {
	Kind    Kind
	Author  string   // ReservedName for notices
	Content string   // trimmed
	Users   []string // KindRoster only
}

// Classify sorts a single inbound line (without its trailing newline) by its
// fixed prefix first, then by the first colon.  It returns false for blank
// lines and for roster lines whose JSON does not decode.
func Classify(raw string) (Line, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Line{}, false
	}
	if strings.HasPrefix(s, UserListPrefix) {
		users, err := ParseUserList(s)
		if err != nil {
			return Line{}, false
		}
		return Line{Kind: KindRoster, Users: users}, true
	}
	if author, content, ok := strings.Cut(s, ":"); ok {
		return Line{
			Kind:    KindChat,
			Author:  strings.TrimSpace(author),
			Content: strings.TrimSpace(content),
		}, true
	}
	return Line{Kind: KindNotice, Author: ReservedName, Content: s}, true
}
