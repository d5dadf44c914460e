package server

import "errors"

var (
	// ErrDuplicateAddress - a connection with the same peer address is registered already.
	// TCP never hands out two live sessions with one address, so this marks a caller bug.
	ErrDuplicateAddress = errors.New("server: duplicate peer address")

	// ErrNotRegistered - the address has no registered connection.
	ErrNotRegistered = errors.New("server: address is not registered")

	// Username validation failures, each answered with its own message to the peer.
	ErrUsernameEmpty    = errors.New("server: username is empty")
	ErrUsernameReserved = errors.New("server: username is reserved")
	ErrUsernameTooLong  = errors.New("server: username is too long")
	ErrUsernameTaken    = errors.New("server: username is already taken")

	// ErrNegotiation - I/O failed while negotiating a username; the connection is dropped.
	ErrNegotiation = errors.New("server: username negotiation failed")

	// ErrServerClosed - returned by Serve and ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("server: closed")
)
