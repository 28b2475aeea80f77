package broker

import "errors"

// Invalid input. The transport drops these silently; they never reach the peer
// as failures.
var (
	ErrEmptyContent    = errors.New("message content is empty")
	ErrSelfMessage     = errors.New("cannot send a private message to yourself")
	ErrSelfFriend      = errors.New("cannot add yourself as a friend")
	ErrSameUser        = errors.New("room requires two distinct users")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrInvalidIdentity = errors.New("invalid identity")
)

// ErrSessionClosed is returned when delivering to, or activating, a session
// that has already left the Active state.
var ErrSessionClosed = errors.New("session closed")

// IsInvalidInput reports whether err belongs to the invalid-input class.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrSelfMessage) ||
		errors.Is(err, ErrSelfFriend) ||
		errors.Is(err, ErrSameUser) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidIdentity)
}
