package broker

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Identity is the client-supplied user id and display name. It is trusted as
// given; authentication belongs in front of the broker.
type Identity struct {
	UserID      string `json:"id" validate:"required,max=64,excludes=-"`
	DisplayName string `json:"username" validate:"required,max=100"`
}

// Validate checks the identity against its field rules.
func (i Identity) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return nil
}

//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=mocks/mock_conn.go -package=mocks

// Conn is the outbound side of a live connection. Send must not block: a
// slow or closed peer reports an error instead.
type Conn interface {
	Send(evt Event) error
}

// SessionState is the lifecycle position of a Session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// Session binds one live connection to an identity for the connection's
// lifetime. A reconnect is always a new Session.
type Session struct {
	ID          string
	Identity    Identity
	ConnectedAt time.Time

	conn  Conn
	state atomic.Int32
}

// NewSession creates a session in the Connecting state.
func NewSession(identity Identity, conn Conn) *Session {
	identity.UserID = strings.TrimSpace(identity.UserID)
	identity.DisplayName = strings.TrimSpace(identity.DisplayName)
	return &Session{
		ID:          uuid.New().String(),
		Identity:    identity,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// UserID is shorthand for s.Identity.UserID.
func (s *Session) UserID() string {
	return s.Identity.UserID
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// IsActive reports whether the session currently receives deliveries.
func (s *Session) IsActive() bool {
	return s.State() == StateActive
}

func (s *Session) transition(from, to SessionState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// close moves the session to Closed and reports the state it left. Only the
// first call observes a state other than Closed.
func (s *Session) close() SessionState {
	for {
		cur := s.State()
		if cur == StateClosed {
			return StateClosed
		}
		if s.transition(cur, StateClosed) {
			return cur
		}
	}
}

// deliver hands evt to the connection if the session is still Active.
func (s *Session) deliver(evt Event) error {
	if !s.IsActive() {
		return ErrSessionClosed
	}
	if s.conn == nil {
		return fmt.Errorf("session %s: %w", s.ID, ErrSessionClosed)
	}
	return s.conn.Send(evt)
}
