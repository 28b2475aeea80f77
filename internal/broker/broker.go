// Package broker holds the presence, friend graph, message logs and routing
// shared by every connection. All state is in memory and lives as long as the
// process.
package broker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/gochat/internal/metrics"
)

// Broker owns the shared state and drives each session through
// Connecting -> Active -> Closed.
type Broker struct {
	Registry *Registry
	Presence *PresenceTable
	Friends  *FriendGraph
	Store    *MessageStore
	Router   *Router

	// presenceMu orders presence changes with their onlineUsers push, so the
	// last list a session receives is always the current one.
	presenceMu sync.Mutex
	out        fanout
	log        zerolog.Logger
}

// Stats is a point-in-time summary used by the health endpoint.
type Stats struct {
	Sessions          int `json:"sessions"`
	UsersOnline       int `json:"users_online"`
	BroadcastMessages int `json:"broadcast_messages"`
	Rooms             int `json:"rooms"`
}

// New wires an empty broker.
func New(log zerolog.Logger) *Broker {
	b := &Broker{
		Registry: NewRegistry(),
		Presence: NewPresenceTable(),
		Friends:  NewFriendGraph(),
		Store:    NewMessageStore(),
		log:      log.With().Str("component", "broker").Logger(),
	}
	b.out = fanout{registry: b.Registry, presence: b.Presence, log: b.log}
	b.Router = &Router{
		presence: b.Presence,
		friends:  b.Friends,
		store:    b.Store,
		out:      b.out,
		log:      b.log,
	}
	return b
}

// Connect activates s: it joins the registry and presence table, receives
// the broadcast backlog and its friend list, and every Active session gets
// the new online list.
func (b *Broker) Connect(s *Session) error {
	if err := s.Identity.Validate(); err != nil {
		return err
	}
	if !s.transition(StateConnecting, StateActive) {
		return ErrSessionClosed
	}

	// Joining the registry with the log locked means every broadcast reaches
	// s exactly once: in the backlog or live, never both.
	b.Store.ViewBroadcast(func(backlog []Message) {
		b.Registry.Add(s)
		b.out.session(s, initialMessagesEvent(backlog))
	})

	b.presenceMu.Lock()
	b.Presence.Connect(s.UserID(), s.Identity.DisplayName, s.ID)
	b.pushPresenceLocked()
	b.presenceMu.Unlock()

	// s is reachable through presence now, so an addFriend racing with this
	// push either lands in the snapshot or reaches s on its own.
	b.Router.pushFriends(s)

	b.log.Info().
		Str("session_id", s.ID).
		Str("user_id", s.UserID()).
		Str("username", s.Identity.DisplayName).
		Msg("session active")
	return nil
}

// Disconnect closes s. Only the first call for an Active session has an
// effect; repeated or early calls are no-ops.
func (b *Broker) Disconnect(s *Session) {
	if s == nil {
		return
	}
	if prev := s.close(); prev != StateActive {
		return
	}
	b.Registry.Remove(s.ID)

	b.presenceMu.Lock()
	released := b.Presence.Release(s.UserID(), s.ID)
	if released {
		b.pushPresenceLocked()
	}
	b.presenceMu.Unlock()
	b.updateGauges()

	b.log.Info().
		Str("session_id", s.ID).
		Str("user_id", s.UserID()).
		Bool("presence_released", released).
		Dur("duration", time.Since(s.ConnectedAt)).
		Msg("session closed")
}

func (b *Broker) pushPresenceLocked() {
	b.out.all(onlineUsersEvent(b.Presence.ListOnline()))
	b.updateGauges()
}

func (b *Broker) updateGauges() {
	metrics.SessionsActive.Set(float64(b.Registry.Len()))
	metrics.UsersOnline.Set(float64(b.Presence.Len()))
}

// Stats summarises the broker state.
func (b *Broker) Stats() Stats {
	broadcast, rooms := b.Store.Stats()
	return Stats{
		Sessions:          b.Registry.Len(),
		UsersOnline:       b.Presence.Len(),
		BroadcastMessages: broadcast,
		Rooms:             rooms,
	}
}
