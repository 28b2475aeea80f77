package broker

import (
	"github.com/rs/zerolog"

	"github.com/Tyrowin/gochat/internal/metrics"
)

// fanout delivers events to sessions. Every recipient is attempted
// independently; one failing peer never stops delivery to the rest.
type fanout struct {
	registry *Registry
	presence *PresenceTable
	log      zerolog.Logger
}

// all delivers evt to every registered session and returns how many
// accepted it.
func (f fanout) all(evt Event) int {
	delivered := 0
	for _, s := range f.registry.Snapshot() {
		if f.session(s, evt) {
			delivered++
		}
	}
	return delivered
}

func (f fanout) session(s *Session, evt Event) bool {
	if s == nil {
		return false
	}
	if err := s.deliver(evt); err != nil {
		metrics.DeliveryFailures.WithLabelValues(evt.Type.String()).Inc()
		f.log.Warn().
			Err(err).
			Str("event", evt.Type.String()).
			Str("session_id", s.ID).
			Str("user_id", s.UserID()).
			Msg("delivery failed")
		return false
	}
	return true
}

// user delivers evt to the session that currently represents userID in the
// presence table. Offline users are skipped silently.
func (f fanout) user(userID string, evt Event) (*Session, bool) {
	sessionID, ok := f.presence.Lookup(userID)
	if !ok {
		return nil, false
	}
	s, ok := f.registry.Get(sessionID)
	if !ok {
		return nil, false
	}
	return s, f.session(s, evt)
}
