package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Tyrowin/gochat/internal/broker"
)

const version = "0.2.0"

// identityFromRequest reads the handshake identity. displayName is accepted
// as an alias for username.
func identityFromRequest(r *http.Request) broker.Identity {
	q := r.URL.Query()
	name := q.Get("username")
	if name == "" {
		name = q.Get("displayName")
	}
	return broker.Identity{
		UserID:      strings.TrimSpace(q.Get("userId")),
		DisplayName: strings.TrimSpace(name),
	}
}

// WebSocketHandler validates the handshake identity, upgrades the
// connection and activates a broker session for it. The hub then runs the
// client's pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	identity := identityFromRequest(r)
	if err := identity.Validate(); err != nil {
		s.log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("rejected handshake identity")
		http.Error(w, "userId and username are required; userId may not contain '-'", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.settings, s.log)
	client.dispatch = s.dispatch
	client.session = broker.NewSession(identity, client)
	client.log = client.log.With().
		Str("session_id", client.session.ID).
		Str("user_id", client.session.UserID()).
		Logger()

	if err := s.broker.Connect(client.session); err != nil {
		client.log.Warn().Err(err).Msg("session activation failed")
		_ = conn.Close()
		return
	}

	if !s.hub.Register(client) {
		client.log.Info().Msg("hub is shutting down; closing new connection")
		s.broker.Disconnect(client.session)
		_ = conn.Close()
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Clients   int          `json:"clients"`
	Stats     broker.Stats `json:"stats"`
	Timestamp string       `json:"timestamp"`
}

// HealthHandler reports liveness with a snapshot of the broker state.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version,
		Clients:   s.hub.ClientCount(),
		Stats:     s.broker.Stats(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn().Err(err).Msg("error writing JSON response")
	}
}
