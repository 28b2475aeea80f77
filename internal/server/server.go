package server

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/gochat/internal/broker"
	"github.com/Tyrowin/gochat/internal/config"
)

// Server bundles everything the HTTP layer needs: the broker, the hub that
// owns live connections, and the upgrade policy.
type Server struct {
	cfg      *config.Config
	broker   *broker.Broker
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	dispatch *dispatcher
	settings clientSettings
	log      zerolog.Logger
}

// New creates a Server for b. The hub is not running until StartHub.
func New(cfg *config.Config, b *broker.Broker, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		broker:   b,
		hub:      NewHub(b, log),
		origins:  newOriginPolicy(cfg.Origins(), log),
		dispatch: newDispatcher(b, log),
		settings: clientSettings{
			maxMessageSize: cfg.MaxMessageSize,
			sendBufferSize: cfg.SendBufferSize,
			writeWait:      cfg.WriteWait,
			pongWait:       cfg.PongWait,
			pingPeriod:     cfg.PingPeriod(),
		},
		log: log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Hub returns the hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Broker returns the broker behind this server.
func (s *Server) Broker() *broker.Broker {
	return s.broker
}

// StartHub runs the hub loop in its own goroutine. Call it before serving.
func (s *Server) StartHub() {
	go s.hub.Run()
	s.log.Info().Msg("hub started and ready to manage websocket connections")
}
