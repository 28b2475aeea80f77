package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes returns the HTTP router with every application route:
// the websocket endpoint, health, and Prometheus metrics.
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	// Metrics first so every request is counted.
	r.Use(Metrics)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(s.log))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Origins(),
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", s.HealthHandler)
	r.Get("/health", s.HealthHandler)
	r.HandleFunc("/ws", s.WebSocketHandler)

	return r
}
