// Package server is the websocket transport for the broker.
//
// Each connection is a Client with one read pump and one write pump, owned
// by the Hub. Inbound JSON frames are decoded by the dispatcher and mapped to
// broker.Router calls; outbound broker events are queued on the client's
// bounded send buffer. The HTTP side is a chi router exposing /ws, /health
// and /metrics.
package server
