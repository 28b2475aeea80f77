package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/gochat/internal/broker"
)

var errSendBufferFull = errors.New("send buffer full")

// clientSettings are the per-connection limits taken from the config.
type clientSettings struct {
	maxMessageSize int64
	sendBufferSize int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
}

// Client is one websocket connection. It implements broker.Conn: the broker
// pushes events through Send, which never blocks.
type Client struct {
	conn     *websocket.Conn
	hub      *Hub
	addr     string
	settings clientSettings
	log      zerolog.Logger

	session  *broker.Session
	dispatch *dispatcher

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient creates a Client around conn. The send channel is buffered so
// fan-out never waits on a slow peer.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, settings clientSettings, log zerolog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(settings.maxMessageSize)
	}
	return &Client{
		conn:     conn,
		hub:      hub,
		addr:     addr,
		settings: settings,
		log:      log.With().Str("remote_addr", addr).Logger(),
		send:     make(chan []byte, settings.sendBufferSize),
	}
}

// GetSendChan returns the client's send channel for reading outgoing messages.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// Send encodes evt and queues it for the write pump.
func (c *Client) Send(evt broker.Event) error {
	return c.sendFrame(evt.Type.String(), "", evt.Payload)
}

func (c *Client) sendFrame(event, ref string, data any) error {
	payload, err := json.Marshal(outboundFrame{Event: event, Ref: ref, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}
	return c.enqueue(payload)
}

func (c *Client) sendError(ref, code, message string) {
	if err := c.sendFrame(eventError, ref, ErrorData{Code: code, Message: message}); err != nil {
		c.log.Debug().Err(err).Str("code", code).Msg("could not send error frame")
	}
}

// enqueue never blocks. A full buffer means the peer is not keeping up, so
// the send channel is closed and the write pump hangs up.
func (c *Client) enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return broker.ErrSessionClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.closed = true
		close(c.send)
		return errSendBufferFull
	}
}

// closeSend closes the send channel once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.settings.pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.settings.pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs the read failure with a level that matches its cause.
// Every read error ends the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.settings.maxMessageSize).Msg("frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug().Err(err).Msg("client connection closed")
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn().Err(err).Msg("unexpected websocket close")
	default:
		c.log.Warn().Err(err).Msg("websocket read error")
	}
}

// readPump reads frames until the transport fails. Its deferred cleanup is
// the single place a connection leaves the broker, whatever ended it.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("error closing connection in readPump")
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.dispatch.handle(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.settings.pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn().Err(err).Msg("error closing connection in writePump")
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.settings.writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("error writing close message")
	}
	return false
}

// writeTextMessage writes one frame per text message. Frames are JSON
// objects, so they are never batched into a single websocket message.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.log.Debug().Err(err).Msg("error writing message")
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.settings.writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug().Err(err).Msg("error writing ping message")
		return false
	}
	return true
}
