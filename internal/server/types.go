package server

import (
	"encoding/json"
	"strings"
)

// Inbound event names.
const (
	eventSearchUser         = "searchUser"
	eventAddFriend          = "addFriend"
	eventMessage            = "message"
	eventPrivateMessage     = "privateMessage"
	eventGetPrivateMessages = "getPrivateMessages"
	eventPing               = "ping"

	eventPong  = "pong"
	eventError = "error"
)

// Frame is the JSON envelope exchanged in both directions. Ref is echoed on
// replies so the peer can match them to its request.
type Frame struct {
	Event string          `json:"event" validate:"required"`
	Ref   string          `json:"ref,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outboundFrame is Frame with a payload that is not yet encoded.
type outboundFrame struct {
	Event string `json:"event"`
	Ref   string `json:"ref,omitempty"`
	Data  any    `json:"data"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type searchUserData struct {
	Term string `json:"term"`
}

type addFriendData struct {
	FriendID string `json:"friendId" validate:"required"`
}

type messageData struct {
	Content string `json:"content"`
}

type privateMessageData struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Content     string `json:"content"`
}

type getPrivateMessagesData struct {
	FriendID string `json:"friendId" validate:"required"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
