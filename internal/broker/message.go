package broker

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Message is a broadcast or private chat message. RoomID is set only for
// private messages. Messages are immutable once stored.
type Message struct {
	ID                string `json:"id"`
	SenderID          string `json:"senderId"`
	SenderDisplayName string `json:"sender"`
	Content           string `json:"content"`
	Timestamp         int64  `json:"timestamp"` // Unix ms
	RoomID            string `json:"roomId,omitempty"`
}

// IsPrivate reports whether the message belongs to a two-party room.
func (m Message) IsPrivate() bool {
	return m.RoomID != ""
}

// stamp fills in the id and timestamp when they are missing.
func stamp(m Message, now time.Time) Message {
	if m.ID == "" {
		m.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	}
	if m.Timestamp == 0 {
		m.Timestamp = now.UnixMilli()
	}
	return m
}
