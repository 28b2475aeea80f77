package broker

import (
	"sync"
	"time"
)

type messageLog struct {
	mu       sync.Mutex
	messages []Message
}

// append stamps m and stores it. Stamping under the lock keeps id order equal
// to log order.
func (l *messageLog) append(m Message, now func() time.Time, then []func(Message)) Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	m = stamp(m, now())
	l.messages = append(l.messages, m)
	for _, fn := range then {
		fn(m)
	}
	return m
}

func (l *messageLog) snapshot() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append(make([]Message, 0, len(l.messages)), l.messages...)
}

// MessageStore keeps the broadcast log and one log per room, in memory and
// unbounded. Each log has its own lock so unrelated rooms never contend.
//
// Append hooks run while the log is locked, which makes delivery order match
// log order. Hooks must not block.
type MessageStore struct {
	broadcast messageLog

	mu    sync.RWMutex
	rooms map[string]*messageLog

	now func() time.Time
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		rooms: make(map[string]*messageLog),
		now:   time.Now,
	}
}

// AppendBroadcast stamps msg if needed, appends it to the broadcast log and
// returns the stored copy.
func (s *MessageStore) AppendBroadcast(msg Message, then ...func(Message)) Message {
	msg.RoomID = ""
	return s.broadcast.append(msg, s.now, then)
}

// AppendRoom stamps msg if needed and appends it to roomID's log, creating
// the log on first use.
func (s *MessageStore) AppendRoom(roomID string, msg Message, then ...func(Message)) Message {
	msg.RoomID = roomID
	return s.room(roomID).append(msg, s.now, then)
}

func (s *MessageStore) room(roomID string) *messageLog {
	s.mu.RLock()
	l, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.rooms[roomID]; !ok {
		l = &messageLog{}
		s.rooms[roomID] = l
	}
	return l
}

// BroadcastLog returns the full broadcast history in insertion order.
func (s *MessageStore) BroadcastLog() []Message {
	return s.broadcast.snapshot()
}

// ViewBroadcast calls fn with the broadcast history while holding the log
// lock. No broadcast can be appended until fn returns.
func (s *MessageStore) ViewBroadcast(fn func([]Message)) {
	s.broadcast.mu.Lock()
	defer s.broadcast.mu.Unlock()
	fn(append(make([]Message, 0, len(s.broadcast.messages)), s.broadcast.messages...))
}

// RoomLog returns roomID's history, empty when the room has none.
func (s *MessageStore) RoomLog(roomID string) []Message {
	s.mu.RLock()
	l, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return []Message{}
	}
	return l.snapshot()
}

// Stats reports the broadcast log length and the number of rooms.
func (s *MessageStore) Stats() (broadcast, rooms int) {
	s.broadcast.mu.Lock()
	broadcast = len(s.broadcast.messages)
	s.broadcast.mu.Unlock()

	s.mu.RLock()
	rooms = len(s.rooms)
	s.mu.RUnlock()
	return broadcast, rooms
}
