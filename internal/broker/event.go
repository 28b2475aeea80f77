package broker

// EventType names an outbound event.
type EventType string

const (
	EventInitialMessages EventType = "initialMessages"
	EventOnlineUsers     EventType = "onlineUsers"
	EventFriends         EventType = "friends"
	EventMessage         EventType = "message"
	EventPrivateMessage  EventType = "privateMessage"
)

func (t EventType) String() string {
	return string(t)
}

// Event is one outbound push. Payload is JSON-encoded by the transport.
type Event struct {
	Type    EventType
	Payload any
}

func initialMessagesEvent(log []Message) Event {
	return Event{Type: EventInitialMessages, Payload: log}
}

func onlineUsersEvent(users []Identity) Event {
	return Event{Type: EventOnlineUsers, Payload: users}
}

func friendsEvent(ids []string) Event {
	return Event{Type: EventFriends, Payload: ids}
}

func messageEvent(m Message) Event {
	return Event{Type: EventMessage, Payload: m}
}

func privateMessageEvent(m Message) Event {
	return Event{Type: EventPrivateMessage, Payload: m}
}
