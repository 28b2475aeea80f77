package broker_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/gochat/internal/broker"
	"github.com/Tyrowin/gochat/internal/broker/mocks"
)

// recorder is a Conn that keeps every event it is sent.
type recorder struct {
	mu     sync.Mutex
	events []broker.Event
}

func (r *recorder) Send(evt broker.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) ofType(t broker.EventType) []broker.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broker.Event
	for _, evt := range r.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func (r *recorder) last(t broker.EventType) broker.Event {
	evts := r.ofType(t)
	if len(evts) == 0 {
		return broker.Event{}
	}
	return evts[len(evts)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// hookConn records like recorder and runs fn the first time an event of
// type on is sent to it.
type hookConn struct {
	recorder
	on   broker.EventType
	once sync.Once
	fn   func()
}

func (h *hookConn) Send(evt broker.Event) error {
	if evt.Type == h.on {
		h.once.Do(h.fn)
	}
	return h.recorder.Send(evt)
}

func connect(t *testing.T, b *broker.Broker, id, name string) (*broker.Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := broker.NewSession(broker.Identity{UserID: id, DisplayName: name}, rec)
	require.NoError(t, b.Connect(s))
	return s, rec
}

func TestBroker_ConnectPushesInitialState(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	bob, bobRec := connect(t, b, "2", "bob")
	req.Equal(broker.StateActive, bob.State())
	req.Len(bobRec.ofType(broker.EventInitialMessages), 1)
	req.Equal([]string{}, bobRec.last(broker.EventFriends).Payload)

	_, aliceRec := connect(t, b, "1", "alice")
	online := []broker.Identity{
		{UserID: "1", DisplayName: "alice"},
		{UserID: "2", DisplayName: "bob"},
	}
	req.Equal(online, aliceRec.last(broker.EventOnlineUsers).Payload)
	req.Equal(online, bobRec.last(broker.EventOnlineUsers).Payload)
	req.Equal(broker.Stats{Sessions: 2, UsersOnline: 2}, b.Stats())
}

func TestBroker_ConnectRejectsInvalidIdentity(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	for _, id := range []broker.Identity{
		{UserID: "", DisplayName: "alice"},
		{UserID: "1", DisplayName: ""},
		{UserID: "a-b", DisplayName: "dash"},
	} {
		err := b.Connect(broker.NewSession(id, &recorder{}))
		req.ErrorIs(err, broker.ErrInvalidIdentity, "identity %+v", id)
	}
	req.Zero(b.Presence.Len())
}

func TestBroker_DisconnectIsIdempotent(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	alice, _ := connect(t, b, "1", "alice")
	_, bobRec := connect(t, b, "2", "bob")
	bobRec.reset()

	b.Disconnect(alice)
	b.Disconnect(alice)

	req.Equal(broker.StateClosed, alice.State())
	req.Len(bobRec.ofType(broker.EventOnlineUsers), 1)
	req.Equal([]broker.Identity{{UserID: "2", DisplayName: "bob"}}, bobRec.last(broker.EventOnlineUsers).Payload)
	req.ErrorIs(b.Connect(alice), broker.ErrSessionClosed)
}

func TestBroker_SupersededSessionKeepsNewerPresence(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	old, oldRec := connect(t, b, "1", "alice")
	newer, newerRec := connect(t, b, "1", "alice")
	sender, _ := connect(t, b, "2", "bob")

	b.Disconnect(old)
	sessionID, ok := b.Presence.Lookup("1")
	req.True(ok)
	req.Equal(newer.ID, sessionID)

	oldRec.reset()
	_, err := b.Router.PostPrivate(sender, "1", "hi")
	req.NoError(err)
	req.Len(newerRec.ofType(broker.EventPrivateMessage), 1)
	req.Empty(oldRec.ofType(broker.EventPrivateMessage))
}

func TestRouter_PostBroadcast(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	alice, aliceRec := connect(t, b, "1", "alice")
	_, bobRec := connect(t, b, "2", "bob")

	m, err := b.Router.PostBroadcast(alice, "hello")
	req.NoError(err)
	req.Equal("alice", m.SenderDisplayName)
	req.Equal([]broker.Message{m}, b.Store.BroadcastLog())
	req.Equal(m, aliceRec.last(broker.EventMessage).Payload)
	req.Equal(m, bobRec.last(broker.EventMessage).Payload)

	_, err = b.Router.PostBroadcast(alice, "   ")
	req.ErrorIs(err, broker.ErrEmptyContent)
	req.True(broker.IsInvalidInput(err))
	req.Len(b.Store.BroadcastLog(), 1)
}

func TestRouter_PostPrivateRejects(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())
	alice, _ := connect(t, b, "1", "alice")

	_, err := b.Router.PostPrivate(alice, "1", "me")
	req.ErrorIs(err, broker.ErrSelfMessage)

	_, err = b.Router.PostPrivate(alice, "2", "")
	req.ErrorIs(err, broker.ErrEmptyContent)

	_, err = b.Router.PostPrivate(alice, "x-y", "hi")
	req.ErrorIs(err, broker.ErrInvalidUserID)

	_, rooms := b.Store.Stats()
	req.Zero(rooms)
}

func TestRouter_ClosedSenderIsRejected(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())
	alice, _ := connect(t, b, "1", "alice")
	b.Disconnect(alice)

	_, err := b.Router.PostBroadcast(alice, "late")
	req.ErrorIs(err, broker.ErrSessionClosed)
	req.Empty(b.Store.BroadcastLog())
}

func TestRouter_AddFriendPushesBothSides(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	alice, aliceRec := connect(t, b, "1", "alice")
	_, bobRec := connect(t, b, "2", "bob")

	req.NoError(b.Router.AddFriend(alice, "2"))
	req.Equal([]string{"2"}, aliceRec.last(broker.EventFriends).Payload)
	req.Equal([]string{"1"}, bobRec.last(broker.EventFriends).Payload)

	req.ErrorIs(b.Router.AddFriend(alice, "1"), broker.ErrSelfFriend)

	// Offline friends are linked too; they see it on their next connect.
	req.NoError(b.Router.AddFriend(alice, "3"))
	_, carolRec := connect(t, b, "3", "carol")
	req.Equal([]string{"1"}, carolRec.last(broker.EventFriends).Payload)
}

func TestRouter_SearchUsers(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	connect(t, b, "1", "Alice")
	connect(t, b, "2", "bob")
	connect(t, b, "3", "alicia")

	found := b.Router.SearchUsers("ALI", "1")
	req.Equal([]broker.Identity{{UserID: "3", DisplayName: "alicia"}}, found)

	req.Equal([]broker.Identity{}, b.Router.SearchUsers("  ", "1"))
	req.Empty(b.Router.SearchUsers("zed", "1"))
}

func TestBroker_TwoUserScenario(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	bob, bobRec := connect(t, b, "2", "bob")
	alice, aliceRec := connect(t, b, "1", "alice")
	req.Equal([]broker.Message{}, aliceRec.last(broker.EventInitialMessages).Payload)

	hello, err := b.Router.PostBroadcast(alice, "hello")
	req.NoError(err)
	req.Equal(hello, bobRec.last(broker.EventMessage).Payload)

	req.NoError(b.Router.AddFriend(alice, "2"))

	psst, err := b.Router.PostPrivate(alice, "2", "psst")
	req.NoError(err)
	req.Equal("1-2", psst.RoomID)
	req.Equal(psst, aliceRec.last(broker.EventPrivateMessage).Payload)
	req.Equal(psst, bobRec.last(broker.EventPrivateMessage).Payload)

	b.Disconnect(bob)
	req.Equal([]broker.Identity{{UserID: "1", DisplayName: "alice"}}, aliceRec.last(broker.EventOnlineUsers).Payload)

	later, err := b.Router.PostPrivate(alice, "2", "later")
	req.NoError(err)
	req.Len(bobRec.ofType(broker.EventPrivateMessage), 1)

	history, err := b.Router.RoomHistory("2", "1")
	req.NoError(err)
	req.Equal([]broker.Message{psst, later}, history)

	_, bobRec2 := connect(t, b, "2", "bob")
	req.Equal([]broker.Message{hello}, bobRec2.last(broker.EventInitialMessages).Payload)
	req.Equal([]string{"1"}, bobRec2.last(broker.EventFriends).Payload)
}

func TestBroker_NewSessionSeesEveryBroadcastOnce(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())
	poster, _ := connect(t, b, "1", "poster")

	const total = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			_, _ = b.Router.PostBroadcast(poster, fmt.Sprintf("m%d", i))
		}
	}()

	_, rec := connect(t, b, "2", "late")
	wg.Wait()

	seen := make(map[string]int)
	for _, m := range rec.last(broker.EventInitialMessages).Payload.([]broker.Message) {
		seen[m.ID]++
	}
	for _, evt := range rec.ofType(broker.EventMessage) {
		seen[evt.Payload.(broker.Message).ID]++
	}
	req.Len(seen, total)
	for id, n := range seen {
		req.Equal(1, n, "message %s delivered %d times", id, n)
	}
}

func TestBroker_FailingRecipientDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	b := broker.New(zerolog.Nop())

	broken := mocks.NewMockConn(ctrl)
	broken.EXPECT().Send(gomock.Any()).Return(nil).Times(3) // initialMessages, friends, onlineUsers
	broken.EXPECT().Send(gomock.Any()).Return(errors.New("send buffer full")).AnyTimes()
	require.NoError(t, b.Connect(broker.NewSession(broker.Identity{UserID: "9", DisplayName: "slow"}, broken)))

	alice, aliceRec := connect(t, b, "1", "alice")
	m, err := b.Router.PostBroadcast(alice, "still delivered")
	req.NoError(err)
	req.Equal(m, aliceRec.last(broker.EventMessage).Payload)
	req.Len(b.Store.BroadcastLog(), 1)
}

func TestBroker_AddFriendDuringConnectReachesNewSession(t *testing.T) {
	for _, on := range []broker.EventType{broker.EventInitialMessages, broker.EventOnlineUsers} {
		t.Run(on.String(), func(t *testing.T) {
			req := require.New(t)
			b := broker.New(zerolog.Nop())
			alice, aliceRec := connect(t, b, "1", "alice")

			bob := &hookConn{on: on}
			bob.fn = func() { req.NoError(b.Router.AddFriend(alice, "2")) }
			req.NoError(b.Connect(broker.NewSession(broker.Identity{UserID: "2", DisplayName: "bob"}, bob)))

			req.Equal([]string{"1"}, b.Friends.FriendsOf("2"))
			req.Equal([]string{"1"}, bob.last(broker.EventFriends).Payload)
			req.Equal([]string{"2"}, aliceRec.last(broker.EventFriends).Payload)
		})
	}
}

func TestBroker_ConcurrentAddFriendAndConnect(t *testing.T) {
	req := require.New(t)

	for i := 0; i < 50; i++ {
		b := broker.New(zerolog.Nop())
		alice, _ := connect(t, b, "1", "alice")
		rec := &recorder{}
		bob := broker.NewSession(broker.Identity{UserID: "2", DisplayName: "bob"}, rec)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = b.Router.AddFriend(alice, "2")
		}()
		go func() {
			defer wg.Done()
			_ = b.Connect(bob)
		}()
		wg.Wait()

		req.Equal([]string{"1"}, rec.last(broker.EventFriends).Payload, "iteration %d", i)
	}
}

func TestBroker_SupersededCloseKeepsUserListed(t *testing.T) {
	req := require.New(t)
	b := broker.New(zerolog.Nop())

	first, _ := connect(t, b, "1", "alice")
	second, _ := connect(t, b, "1", "alice")
	_, observer := connect(t, b, "2", "bob")
	observer.reset()

	// The latest event for user 1 is the second connect, so the user stays
	// online and nobody is told otherwise.
	b.Disconnect(first)
	req.Equal([]broker.Identity{
		{UserID: "1", DisplayName: "alice"},
		{UserID: "2", DisplayName: "bob"},
	}, b.Presence.ListOnline())
	req.Empty(observer.ofType(broker.EventOnlineUsers))

	b.Disconnect(second)
	req.Equal([]broker.Identity{{UserID: "2", DisplayName: "bob"}}, b.Presence.ListOnline())
	req.Len(observer.ofType(broker.EventOnlineUsers), 1)
}

func TestBroker_DisconnectLogsSessionDuration(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	b := broker.New(zerolog.New(&buf))

	alice, _ := connect(t, b, "1", "alice")
	req.False(alice.ConnectedAt.IsZero())
	b.Disconnect(alice)

	var closed map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		req.NoError(json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "session closed" {
			closed = entry
		}
	}
	req.NotNil(closed)
	req.Contains(closed, "duration")
	req.Equal(alice.ID, closed["session_id"])
}
