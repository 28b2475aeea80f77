package broker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Tyrowin/gochat/internal/metrics"
)

// Router turns client actions into persistence and delivery. A message is
// always stored before any peer can receive it.
type Router struct {
	// friendsMu orders friend graph changes with their friends pushes, so a
	// session never keeps a list older than the graph.
	friendsMu sync.Mutex

	presence *PresenceTable
	friends  *FriendGraph
	store    *MessageStore
	out      fanout
	log      zerolog.Logger
}

// PostBroadcast stores content in the broadcast log and delivers it to every
// Active session, the sender included.
func (r *Router) PostBroadcast(sender *Session, content string) (Message, error) {
	if err := r.checkSender(sender); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyContent
	}

	var delivered int
	stored := r.store.AppendBroadcast(Message{
		SenderID:          sender.UserID(),
		SenderDisplayName: sender.Identity.DisplayName,
		Content:           content,
	}, func(m Message) {
		delivered = r.out.all(messageEvent(m))
	})
	metrics.MessagesStored.WithLabelValues("broadcast").Inc()

	r.log.Debug().
		Str("message_id", stored.ID).
		Str("sender_id", stored.SenderID).
		Int("delivered", delivered).
		Msg("broadcast message stored")
	return stored, nil
}

// PostPrivate stores content in the room shared by the sender and
// recipientID. The sender always gets the message back; the recipient gets it
// live only when online, otherwise it waits in the room log.
func (r *Router) PostPrivate(sender *Session, recipientID, content string) (Message, error) {
	if err := r.checkSender(sender); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyContent
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == sender.UserID() {
		return Message{}, ErrSelfMessage
	}
	roomID, err := RoomID(sender.UserID(), recipientID)
	if err != nil {
		return Message{}, fmt.Errorf("resolve room: %w", err)
	}

	live := false
	stored := r.store.AppendRoom(roomID, Message{
		SenderID:          sender.UserID(),
		SenderDisplayName: sender.Identity.DisplayName,
		Content:           content,
	}, func(m Message) {
		evt := privateMessageEvent(m)
		r.out.session(sender, evt)
		_, live = r.out.user(recipientID, evt)
	})
	metrics.MessagesStored.WithLabelValues("private").Inc()

	r.log.Debug().
		Str("message_id", stored.ID).
		Str("room_id", roomID).
		Bool("recipient_live", live).
		Msg("private message stored")
	return stored, nil
}

// AddFriend links the sender with friendID and pushes the updated friend
// lists to both parties that are online.
func (r *Router) AddFriend(sender *Session, friendID string) error {
	if err := r.checkSender(sender); err != nil {
		return err
	}
	friendID = strings.TrimSpace(friendID)

	r.friendsMu.Lock()
	defer r.friendsMu.Unlock()

	added, err := r.friends.AddFriend(sender.UserID(), friendID)
	if err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	if added {
		metrics.FriendshipsCreated.Inc()
		r.log.Info().
			Str("user_id", sender.UserID()).
			Str("friend_id", friendID).
			Msg("friendship created")
	}

	r.out.session(sender, friendsEvent(r.friends.FriendsOf(sender.UserID())))
	r.out.user(friendID, friendsEvent(r.friends.FriendsOf(friendID)))
	return nil
}

// pushFriends sends s its current friend list.
func (r *Router) pushFriends(s *Session) {
	r.friendsMu.Lock()
	defer r.friendsMu.Unlock()
	r.out.session(s, friendsEvent(r.friends.FriendsOf(s.UserID())))
}

// SearchUsers matches term case-insensitively against the display names of
// online users, leaving out excludingUserID. A blank term matches nobody.
func (r *Router) SearchUsers(term, excludingUserID string) []Identity {
	metrics.SearchQueries.Inc()
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return []Identity{}
	}
	return lo.Filter(r.presence.ListOnline(), func(u Identity, _ int) bool {
		return u.UserID != excludingUserID &&
			strings.Contains(strings.ToLower(u.DisplayName), needle)
	})
}

// RoomHistory returns the private log shared by a and b.
func (r *Router) RoomHistory(a, b string) ([]Message, error) {
	roomID, err := RoomID(strings.TrimSpace(a), strings.TrimSpace(b))
	if err != nil {
		return nil, fmt.Errorf("resolve room: %w", err)
	}
	return r.store.RoomLog(roomID), nil
}

func (r *Router) checkSender(s *Session) error {
	if s == nil || !s.IsActive() {
		return ErrSessionClosed
	}
	return nil
}
