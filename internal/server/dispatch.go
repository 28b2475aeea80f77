package server

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/gochat/internal/broker"
	"github.com/Tyrowin/gochat/internal/metrics"
)

// Error codes sent in error frames.
const (
	codeBadFrame     = "bad_frame"
	codeUnknownEvent = "unknown_event"
)

// dispatcher decodes inbound frames and turns them into broker calls.
type dispatcher struct {
	broker   *broker.Broker
	validate *validator.Validate
	log      zerolog.Logger
}

func newDispatcher(b *broker.Broker, log zerolog.Logger) *dispatcher {
	return &dispatcher{
		broker:   b,
		validate: validator.New(),
		log:      log.With().Str("component", "dispatch").Logger(),
	}
}

// handle processes one inbound frame from c. Malformed frames and unknown
// events are answered with an error frame; invalid actions are dropped.
func (d *dispatcher) handle(c *Client, raw []byte) {
	if c.isClosed() {
		return
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", codeBadFrame, "frame is not valid JSON")
		return
	}
	if err := d.validate.Struct(frame); err != nil {
		c.sendError(frame.Ref, codeBadFrame, "frame has no event")
		return
	}

	s := c.session
	var err error
	switch frame.Event {
	case eventPing:
		err = c.sendFrame(eventPong, frame.Ref, nil)

	case eventMessage:
		var data messageData
		if err = d.decode(frame, &data); err == nil {
			_, err = d.broker.Router.PostBroadcast(s, data.Content)
		}

	case eventPrivateMessage:
		var data privateMessageData
		if err = d.decode(frame, &data); err == nil {
			_, err = d.broker.Router.PostPrivate(s, data.RecipientID, data.Content)
		}

	case eventAddFriend:
		var data addFriendData
		if err = d.decode(frame, &data); err == nil {
			err = d.broker.Router.AddFriend(s, data.FriendID)
		}

	case eventSearchUser:
		var data searchUserData
		if err = d.decode(frame, &data); err == nil {
			users := d.broker.Router.SearchUsers(data.Term, s.UserID())
			err = c.sendFrame(eventSearchUser, frame.Ref, users)
		}

	case eventGetPrivateMessages:
		var data getPrivateMessagesData
		if err = d.decode(frame, &data); err != nil {
			break
		}
		history, histErr := d.broker.Router.RoomHistory(s.UserID(), data.FriendID)
		if histErr != nil {
			history = []broker.Message{}
		}
		if err = c.sendFrame(eventGetPrivateMessages, frame.Ref, history); err == nil {
			err = histErr
		}

	default:
		c.sendError(frame.Ref, codeUnknownEvent, "unknown event "+frame.Event)
		return
	}

	d.report(c, frame.Event, err)
}

// decode unmarshals the frame payload into dst and checks its tags. Failures
// count as invalid input.
func (d *dispatcher) decode(frame Frame, dst any) error {
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, dst); err != nil {
			return errInvalidPayload
		}
	}
	if err := d.validate.Struct(dst); err != nil {
		return errInvalidPayload
	}
	return nil
}

var errInvalidPayload = errors.New("invalid payload")

func (d *dispatcher) report(c *Client, event string, err error) {
	switch {
	case err == nil:
	case broker.IsInvalidInput(err) || errors.Is(err, errInvalidPayload):
		metrics.InvalidInput.WithLabelValues(event).Inc()
		c.log.Debug().Err(err).Str("event", event).Msg("dropped invalid input")
	case errors.Is(err, broker.ErrSessionClosed):
		c.log.Debug().Err(err).Str("event", event).Msg("event for closed session")
	default:
		c.log.Warn().Err(err).Str("event", event).Msg("event handling failed")
	}
}
