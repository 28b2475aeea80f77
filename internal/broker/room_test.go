package broker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat/internal/broker"
)

func TestRoomID(t *testing.T) {
	req := require.New(t)

	ab, err := broker.RoomID("1", "2")
	req.NoError(err)
	req.Equal("1-2", ab)

	ba, err := broker.RoomID("2", "1")
	req.NoError(err)
	req.Equal(ab, ba)

	_, err = broker.RoomID("1", "1")
	req.ErrorIs(err, broker.ErrSameUser)

	_, err = broker.RoomID("", "1")
	req.ErrorIs(err, broker.ErrInvalidUserID)

	_, err = broker.RoomID("a-b", "c")
	req.ErrorIs(err, broker.ErrInvalidUserID)
}

func TestRoomID_DistinctPairsNeverCollide(t *testing.T) {
	req := require.New(t)
	ids := []string{"a", "ab", "b", "ba", "1", "12", "2", "21", "alice", "bob"}

	seen := make(map[string][2]string)
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			room, err := broker.RoomID(a, b)
			req.NoError(err)
			if prev, ok := seen[room]; ok {
				req.Failf("collision", "%v and %v both map to %q", prev, [2]string{a, b}, room)
			}
			seen[room] = [2]string{a, b}
		}
	}
}
