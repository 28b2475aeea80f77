package broker_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat/internal/broker"
)

func TestFriendGraph_AddFriendIsSymmetricAndIdempotent(t *testing.T) {
	req := require.New(t)
	g := broker.NewFriendGraph()

	added, err := g.AddFriend("1", "2")
	req.NoError(err)
	req.True(added)

	added, err = g.AddFriend("2", "1")
	req.NoError(err)
	req.False(added)

	req.Equal([]string{"2"}, g.FriendsOf("1"))
	req.Equal([]string{"1"}, g.FriendsOf("2"))
	req.True(g.AreFriends("2", "1"))
}

func TestFriendGraph_Rejects(t *testing.T) {
	req := require.New(t)
	g := broker.NewFriendGraph()

	_, err := g.AddFriend("1", "1")
	req.ErrorIs(err, broker.ErrSelfFriend)

	_, err = g.AddFriend("1", "")
	req.ErrorIs(err, broker.ErrInvalidUserID)

	req.NotNil(g.FriendsOf("1"))
	req.Empty(g.FriendsOf("1"))
}

func TestFriendGraph_ConcurrentOppositeAdds(t *testing.T) {
	req := require.New(t)
	g := broker.NewFriendGraph()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		for _, pair := range [][2]string{{"1", "2"}, {"2", "1"}} {
			go func(a, b string) {
				defer wg.Done()
				added, err := g.AddFriend(a, b)
				if err == nil && added {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}(pair[0], pair[1])
		}
	}
	wg.Wait()

	req.Equal(1, created)
	req.Equal([]string{"2"}, g.FriendsOf("1"))
	req.Equal([]string{"1"}, g.FriendsOf("2"))
}
