package broker

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// FriendGraph is a symmetric adjacency map. Both directed entries of an edge
// are written under one lock, so readers never see half an edge.
type FriendGraph struct {
	mu  sync.RWMutex
	adj map[string]map[string]struct{}
}

// NewFriendGraph returns an empty graph.
func NewFriendGraph() *FriendGraph {
	return &FriendGraph{adj: make(map[string]map[string]struct{})}
}

// AddFriend links a and b. It reports whether a new edge was created;
// repeating an existing edge is a no-op.
func (g *FriendGraph) AddFriend(a, b string) (bool, error) {
	if err := ValidateUserID(a); err != nil {
		return false, err
	}
	if err := ValidateUserID(b); err != nil {
		return false, err
	}
	if a == b {
		return false, ErrSelfFriend
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.adj[a][b]; ok {
		return false, nil
	}
	g.link(a, b)
	g.link(b, a)
	return true, nil
}

func (g *FriendGraph) link(from, to string) {
	set, ok := g.adj[from]
	if !ok {
		set = make(map[string]struct{})
		g.adj[from] = set
	}
	set[to] = struct{}{}
}

// FriendsOf returns the sorted friend ids of userID. Unknown users have none.
func (g *FriendGraph) FriendsOf(userID string) []string {
	g.mu.RLock()
	ids := lo.Keys(g.adj[userID])
	g.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// AreFriends reports whether a and b share an edge.
func (g *FriendGraph) AreFriends(a, b string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.adj[a][b]
	return ok
}
