package broker

import (
	"sort"
	"sync"
)

type presenceEntry struct {
	displayName string
	sessionID   string
}

// PresenceTable tracks which users currently hold a connection. A user id
// appears at most once; the most recent connection wins.
type PresenceTable struct {
	mu      sync.RWMutex
	entries map[string]presenceEntry
}

// NewPresenceTable returns an empty table.
func NewPresenceTable() *PresenceTable {
	return &PresenceTable{entries: make(map[string]presenceEntry)}
}

// Connect registers userID, overwriting any earlier entry for it.
func (p *PresenceTable) Connect(userID, displayName, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[userID] = presenceEntry{
		displayName: displayName,
		sessionID:   sessionID,
	}
}

// Disconnect removes userID. Unknown ids are a no-op.
func (p *PresenceTable) Disconnect(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, userID)
}

// Release removes userID only while the entry still belongs to sessionID,
// so a superseded connection closing late leaves the newer one in place.
func (p *PresenceTable) Release(userID, sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[userID]
	if !ok || entry.sessionID != sessionID {
		return false
	}
	delete(p.entries, userID)
	return true
}

// Lookup returns the session currently representing userID.
func (p *PresenceTable) Lookup(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[userID]
	return entry.sessionID, ok
}

// IsOnline reports whether userID has an entry.
func (p *PresenceTable) IsOnline(userID string) bool {
	_, ok := p.Lookup(userID)
	return ok
}

// ListOnline returns a copy of all entries ordered by user id.
func (p *PresenceTable) ListOnline() []Identity {
	p.mu.RLock()
	users := make([]Identity, 0, len(p.entries))
	for id, entry := range p.entries {
		users = append(users, Identity{UserID: id, DisplayName: entry.displayName})
	}
	p.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// Len returns the number of online users.
func (p *PresenceTable) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
