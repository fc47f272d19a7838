package realtime

import (
	"slices"
	"sync"
)

// Presence is the set of user ids currently online. Absence means offline.
type Presence struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

// NewPresence creates an empty presence set.
func NewPresence() *Presence {
	return &Presence{online: make(map[string]struct{})}
}

// Reset replaces the set with ids.
func (p *Presence) Reset(ids []string) {
	online := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			online[id] = struct{}{}
		}
	}
	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
}

// Set records a single status change. It reports whether the set changed.
func (p *Presence) Set(userID string, online bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, was := p.online[userID]
	if online {
		p.online[userID] = struct{}{}
	} else {
		delete(p.online, userID)
	}
	return was != online
}

// Online reports whether userID is online.
func (p *Presence) Online(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}

// List returns the online user ids, sorted.
func (p *Presence) List() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	p.mu.RUnlock()
	slices.Sort(ids)
	return ids
}
