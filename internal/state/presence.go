package state

import (
	"maps"
	"sync"
	"time"

	"SharedBoard/internal/clock"
)

// PresenceEntry is the last known pointer of a participant.
type PresenceEntry struct {
	Participant string
	Position    Point
	Color       string
	LastSeen    time.Time
}

// Presence maps participants to their last cursor position. Updates are
// last-writer-wins in local arrival order. When ttl is positive, entries
// not refreshed within ttl are treated as gone.
type Presence struct {
	mu      sync.Mutex
	entries map[string]PresenceEntry
	clock   clock.Clock
	ttl     time.Duration
}

func NewPresence(c clock.Clock, ttl time.Duration) *Presence {
	if c == nil {
		c = clock.Real()
	}
	return &Presence{
		entries: make(map[string]PresenceEntry),
		clock:   c,
		ttl:     ttl,
	}
}

func (p *Presence) Update(participant string, position Point, color string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[participant] = PresenceEntry{
		Participant: participant,
		Position:    position,
		Color:       color,
		LastSeen:    p.clock.Now(),
	}
	p.pruneLocked()
}

func (p *Presence) Remove(participant string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[participant]
	delete(p.entries, participant)
	return ok
}

// List is a point-in-time copy of the live entries.
func (p *Presence) List() map[string]PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked()
	return maps.Clone(p.entries)
}

func (p *Presence) Clear() {
	p.mu.Lock()
	clear(p.entries)
	p.mu.Unlock()
}

func (p *Presence) pruneLocked() {
	if p.ttl <= 0 {
		return
	}
	cutoff := p.clock.Now().Add(-p.ttl)
	for id, e := range p.entries {
		if e.LastSeen.Before(cutoff) {
			delete(p.entries, id)
		}
	}
}
