package state

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// StrokeIDs hands out stroke-scoped identifiers: a per-session site id plus
// a monotonically increasing counter.
type StrokeIDs struct {
	site    string
	counter uint64
}

func NewStrokeIDs() *StrokeIDs {
	return &StrokeIDs{site: uuid.NewString()}
}

// NewStrokeIDsForSite is used when the site id must be stable, e.g. in tests.
func NewStrokeIDsForSite(site string) *StrokeIDs {
	return &StrokeIDs{site: site}
}

func (g *StrokeIDs) Site() string { return g.site }

func (g *StrokeIDs) Next() string {
	return fmt.Sprintf("%s-%d", g.site, atomic.AddUint64(&g.counter, 1))
}

// Owns reports whether id was generated by this site.
func (g *StrokeIDs) Owns(id string) bool {
	prefix := g.site + "-"
	return len(id) > len(prefix) && id[:len(prefix)] == prefix
}
