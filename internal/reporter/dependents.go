package reporter

import (
	"log/slog"

	"github.com/google/uuid"
)

// dependencyGraph is the partial-update bookkeeping of a decider reporter.
//
// Two FIFO queues:
//   - dependents: non-owning references to reporters that registered this
//     reporter as their partial-update decider
//   - owned: reporters adopted by this reporter (finalized with it)
//
// Invariants:
//   - len(dependents) >= len(owned)
//   - len(owned) <= capacity
//   - every owned entry also appears in dependents, in the same relative order
//
// Entries are matched by reporter ID, never by pointer identity.
type dependencyGraph struct {
	dependents []*FrameReporter
	owned      []*FrameReporter
	capacity   int
}

// Push appends r to the non-owning queue (if not already present) and, when
// owning, to the owning queue. Returns the reporters evicted from the owning
// queue because it exceeded capacity, oldest first.
func (g *dependencyGraph) Push(r *FrameReporter, owning bool) []*FrameReporter {
	if !g.containsDependent(r.id) {
		g.dependents = append(g.dependents, r)
	}
	if !owning {
		return nil
	}
	g.owned = append(g.owned, r)
	return g.discardOld()
}

func (g *dependencyGraph) containsDependent(id uuid.UUID) bool {
	for _, d := range g.dependents {
		if d.id == id {
			return true
		}
	}
	return false
}

// discardOld evicts owned entries beyond capacity (FIFO), then drops every
// non-owning entry that was evicted or is no longer alive.
func (g *dependencyGraph) discardOld() []*FrameReporter {
	capacity := g.capacity
	if capacity <= 0 {
		capacity = DefaultMaxOwnedDependents
	}
	if len(g.owned) <= capacity {
		return nil
	}

	var evicted []*FrameReporter
	removed := make(map[uuid.UUID]struct{})
	for len(g.owned) > capacity {
		r := g.owned[0]
		g.owned[0] = nil
		g.owned = g.owned[1:]
		r.hasPartialUpdate = false
		r.discard()
		removed[r.id] = struct{}{}
		evicted = append(evicted, r)
	}

	kept := g.dependents[:0]
	for _, d := range g.dependents {
		if _, gone := removed[d.id]; gone || !d.alive() {
			continue
		}
		kept = append(kept, d)
	}
	for i := len(kept); i < len(g.dependents); i++ {
		g.dependents[i] = nil
	}
	g.dependents = kept

	slog.Debug("reporter: evicted owned partial-update dependents",
		"evicted", len(evicted),
		"owned", len(g.owned),
		"dependents", len(g.dependents),
	)
	return evicted
}

// detachAll clears the partial-update flag of every live dependent and
// empties the non-owning queue.
func (g *dependencyGraph) detachAll() {
	for _, d := range g.dependents {
		if d.alive() {
			d.hasPartialUpdate = false
		}
	}
	g.dependents = nil
}

// takeOwned removes and returns the owned queue.
func (g *dependencyGraph) takeOwned() []*FrameReporter {
	out := g.owned
	g.owned = nil
	return out
}
