package memory

import (
	"sync"
	"time"
)

// Promotion thresholds. A record older than a day leaves the working set;
// older than thirty days it is long-term. The transition is a one-way
// ratchet, records are promoted or deleted, never demoted.
const (
	shortTermAfter = 24 * time.Hour
	longTermAfter  = 30 * 24 * time.Hour
)

// targetLayer maps a record age to the layer it should occupy.
func targetLayer(age time.Duration) Layer {
	switch {
	case age > longTermAfter:
		return LayerLongTerm
	case age > shortTermAfter:
		return LayerShortTerm
	default:
		return LayerImmediate
	}
}

// LayerMove records a single promotion performed by a sweep.
type LayerMove struct {
	Record *Record
	From   Layer
	To     Layer
}

// sweepLayers promotes records whose age has outgrown their layer and
// returns the moves. Demotions never happen: the target is applied only
// when it is ahead of the current layer.
func (g *Graph) sweepLayers(now time.Time) []LayerMove {
	g.mu.Lock()
	defer g.mu.Unlock()

	var moves []LayerMove
	for _, r := range g.records {
		target := targetLayer(r.Age(now))
		if target > r.Layer {
			moves = append(moves, LayerMove{Record: r, From: r.Layer, To: target})
			r.Layer = target
		}
	}
	return moves
}

// Tiers bundles the three layer stores.
type Tiers struct {
	Immediate *ImmediateStore
	ShortTerm *ShortTermStore
	LongTerm  *LongTermStore
}

// Lifecycle drives layer promotion and long-term consolidation over one
// graph and its tier stores.
type Lifecycle struct {
	graph *Graph
	tiers *Tiers

	// Long-term retention. A record is pruned when its importance is at
	// or below retentionThreshold, or, when strengthThreshold is set
	// (episodic profile), when its decayed strength falls to it.
	retentionThreshold float64
	strengthThreshold  float64

	mu      sync.Mutex
	lastRun time.Time
}

// NewLifecycle wires a lifecycle over the graph and tier stores.
func NewLifecycle(g *Graph, tiers *Tiers, retentionThreshold, strengthThreshold float64) *Lifecycle {
	return &Lifecycle{
		graph:              g,
		tiers:              tiers,
		retentionThreshold: retentionThreshold,
		strengthThreshold:  strengthThreshold,
	}
}

// Sweep promotes aged records across tiers and returns the number moved.
// The graph lock is released before any tier store is touched.
func (l *Lifecycle) Sweep(now time.Time) int {
	moves := l.graph.sweepLayers(now)
	for _, m := range moves {
		switch m.From {
		case LayerImmediate:
			l.tiers.Immediate.Remove(m.Record.ID)
		case LayerShortTerm:
			l.tiers.ShortTerm.Remove(m.Record.ID)
		}
		switch m.To {
		case LayerShortTerm:
			l.tiers.ShortTerm.Add(m.Record, now)
		case LayerLongTerm:
			l.tiers.LongTerm.Add(m.Record)
		}
	}
	return len(moves)
}

// Displace settles a record evicted from the working set: it moves into
// the short-term layer immediately rather than floating outside every
// tier store until the age sweep reaches it.
func (l *Lifecycle) Displace(r *Record, now time.Time) {
	l.graph.mu.Lock()
	if r.Layer < LayerShortTerm {
		r.Layer = LayerShortTerm
	}
	shortTerm := r.Layer == LayerShortTerm
	l.graph.mu.Unlock()
	if shortTerm {
		l.tiers.ShortTerm.Add(r, now)
	}
}

// Consolidate prunes low-value long-term records, cascading each deletion
// through the graph. The graph and long-term locks are held for the
// whole pass, so callers on those collections block until it completes.
// Returns the number of records removed.
func (l *Lifecycle) Consolidate(now time.Time) int {
	g, lt := l.graph, l.tiers.LongTerm

	// Same lock order as the snapshotter: graph before tier store.
	g.mu.Lock()
	lt.mu.Lock()

	removed := 0
	for id, r := range lt.records {
		prune := r.Importance <= l.retentionThreshold
		if !prune && l.strengthThreshold > 0 {
			prune = r.Strength(now, lt.decayRate) <= l.strengthThreshold
		}
		if !prune {
			continue
		}
		delete(lt.records, id)
		// The record is known to the graph; a miss here means an index
		// points at a record that no longer exists, which is an
		// invariant violation, not a condition to swallow.
		if err := g.remove(id); err != nil {
			panic("consolidation: graph and long-term store disagree: " + err.Error())
		}
		removed++
	}

	lt.mu.Unlock()
	g.mu.Unlock()

	l.mu.Lock()
	l.lastRun = now
	l.mu.Unlock()
	return removed
}

// LastConsolidation returns when the last consolidation pass finished.
func (l *Lifecycle) LastConsolidation() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRun
}

// SetLastConsolidation restores the consolidation clock, used when
// loading a snapshot.
func (l *Lifecycle) SetLastConsolidation(t time.Time) {
	l.mu.Lock()
	l.lastRun = t
	l.mu.Unlock()
}
