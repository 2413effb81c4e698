package memory

import (
	"errors"
	"testing"
	"time"
)

func newTiers() *Tiers {
	return &Tiers{
		Immediate: NewImmediateStore(7),
		ShortTerm: NewShortTermStore(90 * time.Second),
		LongTerm:  NewLongTermStore(0.1),
	}
}

func TestTargetLayer(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want Layer
	}{
		{time.Minute, LayerImmediate},
		{24 * time.Hour, LayerImmediate},
		{25 * time.Hour, LayerShortTerm},
		{30 * 24 * time.Hour, LayerShortTerm},
		{31 * 24 * time.Hour, LayerLongTerm},
	}
	for _, tc := range cases {
		if got := targetLayer(tc.age); got != tc.want {
			t.Errorf("targetLayer(%v) = %v, want %v", tc.age, got, tc.want)
		}
	}
}

func TestSweepPromotesAgedRecords(t *testing.T) {
	g := NewGraph()
	tiers := newTiers()
	lc := NewLifecycle(g, tiers, 0.6, 0)
	now := time.Now()

	fresh := mustCreate(t, g, "fresh", Metadata{}, nil, 0.5, now)
	aging := mustCreate(t, g, "day old", Metadata{}, nil, 0.5, now.Add(-25*time.Hour))
	old := mustCreate(t, g, "month old", Metadata{}, nil, 0.5, now.Add(-31*24*time.Hour))
	tiers.Immediate.Add(fresh)
	tiers.Immediate.Add(aging)
	tiers.Immediate.Add(old)

	if moved := lc.Sweep(now); moved != 2 {
		t.Fatalf("Sweep moved %d records, want 2", moved)
	}

	if fresh.Layer != LayerImmediate {
		t.Errorf("fresh record promoted to %v", fresh.Layer)
	}
	if aging.Layer != LayerShortTerm {
		t.Errorf("day-old record in layer %v, want short_term", aging.Layer)
	}
	if old.Layer != LayerLongTerm {
		t.Errorf("month-old record in layer %v, want long_term", old.Layer)
	}

	if tiers.Immediate.Len() != 1 {
		t.Errorf("immediate store has %d records, want 1", tiers.Immediate.Len())
	}
	if got := tiers.ShortTerm.Len(now); got != 1 {
		t.Errorf("short-term store has %d records, want 1", got)
	}
	if tiers.LongTerm.Len() != 1 {
		t.Errorf("long-term store has %d records, want 1", tiers.LongTerm.Len())
	}

	// Sweeps are idempotent once every record sits in its target layer.
	if moved := lc.Sweep(now); moved != 0 {
		t.Errorf("second Sweep moved %d records, want 0", moved)
	}
}

func TestSweepPlacesPromotedRecordInShortTermStore(t *testing.T) {
	g := NewGraph()
	tiers := newTiers()
	lc := NewLifecycle(g, tiers, 0.6, 0)
	now := time.Now()

	r := mustCreate(t, g, "a day old", Metadata{}, nil, 0.5, now.Add(-25*time.Hour))
	tiers.Immediate.Add(r)

	if moved := lc.Sweep(now); moved != 1 {
		t.Fatalf("Sweep moved %d records, want 1", moved)
	}
	if r.Layer != LayerShortTerm {
		t.Fatalf("layer = %v, want short_term", r.Layer)
	}

	// The promoted record must actually live in the short-term store,
	// with its retention clock starting at the promotion.
	members := tiers.ShortTerm.All(now)
	if len(members) != 1 || members[0].ID != r.ID {
		t.Fatalf("short-term members = %d, want the promoted record", len(members))
	}
	if tiers.Immediate.Len() != 0 {
		t.Errorf("immediate store still holds %d records", tiers.Immediate.Len())
	}

	// After the window it ages out of the store; the layer field keeps
	// its ratchet value.
	if got := tiers.ShortTerm.Len(now.Add(5 * time.Minute)); got != 0 {
		t.Errorf("short-term members after window = %d, want 0", got)
	}
	if r.Layer != LayerShortTerm {
		t.Errorf("layer changed to %v on expiry", r.Layer)
	}
}

func TestDisplaceMovesEvictedRecordToShortTerm(t *testing.T) {
	g := NewGraph()
	tiers := newTiers()
	lc := NewLifecycle(g, tiers, 0.6, 0)
	now := time.Now()

	r := mustCreate(t, g, "crowded out", Metadata{}, nil, 0.2, now)
	lc.Displace(r, now)

	if r.Layer != LayerShortTerm {
		t.Errorf("layer = %v, want short_term", r.Layer)
	}
	if got := tiers.ShortTerm.Len(now); got != 1 {
		t.Errorf("short-term store has %d records, want 1", got)
	}

	// Displacing an already-promoted record never demotes it and does
	// not add it to the short-term store.
	old := mustCreate(t, g, "already long-term", Metadata{}, nil, 0.9, now.Add(-31*24*time.Hour))
	lc.Sweep(now)
	lc.Displace(old, now)
	if old.Layer != LayerLongTerm {
		t.Errorf("layer = %v, displacement must not demote", old.Layer)
	}
	if got := tiers.ShortTerm.Len(now); got != 1 {
		t.Errorf("short-term store has %d records, want 1", got)
	}
}

func TestSweepNeverDemotes(t *testing.T) {
	g := NewGraph()
	tiers := newTiers()
	lc := NewLifecycle(g, tiers, 0.6, 0)
	now := time.Now()

	r := mustCreate(t, g, "promoted early", Metadata{}, nil, 0.5, now.Add(-31*24*time.Hour))
	lc.Sweep(now)
	if r.Layer != LayerLongTerm {
		t.Fatalf("layer = %v, want long_term", r.Layer)
	}

	// Touching the record resets its recall clock, not its age-based
	// layer. A later sweep leaves it where it is.
	if err := g.Touch(r.ID, now); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	lc.Sweep(now.Add(time.Hour))
	if r.Layer != LayerLongTerm {
		t.Errorf("record demoted to %v", r.Layer)
	}
}

func TestConsolidatePrunesByImportance(t *testing.T) {
	g := NewGraph()
	tiers := newTiers()
	lc := NewLifecycle(g, tiers, 0.6, 0)
	now := time.Now()
	old := now.Add(-31 * 24 * time.Hour)

	weak := mustCreate(t, g, "forgettable", Metadata{Topics: []string{"shared"}}, nil, 0.1, old)
	strong := mustCreate(t, g, "keeper", Metadata{Topics: []string{"shared"}}, nil, 0.9, old)
	boundary := mustCreate(t, g, "at the threshold", Metadata{}, nil, 0.6, old)
	lc.Sweep(now)

	removed := lc.Consolidate(now)
	if removed != 2 {
		t.Fatalf("Consolidate removed %d, want 2 (<= threshold prunes)", removed)
	}

	if _, err := g.Get(weak.ID); !errors.Is(err, ErrNotFound) {
		t.Error("pruned record still in graph")
	}
	if _, err := g.Get(boundary.ID); !errors.Is(err, ErrNotFound) {
		t.Error("record at exact threshold should be pruned")
	}
	if _, err := g.Get(strong.ID); err != nil {
		t.Errorf("surviving record missing: %v", err)
	}
	if tiers.LongTerm.Len() != 1 {
		t.Errorf("long-term store has %d records, want 1", tiers.LongTerm.Len())
	}

	// Cascade: the survivor no longer references the pruned peer, the
	// thematic index forgot it, and recency listings skip it.
	conns, err := g.Connections(strong.ID)
	if err != nil {
		t.Fatalf("Connections: %v", err)
	}
	if len(conns) != 0 {
		t.Errorf("survivor still connected to pruned records: %v", conns)
	}
	if members := g.Topics()["shared"]; len(members) != 1 || members[0] != strong.ID {
		t.Errorf("thematic index = %v, want only the survivor", members)
	}
	for _, r := range g.Recent(0) {
		if r.ID == weak.ID || r.ID == boundary.ID {
			t.Errorf("pruned record %d still listed", r.ID)
		}
	}

	if lc.LastConsolidation() != now {
		t.Error("LastConsolidation not updated")
	}
}

func TestConsolidateStrengthThreshold(t *testing.T) {
	g := NewGraph()
	tiers := &Tiers{
		Immediate: NewImmediateStore(5),
		ShortTerm: NewShortTermStore(5 * time.Minute),
		LongTerm:  NewLongTermStore(0.2),
	}
	// Importance pruning is effectively disabled; only decayed strength
	// decides.
	lc := NewLifecycle(g, tiers, 0, 0.2)
	now := time.Now()

	faded := mustCreate(t, g, "ancient, never recalled", Metadata{}, nil, 0.5, now.Add(-200*24*time.Hour))
	vivid := mustCreate(t, g, "recently recalled", Metadata{}, nil, 0.9, now.Add(-200*24*time.Hour))
	lc.Sweep(now)
	if _, err := tiers.LongTerm.Recall(vivid.ID, now); err != nil {
		t.Fatalf("Recall: %v", err)
	}

	if removed := lc.Consolidate(now); removed != 1 {
		t.Fatalf("Consolidate removed %d, want 1", removed)
	}
	if _, err := g.Get(faded.ID); !errors.Is(err, ErrNotFound) {
		t.Error("faded record survived")
	}
	if _, err := g.Get(vivid.ID); err != nil {
		t.Errorf("recalled record pruned: %v", err)
	}
}

func TestConsolidateIgnoresYoungerLayers(t *testing.T) {
	g := NewGraph()
	tiers := newTiers()
	lc := NewLifecycle(g, tiers, 0.6, 0)
	now := time.Now()

	r := mustCreate(t, g, "unimportant but young", Metadata{}, nil, 0.1, now)
	tiers.Immediate.Add(r)

	if removed := lc.Consolidate(now); removed != 0 {
		t.Errorf("Consolidate removed %d records outside long-term", removed)
	}
	if _, err := g.Get(r.ID); err != nil {
		t.Errorf("young record pruned: %v", err)
	}
}
