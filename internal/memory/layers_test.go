package memory

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func rec(id int64, importance float64, ts time.Time) *Record {
	return &Record{
		ID:          id,
		Importance:  importance,
		Connections: make(map[int64]bool),
		Timestamp:   ts,
	}
}

func TestImmediateStoreEvictsLowestImportance(t *testing.T) {
	s := NewImmediateStore(3)
	now := time.Now()

	for i, imp := range []float64{0.9, 0.2, 0.7} {
		if evicted := s.Add(rec(int64(i+1), imp, now)); evicted != nil {
			t.Fatalf("unexpected eviction of %d before capacity", evicted.ID)
		}
	}

	evicted := s.Add(rec(4, 0.5, now))
	if evicted == nil || evicted.ID != 2 {
		t.Fatalf("evicted = %v, want record 2 (importance 0.2)", evicted)
	}
	if s.Len() != 3 {
		t.Errorf("len = %d, want 3", s.Len())
	}
}

func TestImmediateStoreEvictionTieBreaksByID(t *testing.T) {
	s := NewImmediateStore(2)
	now := time.Now()
	s.Add(rec(1, 0.5, now))
	s.Add(rec(2, 0.5, now))

	evicted := s.Add(rec(3, 0.9, now))
	if evicted == nil || evicted.ID != 1 {
		t.Errorf("evicted = %v, want the lowest id among tied importances", evicted)
	}
}

func TestImmediateStoreDefaultCapacity(t *testing.T) {
	s := NewImmediateStore(0)
	now := time.Now()
	for i := 1; i <= 7; i++ {
		if evicted := s.Add(rec(int64(i), 0.5, now)); evicted != nil {
			t.Fatalf("eviction at %d members, default capacity should be 7", i)
		}
	}
	if evicted := s.Add(rec(8, 0.5, now)); evicted == nil {
		t.Error("eighth member should evict")
	}
}

func TestShortTermStoreExpiresLazily(t *testing.T) {
	s := NewShortTermStore(90 * time.Second)
	now := time.Now()

	// The retention window runs from insertion, not creation: records
	// arriving here are already at least a day old.
	s.Add(rec(1, 0.5, now.Add(-25*time.Hour)), now)
	s.Add(rec(2, 0.5, now.Add(-25*time.Hour)), now.Add(time.Minute))

	if got := s.Len(now.Add(time.Minute)); got != 2 {
		t.Fatalf("len = %d, want 2 (old records still admitted)", got)
	}

	// First member's stay exceeds the window, second is still inside it.
	cutoff := now.Add(2 * time.Minute)
	if got := s.All(cutoff); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("All after partial expiry returned %d records", len(got))
	}

	later := now.Add(5 * time.Minute)
	if got := s.Len(later); got != 0 {
		t.Errorf("len after window = %d, want 0", got)
	}
}

func TestShortTermStoreAllNewestFirst(t *testing.T) {
	s := NewShortTermStore(time.Hour)
	now := time.Now()
	s.Add(rec(1, 0.5, now.Add(-time.Minute)), now)
	s.Add(rec(2, 0.5, now), now)

	got := s.All(now)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Errorf("order wrong: %v", []int64{got[0].ID, got[1].ID})
	}
}

func TestLongTermRecallReinforces(t *testing.T) {
	s := NewLongTermStore(0.1)
	now := time.Now()
	r := rec(1, 0.8, now.Add(-40*24*time.Hour))
	s.Add(r)

	before, err := s.Strength(1, now)
	if err != nil {
		t.Fatalf("Strength: %v", err)
	}

	after, err := s.Recall(1, now)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if after < before {
		t.Errorf("recall lowered strength: %f -> %f", before, after)
	}
	if r.RecallCount != 1 {
		t.Errorf("RecallCount = %d, want 1", r.RecallCount)
	}
	if !r.LastRecall.Equal(now) {
		t.Error("LastRecall not updated")
	}

	// Repeated recalls keep raising stability; strength at the recall
	// instant never decreases across the sequence.
	prev := after
	for i := 0; i < 5; i++ {
		got, err := s.Recall(1, now)
		if err != nil {
			t.Fatalf("Recall: %v", err)
		}
		if got < prev {
			t.Errorf("strength decreased on recall %d: %f -> %f", i+2, prev, got)
		}
		prev = got
	}
}

func TestRecallBookkeepingConcurrent(t *testing.T) {
	g := NewGraph()
	lt := NewLongTermStore(0.1)
	now := time.Now()

	r := mustCreate(t, g, "contended", Metadata{}, nil, 0.5, now.Add(-31*24*time.Hour))
	lt.Add(r)

	// Both recall paths may run at once while a sweep changes the layer
	// underneath callers; the bookkeeping must not lose updates.
	const perPath = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perPath; i++ {
			if err := g.Touch(r.ID, now); err != nil {
				t.Errorf("Touch: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perPath; i++ {
			if _, err := lt.Recall(r.ID, now); err != nil {
				t.Errorf("Recall: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if r.RecallCount != 2*perPath {
		t.Errorf("RecallCount = %d, want %d", r.RecallCount, 2*perPath)
	}
}

func TestLongTermRecallMissing(t *testing.T) {
	s := NewLongTermStore(0.1)
	if _, err := s.Recall(7, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Recall missing = %v, want ErrNotFound", err)
	}
	if _, err := s.Strength(7, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Strength missing = %v, want ErrNotFound", err)
	}
}
