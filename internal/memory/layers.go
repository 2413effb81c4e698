package memory

import (
	"sort"
	"sync"
	"time"
)

// The three tier stores below are views over records owned by the graph.
// Each guards itself with its own mutex and no lock is ever held across a
// call into another collection. A caller that touches two collections is
// therefore not atomic across them; readers may briefly observe one
// updated and not the other. That race is part of the design.

// ImmediateStore is the fixed-capacity working set. On overflow it evicts
// the lowest-importance member, not the oldest.
type ImmediateStore struct {
	mu       sync.Mutex
	capacity int
	records  map[int64]*Record
}

// NewImmediateStore creates a working store with the given capacity.
func NewImmediateStore(capacity int) *ImmediateStore {
	if capacity <= 0 {
		capacity = 7
	}
	return &ImmediateStore{
		capacity: capacity,
		records:  make(map[int64]*Record),
	}
}

// Add inserts a record, evicting the lowest-importance member if the
// store is full. Returns the evicted record, if any. Importance ties
// break by ascending id so the evicted member is deterministic.
func (s *ImmediateStore) Add(r *Record) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[r.ID] = r
	if len(s.records) <= s.capacity {
		return nil
	}

	var victim *Record
	for _, cand := range s.records {
		if victim == nil ||
			cand.Importance < victim.Importance ||
			(cand.Importance == victim.Importance && cand.ID < victim.ID) {
			victim = cand
		}
	}
	delete(s.records, victim.ID)
	return victim
}

// Remove drops a record from the working set if present.
func (s *ImmediateStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// All returns the working set, newest first.
func (s *ImmediateStore) All() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return byRecency(s.records)
}

// Len returns the current working set size.
func (s *ImmediateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ShortTermStore retains records for a bounded window, measured from the
// moment a record enters the store, not from its creation timestamp:
// records arrive here already a day old. Membership is re-evaluated
// lazily: every read and write first drops members whose stay exceeds
// the window.
type ShortTermStore struct {
	mu      sync.Mutex
	window  time.Duration
	records map[int64]*Record
	entered map[int64]time.Time
}

// NewShortTermStore creates a short-term store with the given retention
// window.
func NewShortTermStore(window time.Duration) *ShortTermStore {
	if window <= 0 {
		window = 90 * time.Second
	}
	return &ShortTermStore{
		window:  window,
		records: make(map[int64]*Record),
		entered: make(map[int64]time.Time),
	}
}

// expire drops members whose stay exceeds the window. Caller holds mu.
func (s *ShortTermStore) expire(now time.Time) {
	for id := range s.records {
		if now.Sub(s.entered[id]) > s.window {
			delete(s.records, id)
			delete(s.entered, id)
		}
	}
}

// Add inserts a record after expiring stale members. The retention clock
// starts at insertion.
func (s *ShortTermStore) Add(r *Record, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	s.records[r.ID] = r
	s.entered[r.ID] = now
}

// Remove drops a record if present.
func (s *ShortTermStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	delete(s.entered, id)
}

// All returns the live members, newest first, after expiring stale ones.
func (s *ShortTermStore) All(now time.Time) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	return byRecency(s.records)
}

// Len returns the live member count after expiry.
func (s *ShortTermStore) Len(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	return len(s.records)
}

// LongTermStore holds records indefinitely, scored by the forgetting
// curve. Recall reinforces a memory: the count rises and the decay clock
// restarts, so strength never drops at the instant of a recall.
type LongTermStore struct {
	mu        sync.Mutex
	decayRate float64
	records   map[int64]*Record
}

// NewLongTermStore creates a long-term store with the given decay rate.
func NewLongTermStore(decayRate float64) *LongTermStore {
	if decayRate <= 0 {
		decayRate = 0.1
	}
	return &LongTermStore{
		decayRate: decayRate,
		records:   make(map[int64]*Record),
	}
}

// Add inserts a record.
func (s *LongTermStore) Add(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

// Remove drops a record if present.
func (s *LongTermStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Recall reinforces a record: recall count up, decay clock reset. Returns
// the recomputed strength, or ErrNotFound.
func (s *LongTermStore) Recall(id int64, now time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return 0, notFound(id)
	}
	r.recordRecall(now)
	return r.Strength(now, s.decayRate), nil
}

// Strength evaluates the forgetting curve for a member record.
func (s *LongTermStore) Strength(id int64, now time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return 0, notFound(id)
	}
	return r.Strength(now, s.decayRate), nil
}

// All returns the members, newest first.
func (s *LongTermStore) All() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return byRecency(s.records)
}

// Len returns the member count.
func (s *LongTermStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// DecayRate returns the configured decay rate.
func (s *LongTermStore) DecayRate() float64 { return s.decayRate }

// byRecency orders a record map newest first, id descending on ties.
func byRecency(records map[int64]*Record) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
