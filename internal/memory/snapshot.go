package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot wire format. Sets become sorted lists and timestamps RFC 3339
// strings so snapshots are stable and diffable.

type snapshotRecord struct {
	ID          int64           `json:"id"`
	Content     string          `json:"content"`
	Metadata    Metadata        `json:"metadata"`
	Emotional   *EmotionalState `json:"emotional_state,omitempty"`
	Importance  float64         `json:"importance"`
	Layer       string          `json:"layer"`
	Connections []int64         `json:"connections"`
	Timestamp   string          `json:"timestamp"`
	RecallCount int             `json:"recall_count"`
	LastRecall  string          `json:"last_recall,omitempty"`
}

type snapshotPatterns struct {
	Hourly  *[]int `json:"hourly"`
	Daily   *[]int `json:"daily"`
	Monthly *[]int `json:"monthly"`
}

type snapshotFile struct {
	Nodes              *[]snapshotRecord     `json:"nodes"`
	ThematicMap        map[string][]int64    `json:"thematic_map"`
	EmotionalPatterns  map[string][]float64  `json:"emotional_patterns"`
	ContextualPatterns *snapshotPatterns     `json:"contextual_patterns"`
	LastConsolidation  string                `json:"last_consolidation"`
}

// Snapshotter persists the whole engine state to a single local file and
// restores it. Save is atomic: the previous snapshot stays authoritative
// until the replacement is fully written, fsynced, and renamed over it.
type Snapshotter struct {
	graph     *Graph
	tiers     *Tiers
	lifecycle *Lifecycle
}

// NewSnapshotter wires a snapshotter over the engine's collections.
func NewSnapshotter(g *Graph, tiers *Tiers, lc *Lifecycle) *Snapshotter {
	return &Snapshotter{graph: g, tiers: tiers, lifecycle: lc}
}

// lockAll takes every collection lock in a fixed order so Save sees a
// point-in-time-consistent state. Returns the matching unlock.
func (s *Snapshotter) lockAll() func() {
	s.graph.mu.Lock()
	s.tiers.Immediate.mu.Lock()
	s.tiers.ShortTerm.mu.Lock()
	s.tiers.LongTerm.mu.Lock()
	return func() {
		s.tiers.LongTerm.mu.Unlock()
		s.tiers.ShortTerm.mu.Unlock()
		s.tiers.Immediate.mu.Unlock()
		s.graph.mu.Unlock()
	}
}

// Save writes the snapshot to path via a temp file in the same directory.
// On any failure the temp file is removed and the old snapshot is left
// untouched.
func (s *Snapshotter) Save(path string) error {
	data, err := s.marshal()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (s *Snapshotter) marshal() ([]byte, error) {
	unlock := s.lockAll()
	defer unlock()

	g := s.graph
	nodes := make([]snapshotRecord, 0, len(g.records))
	for _, id := range g.idsAscending() {
		r := g.records[id]
		recalls, lastRecall := r.recallState()
		sr := snapshotRecord{
			ID:          r.ID,
			Content:     r.Content,
			Metadata:    r.Metadata,
			Emotional:   r.Emotional,
			Importance:  r.Importance,
			Layer:       r.Layer.String(),
			Connections: sortedIDs(r.Connections),
			Timestamp:   r.Timestamp.Format(time.RFC3339Nano),
			RecallCount: recalls,
		}
		if !lastRecall.IsZero() {
			sr.LastRecall = lastRecall.Format(time.RFC3339Nano)
		}
		nodes = append(nodes, sr)
	}

	thematic := make(map[string][]int64, len(g.thematic))
	for topic, peers := range g.thematic {
		thematic[topic] = sortedIDs(peers)
	}

	emotional := make(map[string][]float64, len(g.emotional))
	for label, series := range g.emotional {
		emotional[label] = append([]float64(nil), series...)
	}

	hourly := append([]int(nil), g.hourly[:]...)
	daily := append([]int(nil), g.daily[:]...)
	monthly := append([]int(nil), g.monthly[:]...)

	file := snapshotFile{
		Nodes:             &nodes,
		ThematicMap:       thematic,
		EmotionalPatterns: emotional,
		ContextualPatterns: &snapshotPatterns{
			Hourly:  &hourly,
			Daily:   &daily,
			Monthly: &monthly,
		},
		LastConsolidation: s.lifecycle.LastConsolidation().Format(time.RFC3339Nano),
	}
	return json.MarshalIndent(file, "", "  ")
}

// Load restores engine state from path. A missing file is a cold start
// and leaves the engine empty; a present but structurally invalid file is
// an ErrCorruptSnapshot, never a silent default. Load runs before the
// engine is handed to callers, so it takes no locks.
func (s *Snapshotter) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if file.Nodes == nil {
		return fmt.Errorf("%w: missing nodes", ErrCorruptSnapshot)
	}
	if file.ThematicMap == nil {
		return fmt.Errorf("%w: missing thematic_map", ErrCorruptSnapshot)
	}
	if file.EmotionalPatterns == nil {
		return fmt.Errorf("%w: missing emotional_patterns", ErrCorruptSnapshot)
	}
	cp := file.ContextualPatterns
	if cp == nil || cp.Hourly == nil || cp.Daily == nil || cp.Monthly == nil {
		return fmt.Errorf("%w: missing contextual_patterns", ErrCorruptSnapshot)
	}
	if len(*cp.Hourly) != 24 || len(*cp.Daily) != 7 || len(*cp.Monthly) != 12 {
		return fmt.Errorf("%w: contextual_patterns have wrong arity", ErrCorruptSnapshot)
	}

	g := s.graph
	g.records = make(map[int64]*Record, len(*file.Nodes))
	g.thematic = make(map[string]map[int64]bool, len(file.ThematicMap))
	g.emotional = file.EmotionalPatterns
	copy(g.hourly[:], *cp.Hourly)
	copy(g.daily[:], *cp.Daily)
	copy(g.monthly[:], *cp.Monthly)

	var maxID int64
	for _, sr := range *file.Nodes {
		layer, ok := ParseLayer(sr.Layer)
		if !ok {
			return fmt.Errorf("%w: record %d: unknown layer %q", ErrCorruptSnapshot, sr.ID, sr.Layer)
		}
		ts, err := time.Parse(time.RFC3339Nano, sr.Timestamp)
		if err != nil {
			return fmt.Errorf("%w: record %d: bad timestamp: %v", ErrCorruptSnapshot, sr.ID, err)
		}
		var lastRecall time.Time
		if sr.LastRecall != "" {
			lastRecall, err = time.Parse(time.RFC3339Nano, sr.LastRecall)
			if err != nil {
				return fmt.Errorf("%w: record %d: bad last_recall: %v", ErrCorruptSnapshot, sr.ID, err)
			}
		}
		if _, dup := g.records[sr.ID]; dup {
			return fmt.Errorf("%w: duplicate record id %d", ErrCorruptSnapshot, sr.ID)
		}

		r := &Record{
			ID:          sr.ID,
			Content:     sr.Content,
			Metadata:    sr.Metadata,
			Emotional:   sr.Emotional,
			Importance:  sr.Importance,
			Layer:       layer,
			Connections: make(map[int64]bool, len(sr.Connections)),
			Timestamp:   ts,
			RecallCount: sr.RecallCount,
			LastRecall:  lastRecall,
		}
		g.records[sr.ID] = r
		if sr.ID > maxID {
			maxID = sr.ID
		}
	}
	g.nextID = maxID + 1

	// Edges and indexes resolve in a second pass, once every record
	// exists. Any reference to a missing record is a hard failure.
	for _, sr := range *file.Nodes {
		r := g.records[sr.ID]
		for _, peerID := range sr.Connections {
			if _, ok := g.records[peerID]; !ok {
				return fmt.Errorf("%w: record %d connects to missing record %d", ErrCorruptSnapshot, sr.ID, peerID)
			}
			r.Connections[peerID] = true
		}
	}
	for topic, ids := range file.ThematicMap {
		peers := make(map[int64]bool, len(ids))
		for _, id := range ids {
			if _, ok := g.records[id]; !ok {
				return fmt.Errorf("%w: topic %q references missing record %d", ErrCorruptSnapshot, topic, id)
			}
			peers[id] = true
		}
		g.thematic[topic] = peers
	}

	if file.LastConsolidation != "" {
		last, err := time.Parse(time.RFC3339Nano, file.LastConsolidation)
		if err != nil {
			return fmt.Errorf("%w: bad last_consolidation: %v", ErrCorruptSnapshot, err)
		}
		s.lifecycle.SetLastConsolidation(last)
	}

	// Rebuild tier membership from the restored layer fields. Short-term
	// retention clocks restart at load time; the original entry times are
	// not part of the snapshot.
	now := time.Now()
	for _, r := range g.records {
		switch r.Layer {
		case LayerImmediate:
			s.tiers.Immediate.records[r.ID] = r
		case LayerShortTerm:
			s.tiers.ShortTerm.records[r.ID] = r
			s.tiers.ShortTerm.entered[r.ID] = now
		case LayerLongTerm:
			s.tiers.LongTerm.records[r.ID] = r
		}
	}
	return nil
}
