package memory

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// PerfStats counts graph activity since creation (or the last Clear).
type PerfStats struct {
	RecordsCreated       int `json:"records_created"`
	ConnectionsCreated   int `json:"connections_created"`
	SuccessfulRetrievals int `json:"successful_retrievals"`
}

// Graph owns every record, the associative edges between them, the
// thematic index, and the emotional/temporal pattern trackers.
//
// The id counter is per-instance: two graphs never share id sequences,
// and ids are never reused within a graph's lifetime.
type Graph struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*Record

	thematic  map[string]map[int64]bool // topic -> record ids
	emotional map[string][]float64      // emotion label -> intensity series
	hourly    [24]int
	daily     [7]int
	monthly   [12]int

	perf PerfStats
}

// NewGraph returns an empty graph with its own id sequence.
func NewGraph() *Graph {
	return &Graph{
		nextID:    1,
		records:   make(map[int64]*Record),
		thematic:  make(map[string]map[int64]bool),
		emotional: make(map[string][]float64),
	}
}

// CreateRecord allocates and indexes a new record. Every existing record
// that shares at least one topic is wired to it bidirectionally, so each
// topic forms a clique. At personal-history scale this stays small; the
// thematic index is the fallback if fan-out ever needs capping.
func (g *Graph) CreateRecord(content string, md Metadata, es *EmotionalState, importance float64, ts time.Time) (*Record, error) {
	if err := validateEmotional(es); err != nil {
		return nil, err
	}
	if err := validateImportance(importance); err != nil {
		return nil, err
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r := &Record{
		ID:          g.nextID,
		Content:     content,
		Metadata:    md,
		Emotional:   es,
		Importance:  importance,
		Layer:       LayerImmediate,
		Connections: make(map[int64]bool),
		Timestamp:   ts,
	}
	g.nextID++
	g.records[r.ID] = r
	g.perf.RecordsCreated++

	for _, topic := range md.Topics {
		peers := g.thematic[topic]
		if peers == nil {
			peers = make(map[int64]bool)
			g.thematic[topic] = peers
		}
		for peerID := range peers {
			g.link(r.ID, peerID)
		}
		peers[r.ID] = true
	}

	if es != nil && es.PrimaryEmotion != "" {
		g.emotional[es.PrimaryEmotion] = append(g.emotional[es.PrimaryEmotion], es.Intensity)
	}
	g.hourly[ts.Hour()]++
	g.daily[int(ts.Weekday())]++
	g.monthly[int(ts.Month())-1]++

	return r, nil
}

// link adds a symmetric edge between two existing records. Caller holds mu.
func (g *Graph) link(a, b int64) {
	ra, rb := g.records[a], g.records[b]
	if ra == nil || rb == nil || a == b {
		return
	}
	if ra.Connections[b] {
		return
	}
	ra.Connections[b] = true
	rb.Connections[a] = true
	g.perf.ConnectionsCreated++
}

// Connect wires two records bidirectionally. Idempotent; reports
// ErrNotFound if either id is absent.
func (g *Graph) Connect(id1, id2 int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.records[id1]; !ok {
		return notFound(id1)
	}
	if _, ok := g.records[id2]; !ok {
		return notFound(id2)
	}
	g.link(id1, id2)
	return nil
}

// Connections returns the peer ids of a record, sorted ascending.
func (g *Graph) Connections(id int64) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return sortedIDs(r.Connections), nil
}

// Touch registers an explicit recall of a record that has not reached
// the long-term store yet: the count rises and the decay clock resets.
func (g *Graph) Touch(id int64, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.records[id]
	if !ok {
		return notFound(id)
	}
	r.recordRecall(now)
	return nil
}

// LayerCounts returns the number of records per layer.
func (g *Graph) LayerCounts() map[Layer]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	counts := make(map[Layer]int, 3)
	for _, r := range g.records {
		counts[r.Layer]++
	}
	return counts
}

// Get returns the record with the given id.
func (g *Graph) Get(id int64) (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return r, nil
}

// SearchByContent returns up to limit records whose content contains the
// query, case-insensitively. Linear scan in ascending id order.
func (g *Graph) SearchByContent(query string, limit int) []*Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := strings.ToLower(query)

	var matches []*Record
	for _, id := range g.idsAscending() {
		r := g.records[id]
		if strings.Contains(strings.ToLower(r.Content), q) {
			matches = append(matches, r)
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}
	g.perf.SuccessfulRetrievals += len(matches)
	return matches
}

// SearchByMetadata returns up to limit records whose metadata matches all
// entries of the query. The recognized keys match the typed fields; any
// other key matches the Extra map.
func (g *Graph) SearchByMetadata(query map[string]string, limit int) []*Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	var matches []*Record
	for _, id := range g.idsAscending() {
		r := g.records[id]
		if metadataMatches(r, query) {
			matches = append(matches, r)
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}
	g.perf.SuccessfulRetrievals += len(matches)
	return matches
}

func metadataMatches(r *Record, query map[string]string) bool {
	for key, want := range query {
		var got string
		switch key {
		case "location":
			got = r.Metadata.Location
		case "activity":
			got = r.Metadata.Activity
		case "topic":
			found := false
			for _, t := range r.Metadata.Topics {
				if t == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		default:
			got = r.Metadata.Extra[key]
		}
		if got != want {
			return false
		}
	}
	return true
}

// Recent returns up to limit records, newest first. Ties on timestamp
// break by descending id so insertion order wins.
func (g *Graph) Recent(limit int) []*Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	all := make([]*Record, 0, len(g.records))
	for _, r := range g.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].ID > all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Remove deletes a record and cascades: peers drop their edge to it and
// the thematic index forgets it. No dangling references survive.
func (g *Graph) Remove(id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remove(id)
}

// remove is the lock-held cascade delete shared with consolidation.
func (g *Graph) remove(id int64) error {
	r, ok := g.records[id]
	if !ok {
		return notFound(id)
	}
	for peerID := range r.Connections {
		if peer, ok := g.records[peerID]; ok {
			delete(peer.Connections, id)
		}
	}
	for _, topic := range r.Metadata.Topics {
		if peers, ok := g.thematic[topic]; ok {
			delete(peers, id)
			if len(peers) == 0 {
				delete(g.thematic, topic)
			}
		}
	}
	delete(g.records, id)
	return nil
}

// Clear drops every record and index but keeps the id sequence, so ids
// from before the clear are never handed out again.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = make(map[int64]*Record)
	g.thematic = make(map[string]map[int64]bool)
	g.emotional = make(map[string][]float64)
	g.hourly = [24]int{}
	g.daily = [7]int{}
	g.monthly = [12]int{}
	g.perf = PerfStats{}
}

// Len returns the number of records in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}

// Topics returns the thematic index as topic -> sorted record ids.
func (g *Graph) Topics() map[string][]int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string][]int64, len(g.thematic))
	for topic, peers := range g.thematic {
		out[topic] = sortedIDs(peers)
	}
	return out
}

// EmotionalSeries returns a copy of the per-emotion intensity series.
func (g *Graph) EmotionalSeries() map[string][]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string][]float64, len(g.emotional))
	for label, series := range g.emotional {
		out[label] = append([]float64(nil), series...)
	}
	return out
}

// TimeHistograms returns copies of the hourly, daily, and monthly
// occurrence counters.
func (g *Graph) TimeHistograms() (hourly [24]int, daily [7]int, monthly [12]int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hourly, g.daily, g.monthly
}

// Perf returns a copy of the activity counters.
func (g *Graph) Perf() PerfStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.perf
}

// DominantPatterns summarizes the trackers: the hours with the highest
// occurrence count, the most frequent primary emotions, and the topics
// with the most records. Each list is sorted for determinism.
type DominantPatterns struct {
	PeakHours        []int    `json:"peak_hours"`
	DominantEmotions []string `json:"dominant_emotions"`
	CommonTopics     []string `json:"common_topics"`
}

// Dominant computes the current dominant patterns.
func (g *Graph) Dominant() DominantPatterns {
	g.mu.Lock()
	defer g.mu.Unlock()

	var p DominantPatterns

	maxCount := 0
	for _, c := range g.hourly {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount > 0 {
		for hour, c := range g.hourly {
			if c == maxCount {
				p.PeakHours = append(p.PeakHours, hour)
			}
		}
	}

	emotionCounts := make(map[string]int)
	for _, r := range g.records {
		if r.Emotional != nil && r.Emotional.PrimaryEmotion != "" {
			emotionCounts[r.Emotional.PrimaryEmotion]++
		}
	}
	p.DominantEmotions = maxKeys(emotionCounts)

	topicCounts := make(map[string]int, len(g.thematic))
	for topic, peers := range g.thematic {
		topicCounts[topic] = len(peers)
	}
	p.CommonTopics = maxKeys(topicCounts)

	return p
}

// maxKeys returns the sorted keys holding the maximum count.
func maxKeys(counts map[string]int) []string {
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		return nil
	}
	var keys []string
	for k, c := range counts {
		if c == maxCount {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// idsAscending returns all record ids in creation order. Caller holds mu.
func (g *Graph) idsAscending() []int64 {
	ids := make([]int64, 0, len(g.records))
	for id := range g.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
