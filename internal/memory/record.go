package memory

import (
	"math"
	"sync"
	"time"
)

// Layer is the storage tier a record currently belongs to. Records only
// move forward: immediate -> short_term -> long_term.
type Layer int

const (
	LayerImmediate Layer = iota
	LayerShortTerm
	LayerLongTerm
)

var layerNames = map[Layer]string{
	LayerImmediate: "immediate",
	LayerShortTerm: "short_term",
	LayerLongTerm:  "long_term",
}

func (l Layer) String() string { return layerNames[l] }

// ParseLayer maps a serialized layer name back to its enum value.
func ParseLayer(s string) (Layer, bool) {
	for l, name := range layerNames {
		if name == s {
			return l, true
		}
	}
	return 0, false
}

// EmotionalState annotates a record with a labeled emotion and the three
// numeric axes. Valence lies in [-1,1]; the others in [0,1].
type EmotionalState struct {
	PrimaryEmotion string  `json:"primary_emotion"`
	Intensity      float64 `json:"intensity"`
	Valence        float64 `json:"valence"`
	Arousal        float64 `json:"arousal"`
	Dominance      float64 `json:"dominance"`
}

// Metadata carries the recognized keys as typed fields plus an open
// extension map for anything the engine does not interpret.
type Metadata struct {
	Topics   []string          `json:"topics,omitempty"`
	Location string            `json:"location,omitempty"`
	Activity string            `json:"activity,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Record is a single remembered interaction: immutable content, mutable
// bookkeeping. Connections are maintained symmetrically by the graph.
type Record struct {
	ID          int64           `json:"id"`
	Content     string          `json:"content"`
	Metadata    Metadata        `json:"metadata"`
	Emotional   *EmotionalState `json:"emotional_state,omitempty"`
	Importance  float64         `json:"importance"`
	Layer       Layer           `json:"-"`
	Connections map[int64]bool  `json:"-"`
	Timestamp   time.Time       `json:"timestamp"`
	RecallCount int             `json:"recall_count"`
	LastRecall  time.Time       `json:"last_recall"`

	// recallMu guards RecallCount and LastRecall, which are written both
	// by the graph and by the long-term store.
	recallMu sync.Mutex
}

// recordRecall registers one recall: the count rises and the decay clock
// resets.
func (r *Record) recordRecall(now time.Time) {
	r.recallMu.Lock()
	r.RecallCount++
	r.LastRecall = now
	r.recallMu.Unlock()
}

// recallState returns a consistent view of the recall bookkeeping.
func (r *Record) recallState() (int, time.Time) {
	r.recallMu.Lock()
	defer r.recallMu.Unlock()
	return r.RecallCount, r.LastRecall
}

// validateEmotional rejects non-finite or out-of-range axis values.
func validateEmotional(es *EmotionalState) error {
	if es == nil {
		return nil
	}
	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"intensity", es.Intensity, 0, 1},
		{"valence", es.Valence, -1, 1},
		{"arousal", es.Arousal, 0, 1},
		{"dominance", es.Dominance, 0, 1},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return &ValidationError{Field: c.field, Reason: "not a finite number"}
		}
		if c.value < c.min || c.value > c.max {
			return &ValidationError{Field: c.field, Reason: "out of range"}
		}
	}
	return nil
}

func validateImportance(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: "importance", Reason: "not a finite number"}
	}
	if v < 0 || v > 1 {
		return &ValidationError{Field: "importance", Reason: "out of range"}
	}
	return nil
}

// Age returns the time elapsed since the record was created.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// Valence returns the emotional valence, or 0 for unannotated records.
func (r *Record) Valence() float64 {
	if r.Emotional == nil {
		return 0
	}
	return r.Emotional.Valence
}

// Intensity returns the emotional intensity, or 0 for unannotated records.
func (r *Record) Intensity() float64 {
	if r.Emotional == nil {
		return 0
	}
	return r.Emotional.Intensity
}

// Strength evaluates the forgetting curve at the given instant. Recalls
// stabilize the memory: stability = 1 + 0.5*recallCount. The raw curve is
// scaled by importance and absolute valence so that flat, unimportant
// memories fade fastest.
func (r *Record) Strength(now time.Time, decayRate float64) float64 {
	recalls, lastRecall := r.recallState()
	since := lastRecall
	if since.IsZero() {
		since = r.Timestamp
	}
	hours := now.Sub(since).Hours()
	if hours < 0 {
		hours = 0
	}
	stability := 1 + 0.5*float64(recalls)
	raw := math.Exp(-decayRate * hours / (24 * stability))
	raw *= 0.3 + 0.7*r.Importance
	raw *= 0.3 + 0.7*math.Abs(r.Valence())
	return clamp01(raw)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// EmotionalSimilarity compares two emotional states over the numeric axes
// they share, as 1 - normalized euclidean distance. Returns 0 when either
// state is missing.
func EmotionalSimilarity(a, b *EmotionalState) float64 {
	if a == nil || b == nil {
		return 0
	}
	pairs := [][2]float64{
		{a.Intensity, b.Intensity},
		{a.Valence, b.Valence},
		{a.Arousal, b.Arousal},
		{a.Dominance, b.Dominance},
	}
	var sum float64
	for _, p := range pairs {
		d := p[0] - p[1]
		sum += d * d
	}
	maxDist := math.Sqrt(float64(len(pairs)))
	return 1 - math.Sqrt(sum)/maxDist
}
