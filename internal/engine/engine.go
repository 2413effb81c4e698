// Package engine is the facade the surrounding application talks to: it
// wires the node graph, the three tier stores, the lifecycle scheduler,
// the snapshotter, and the optional interaction journal into one engine.
package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/lazypower/engram/internal/config"
	"github.com/lazypower/engram/internal/history"
	"github.com/lazypower/engram/internal/memory"
)

// Engine orchestrates memory storage, retrieval, and consolidation.
type Engine struct {
	cfg config.EngineConfig

	graph     *memory.Graph
	tiers     *memory.Tiers
	lifecycle *memory.Lifecycle
	snap      *memory.Snapshotter

	history     *history.DB
	historyUser string

	stopCh chan struct{}
}

// New creates an Engine from the given configuration.
func New(cfg config.EngineConfig) *Engine {
	graph := memory.NewGraph()
	tiers := &memory.Tiers{
		Immediate: memory.NewImmediateStore(cfg.WorkingCapacity),
		ShortTerm: memory.NewShortTermStore(cfg.ShortTermWindow),
		LongTerm:  memory.NewLongTermStore(cfg.DecayRate),
	}
	lc := memory.NewLifecycle(graph, tiers, cfg.RetentionThreshold, cfg.StrengthThreshold)

	return &Engine{
		cfg:       cfg,
		graph:     graph,
		tiers:     tiers,
		lifecycle: lc,
		snap:      memory.NewSnapshotter(graph, tiers, lc),
		stopCh:    make(chan struct{}),
	}
}

// SetHistory attaches the interaction journal. Every accepted memory is
// journaled under the given user id.
func (e *Engine) SetHistory(db *history.DB, userID string) {
	e.history = db
	e.historyUser = userID
}

// Graph exposes the node graph index for direct queries.
func (e *Engine) Graph() *memory.Graph { return e.graph }

// Tiers exposes the layer stores.
func (e *Engine) Tiers() *memory.Tiers { return e.tiers }

// AddMemory creates and indexes a record and places it in the working
// set. The graph and the working store are updated one after the other
// under their own locks; a concurrent reader may observe one updated
// before the other.
func (e *Engine) AddMemory(content string, md memory.Metadata, es *memory.EmotionalState, importance float64) (*memory.Record, error) {
	now := time.Now()
	r, err := e.graph.CreateRecord(content, md, es, importance, now)
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	if evicted := e.tiers.Immediate.Add(r); evicted != nil {
		e.lifecycle.Displace(evicted, now)
		log.Printf("working set: displaced record %d to short-term", evicted.ID)
	}

	if e.history != nil {
		it := &history.Interaction{
			UserID:    e.historyUser,
			RecordID:  &r.ID,
			Timestamp: now,
			Content:   content,
			Topics:    md.Topics,
			Metadata:  md.Extra,
		}
		if es != nil {
			it.Emotion = es.PrimaryEmotion
		}
		if err := e.history.LogInteraction(it); err != nil {
			log.Printf("history: journal record %d: %v", r.ID, err)
		}
	}

	// Layer membership is re-evaluated on write as well as on the
	// periodic sweep.
	e.lifecycle.Sweep(now)
	return r, nil
}

// RecallMemory ranks every stored record against the query and context
// and returns them best first. Read-only: nothing is reinforced.
func (e *Engine) RecallMemory(query string, ctx memory.Context) []memory.Ranked {
	candidates := e.graph.Recent(0)
	return memory.Rank(query, ctx, candidates, time.Now())
}

// Recall explicitly reinforces one record. For long-term records that
// restarts the forgetting curve; younger records just accumulate the
// recall bookkeeping they will carry into the long-term store.
func (e *Engine) Recall(id int64) error {
	r, err := e.graph.Get(id)
	if err != nil {
		return err
	}
	now := time.Now()
	if r.Layer == memory.LayerLongTerm {
		_, err := e.tiers.LongTerm.Recall(id, now)
		return err
	}
	return e.graph.Touch(id, now)
}

// Sweep runs one lifecycle promotion pass.
func (e *Engine) Sweep() int {
	return e.lifecycle.Sweep(time.Now())
}

// Consolidate runs one consolidation pass, pruning low-value long-term
// records.
func (e *Engine) Consolidate() int {
	return e.lifecycle.Consolidate(time.Now())
}

// Start runs a lifecycle sweep and a consolidation pass immediately,
// then repeats on the configured interval until Stop is called.
func (e *Engine) Start() {
	e.runOnce()

	go func() {
		interval := e.cfg.ConsolidationInterval
		if interval <= 0 {
			interval = 15 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runOnce()
			case <-e.stopCh:
				return
			}
		}
	}()
}

func (e *Engine) runOnce() {
	if moved := e.Sweep(); moved > 0 {
		log.Printf("lifecycle: promoted %d records", moved)
	}
	if removed := e.Consolidate(); removed > 0 {
		log.Printf("consolidation: pruned %d records", removed)
	}
}

// Stop shuts down the background worker.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// Save snapshots the whole engine state to path, atomically.
func (e *Engine) Save(path string) error {
	return e.snap.Save(path)
}

// Load restores engine state from path. Missing file means cold start.
// Load must run before the engine is shared with callers.
func (e *Engine) Load(path string) error {
	return e.snap.Load(path)
}

// Stats summarizes the engine for the stats surface.
type Stats struct {
	Total              int              `json:"total"`
	ImmediateCount     int              `json:"immediate_count"`
	ShortTermCount     int              `json:"short_term_count"`
	LongTermCount      int              `json:"long_term_count"`
	AverageImportance  float64          `json:"average_importance"`
	AverageIntensity   float64          `json:"average_intensity"`
	EmotionalStability float64          `json:"emotional_stability"`
	Emotional          map[string]int   `json:"emotional_distribution"`
	Topics             map[string]int   `json:"topic_distribution"`
	Perf               memory.PerfStats `json:"perf"`
}

// Stats computes the current engine statistics.
func (e *Engine) Stats() Stats {
	records := e.graph.Recent(0)
	layers := e.graph.LayerCounts()

	st := Stats{
		Total:          len(records),
		ImmediateCount: layers[memory.LayerImmediate],
		ShortTermCount: layers[memory.LayerShortTerm],
		LongTermCount:  layers[memory.LayerLongTerm],
		Emotional:      make(map[string]int),
		Topics:         make(map[string]int),
		Perf:           e.graph.Perf(),
	}

	var totalImportance float64
	var intensities []float64
	for _, r := range records {
		totalImportance += r.Importance
		if r.Emotional != nil {
			if r.Emotional.PrimaryEmotion != "" {
				st.Emotional[r.Emotional.PrimaryEmotion]++
			}
			intensities = append(intensities, r.Emotional.Intensity)
		}
	}
	if len(records) > 0 {
		st.AverageImportance = totalImportance / float64(len(records))
	}
	if len(intensities) > 0 {
		var sum float64
		for _, v := range intensities {
			sum += v
		}
		mean := sum / float64(len(intensities))
		st.AverageIntensity = mean

		var variance float64
		for _, v := range intensities {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(intensities))
		st.EmotionalStability = 1.0 / (1.0 + variance)
	}

	for topic, ids := range e.graph.Topics() {
		st.Topics[topic] = len(ids)
	}
	return st
}

// Dominant returns the graph's dominant patterns.
func (e *Engine) Dominant() memory.DominantPatterns {
	return e.graph.Dominant()
}
