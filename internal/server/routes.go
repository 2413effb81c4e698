package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/engram/internal/memory"
)

// recordJSON is the wire shape of a record in API responses.
type recordJSON struct {
	ID          int64                  `json:"id"`
	Content     string                 `json:"content"`
	Metadata    memory.Metadata        `json:"metadata"`
	Emotional   *memory.EmotionalState `json:"emotional_state,omitempty"`
	Importance  float64                `json:"importance"`
	Layer       string                 `json:"layer"`
	Connections []int64                `json:"connections"`
	Timestamp   time.Time              `json:"timestamp"`
	RecallCount int                    `json:"recall_count"`
	Score       *float64               `json:"score,omitempty"`
}

func toRecordJSON(r *memory.Record, connections []int64) recordJSON {
	return recordJSON{
		ID:          r.ID,
		Content:     r.Content,
		Metadata:    r.Metadata,
		Emotional:   r.Emotional,
		Importance:  r.Importance,
		Layer:       r.Layer.String(),
		Connections: connections,
		Timestamp:   r.Timestamp,
		RecallCount: r.RecallCount,
	}
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content    string                 `json:"content"`
		Topics     []string               `json:"topics"`
		Location   string                 `json:"location"`
		Activity   string                 `json:"activity"`
		Extra      map[string]string      `json:"extra"`
		Emotional  *memory.EmotionalState `json:"emotional_state"`
		Importance *float64               `json:"importance"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	importance := 0.5
	if req.Importance != nil {
		importance = *req.Importance
	}

	md := memory.Metadata{
		Topics:   req.Topics,
		Location: req.Location,
		Activity: req.Activity,
		Extra:    req.Extra,
	}
	rec, err := s.eng.AddMemory(req.Content, md, req.Emotional, importance)
	if err != nil {
		if errors.Is(err, memory.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conns, _ := s.eng.Graph().Connections(rec.ID)
	writeJSON(w, http.StatusCreated, toRecordJSON(rec, conns))
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := s.eng.Graph().Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	conns, _ := s.eng.Graph().Connections(id)
	writeJSON(w, http.StatusOK, toRecordJSON(rec, conns))
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	conns, err := s.eng.Graph().Connections(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "connections": conns})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.eng.Graph().Connect(req.From, req.To); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReinforce(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := s.eng.Recall(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 10)

	ctx := memory.Context{
		Topics:   r.URL.Query()["topic"],
		Location: r.URL.Query().Get("location"),
		Activity: r.URL.Query().Get("activity"),
	}

	ranked := s.eng.RecallMemory(query, ctx)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]recordJSON, 0, len(ranked))
	for _, rr := range ranked {
		rj := toRecordJSON(rr.Record, nil)
		score := rr.Score
		rj.Score = &score
		out = append(out, rj)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	records := s.eng.Graph().Recent(limit)

	out := make([]recordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordJSON(rec, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Stats())
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Dominant())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history not configured")
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user required")
		return
	}
	limit := queryInt(r, "limit", 10)

	interactions, err := s.history.Recent(userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": interactions})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}
	if err := s.eng.Save(req.Path); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": req.Path})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	removed := s.eng.Consolidate()
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
