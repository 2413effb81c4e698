package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Interaction is one journal row: what was remembered, for whom, and the
// emotional/topical annotations it arrived with.
type Interaction struct {
	ID        int64             `json:"id"`
	UserID    string            `json:"user_id"`
	RecordID  *int64            `json:"record_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Content   string            `json:"content"`
	Emotion   string            `json:"emotion,omitempty"`
	Topics    []string          `json:"topics,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// LogInteraction appends a row to the journal.
func (db *DB) LogInteraction(it *Interaction) error {
	if it.UserID == "" {
		return fmt.Errorf("log interaction: user_id required")
	}
	ts := it.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	topics, err := json.Marshal(it.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	meta, err := json.Marshal(it.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var recordID sql.NullInt64
	if it.RecordID != nil {
		recordID = sql.NullInt64{Int64: *it.RecordID, Valid: true}
	}

	result, err := db.Exec(`
		INSERT INTO interactions (user_id, record_id, timestamp, content, emotion, topics, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, it.UserID, recordID, ts.UnixMilli(), it.Content, it.Emotion, string(topics), string(meta))
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}

	id, _ := result.LastInsertId()
	it.ID = id
	it.Timestamp = ts
	return nil
}

// Recent returns the newest interactions for a user, newest first.
func (db *DB) Recent(userID string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT id, user_id, record_id, timestamp, content, emotion, topics, metadata
		FROM interactions WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var it Interaction
		var recordID sql.NullInt64
		var ms int64
		var emotion, topics, meta sql.NullString
		if err := rows.Scan(&it.ID, &it.UserID, &recordID, &ms, &it.Content, &emotion, &topics, &meta); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		it.Timestamp = time.UnixMilli(ms)
		it.Emotion = emotion.String
		if recordID.Valid {
			id := recordID.Int64
			it.RecordID = &id
		}
		if topics.String != "" {
			json.Unmarshal([]byte(topics.String), &it.Topics)
		}
		if meta.String != "" {
			json.Unmarshal([]byte(meta.String), &it.Metadata)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Count returns the number of journal rows for a user.
func (db *DB) Count(userID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM interactions WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// TemporalPatterns holds the derived activity distributions for a user.
type TemporalPatterns struct {
	Hourly [24]int `json:"hourly"`
	Daily  [7]int  `json:"daily"`
}

// RefreshPatterns recomputes a user's hourly and daily activity
// distributions from the journal and stores them.
func (db *DB) RefreshPatterns(userID string) (*TemporalPatterns, error) {
	rows, err := db.Query(`SELECT timestamp FROM interactions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query timestamps: %w", err)
	}
	defer rows.Close()

	var p TemporalPatterns
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		t := time.UnixMilli(ms)
		p.Hourly[t.Hour()]++
		p.Daily[int(t.Weekday())]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("marshal patterns: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO temporal_patterns (user_id, pattern_type, pattern_data, last_updated)
		VALUES (?, 'activity', ?, ?)
		ON CONFLICT (user_id, pattern_type) DO UPDATE SET
			pattern_data = excluded.pattern_data,
			last_updated = excluded.last_updated
	`, userID, string(data), time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store patterns: %w", err)
	}
	return &p, nil
}

// Patterns returns the stored activity distributions for a user, or nil
// if none have been derived yet.
func (db *DB) Patterns(userID string) (*TemporalPatterns, error) {
	var data string
	err := db.QueryRow(`
		SELECT pattern_data FROM temporal_patterns
		WHERE user_id = ? AND pattern_type = 'activity'
	`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}

	var p TemporalPatterns
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}
	return &p, nil
}
