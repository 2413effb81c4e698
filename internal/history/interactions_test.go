package history

import (
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrations(t *testing.T) {
	db := testDB(t)
	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version = %d, want %d", v, len(migrations))
	}
}

func TestLogInteraction(t *testing.T) {
	db := testDB(t)
	recordID := int64(7)

	it := &Interaction{
		UserID:   "alice",
		RecordID: &recordID,
		Content:  "coffee with marco",
		Emotion:  "joy",
		Topics:   []string{"social", "coffee"},
		Metadata: map[string]string{"location": "station"},
	}
	if err := db.LogInteraction(it); err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}
	if it.ID == 0 {
		t.Error("id not assigned")
	}
	if it.Timestamp.IsZero() {
		t.Error("timestamp not defaulted")
	}

	got, err := db.Recent("alice", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent returned %d rows, want 1", len(got))
	}
	row := got[0]
	if row.Content != it.Content || row.Emotion != it.Emotion || row.UserID != "alice" {
		t.Errorf("row = %+v", row)
	}
	if row.RecordID == nil || *row.RecordID != recordID {
		t.Errorf("record id = %v, want %d", row.RecordID, recordID)
	}
	if len(row.Topics) != 2 || row.Topics[0] != "social" {
		t.Errorf("topics = %v", row.Topics)
	}
	if row.Metadata["location"] != "station" {
		t.Errorf("metadata = %v", row.Metadata)
	}
}

func TestLogInteractionRequiresUser(t *testing.T) {
	db := testDB(t)
	if err := db.LogInteraction(&Interaction{Content: "anonymous"}); err == nil {
		t.Error("expected error for missing user id")
	}
}

func TestRecentOrderAndIsolation(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := db.LogInteraction(&Interaction{
			UserID:    "alice",
			Content:   "entry",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("LogInteraction: %v", err)
		}
	}
	if err := db.LogInteraction(&Interaction{UserID: "bob", Content: "other user", Timestamp: base}); err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}

	got, err := db.Recent("alice", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not applied, got %d rows", len(got))
	}
	if !got[0].Timestamp.After(got[1].Timestamp) {
		t.Error("rows not newest first")
	}

	n, err := db.Count("alice")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestPatterns(t *testing.T) {
	db := testDB(t)

	// Nothing derived yet.
	p, err := db.Patterns("alice")
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil patterns, got %+v", p)
	}

	local := time.Date(2026, time.May, 4, 9, 0, 0, 0, time.Local) // a Monday
	for i := 0; i < 2; i++ {
		if err := db.LogInteraction(&Interaction{UserID: "alice", Content: "morning", Timestamp: local}); err != nil {
			t.Fatalf("LogInteraction: %v", err)
		}
	}

	refreshed, err := db.RefreshPatterns("alice")
	if err != nil {
		t.Fatalf("RefreshPatterns: %v", err)
	}
	if refreshed.Hourly[9] != 2 {
		t.Errorf("hourly[9] = %d, want 2", refreshed.Hourly[9])
	}
	if refreshed.Daily[int(time.Monday)] != 2 {
		t.Errorf("daily[monday] = %d, want 2", refreshed.Daily[int(time.Monday)])
	}

	stored, err := db.Patterns("alice")
	if err != nil {
		t.Fatalf("Patterns after refresh: %v", err)
	}
	if stored == nil || *stored != *refreshed {
		t.Errorf("stored patterns = %+v, want %+v", stored, refreshed)
	}
}
