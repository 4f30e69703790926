package db

import (
	"path/filepath"
	"testing"
)

func newTestHistory(t *testing.T) *HistoryDatabase {
	t.Helper()

	hdb, err := NewHistoryDatabase(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryDatabase failed: %v", err)
	}
	t.Cleanup(func() { hdb.Close() })
	return hdb
}

func TestHistoryRecordAndRecent(t *testing.T) {
	hdb := newTestHistory(t)

	commands := []string{"list", "save-all", "time set day"}
	for _, cmd := range commands {
		if err := hdb.Record(cmd, "ok", SourceCLI, true); err != nil {
			t.Fatalf("Record(%q) failed: %v", cmd, err)
		}
	}

	entries, err := hdb.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(entries))
	}
	// Newest first.
	if entries[0].Command != "time set day" || entries[1].Command != "save-all" {
		t.Fatalf("unexpected order: %q, %q", entries[0].Command, entries[1].Command)
	}

	count, err := hdb.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != len(commands) {
		t.Fatalf("Count = %d, want %d", count, len(commands))
	}
}

func TestHistoryRecordFailure(t *testing.T) {
	hdb := newTestHistory(t)

	if err := hdb.Record("stop", "connection refused", SourceAPI, false); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := hdb.Recent(1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Recent(1) returned %d entries", len(entries))
	}
	if entries[0].Success {
		t.Fatal("entry should be marked as failed")
	}
	if entries[0].Source != SourceAPI {
		t.Fatalf("source = %q, want %q", entries[0].Source, SourceAPI)
	}
}

func TestHistoryTruncatesLongResponses(t *testing.T) {
	hdb := newTestHistory(t)

	long := make([]byte, 10000)
	for i := range long {
		long[i] = 'x'
	}
	if err := hdb.Record("list", string(long), SourceCLI, true); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := hdb.Recent(1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries[0].Response) != 4096 {
		t.Fatalf("stored response length = %d, want 4096", len(entries[0].Response))
	}
}

func TestHistoryPrune(t *testing.T) {
	hdb := newTestHistory(t)

	if err := hdb.Record("list", "ok", SourceScheduler, true); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// Fresh entries survive a 1-day retention.
	deleted, err := hdb.PruneOlderThan(1)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("pruned %d fresh entries, want 0", deleted)
	}

	// Backdate the entry, then it must go.
	if _, err := hdb.db.Exec(
		"UPDATE command_history SET created_at = datetime('now', '-10 days')"); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}
	deleted, err = hdb.PruneOlderThan(1)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("pruned %d entries, want 1", deleted)
	}
}
