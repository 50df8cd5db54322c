package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "history.json"))
	if len(s) != 0 {
		t.Errorf("missing file: got %d entries, want 0", len(s))
	}
}

func TestLoad_CorruptFileIsEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if s := Load(p); len(s) != 0 {
		t.Errorf("corrupt file: got %d entries, want 0", len(s))
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "history.json")
	in := Store{
		"capacity|cluster-full":   {Threshold: 85, AlertedAt: baseTime},
		"quota|eng-quota|/eng":    {Threshold: 95, AlertedAt: baseTime.Add(time.Hour)},
		"replication|repl|rel-12": {Signature: "connection refused\x1f2026-02-28", AlertedAt: baseTime},
	}
	if err := Save(p, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out := Load(p)
	if len(out) != len(in) {
		t.Fatalf("round trip: got %d entries, want %d", len(out), len(in))
	}
	for k, want := range in {
		got, ok := out[k]
		if !ok {
			t.Fatalf("round trip: key %q missing", k)
		}
		if got.Threshold != want.Threshold || got.Signature != want.Signature {
			t.Errorf("entry %q: got %+v, want %+v", k, got, want)
		}
		if !got.AlertedAt.Equal(want.AlertedAt) {
			t.Errorf("entry %q timestamp: got %v, want %v", k, got.AlertedAt, want.AlertedAt)
		}
	}
}

func TestSave_ReplacesExisting(t *testing.T) {
	p := filepath.Join(t.TempDir(), "history.json")
	if err := Save(p, Store{"old": {Threshold: 50, AlertedAt: baseTime}}); err != nil {
		t.Fatal(err)
	}
	if err := Save(p, Store{"new": {Threshold: 75, AlertedAt: baseTime}}); err != nil {
		t.Fatal(err)
	}

	out := Load(p)
	if _, ok := out["old"]; ok {
		t.Error("stale entry survived replace")
	}
	if _, ok := out["new"]; !ok {
		t.Error("replacement entry missing")
	}
}

func TestSave_EmptyStoreWritesValidFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "history.json")
	if err := Save(p, Store{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]Entry
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
}

func TestSave_UnwritableDirFails(t *testing.T) {
	err := Save("/nonexistent-dir/history.json", Store{})
	if err == nil {
		t.Fatal("expected error writing to nonexistent directory, got nil")
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "history.json")
	if err := Save(p, Store{"k": {Threshold: 90, AlertedAt: baseTime}}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "history.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestClone_Independent(t *testing.T) {
	orig := Store{"k": {Threshold: 50, AlertedAt: baseTime}}
	cp := orig.Clone()
	cp["k"] = Entry{Threshold: 75, AlertedAt: baseTime}
	cp["extra"] = Entry{Threshold: 10, AlertedAt: baseTime}

	if orig["k"].Threshold != 50 {
		t.Error("mutating clone changed original entry")
	}
	if _, ok := orig["extra"]; ok {
		t.Error("adding to clone changed original")
	}
}
