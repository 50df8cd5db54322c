package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Entry records the last alerted state for one condition. Exactly one of
// Threshold (quota/capacity rules) or Signature (replication rules) is set.
type Entry struct {
	// Threshold is the highest usage threshold alerted on, in percent.
	Threshold float64 `json:"threshold,omitempty"`

	// Signature identifies the replication error that was alerted on.
	Signature string `json:"signature,omitempty"`

	// AlertedAt is when the alert for this state was sent.
	AlertedAt time.Time `json:"alerted_at"`
}

// Store maps a condition key to its last alerted state. An entry exists
// if and only if the condition was alerting as of the last run. The
// evaluation engine owns the mapping and replaces it wholesale each run.
type Store map[string]Entry

// Clone returns a shallow copy of the store. Entries are value types, so
// the copy is safe to mutate independently.
func (s Store) Clone() Store {
	out := make(Store, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Load reads the history store at path. A missing, unreadable, or corrupt
// file is recovered as an empty store: every currently alerting condition
// then re-alerts once, which beats silently dropping alerts.
func Load(path string) Store {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("history: no history file, starting empty", "path", path)
		} else {
			slog.Warn("history: unreadable, starting empty", "path", path, "err", err)
		}
		return Store{}
	}

	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Warn("history: corrupt, starting empty", "path", path, "err", err)
		return Store{}
	}
	if s == nil {
		s = Store{}
	}
	return s
}

// Save atomically replaces the history file at path with s. It writes to
// a temporary file in the same directory and renames it over the old
// file, so a crash mid-write never leaves a partial store for the next
// run. A Save error is fatal to the caller: alerts were already sent, and
// losing the updated history risks duplicates next run.
func Save(path string, s Store) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("history: create temp in %q: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: write %q: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: sync %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: close %q: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: replace %q: %w", path, err)
	}
	return nil
}
