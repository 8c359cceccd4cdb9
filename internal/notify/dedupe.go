package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kebairia/borgwatch/internal/logger"
)

// Ledger is the persisted dedupe state: repository name to the epoch
// seconds of the last failing run alerted on. It only ever mirrors the
// current alarm set; entries for recovered repositories are dropped on
// the next save.
type Ledger struct {
	path    string
	entries map[string]int64
	log     logger.Logger
}

// LoadLedger reads the ledger at path. A missing or malformed file
// yields an empty ledger with a warning, never an error: dedupe state is
// advisory.
func LoadLedger(path string, log logger.Logger) *Ledger {
	l := &Ledger{
		path:    path,
		entries: make(map[string]int64),
		log:     log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("unable to read dedupe ledger", "path", path, "error", err)
		}
		return l
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		log.Warn("invalid dedupe ledger, starting empty", "path", path, "error", err)
		l.entries = make(map[string]int64)
	}
	return l
}

// AlreadyAlerted reports whether the given run timestamp is exactly the
// one already alerted on for this repository. A later failing run alerts
// again.
func (l *Ledger) AlreadyAlerted(name string, ts time.Time) bool {
	prev, ok := l.entries[name]
	return ok && prev == ts.Unix()
}

// Replace swaps the ledger contents for the current alarm set.
func (l *Ledger) Replace(entries map[string]int64) {
	l.entries = entries
}

// Save rewrites the ledger file.
func (l *Ledger) Save() error {
	data, err := json.Marshal(l.entries)
	if err != nil {
		return fmt.Errorf("encode dedupe ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write dedupe ledger %q: %w", l.path, err)
	}
	return nil
}
