// Package report persists the consolidated scan snapshot, decoupling the
// scan pass that produces it from the notify pass that consumes it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kebairia/borgwatch/internal/logger"
	"github.com/kebairia/borgwatch/internal/repo"
)

// ZstdSuffix marks a compressed snapshot file.
const ZstdSuffix = ".zst"

// Snapshot is the top-level persisted artifact: a capture timestamp plus
// every repository's serialized state keyed by name. Repositories stay
// raw so one malformed entry degrades only itself on reload.
type Snapshot struct {
	Timestamp time.Time                  `json:"timestamp"`
	Repos     map[string]json.RawMessage `json:"repos"`
}

// New builds a Snapshot from freshly scanned repositories.
func New(ts time.Time, repos []*repo.Repository) (*Snapshot, error) {
	snap := &Snapshot{
		Timestamp: ts,
		Repos:     make(map[string]json.RawMessage, len(repos)),
	}
	for _, r := range repos {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal repo %q: %w", r.Name, err)
		}
		snap.Repos[r.Name] = data
	}
	return snap, nil
}

// Export writes the snapshot to path, atomically: the JSON is written to
// a sibling temp file and renamed over the target, so a concurrent reader
// never observes a half-written file. With compress set the snapshot is
// zstd-compressed and path gains the .zst suffix.
func (s *Snapshot) Export(path string, compress bool, log logger.Logger) error {
	if compress && !strings.HasSuffix(path, ZstdSuffix) {
		path += ZstdSuffix
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.write(tmp, compress); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename report into place: %w", err)
	}

	log.Info("backup report exported", "path", path, "repos", len(s.Repos))
	return nil
}

func (s *Snapshot) write(w io.Writer, compress bool) error {
	if compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(zw).Encode(s); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return json.NewEncoder(w).Encode(s)
}

// Load reads a snapshot back from path, transparently handling the
// compressed form: a .zst path (or a missing plain path with a .zst
// sibling) is decompressed on the fly.
func Load(path string) (*Snapshot, error) {
	if !strings.HasSuffix(path, ZstdSuffix) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if _, zerr := os.Stat(path + ZstdSuffix); zerr == nil {
				path += ZstdSuffix
			}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report %q: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ZstdSuffix) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open compressed report %q: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode report %q: %w", path, err)
	}
	return &snap, nil
}

// Restore reconstructs repositories from the snapshot. mkShell looks up a
// name in the live configuration and returns a fresh Repository shell, or
// false for a name no longer configured, which is dropped with a warning:
// configuration decides which repositories exist, the report only caches
// their last known state. A malformed persisted entry degrades that one
// repository to an unscanned shell.
func (s *Snapshot) Restore(mkShell func(name string) (*repo.Repository, bool), log logger.Logger) []*repo.Repository {
	repos := make([]*repo.Repository, 0, len(s.Repos))
	for name, raw := range s.Repos {
		shell, ok := mkShell(name)
		if !ok {
			log.Warn("repo in report but not in configuration, dropping", "name", name)
			continue
		}
		if err := json.Unmarshal(raw, shell); err != nil {
			log.Warn("invalid persisted state for repo, treating as unscanned", "name", name, "error", err)
			// Fields decoded before the error must not stick.
			shell, _ = mkShell(name)
		}
		repos = append(repos, shell)
	}
	return repos
}
