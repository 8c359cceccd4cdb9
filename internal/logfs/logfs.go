// Package logfs abstracts the filesystem holding backup run logs, either
// local or reachable through an sshfs mount.
package logfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kebairia/borgwatch/internal/logger"
)

// LogFS is the log-source adapter consumed by the repository scanner.
type LogFS interface {
	// Mount makes the log files reachable. No-op for local sources.
	Mount() error
	// Unmount releases whatever Mount acquired.
	Unmount() error
	// List returns absolute paths of the log files currently visible.
	List() ([]string, error)
	// Delete removes one log file. Missing files are not an error.
	Delete(path string) error
	// Location returns the configured source location string.
	Location() string
}

// driver pairs a path matcher with a factory, tried in priority order.
type driver struct {
	matches func(string) bool
	open    func(string, logger.Logger) LogFS
}

var drivers = []driver{
	{matchesSSHFS, func(p string, log logger.Logger) LogFS { return NewSSHFS(p, log) }},
	{func(string) bool { return true }, func(p string, log logger.Logger) LogFS { return NewLocalFS(p, log) }},
}

// FromPath resolves a log-source location string to an adapter by trying
// each driver in priority order.
func FromPath(path string, log logger.Logger) LogFS {
	for _, d := range drivers {
		if d.matches(path) {
			return d.open(path, log)
		}
	}
	return nil
}

// ResolvePath joins partial onto base unless partial is absolute or a
// remote location, which pass through unchanged.
func ResolvePath(base, partial string) string {
	if strings.HasPrefix(partial, "/") ||
		strings.HasPrefix(partial, "ssh://") ||
		matchesSSHFS(partial) {
		return partial
	}
	if base != "" && !strings.HasSuffix(base, "/") {
		return base + "/" + partial
	}
	return base + partial
}

// listDir returns the absolute paths of regular files under dir. Read
// errors are logged and yield an empty list, not a fault.
func listDir(dir string, log logger.Logger) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error("unable to read logs", "dir", dir, "error", err)
		return nil, nil
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
