package repo

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kebairia/borgwatch/internal/logger"
)

// Status is the health classification parsed out of a run log.
type Status string

const (
	StatusSuccess Status = "success"
	StatusInfo    Status = "info"
	StatusWarning Status = "warning"
	StatusDanger  Status = "danger"
)

const (
	// Terminal line marker and return-code prefix in borg run logs.
	statusStart  = "terminating with"
	statusEnd    = "rc "
	archiveStart = "Archive name:"

	// Only the final bytes of a log are scanned; the terminal status line
	// is assumed shorter than this window.
	maxTailBytes = 100
)

// RunLog is the parsed evidence of one backup run, extracted from the
// tail of its log file. Immutable after construction.
type RunLog struct {
	Name        string     `json:"name"`
	FullPath    string     `json:"fullpath"`
	Timestamp   *time.Time `json:"datetime"`
	Status      Status     `json:"status"`
	ArchiveName string     `json:"archive"`
}

func (l *RunLog) String() string {
	ts := ""
	if l.Timestamp != nil {
		ts = l.Timestamp.Format(time.RFC3339)
	}
	return l.Name + "[" + ts + "=" + string(l.Status) + "][" + l.ArchiveName + "]"
}

// ParseRunLog reads the final bytes of the log file at path and extracts
// run status, run timestamp and archive name. This is a heuristic
// best-effort parse: an unreadable file or a log with no recognizable
// markers yields the fail-closed default (danger, no timestamp, no
// archive), never an error.
func ParseRunLog(path string, log logger.Logger) *RunLog {
	rl := &RunLog{
		Name:     filepath.Base(path),
		FullPath: path,
		Status:   StatusDanger,
	}

	lines, err := tailLines(path)
	if err != nil {
		log.Error("unable to read log file", "path", path, "error", err)
		return rl
	}
	rl.parseLines(lines, log)
	return rl
}

// tailLines returns the lines contained in the final maxTailBytes of the
// file, latest last.
func tailLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	off := end - maxTailBytes
	if off < 0 {
		off = 0
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}

// parseLines scans lines in reverse, latest first, and stops as soon as
// both a timestamp and an archive name have been found.
func (l *RunLog) parseLines(lines []string, log logger.Logger) {
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimRight(lines[i], "\n")

		// A well-formed log line splits into "date time level msg".
		tokens := strings.SplitN(line, " ", 4)
		if len(tokens) >= 4 {
			msg := tokens[3]
			if strings.HasPrefix(msg, statusStart) {
				if ts, err := time.Parse("2006-01-02T15:04:05", tokens[0]+"T"+tokens[1]); err == nil {
					l.Timestamp = &ts
				} else {
					log.Error("unable to parse log line timestamp", "line", line, "error", err)
				}
				switch {
				case strings.HasSuffix(msg, statusEnd+"0"):
					l.Status = StatusSuccess
				case strings.HasSuffix(msg, statusEnd+"1"):
					l.Status = StatusWarning
				}
			}
		} else if strings.HasPrefix(line, archiveStart) {
			if fields := strings.Split(line, " "); len(fields) >= 3 {
				l.ArchiveName = fields[2]
			}
		}

		if l.Timestamp != nil && l.ArchiveName != "" {
			break
		}
	}
}
