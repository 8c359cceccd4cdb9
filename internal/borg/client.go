package borg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kebairia/borgwatch/internal/logger"
)

// ErrTimeout is the cancellation cause when a borg invocation exceeds the
// configured timeout.
var ErrTimeout = fmt.Errorf("borg command timed out")

const defaultTimeout = 10 * time.Minute

// RepoInfo is the repository-level aggregate extracted from `borg info`.
// Zero-valued when the tool output was missing or malformed.
type RepoInfo struct {
	OriginalSize     int64
	CompressedSize   int64
	DeduplicatedSize int64
	Chunks           int64
}

// ArchiveInfo is the per-archive detail extracted from `borg info repo::archive`.
type ArchiveInfo struct {
	Start            *time.Time
	End              *time.Time
	Duration         float64 // seconds
	Comment          string
	NFiles           int64
	OriginalSize     int64
	CompressedSize   int64
	DeduplicatedSize int64
}

// Option overrides a Client default.
type Option func(*Client)

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Client wraps command line calls to the borg executable for one repository.
// The passphrase travels via BORG_PASSPHRASE, never on the command line.
type Client struct {
	binPath    string
	repo       string
	passphrase string
	timeout    time.Duration
	log        logger.Logger
}

// New returns a Client for the given repository path.
func New(binPath, repoPath, passphrase string, opts ...Option) *Client {
	c := &Client{
		binPath:    binPath,
		repo:       repoPath,
		passphrase: passphrase,
		timeout:    defaultTimeout,
		log:        logger.Global(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run executes borg with the given arguments and returns its stdout.
// Failures are logged and reported as nil output so callers degrade to
// zero values instead of aborting a scan.
func (c *Client) run(ctx context.Context, args ...string) []byte {
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, ErrTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binPath, args...)
	cmd.Env = os.Environ()
	if c.passphrase != "" {
		cmd.Env = append(cmd.Env, "BORG_PASSPHRASE="+c.passphrase)
	}

	c.log.Debug("executing borg", "args", args)
	out, err := cmd.Output()
	if err != nil {
		c.log.Error("borg command failed", "args", args, "error", err)
		return nil
	}
	return out
}

// infoOutput mirrors the subset of `borg info --json` we consume.
type infoOutput struct {
	Archives []struct {
		Start    string  `json:"start"`
		End      string  `json:"end"`
		Duration float64 `json:"duration"`
		Comment  string  `json:"comment"`
		Stats    struct {
			OriginalSize     int64 `json:"original_size"`
			CompressedSize   int64 `json:"compressed_size"`
			DeduplicatedSize int64 `json:"deduplicated_size"`
			NFiles           int64 `json:"nfiles"`
		} `json:"stats"`
	} `json:"archives"`
	Cache struct {
		Stats struct {
			TotalSize   int64 `json:"total_size"`
			TotalCSize  int64 `json:"total_csize"`
			UniqueCSize int64 `json:"unique_csize"`
			TotalChunks int64 `json:"total_chunks"`
		} `json:"stats"`
	} `json:"cache"`
}

type listOutput struct {
	Archives []struct {
		Archive string `json:"archive"`
	} `json:"archives"`
}

// Info fetches repository-level aggregate stats. Malformed or absent
// output yields a zeroed RepoInfo, never an error.
func (c *Client) Info(ctx context.Context) RepoInfo {
	c.log.Info("fetching repo info", "repo", c.repo)
	out := c.run(ctx, "info", "--json", c.repo)
	if out == nil {
		return RepoInfo{}
	}

	var parsed infoOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		c.log.Error("invalid borg info output", "repo", c.repo, "error", err)
		return RepoInfo{}
	}
	return RepoInfo{
		OriginalSize:     parsed.Cache.Stats.TotalSize,
		CompressedSize:   parsed.Cache.Stats.TotalCSize,
		DeduplicatedSize: parsed.Cache.Stats.UniqueCSize,
		Chunks:           parsed.Cache.Stats.TotalChunks,
	}
}

// ArchiveInfo fetches detail for one archive. The second return is false
// when the tool output was missing or malformed.
func (c *Client) ArchiveInfo(ctx context.Context, archive string) (ArchiveInfo, bool) {
	target := fmt.Sprintf("%s::%s", c.repo, archive)
	c.log.Info("fetching archive info", "archive", target)
	out := c.run(ctx, "info", "--json", target)
	if out == nil {
		return ArchiveInfo{}, false
	}

	var parsed infoOutput
	if err := json.Unmarshal(out, &parsed); err != nil || len(parsed.Archives) == 0 {
		c.log.Error("invalid borg archive info output", "archive", target, "error", err)
		return ArchiveInfo{}, false
	}

	arch := parsed.Archives[0]
	info := ArchiveInfo{
		Start:            ParseTime(arch.Start),
		End:              ParseTime(arch.End),
		Duration:         arch.Duration,
		Comment:          arch.Comment,
		NFiles:           arch.Stats.NFiles,
		OriginalSize:     arch.Stats.OriginalSize,
		CompressedSize:   arch.Stats.CompressedSize,
		DeduplicatedSize: arch.Stats.DeduplicatedSize,
	}
	return info, true
}

// List fetches the archive names of the repository. Malformed or absent
// output yields an empty list.
func (c *Client) List(ctx context.Context) []string {
	c.log.Info("fetching archive list", "repo", c.repo)
	out := c.run(ctx, "list", "--json", c.repo)
	if out == nil {
		return nil
	}

	var parsed listOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		c.log.Error("invalid borg list output", "repo", c.repo, "error", err)
		return nil
	}

	names := make([]string, 0, len(parsed.Archives))
	for _, a := range parsed.Archives {
		names = append(names, a.Archive)
	}
	return names
}

// ParseTime parses borg's archive timestamps ("2024-01-01T02:00:00.000000",
// fractional part optional). Returns nil when the value does not parse.
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
