package repo

import (
	"context"
	"encoding/json"

	"github.com/kebairia/borgwatch/internal/borg"
	"github.com/kebairia/borgwatch/internal/logfs"
	"github.com/kebairia/borgwatch/internal/logger"
)

// BorgClient is the surface of the archiving tool the scanner needs.
// Satisfied by *borg.Client.
type BorgClient interface {
	Info(ctx context.Context) borg.RepoInfo
	List(ctx context.Context) []string
	ArchiveInfo(ctx context.Context, archive string) (borg.ArchiveInfo, bool)
}

var _ BorgClient = (*borg.Client)(nil)

// Repository is one monitored backup target. It is rebuilt from scratch
// on every scan pass, or reconstructed from the persisted report on a
// notify pass.
type Repository struct {
	Name     string `json:"name"`
	RepoPath string `json:"repopath"`
	LogsPath string `json:"logspath"`
	Script   string `json:"script"`

	Sizes      SizeStats           `json:"sizes"`
	Chunks     int64               `json:"chunks"`
	Archives   map[string]*Archive `json:"archives"`
	Logs       map[string]*RunLog  `json:"logfiles"`
	LastRun    *RunLog             `json:"last_run"`
	LastBackup *Archive            `json:"last_backup"`

	client BorgClient
	fs     logfs.LogFS
	log    logger.Logger
}

// New returns a Repository shell bound to its borg client and log source.
// Data fields stay empty until Scan or a report reload populates them.
func New(name, repoPath, logsPath, script string, client BorgClient, fs logfs.LogFS, log logger.Logger) *Repository {
	return &Repository{
		Name:     name,
		RepoPath: repoPath,
		LogsPath: logsPath,
		Script:   script,
		Archives: make(map[string]*Archive),
		Logs:     make(map[string]*RunLog),
		client:   client,
		fs:       fs,
		log:      log,
	}
}

// Scan rebuilds the repository state: mount the log source, fetch repo
// info and the archive list, correlate run logs against the listed
// archives, fetch per-archive detail, unmount. Routine "no data"
// conditions degrade to empty results; only an unusable log source mount
// is reported as an error.
func (r *Repository) Scan(ctx context.Context) error {
	r.log.Info("scanning repo", "name", r.Name, "path", r.RepoPath)

	if err := r.fs.Mount(); err != nil {
		return err
	}
	defer func() {
		if err := r.fs.Unmount(); err != nil {
			r.log.Error("unable to unmount log source", "name", r.Name, "error", err)
		}
	}()

	info := r.client.Info(ctx)
	r.Sizes = SizeStats{
		OriginalSize:     info.OriginalSize,
		CompressedSize:   info.CompressedSize,
		DeduplicatedSize: info.DeduplicatedSize,
	}
	r.Chunks = info.Chunks

	// Archive names are the correlation key for run logs, so the listing
	// happens before logs are scanned. Duplicate names merge into one
	// record.
	r.Archives = make(map[string]*Archive)
	for _, name := range r.client.List(ctx) {
		r.Archives[name] = &Archive{Name: name}
	}

	r.scanLogs()

	r.LastBackup = nil
	for _, arch := range r.Archives {
		r.log.Info("scanning archive", "archive", arch.Name)
		detail, ok := r.client.ArchiveInfo(ctx, arch.Name)
		if !ok {
			continue
		}
		arch.Start = detail.Start
		arch.End = detail.End
		arch.Duration = detail.Duration
		arch.Comment = detail.Comment
		arch.NFiles = detail.NFiles
		arch.Sizes = SizeStats{
			OriginalSize:     detail.OriginalSize,
			CompressedSize:   detail.CompressedSize,
			DeduplicatedSize: detail.DeduplicatedSize,
		}
		if arch.Start != nil && (r.LastBackup == nil || r.LastBackup.Start == nil || arch.Start.After(*r.LastBackup.Start)) {
			r.LastBackup = arch
		}
	}
	return nil
}

// scanLogs parses every log file at the log source and correlates each
// against the listed archives. A log naming a pruned archive is deleted
// from the log source; a log with no archive name is retained for manual
// inspection, most likely a failed run.
func (r *Repository) scanLogs() {
	r.log.Info("scanning logs", "location", r.fs.Location())
	r.Logs = make(map[string]*RunLog)
	var lastRun *RunLog

	files, err := r.fs.List()
	if err != nil {
		r.log.Error("unable to list log files", "location", r.fs.Location(), "error", err)
		files = nil
	}
	for _, path := range files {
		rl := ParseRunLog(path, r.log)
		if rl.ArchiveName != "" {
			if arch, ok := r.Archives[rl.ArchiveName]; ok {
				arch.Log = rl
				r.Logs[rl.Name] = rl
			} else if err := r.fs.Delete(path); err != nil {
				r.log.Error("unable to delete orphaned log", "path", path, "error", err)
			}
		} else {
			r.Logs[rl.Name] = rl
		}

		if rl.Timestamp != nil && (lastRun == nil || lastRun.Timestamp == nil || rl.Timestamp.After(*lastRun.Timestamp)) {
			lastRun = rl
		}
	}
	r.LastRun = lastRun
}

// Healthy returns the repository health verdict: true when the most
// recent run ended in success or info, false when it ended in warning or
// danger, nil when no run log exists at all.
func (r *Repository) Healthy() *bool {
	if r.LastRun == nil {
		return nil
	}
	healthy := r.LastRun.Status == StatusSuccess || r.LastRun.Status == StatusInfo
	return &healthy
}

// MarshalJSON adds the derived status field to the serialized form.
func (r *Repository) MarshalJSON() ([]byte, error) {
	type alias Repository
	return json.Marshal(&struct {
		*alias
		Status *bool `json:"status"`
	}{(*alias)(r), r.Healthy()})
}

// UnmarshalJSON populates the data fields from a persisted form. The
// persisted status field is ignored; the verdict is recomputed from
// last_run.
func (r *Repository) UnmarshalJSON(data []byte) error {
	type alias Repository
	return json.Unmarshal(data, (*alias)(r))
}
