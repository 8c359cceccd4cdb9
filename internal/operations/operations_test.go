package operations

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/borgwatch/internal/logfs"
	"github.com/kebairia/borgwatch/internal/logger"
	"github.com/kebairia/borgwatch/internal/notify"
	"github.com/kebairia/borgwatch/internal/report"
	"github.com/kebairia/borgwatch/internal/repo"
)

func writeManagerConfig(t *testing.T, dir string) string {
	t.Helper()
	yaml := `
reporter:
  report_path: ` + filepath.Join(dir, "report.json") + `
  dedupe_path: ` + filepath.Join(dir, "dedupe.json") + `
  logs_basedir: ` + filepath.Join(dir, "logs") + `
  repos_basedir: ` + filepath.Join(dir, "repos") + `
repos:
  backup1:
    repo_path: backup1
    log_path: backup1
  backup2:
    repo_path: /abs/backup2
    log_path: sshfs://host:/logs/backup2
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestNewManager_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repos:\n  broken: {}\n"), 0o644))

	_, err := NewManager(context.Background(), path)
	require.Error(t, err)
}

func TestBuildRepos_PathResolution(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(context.Background(), writeManagerConfig(t, dir))
	require.NoError(t, err)

	repos := m.BuildRepos(context.Background())
	require.Len(t, repos, 2)

	byName := map[string]*repo.Repository{}
	for _, r := range repos {
		byName[r.Name] = r
	}

	assert.Equal(t, filepath.Join(dir, "repos", "backup1"), byName["backup1"].RepoPath)
	assert.Equal(t, filepath.Join(dir, "logs", "backup1"), byName["backup1"].LogsPath)
	// Absolute and remote locations pass through unresolved.
	assert.Equal(t, "/abs/backup2", byName["backup2"].RepoPath)
	assert.Equal(t, "sshfs://host:/logs/backup2", byName["backup2"].LogsPath)
}

func TestScanAll_ProducerPass(t *testing.T) {
	dir := t.TempDir()

	// Stand-in borg binary: every invocation answers with empty JSON, so
	// repo info and archive lists degrade to zero values.
	borgBin := filepath.Join(dir, "borg")
	require.NoError(t, os.WriteFile(borgBin, []byte("#!/bin/sh\necho '{}'\n"), 0o755))

	// One healthy-path repo with a failed run log, one repo whose remote
	// log source cannot be mounted.
	logsDir := filepath.Join(dir, "logs", "good")
	require.NoError(t, os.MkdirAll(logsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logsDir, "good.log"),
		[]byte("2024-02-01 04:00:00 ERROR terminating with error status, rc 2\n"), 0o644))

	yaml := `
reporter:
  report_path: ` + filepath.Join(dir, "report.json") + `
  dedupe_path: ` + filepath.Join(dir, "dedupe.json") + `
  borg_path: ` + borgBin + `
  logs_basedir: ` + filepath.Join(dir, "logs") + `
  repos_basedir: ` + filepath.Join(dir, "repos") + `
repos:
  good:
    repo_path: good
    log_path: good
  bad:
    repo_path: bad
    log_path: sshfs://nonexistent.invalid:/logs/bad
`
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))

	m, err := NewManager(context.Background(), configPath)
	require.NoError(t, err)
	require.NoError(t, m.ScanAll(context.Background()))

	// The unmountable repo did not abort the pass: the sibling was
	// scanned, its failing run raised an alarm, and the report landed.
	runAt := time.Date(2024, 2, 1, 4, 0, 0, 0, time.UTC)
	ledger := notify.LoadLedger(filepath.Join(dir, "dedupe.json"), logger.Nop())
	assert.True(t, ledger.AlreadyAlerted("good", runAt))

	snap, err := report.Load(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	require.Contains(t, snap.Repos, "good")
	require.Contains(t, snap.Repos, "bad")

	repos := snap.Restore(func(name string) (*repo.Repository, bool) {
		return repo.New(name, "", "", "", nil,
			logfs.NewLocalFS(t.TempDir(), logger.Nop()), logger.Nop()), true
	}, logger.Nop())
	byName := map[string]*repo.Repository{}
	for _, r := range repos {
		byName[r.Name] = r
	}

	healthy := byName["good"].Healthy()
	require.NotNil(t, healthy)
	assert.False(t, *healthy)
	require.NotNil(t, byName["good"].LastRun)
	assert.True(t, byName["good"].LastRun.Timestamp.Equal(runAt))

	// The failed repo is persisted as unscanned, not dropped.
	assert.Nil(t, byName["bad"].Healthy())
}

func TestNotifyFromReport_ConsumerPass(t *testing.T) {
	dir := t.TempDir()
	configPath := writeManagerConfig(t, dir)

	// A previous scan pass left a report with one failing repository and
	// one that is no longer configured.
	runAt := time.Date(2024, 2, 1, 4, 0, 0, 0, time.UTC)
	failing := repo.New("backup1", "/repos/backup1", "/logs/backup1", "",
		nil, logfs.NewLocalFS(t.TempDir(), logger.Nop()), logger.Nop())
	failing.LastRun = &repo.RunLog{Name: "backup1.log", Status: repo.StatusDanger, Timestamp: &runAt}

	gone := repo.New("decommissioned", "/repos/gone", "/logs/gone", "",
		nil, logfs.NewLocalFS(t.TempDir(), logger.Nop()), logger.Nop())

	snap, err := report.New(time.Now(), []*repo.Repository{failing, gone})
	require.NoError(t, err)
	require.NoError(t, snap.Export(filepath.Join(dir, "report.json"), false, logger.Nop()))

	m, err := NewManager(context.Background(), configPath)
	require.NoError(t, err)
	require.NoError(t, m.NotifyFromReport(context.Background()))

	// The alarm reached the dedupe ledger without any borg invocation.
	ledger := notify.LoadLedger(filepath.Join(dir, "dedupe.json"), logger.Nop())
	assert.True(t, ledger.AlreadyAlerted("backup1", runAt))
}

func TestNotifyFromReport_MissingReport(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(context.Background(), writeManagerConfig(t, dir))
	require.NoError(t, err)

	require.Error(t, m.NotifyFromReport(context.Background()))
}
