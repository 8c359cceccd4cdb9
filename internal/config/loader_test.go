package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
reporter:
  report_path: /var/lib/borgwatch/report.json
  borg_path: /usr/local/bin/borg
  dedupe_path: /var/lib/borgwatch/dedupe.json
  logs_basedir: /srv/logs
  repos_basedir: /srv/repos
  compress_report: true
  discord:
    webhook: https://discord.example/webhook
    webhook_user: borgwatch
repos:
  backup1:
    repo_path: backup1
    log_path: backup1
    repo_pwd: hunter2
    script: nightly.sh
  backup2:
    repo_path: sshfs://host:/repos/backup2
    log_path: sshfs://host:/logs/backup2
    repo_pwd_vault: secret/data/borg/backup2
`)

	var cfg Config
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, "/var/lib/borgwatch/report.json", cfg.Reporter.ReportPath)
	assert.Equal(t, "/usr/local/bin/borg", cfg.Reporter.BorgPath)
	assert.True(t, cfg.Reporter.CompressReport)
	assert.True(t, cfg.DiscordEnabled())
	assert.Equal(t, DefaultAlarmMessage, cfg.Reporter.Discord.Message)

	require.Len(t, cfg.Repos, 2)
	assert.Equal(t, "hunter2", cfg.Repos["backup1"].RepoPwd)
	assert.Equal(t, "nightly.sh", cfg.Repos["backup1"].Script)
	assert.Equal(t, "secret/data/borg/backup2", cfg.Repos["backup2"].RepoPwdVault)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
repos:
  backup1:
    repo_path: backup1
    log_path: backup1
`)

	var cfg Config
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, DefaultReportPath, cfg.Reporter.ReportPath)
	assert.Equal(t, DefaultBorgPath, cfg.Reporter.BorgPath)
	assert.Equal(t, DefaultDedupePath, cfg.Reporter.DedupePath)
	assert.Equal(t, DefaultLogsBaseDir, cfg.Reporter.LogsBaseDir)
	assert.Equal(t, DefaultReposBaseDir, cfg.Reporter.ReposBaseDir)
	assert.False(t, cfg.DiscordEnabled())
}

func TestLoad_MissingRepoPathIsFatal(t *testing.T) {
	path := writeConfig(t, `
repos:
  backup1:
    log_path: backup1
`)

	var cfg Config
	err := cfg.Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidateConfig))
}

func TestLoad_MissingLogPathIsFatal(t *testing.T) {
	path := writeConfig(t, `
repos:
  backup1:
    repo_path: backup1
`)

	var cfg Config
	err := cfg.Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidateConfig))
}

func TestLoad_UnreadableFileIsFatal(t *testing.T) {
	var cfg Config
	err := cfg.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoadConfig))
}

// recordingLogger captures log lines for inspection.
type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) record(msg string, keysAndValues ...any) {
	l.lines = append(l.lines, fmt.Sprintln(append([]any{msg}, keysAndValues...)...))
}

func (l *recordingLogger) Debug(msg string, keysAndValues ...any) { l.record(msg, keysAndValues...) }
func (l *recordingLogger) Info(msg string, keysAndValues ...any)  { l.record(msg, keysAndValues...) }
func (l *recordingLogger) Warn(msg string, keysAndValues ...any)  { l.record(msg, keysAndValues...) }
func (l *recordingLogger) Error(msg string, keysAndValues ...any) { l.record(msg, keysAndValues...) }

func TestDump_NeverLogsCredentials(t *testing.T) {
	path := writeConfig(t, `
reporter:
  report_path: /var/lib/borgwatch/report.json
repos:
  backup1:
    repo_path: backup1
    log_path: backup1
    repo_pwd: hunter2
  backup2:
    repo_path: backup2
    log_path: backup2
    repo_pwd_vault: secret/data/borg/backup2
`)

	var cfg Config
	require.NoError(t, cfg.Load(path))

	log := &recordingLogger{}
	cfg.Dump(log)

	dump := strings.Join(log.lines, "")
	assert.Contains(t, dump, "/var/lib/borgwatch/report.json")
	assert.Contains(t, dump, "backup1")
	assert.NotContains(t, dump, "hunter2")
	assert.NotContains(t, dump, "secret/data/borg/backup2")
}

func TestLoad_IncludeMerge(t *testing.T) {
	dir := t.TempDir()
	include := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(include, []byte(`
repos:
  backup1:
    repo_path: backup1
    log_path: backup1
`), 0o644))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
include:
  - `+include+`
reporter:
  report_path: /tmp/merged.json
`), 0o644))

	var cfg Config
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, "/tmp/merged.json", cfg.Reporter.ReportPath)
	require.Contains(t, cfg.Repos, "backup1")
}
