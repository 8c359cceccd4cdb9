package operations

import (
	"context"
	"time"

	"github.com/kebairia/borgwatch/internal/notify"
	"github.com/kebairia/borgwatch/internal/report"
)

// ScanAll is the producer pass: scan every configured repository
// sequentially, run the notification cycle over the fresh results, then
// export the report snapshot. One repository's scan failure never aborts
// the remaining scans; a failed export is a warning, the scan results
// were already alerted on.
func (m *Manager) ScanAll(ctx context.Context) error {
	m.log.Info("starting repository scan pass", "repos", len(m.cfg.Repos))

	repos := m.BuildRepos(ctx)
	for _, r := range repos {
		if err := r.Scan(ctx); err != nil {
			m.log.Error("unable to scan repo", "name", r.Name, "error", err)
		}
	}

	engine := notify.NewEngine(&m.cfg, m.log)
	engine.Collect(repos)
	engine.Notify()

	snap, err := report.New(time.Now(), repos)
	if err != nil {
		return err
	}
	if err := snap.Export(m.cfg.Reporter.ReportPath, m.cfg.Reporter.CompressReport, m.log); err != nil {
		m.log.Warn("unable to export report", "error", err)
	}
	return nil
}

// ScanAllFromConfig loads the configuration and runs the producer pass.
func ScanAllFromConfig(ctx context.Context, configPath string) error {
	m, err := NewManager(ctx, configPath)
	if err != nil {
		return err
	}
	return m.ScanAll(ctx)
}
