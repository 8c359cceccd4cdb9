package operations

import (
	"context"

	"github.com/kebairia/borgwatch/internal/notify"
	"github.com/kebairia/borgwatch/internal/report"
	"github.com/kebairia/borgwatch/internal/repo"
)

// NotifyFromReport is the consumer pass: reload the persisted report,
// reconstruct the repositories' health state without talking to borg,
// and run the notification cycle. The shared dedupe ledger keeps this
// pass from re-alerting what the scan pass already alerted on.
func (m *Manager) NotifyFromReport(ctx context.Context) error {
	snap, err := report.Load(m.cfg.Reporter.ReportPath)
	if err != nil {
		return err
	}
	m.log.Info("loaded report snapshot", "timestamp", snap.Timestamp, "repos", len(snap.Repos))

	repos := snap.Restore(func(name string) (*repo.Repository, bool) {
		rc, ok := m.cfg.Repos[name]
		if !ok {
			return nil, false
		}
		return m.buildRepo(ctx, name, rc), true
	}, m.log)

	engine := notify.NewEngine(&m.cfg, m.log)
	engine.Collect(repos)
	engine.Notify()
	return nil
}

// NotifyFromConfig loads the configuration and runs the consumer pass.
func NotifyFromConfig(ctx context.Context, configPath string) error {
	m, err := NewManager(ctx, configPath)
	if err != nil {
		return err
	}
	return m.NotifyFromReport(ctx)
}
