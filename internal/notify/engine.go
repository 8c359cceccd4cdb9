package notify

import (
	"fmt"
	"time"

	"github.com/kebairia/borgwatch/internal/config"
	"github.com/kebairia/borgwatch/internal/logger"
	"github.com/kebairia/borgwatch/internal/repo"
)

// Engine runs one notification cycle:
// collect -> dedupe -> format -> dispatch -> persist-ledger.
type Engine struct {
	notifier    Notifier
	ledgerPath  string
	messageTmpl string
	repoTmpl    string
	log         logger.Logger
	alarms      []*repo.Repository
}

// EngineOption overrides an Engine default.
type EngineOption func(*Engine)

// WithNotifier overrides the channel selected from the configuration.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// NewEngine builds an Engine from the reporter configuration, selecting
// the notification channel by priority.
func NewEngine(cfg *config.Config, log logger.Logger, opts ...EngineOption) *Engine {
	messageTmpl := config.DefaultAlarmMessage
	repoTmpl := config.DefaultAlarmMessageRepo
	if d := cfg.Reporter.Discord; d != nil {
		if d.Message != "" {
			messageTmpl = d.Message
		}
		if d.MessageRepo != "" {
			repoTmpl = d.MessageRepo
		}
	}
	e := &Engine{
		notifier:    Select(cfg, log),
		ledgerPath:  cfg.Reporter.DedupePath,
		messageTmpl: messageTmpl,
		repoTmpl:    repoTmpl,
		log:         log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Collect adds every unhealthy repository to this cycle's alarm set. A
// repository with no run log at all has no verdict and raises no alarm.
func (e *Engine) Collect(repos []*repo.Repository) {
	for _, r := range repos {
		if healthy := r.Healthy(); healthy != nil && !*healthy {
			e.AddAlarm(r)
		}
	}
}

// AddAlarm adds one repository to the alarm set.
func (e *Engine) AddAlarm(r *repo.Repository) {
	e.alarms = append(e.alarms, r)
}

// Notify runs the dedupe/format/dispatch/persist steps over the
// collected alarm set and clears it. The ledger is rewritten even when
// nothing was dispatched, so a dispatch failure does not turn into an
// alert storm on the next cycle.
func (e *Engine) Notify() {
	defer func() { e.alarms = nil }()

	ledger := LoadLedger(e.ledgerPath, e.log)

	deduped := make([]*repo.Repository, 0, len(e.alarms))
	for _, r := range e.alarms {
		if r.LastRun != nil && r.LastRun.Timestamp != nil &&
			ledger.AlreadyAlerted(r.Name, *r.LastRun.Timestamp) {
			e.log.Debug("alarm already alerted, suppressing", "name", r.Name)
			continue
		}
		deduped = append(deduped, r)
	}

	if len(deduped) > 0 && e.notifier.Enabled() {
		message := e.buildMessage(deduped)
		if err := e.notifier.Send(message); err != nil {
			e.log.Error("unable to dispatch alert", "error", err)
		}
	}

	// The ledger mirrors the full pre-dedupe alarm set: a repository
	// still failing on an already-alerted run keeps its entry.
	entries := make(map[string]int64, len(e.alarms))
	for _, r := range e.alarms {
		if r.LastRun != nil && r.LastRun.Timestamp != nil {
			entries[r.Name] = r.LastRun.Timestamp.Unix()
		}
	}
	ledger.Replace(entries)
	if err := ledger.Save(); err != nil {
		e.log.Warn("unable to persist dedupe ledger", "error", err)
	}
}

// buildMessage renders the batched alert: one overall template around a
// per-repository line each. Absent fields render as empty strings.
func (e *Engine) buildMessage(alarms []*repo.Repository) string {
	content := ""
	for _, r := range alarms {
		status, ts := "", ""
		if r.LastRun != nil {
			status = string(r.LastRun.Status)
			if r.LastRun.Timestamp != nil {
				ts = r.LastRun.Timestamp.Format(time.RFC3339)
			}
		}
		content += fmt.Sprintf(e.repoTmpl, r.Name, status, ts)
	}
	return fmt.Sprintf(e.messageTmpl, len(alarms), content)
}
