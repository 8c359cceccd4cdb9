// Package notify collects unhealthy repositories, suppresses alerts
// already raised for the same failing run, and dispatches one batched
// message through the first enabled notification channel.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/kebairia/borgwatch/internal/config"
	"github.com/kebairia/borgwatch/internal/logger"
)

// Notifier is one notification channel. The channel owns delivery
// failure handling; the engine does not retry.
type Notifier interface {
	Enabled() bool
	Send(message string) error
}

// Select returns the first enabled channel in priority order, falling
// back to the local-log channel which is always enabled.
func Select(cfg *config.Config, log logger.Logger) Notifier {
	candidates := []Notifier{
		NewDiscordNotifier(cfg.Reporter.Discord, log),
	}
	for _, n := range candidates {
		if n.Enabled() {
			return n
		}
	}
	return NewLogNotifier(log)
}

// LogNotifier writes alerts to the local log. Always enabled; the
// fallback channel of last resort.
type LogNotifier struct {
	log logger.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Enabled() bool { return true }

func (n *LogNotifier) Send(message string) error {
	n.log.Warn(message)
	return nil
}

// DiscordNotifier delivers alerts to a Discord webhook. Enabled when a
// webhook URL is configured. Transient HTTP failures are retried by the
// underlying client.
type DiscordNotifier struct {
	webhook string
	user    string
	client  *retryablehttp.Client
	log     logger.Logger
}

var _ Notifier = (*DiscordNotifier)(nil)

func NewDiscordNotifier(cfg *config.DiscordConfig, log logger.Logger) *DiscordNotifier {
	n := &DiscordNotifier{log: log}
	if cfg != nil && cfg.Webhook != "" {
		n.webhook = cfg.Webhook
		n.user = cfg.WebhookUser
		n.client = retryablehttp.NewClient()
		n.client.Logger = nil
	}
	return n
}

func (n *DiscordNotifier) Enabled() bool { return n.webhook != "" }

func (n *DiscordNotifier) Send(message string) error {
	payload := map[string]string{"content": message}
	if n.user != "" {
		payload["username"] = n.user
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	resp, err := n.client.Post(n.webhook, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
