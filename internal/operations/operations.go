// Package operations wires configuration, the borg client, the log
// source adapters and the notification engine into the two batch passes:
// scan (producer) and notify (consumer).
package operations

import (
	"context"
	"fmt"

	"github.com/kebairia/borgwatch/internal/borg"
	"github.com/kebairia/borgwatch/internal/config"
	"github.com/kebairia/borgwatch/internal/logfs"
	"github.com/kebairia/borgwatch/internal/logger"
	"github.com/kebairia/borgwatch/internal/repo"
	"github.com/kebairia/borgwatch/internal/vault"
)

// Manager holds the dependencies shared by both passes.
type Manager struct {
	cfg         config.Config
	vaultClient *vault.Client
	log         logger.Logger
}

// NewManager loads, parses, and validates the YAML config at configPath.
// A Vault client is initialized only when some repository references a
// Vault-stored passphrase.
func NewManager(ctx context.Context, configPath string) (*Manager, error) {
	var cfg config.Config
	if err := cfg.Load(configPath); err != nil {
		return nil, err
	}

	log := logger.Global()
	cfg.Dump(log)

	var vaultClient *vault.Client
	if needsVault(&cfg) {
		opts := []vault.Option{
			vault.WithAddress(cfg.Vault.Address),
			vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.ApproleName),
		}
		client, err := vault.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("vault client init: %w", err)
		}
		vaultClient = client
	}

	return &Manager{
		cfg:         cfg,
		vaultClient: vaultClient,
		log:         log,
	}, nil
}

func needsVault(cfg *config.Config) bool {
	for _, rc := range cfg.Repos {
		if rc.RepoPwdVault != "" {
			return true
		}
	}
	return false
}

// Config exposes the effective configuration.
func (m *Manager) Config() *config.Config { return &m.cfg }

// buildRepo turns one configuration entry into a Repository shell bound
// to its borg client and log source. Relative paths are resolved against
// the configured base directories.
func (m *Manager) buildRepo(ctx context.Context, name string, rc config.RepoConfig) *repo.Repository {
	repoPath := logfs.ResolvePath(m.cfg.Reporter.ReposBaseDir, rc.RepoPath)
	logsPath := logfs.ResolvePath(m.cfg.Reporter.LogsBaseDir, rc.LogPath)

	passphrase := rc.RepoPwd
	if rc.RepoPwdVault != "" && m.vaultClient != nil {
		pwd, err := m.vaultClient.RepoPassphrase(ctx, rc.RepoPwdVault)
		if err != nil {
			m.log.Error("unable to fetch passphrase from vault", "repo", name, "error", err)
		} else {
			passphrase = pwd
		}
	}

	client := borg.New(m.cfg.Reporter.BorgPath, repoPath, passphrase, borg.WithLogger(m.log))
	fs := logfs.FromPath(logsPath, m.log)
	return repo.New(name, repoPath, logsPath, rc.Script, client, fs, m.log)
}

// BuildRepos constructs shells for every configured repository.
func (m *Manager) BuildRepos(ctx context.Context) []*repo.Repository {
	repos := make([]*repo.Repository, 0, len(m.cfg.Repos))
	for name, rc := range m.cfg.Repos {
		repos = append(repos, m.buildRepo(ctx, name, rc))
	}
	return repos
}
