package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/kebairia/borgwatch/internal/logger"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Defaults applied for reporter settings left out of the YAML file.
const (
	DefaultReportPath   = "/tmp/borgwatch.json"
	DefaultBorgPath     = "/usr/bin/borg"
	DefaultDedupePath   = "/tmp/borgwatch_dedupe.json"
	DefaultLogsBaseDir  = "/logs"
	DefaultReposBaseDir = "/repos"

	DefaultAlarmMessage     = "**%d Backups failed**:\n\n%s"
	DefaultAlarmMessageRepo = "- **%s**: Failed with status `%s` on %s\n"
)

// Config represents the top-level YAML configuration file.
type Config struct {
	Include  []string              `mapstructure:"include"  yaml:"include,omitempty"`
	Reporter ReporterConfig        `mapstructure:"reporter" yaml:"reporter"`
	Vault    VaultConfig           `mapstructure:"vault"    yaml:"vault"`
	Repos    map[string]RepoConfig `mapstructure:"repos"    yaml:"repos"`
}

// ReporterConfig contains global reporter options.
type ReporterConfig struct {
	ReportPath     string         `mapstructure:"report_path"     yaml:"report_path,omitempty"`
	BorgPath       string         `mapstructure:"borg_path"       yaml:"borg_path,omitempty"`
	DedupePath     string         `mapstructure:"dedupe_path"     yaml:"dedupe_path,omitempty"`
	LogsBaseDir    string         `mapstructure:"logs_basedir"    yaml:"logs_basedir,omitempty"`
	ReposBaseDir   string         `mapstructure:"repos_basedir"   yaml:"repos_basedir,omitempty"`
	CompressReport bool           `mapstructure:"compress_report" yaml:"compress_report,omitempty"`
	Discord        *DiscordConfig `mapstructure:"discord"         yaml:"discord,omitempty"`
}

// DiscordConfig enables the Discord webhook notifier when Webhook is set.
type DiscordConfig struct {
	Webhook     string `mapstructure:"webhook"        yaml:"webhook"`
	WebhookUser string `mapstructure:"webhook_user"   yaml:"webhook_user,omitempty"`
	Message     string `mapstructure:"message"        yaml:"message,omitempty"`
	MessageRepo string `mapstructure:"message_device" yaml:"message_device,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
type VaultConfig struct {
	Address     string `mapstructure:"address"      yaml:"address,omitempty"`
	RoleID      string `mapstructure:"role_id"      yaml:"role_id,omitempty"`
	ApproleName string `mapstructure:"approle_name" yaml:"approle_name,omitempty"`
}

// RepoConfig describes one monitored backup repository.
type RepoConfig struct {
	RepoPath     string `mapstructure:"repo_path"      yaml:"repo_path"`
	LogPath      string `mapstructure:"log_path"       yaml:"log_path"`
	RepoPwd      string `mapstructure:"repo_pwd"       yaml:"repo_pwd,omitempty"`
	RepoPwdVault string `mapstructure:"repo_pwd_vault" yaml:"repo_pwd_vault,omitempty"`
	Script       string `mapstructure:"script"         yaml:"script,omitempty"`
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, unmarshals into the Config struct, applies
// defaults and validates the result.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	r := &c.Reporter
	if r.ReportPath == "" {
		r.ReportPath = DefaultReportPath
	}
	if r.BorgPath == "" {
		r.BorgPath = DefaultBorgPath
	}
	if r.DedupePath == "" {
		r.DedupePath = DefaultDedupePath
	}
	if r.LogsBaseDir == "" {
		r.LogsBaseDir = DefaultLogsBaseDir
	}
	if r.ReposBaseDir == "" {
		r.ReposBaseDir = DefaultReposBaseDir
	}
	if r.Discord != nil {
		if r.Discord.Message == "" {
			r.Discord.Message = DefaultAlarmMessage
		}
		if r.Discord.MessageRepo == "" {
			r.Discord.MessageRepo = DefaultAlarmMessageRepo
		}
	}
}

// validate rejects repository entries missing required keys. These are
// startup precondition violations, not runtime degradations.
func (c *Config) validate() error {
	for name, repo := range c.Repos {
		if repo.RepoPath == "" {
			return fmt.Errorf("%w: repo %q: repo_path is required", ErrValidateConfig, name)
		}
		if repo.LogPath == "" {
			return fmt.Errorf("%w: repo %q: log_path is required", ErrValidateConfig, name)
		}
	}
	return nil
}

// DiscordEnabled reports whether a usable Discord webhook is configured.
func (c *Config) DiscordEnabled() bool {
	return c.Reporter.Discord != nil && c.Reporter.Discord.Webhook != ""
}

// Dump logs the effective reporter settings at debug level. Credentials
// are never logged; per-repo entries only say where the passphrase comes
// from.
func (c *Config) Dump(log logger.Logger) {
	log.Debug("reporter config",
		"report_path", c.Reporter.ReportPath,
		"borg_path", c.Reporter.BorgPath,
		"dedupe_path", c.Reporter.DedupePath,
		"logs_basedir", c.Reporter.LogsBaseDir,
		"repos_basedir", c.Reporter.ReposBaseDir,
		"compress_report", c.Reporter.CompressReport,
		"discord", c.DiscordEnabled(),
	)
	for name, repo := range c.Repos {
		log.Debug("repo config",
			"name", name,
			"repo_path", repo.RepoPath,
			"log_path", repo.LogPath,
			"passphrase", passphraseSource(repo),
			"script", repo.Script,
		)
	}
}

func passphraseSource(repo RepoConfig) string {
	switch {
	case repo.RepoPwdVault != "":
		return "vault"
	case repo.RepoPwd != "":
		return "config"
	default:
		return "none"
	}
}
