package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrMissingToken          = errors.New("discord token is not configured")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// EnvPrefix is the prefix of environment variables that override file values.
// Nested keys are separated by a double underscore, e.g. PINGBOT_BOT__DISCORD__TOKEN.
const EnvPrefix = "PINGBOT_"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Bot    BotConfig    `koanf:"bot"`
}

// CommonConfig contains configuration shared by every command.
type CommonConfig struct {
	// Version of the common config.
	Version   int       `koanf:"version"`
	Debug     Debug     `koanf:"debug"`
	Loki      Loki      `koanf:"loki"`
	Telemetry Telemetry `koanf:"telemetry"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// Ping command configuration.
	Ping Ping `koanf:"ping"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
	// Enable pprof debugging.
	EnablePprof bool `koanf:"enable_pprof"`
	// pprof server port.
	PprofPort int `koanf:"pprof_port"`
}

// Loki contains Grafana Loki logging configuration.
type Loki struct {
	// Enable Loki integration
	Enabled bool `koanf:"enabled"`
	// Loki server URL (without /loki/api/v1/push suffix)
	URL string `koanf:"url"`
	// Maximum number of log entries per batch
	BatchMaxSize int `koanf:"batch_max_size"`
	// Maximum time to wait before sending a batch (in milliseconds)
	BatchMaxWaitMS int `koanf:"batch_max_wait_ms"`
	// Labels added to all log streams
	Labels map[string]string `koanf:"labels"`
	// Basic authentication username (optional)
	Username string `koanf:"username"`
	// Basic authentication password (optional)
	Password string `koanf:"password"`
}

// Telemetry contains tracing configuration.
type Telemetry struct {
	// Uptrace DSN; tracing export is disabled when empty.
	UptraceDSN string `koanf:"uptrace_dsn"`
	// Service name reported with traces.
	ServiceName string `koanf:"service_name"`
	// Deployment environment reported with traces.
	Environment string `koanf:"environment"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Guilds to register commands in; empty registers them globally.
	GuildIDs []uint64 `koanf:"guild_ids"`
}

// Ping contains the /ping command limits. Durations are in milliseconds and a
// negative cooldown disables it.
type Ping struct {
	MaxAmount                 int  `koanf:"max_amount"`
	Cooldown                  int  `koanf:"cooldown"`
	Pacing                    int  `koanf:"pacing"`
	ConfirmTimeout            int  `koanf:"confirm_timeout"`
	CooldownOnDeliveryFailure bool `koanf:"cooldown_on_delivery_failure"`
	PurgeInterval             int  `koanf:"purge_interval"`
}

// CooldownDuration returns the cooldown as a duration.
func (p Ping) CooldownDuration() time.Duration {
	return time.Duration(p.Cooldown) * time.Millisecond
}

// PacingDuration returns the delay between pings as a duration.
func (p Ping) PacingDuration() time.Duration {
	return time.Duration(p.Pacing) * time.Millisecond
}

// ConfirmTimeoutDuration returns the confirmation window as a duration.
func (p Ping) ConfirmTimeoutDuration() time.Duration {
	return time.Duration(p.ConfirmTimeout) * time.Millisecond
}

// PurgeIntervalDuration returns how often expired cooldowns are dropped.
func (p Ping) PurgeIntervalDuration() time.Duration {
	return time.Duration(p.PurgeInterval) * time.Millisecond
}

// RequestTimeoutDuration returns the REST request timeout as a duration.
func (b BotConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(b.RequestTimeout) * time.Millisecond
}

// configFiles lists the files loaded by LoadConfig. Each file is mounted under
// its own name, so common.toml fills Config.Common.
var configFiles = []string{"common", "bot"}

// SearchPaths returns the directories searched for config files, in order.
func SearchPaths() []string {
	paths := []string{".pingbot"}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, homeDir+"/.pingbot/config")
	}

	return append(paths,
		"/etc/pingbot/config",
		"/app/config",
		"config",
		".",
	)
}

// LoadConfig loads the configuration from the default search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	return LoadConfigFrom(SearchPaths())
}

// LoadConfigFrom loads the configuration from the first directory of
// searchPaths holding each file, then applies environment overrides and
// defaults.
func LoadConfigFrom(searchPaths []string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string

	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range searchPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if _, err := os.Stat(configPath); err != nil {
				continue
			}

			fk := koanf.New(".")
			if err := fk.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, "", fmt.Errorf("failed to parse %s: %w", configPath, err)
			}

			if err := k.MergeAt(fk, configName); err != nil {
				return nil, "", fmt.Errorf("failed to merge %s: %w", configPath, err)
			}

			configLoaded = true

			if usedConfigPath == "" {
				usedConfigPath = path
			}

			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	// Environment overrides, e.g. PINGBOT_BOT__DISCORD__TOKEN -> bot.discord.token
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	config.applyDefaults()

	return &config, usedConfigPath, nil
}

// envKey maps an environment variable name to a config key.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// applyDefaults fills zero values with the stock settings.
func (c *Config) applyDefaults() {
	debug := &c.Common.Debug
	if debug.LogLevel == "" {
		debug.LogLevel = "info"
	}

	if debug.MaxLogsToKeep <= 0 {
		debug.MaxLogsToKeep = 10
	}

	if debug.MaxLogLines <= 0 {
		debug.MaxLogLines = 10000
	}

	if debug.PprofPort == 0 {
		debug.PprofPort = 6060
	}

	loki := &c.Common.Loki
	if loki.BatchMaxSize <= 0 {
		loki.BatchMaxSize = 100
	}

	if loki.BatchMaxWaitMS <= 0 {
		loki.BatchMaxWaitMS = 5000
	}

	if c.Common.Telemetry.ServiceName == "" {
		c.Common.Telemetry.ServiceName = "pingbot"
	}

	if c.Bot.RequestTimeout <= 0 {
		c.Bot.RequestTimeout = 5000
	}

	ping := &c.Bot.Ping
	if ping.MaxAmount <= 0 {
		ping.MaxAmount = 100
	}

	if ping.Cooldown < 0 {
		ping.Cooldown = 0
	} else if ping.Cooldown == 0 {
		ping.Cooldown = 60000
	}

	if ping.Pacing <= 0 {
		ping.Pacing = 300
	}

	if ping.ConfirmTimeout <= 0 {
		ping.ConfirmTimeout = 30000
	}

	if ping.PurgeInterval <= 0 {
		ping.PurgeInterval = 300000
	}
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/pingbot/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
