package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultHTTPListen            = ":8080"
	defaultHealthPath            = "/healthz"
	defaultReadyPath             = "/readyz"
	defaultMetricsPath           = "/metrics"
	defaultAPIBasePath           = "/api/v1"
	defaultMaxBodyBytes          = 2 << 20
	defaultNATSURL               = "nats://127.0.0.1:4222"
	defaultNATSSubject           = "providence.alerts"
	defaultNATSStream            = "PROVIDENCE_ALERTS"
	defaultNATSConsumer          = "providence-intake"
	defaultNATSGroup             = "providence-workers"
	defaultNATSWorkers           = 1
	defaultNATSAckWaitSec        = 30
	defaultNATSNackDelayMS       = 1000
	defaultNATSMaxDeliver        = -1
	defaultNATSMaxAckPending     = 2048
	defaultPushSubjectPrefix     = "providence.push"
	defaultEscalationScanSeconds = 30
	defaultNotifyIntervalSeconds = 60
	defaultHousekeepingHours     = 24
	defaultRetentionDays         = 90
	defaultSlaWorkers            = 2
	defaultSlaPollSeconds        = 2
	defaultCommitAttempts        = 3
	defaultSMTPPort              = 25

	// StorageModeMemory keeps all state in process memory.
	StorageModeMemory = "memory"
	// StorageModePostgres persists state through PostgreSQL.
	StorageModePostgres = "postgres"
)

// Config holds service runtime settings.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	Storage StorageConfig `toml:"storage"`
	Ingest  IngestConfig  `toml:"ingest"`
	Push    PushConfig    `toml:"push"`
	Notify  NotifyConfig  `toml:"notify"`
}

// ServiceConfig contains process-level settings.
// Params: name plus background loop cadence controls.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name                    string `toml:"name"`
	EscalationScanSec       int    `toml:"escalation_scan_interval_sec"`
	NotifyDefaultSec        int    `toml:"notify_default_interval_sec"`
	HousekeepingIntervalHrs int    `toml:"housekeeping_interval_hours"`
	HistoryRetentionDays    int    `toml:"history_retention_days"`
	SlaWorkers              int    `toml:"sla_workers"`
	SlaPollSec              int    `toml:"sla_poll_interval_sec"`
	CommitAttempts          int    `toml:"commit_attempts"`
}

// StorageConfig selects and configures the persistence backend.
// Params: mode and Postgres connection settings.
// Returns: storage runtime options.
type StorageConfig struct {
	Mode     string         `toml:"mode"`
	Postgres PostgresConfig `toml:"postgres"`
}

// PostgresConfig contains PostgreSQL connection settings.
// Params: DSN or discrete connection fields.
// Returns: connection options for the pgx pool.
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"ssl_mode"`
}

// ConnString resolves the effective pgx connection string.
// Params: none.
// Returns: explicit DSN when set, otherwise one built from discrete fields.
func (c PostgresConfig) ConnString() string {
	if strings.TrimSpace(c.DSN) != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode)
}

// IngestConfig defines inbound alert interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPConfig       `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPConfig configures the HTTP API server.
// Params: listen address, well-known paths, and body size limit.
// Returns: HTTP server behavior.
type HTTPConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MetricsPath  string `toml:"metrics_path"`
	APIBasePath  string `toml:"api_base_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion.
// Params: connection + worker/ack/redelivery policy; stream routing keys are runtime-fixed.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"-"`
	Stream        string   `toml:"-"`
	ConsumerName  string   `toml:"-"`
	DeliverGroup  string   `toml:"-"`
	Workers       int      `toml:"workers"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// PushConfig configures outbound change events for connected frontends.
// Params: enable flag, NATS URL list, and subject prefix.
// Returns: push publisher behavior.
type PushConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	SubjectPrefix string   `toml:"subject_prefix"`
}

// NotifyConfig defines outbound notification behavior.
// Params: batching defaults and per-channel transport settings.
// Returns: notification controls.
type NotifyConfig struct {
	DefaultIntervalSec int            `toml:"default_interval_sec"`
	Email              EmailConfig    `toml:"email"`
	Telegram           TelegramConfig `toml:"telegram"`
}

// EmailConfig defines the SMTP channel settings.
// Params: enabled flag, relay endpoint, and sender identity.
// Returns: email sender configuration.
type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// TelegramConfig defines the Telegram channel settings.
// Params: enabled flag, bot token, and chat id.
// Returns: Telegram sender configuration.
type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EscalationScanInterval returns the escalation scan cadence.
// Params: none.
// Returns: interval as duration.
func (c Config) EscalationScanInterval() time.Duration {
	return time.Duration(c.Service.EscalationScanSec) * time.Second
}

// HousekeepingInterval returns the history purge cadence.
// Params: none.
// Returns: interval as duration.
func (c Config) HousekeepingInterval() time.Duration {
	return time.Duration(c.Service.HousekeepingIntervalHrs) * time.Hour
}

// HistoryRetention returns the retention window for closed history.
// Params: none.
// Returns: retention as duration.
func (c Config) HistoryRetention() time.Duration {
	return time.Duration(c.Service.HistoryRetentionDays) * 24 * time.Hour
}

// SlaPollInterval returns the job queue poll cadence.
// Params: none.
// Returns: interval as duration.
func (c Config) SlaPollInterval() time.Duration {
	return time.Duration(c.Service.SlaPollSec) * time.Second
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// mergeConfig overlays source onto destination, later files win per section.
// Params: destination config and next fragment.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.Storage.Mode != "" || src.Storage.Postgres != (PostgresConfig{}) {
		dst.Storage = src.Storage
	}
	if hasIngestConfig(src.Ingest) {
		dst.Ingest = src.Ingest
	}
	if src.Push.Enabled || len(src.Push.URL) > 0 || src.Push.SubjectPrefix != "" {
		dst.Push = src.Push
	}
	if hasNotifyConfig(src.Notify) {
		dst.Notify = src.Notify
	}
}

// hasIngestConfig checks whether the ingest section contains explicit values.
// Params: ingest configuration fragment.
// Returns: true when section should replace the destination snapshot.
func hasIngestConfig(cfg IngestConfig) bool {
	if cfg.HTTP != (HTTPConfig{}) {
		return true
	}
	return cfg.NATS.Enabled || len(cfg.NATS.URL) > 0 ||
		cfg.NATS.Workers != 0 || cfg.NATS.AckWaitSec != 0 ||
		cfg.NATS.NackDelayMS != 0 || cfg.NATS.MaxDeliver != 0 ||
		cfg.NATS.MaxAckPending != 0
}

// hasNotifyConfig checks whether the notify section contains explicit values.
// Params: notify configuration fragment.
// Returns: true when section should replace the destination snapshot.
func hasNotifyConfig(cfg NotifyConfig) bool {
	return cfg.DefaultIntervalSec != 0 ||
		cfg.Email != (EmailConfig{}) ||
		cfg.Telegram != (TelegramConfig{})
}

// applyDefaults fills omitted config fields with safe defaults.
// Params: cfg pointer to decoded snapshot.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = "providence"
	}
	if cfg.Service.EscalationScanSec <= 0 {
		cfg.Service.EscalationScanSec = defaultEscalationScanSeconds
	}
	if cfg.Service.NotifyDefaultSec <= 0 {
		cfg.Service.NotifyDefaultSec = defaultNotifyIntervalSeconds
	}
	if cfg.Service.HousekeepingIntervalHrs <= 0 {
		cfg.Service.HousekeepingIntervalHrs = defaultHousekeepingHours
	}
	if cfg.Service.HistoryRetentionDays <= 0 {
		cfg.Service.HistoryRetentionDays = defaultRetentionDays
	}
	if cfg.Service.SlaWorkers <= 0 {
		cfg.Service.SlaWorkers = defaultSlaWorkers
	}
	if cfg.Service.SlaPollSec <= 0 {
		cfg.Service.SlaPollSec = defaultSlaPollSeconds
	}
	if cfg.Service.CommitAttempts <= 0 {
		cfg.Service.CommitAttempts = defaultCommitAttempts
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = StorageModeMemory
	}
	cfg.Storage.Mode = strings.ToLower(strings.TrimSpace(cfg.Storage.Mode))
	if cfg.Storage.Mode == StorageModePostgres {
		if cfg.Storage.Postgres.Port <= 0 {
			cfg.Storage.Postgres.Port = 5432
		}
	}

	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.HealthPath) == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.ReadyPath) == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.MetricsPath) == "" {
		cfg.Ingest.HTTP.MetricsPath = defaultMetricsPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.APIBasePath) == "" {
		cfg.Ingest.HTTP.APIBasePath = defaultAPIBasePath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		cfg.Ingest.HTTP.Enabled = true
	}

	if cfg.Ingest.NATS.Enabled {
		cfg.Ingest.NATS.URL = normalizeNATSURLs(cfg.Ingest.NATS.URL)
		if len(cfg.Ingest.NATS.URL) == 0 {
			cfg.Ingest.NATS.URL = []string{defaultNATSURL}
		}
		cfg.Ingest.NATS.Subject = defaultNATSSubject
		cfg.Ingest.NATS.Stream = defaultNATSStream
		cfg.Ingest.NATS.ConsumerName = defaultNATSConsumer
		cfg.Ingest.NATS.DeliverGroup = defaultNATSGroup
		if cfg.Ingest.NATS.Workers == 0 {
			cfg.Ingest.NATS.Workers = defaultNATSWorkers
		}
		if cfg.Ingest.NATS.AckWaitSec <= 0 {
			cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
		}
		if cfg.Ingest.NATS.NackDelayMS <= 0 {
			cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
		}
		if cfg.Ingest.NATS.MaxDeliver == 0 {
			cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
		}
		if cfg.Ingest.NATS.MaxAckPending <= 0 {
			cfg.Ingest.NATS.MaxAckPending = defaultNATSMaxAckPending
		}
	}

	if cfg.Push.Enabled {
		cfg.Push.URL = normalizeNATSURLs(cfg.Push.URL)
		if len(cfg.Push.URL) == 0 {
			if len(cfg.Ingest.NATS.URL) > 0 {
				cfg.Push.URL = append([]string(nil), cfg.Ingest.NATS.URL...)
			} else {
				cfg.Push.URL = []string{defaultNATSURL}
			}
		}
		if strings.TrimSpace(cfg.Push.SubjectPrefix) == "" {
			cfg.Push.SubjectPrefix = defaultPushSubjectPrefix
		}
	}

	if cfg.Notify.DefaultIntervalSec <= 0 {
		cfg.Notify.DefaultIntervalSec = cfg.Service.NotifyDefaultSec
	}
	if cfg.Notify.Email.Port <= 0 {
		cfg.Notify.Email.Port = defaultSMTPPort
	}
}

// normalizeNATSURLs trims and deduplicates URL list entries.
// Params: raw URL list from config.
// Returns: normalized list preserving first-seen order.
func normalizeNATSURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}

// validateConfig validates full runtime configuration.
// Params: cfg snapshot to validate.
// Returns: first validation failure.
func validateConfig(cfg Config) error {
	switch cfg.Storage.Mode {
	case StorageModeMemory:
	case StorageModePostgres:
		pg := cfg.Storage.Postgres
		if strings.TrimSpace(pg.DSN) == "" &&
			(strings.TrimSpace(pg.Host) == "" || strings.TrimSpace(pg.Database) == "") {
			return errors.New("storage.postgres requires dsn or host+database")
		}
	default:
		return fmt.Errorf("storage.mode has unsupported value %q", cfg.Storage.Mode)
	}

	if cfg.Ingest.HTTP.Enabled && strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		return errors.New("ingest.http.listen is required")
	}
	if cfg.Ingest.NATS.Enabled && len(cfg.Ingest.NATS.URL) == 0 {
		return errors.New("ingest.nats.url is required")
	}
	if cfg.Ingest.NATS.Enabled && cfg.Ingest.NATS.Workers < 1 {
		return errors.New("ingest.nats.workers must be >=1")
	}

	if cfg.Notify.Email.Enabled {
		if strings.TrimSpace(cfg.Notify.Email.Host) == "" {
			return errors.New("notify.email.host is required")
		}
		if strings.TrimSpace(cfg.Notify.Email.From) == "" {
			return errors.New("notify.email.from is required")
		}
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required")
		}
	}

	for _, sink := range []struct {
		name string
		cfg  LogSinkConfig
	}{{"console", cfg.Log.Console}, {"file", cfg.Log.File}} {
		if !sink.cfg.Enabled {
			continue
		}
		switch strings.ToLower(sink.cfg.Level) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("log.%s.level has unsupported value %q", sink.name, sink.cfg.Level)
		}
		switch strings.ToLower(sink.cfg.Format) {
		case "line", "json":
		default:
			return fmt.Errorf("log.%s.format has unsupported value %q", sink.name, sink.cfg.Format)
		}
		if sink.name == "file" && strings.TrimSpace(sink.cfg.Path) == "" {
			return errors.New("log.file.path is required when file sink is enabled")
		}
	}
	return nil
}
