// Package config handles loading and managing configuration for the habisnooze agent.
// It supports loading from YAML files, environment variables, and hardcoded defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Jayphen/habisnooze/internal/habitica"
	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/snooze"
)

// ErrInvalid is returned by Validate when a setting is missing or malformed.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration settings for the agent.
type Config struct {
	Habitica HabiticaConfig `yaml:"habitica"`
	Snooze   SnoozeConfig   `yaml:"snooze"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Webhook  WebhookConfig  `yaml:"webhook"`

	// RedisURL enables the run status store and the cross-replica run lock.
	// Empty disables both.
	RedisURL string `yaml:"redis_url" validate:"omitempty,url"`

	Logging LoggingConfig `yaml:"logging"`
}

// HabiticaConfig holds the API credentials and client settings.
type HabiticaConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	UserID            string        `yaml:"user_id" validate:"required"`
	APIKey            string        `yaml:"api_key" validate:"required"`
	ClientName        string        `yaml:"client_name" validate:"required"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0s"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=0"`
}

// SnoozeConfig selects and shapes the dailies that get snoozed.
type SnoozeConfig struct {
	// TagID is the id of the Habitica tag that opts a daily in.
	TagID string `yaml:"tag_id" validate:"required"`

	CompareDueTaskToYesterday bool `yaml:"compare_due_task_to_yesterday"`

	// Timezone is an IANA zone name, e.g. "America/Sao_Paulo".
	Timezone string `yaml:"timezone" validate:"required"`

	// Checklist is "unfinished" or "all".
	Checklist      string        `yaml:"checklist" validate:"oneof=unfinished all"`
	ReminderOffset time.Duration `yaml:"reminder_offset" validate:"gte=0s,lt=24h"`
	Notes          string        `yaml:"notes"`
}

// ScheduleConfig controls the timer trigger.
type ScheduleConfig struct {
	Interval   time.Duration `yaml:"interval" validate:"gte=1m"`
	RunOnStart bool          `yaml:"run_on_start"`
	RunTimeout time.Duration `yaml:"run_timeout" validate:"gt=0s"`
}

// WebhookConfig controls the webhook trigger.
type WebhookConfig struct {
	Addr   string `yaml:"addr" validate:"required"`
	Path   string `yaml:"path" validate:"required,startswith=/"`
	Secret string `yaml:"secret"`
}

// LoggingConfig mirrors logging.Settings.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn error"`
	FilePath   string `yaml:"file_path"`
	JSON       bool   `yaml:"json"`
	Console    bool   `yaml:"console"`
	MaxSize    int    `yaml:"max_size" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAge     int    `yaml:"max_age" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// Default configuration values
const (
	DefaultTimezone         = "UTC"
	DefaultChecklist        = string(snooze.ChecklistUnfinished)
	DefaultScheduleInterval = time.Hour
	DefaultRunTimeout       = 5 * time.Minute
	DefaultWebhookAddr      = ":8080"
	DefaultWebhookPath      = "/webhooks/task-activity"
	DefaultLogLevel         = "info"
)

// Default returns the configuration used when no file or environment
// variable sets a value.
func Default() *Config {
	return &Config{
		Habitica: HabiticaConfig{
			BaseURL:           habitica.DefaultBaseURL,
			ClientName:        habitica.DefaultClientName,
			Timeout:           habitica.DefaultTimeout,
			RequestsPerMinute: habitica.DefaultRequestsPerMinute,
		},
		Snooze: SnoozeConfig{
			Timezone:       DefaultTimezone,
			Checklist:      DefaultChecklist,
			ReminderOffset: snooze.DefaultReminderOffset,
			Notes:          snooze.DefaultNotes,
		},
		Schedule: ScheduleConfig{
			Interval:   DefaultScheduleInterval,
			RunOnStart: true,
			RunTimeout: DefaultRunTimeout,
		},
		Webhook: WebhookConfig{
			Addr: DefaultWebhookAddr,
			Path: DefaultWebhookPath,
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			JSON:       true,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load reads configuration from files and environment variables.
// When path is set only that file is read and it must exist. Otherwise
// the search paths are tried. Priority (highest to lowest):
// 1. Environment variables
// 2. ~/.config/habisnooze/config.yml
// 3. ~/.config/habisnooze/config.yaml
// 4. ~/.habisnooze.yaml
// 5. Hardcoded defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	} else {
		paths := ConfigPaths()
		// Lowest priority file first so later files win.
		for i := len(paths) - 1; i >= 0; i-- {
			if err := cfg.mergeFile(paths[i]); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvOverrides() error {
	var errs []error

	str := func(name string, dst *string) {
		if val := os.Getenv(name); val != "" {
			*dst = val
		}
	}
	boolean := func(name string, dst *bool) {
		if val := os.Getenv(name); val != "" {
			*dst = val == "true" || val == "1" || val == "yes"
		}
	}
	integer := func(name string, dst *int) {
		if val := os.Getenv(name); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if val := os.Getenv(name); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			} else if secs, err := strconv.Atoi(val); err == nil {
				// Support plain seconds for convenience
				*dst = time.Duration(secs) * time.Second
			} else {
				errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, val))
			}
		}
	}

	// Habitica
	str("HABISNOOZE_HABITICA_BASE_URL", &c.Habitica.BaseURL)
	str("HABISNOOZE_HABITICA_USER_ID", &c.Habitica.UserID)
	str("HABISNOOZE_HABITICA_API_KEY", &c.Habitica.APIKey)
	str("HABISNOOZE_HABITICA_CLIENT_NAME", &c.Habitica.ClientName)
	duration("HABISNOOZE_HABITICA_TIMEOUT", &c.Habitica.Timeout)
	integer("HABISNOOZE_HABITICA_REQUESTS_PER_MINUTE", &c.Habitica.RequestsPerMinute)

	// Snooze
	str("HABISNOOZE_SNOOZE_TAG_ID", &c.Snooze.TagID)
	boolean("HABISNOOZE_SNOOZE_COMPARE_DUE_TASK_TO_YESTERDAY", &c.Snooze.CompareDueTaskToYesterday)
	str("HABISNOOZE_SNOOZE_TIMEZONE", &c.Snooze.Timezone)
	str("HABISNOOZE_SNOOZE_CHECKLIST", &c.Snooze.Checklist)
	duration("HABISNOOZE_SNOOZE_REMINDER_OFFSET", &c.Snooze.ReminderOffset)
	str("HABISNOOZE_SNOOZE_NOTES", &c.Snooze.Notes)

	// Schedule
	duration("HABISNOOZE_SCHEDULE_INTERVAL", &c.Schedule.Interval)
	boolean("HABISNOOZE_SCHEDULE_RUN_ON_START", &c.Schedule.RunOnStart)
	duration("HABISNOOZE_SCHEDULE_RUN_TIMEOUT", &c.Schedule.RunTimeout)

	// Webhook
	str("HABISNOOZE_WEBHOOK_ADDR", &c.Webhook.Addr)
	str("HABISNOOZE_WEBHOOK_PATH", &c.Webhook.Path)
	str("HABISNOOZE_WEBHOOK_SECRET", &c.Webhook.Secret)

	// Redis URL (support both REDIS_URL and HABISNOOZE_REDIS_URL)
	if val := os.Getenv("HABISNOOZE_REDIS_URL"); val != "" {
		c.RedisURL = val
	} else if val := os.Getenv("REDIS_URL"); val != "" {
		c.RedisURL = val
	}

	// Logging
	str("HABISNOOZE_LOG_LEVEL", &c.Logging.Level)
	str("HABISNOOZE_LOG_FILE", &c.Logging.FilePath)
	boolean("HABISNOOZE_LOG_JSON", &c.Logging.JSON)
	boolean("HABISNOOZE_LOG_CONSOLE", &c.Logging.Console)

	return errors.Join(errs...)
}

// Validate checks every setting the agent needs to run.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if _, err := time.LoadLocation(c.Snooze.Timezone); err != nil {
		return fmt.Errorf("%w: snooze.timezone: %v", ErrInvalid, err)
	}
	return nil
}

// Policy builds the snooze policy from the snooze section.
func (c *Config) Policy() (snooze.Policy, error) {
	loc, err := time.LoadLocation(c.Snooze.Timezone)
	if err != nil {
		return snooze.Policy{}, fmt.Errorf("%w: snooze.timezone: %v", ErrInvalid, err)
	}

	p := snooze.Policy{
		SnoozeTagID:               c.Snooze.TagID,
		CompareDueTaskToYesterday: c.Snooze.CompareDueTaskToYesterday,
		Location:                  loc,
		Checklist:                 snooze.ChecklistPolicy(c.Snooze.Checklist),
		ReminderOffset:            c.Snooze.ReminderOffset,
		Notes:                     c.Snooze.Notes,
	}
	if err := p.Validate(); err != nil {
		return snooze.Policy{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return p, nil
}

// HabiticaClientConfig converts the habitica section for habitica.NewClient.
func (c *Config) HabiticaClientConfig() habitica.Config {
	return habitica.Config{
		BaseURL:           c.Habitica.BaseURL,
		UserID:            c.Habitica.UserID,
		APIKey:            c.Habitica.APIKey,
		ClientName:        c.Habitica.ClientName,
		Timeout:           c.Habitica.Timeout,
		RequestsPerMinute: c.Habitica.RequestsPerMinute,
	}
}

// LoggingSettings converts the logging section for logging.ConfigFromSettings.
func (c *Config) LoggingSettings() logging.Settings {
	return logging.Settings{
		Level:      c.Logging.Level,
		FilePath:   c.Logging.FilePath,
		JSON:       c.Logging.JSON,
		Console:    c.Logging.Console,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
		Compress:   c.Logging.Compress,
	}
}

// ConfigPaths returns the paths where config files are searched, highest
// priority first.
func ConfigPaths() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(homeDir, ".config", "habisnooze", "config.yml"),
		filepath.Join(homeDir, ".config", "habisnooze", "config.yaml"),
		filepath.Join(homeDir, ".habisnooze.yaml"),
	}
}

// WriteExample writes an example configuration file to the specified path.
func WriteExample(path string) error {
	example := `# habisnooze configuration file
# Place this file at ~/.config/habisnooze/config.yaml or ~/.habisnooze.yaml

habitica:
  base_url: https://habitica.com/api/v3
  # Settings > API in the Habitica web app
  user_id: ""
  api_key: ""
  client_name: habisnooze
  timeout: 30s
  requests_per_minute: 30

snooze:
  # Id of the tag that marks a daily as snoozeable
  tag_id: ""
  # Evaluate dailies against yesterday instead of today
  compare_due_task_to_yesterday: false
  # IANA timezone used for calendar days, e.g. America/Sao_Paulo
  timezone: UTC
  # Checklist items copied to the todo: unfinished or all
  checklist: unfinished
  # Reminder time on the due date
  reminder_offset: 10h
  notes: "Daily Snoozed. Do it!!"

schedule:
  interval: 1h
  run_on_start: true
  run_timeout: 5m

webhook:
  addr: ":8080"
  path: /webhooks/task-activity
  # Optional; when set, deliveries must carry ?key=<secret>
  secret: ""

# Redis connection URL for run status and the run lock (empty disables)
redis_url: ""

logging:
  level: info
  file_path: ""
  json: true
  console: false
  max_size: 10
  max_backups: 5
  max_age: 7
  compress: true
`
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(example), 0644)
}
