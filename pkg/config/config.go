package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for a mirror run
type Config struct {
	// Remote accounts to mirror, processed in order
	Accounts []int64 `yaml:"accounts" json:"accounts"`

	// Explicit account id to folder name overrides
	Names map[int64]string `yaml:"names" json:"names"`

	// Stop walking a feed at the first already-synchronized post
	Incremental bool `yaml:"incremental" json:"incremental"`

	Output     OutputConfig     `yaml:"output" json:"output"`
	FeedSource FeedSourceConfig `yaml:"feed_source" json:"feed_source"`
	Download   DownloadConfig   `yaml:"download" json:"download"`
	Archive    ArchiveConfig    `yaml:"archive" json:"archive"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// OutputConfig holds archive layout configuration
type OutputConfig struct {
	BaseDirectory    string `yaml:"base_directory" json:"base_directory"`
	TimeZone         string `yaml:"time_zone" json:"time_zone"`
	SummaryDirectory string `yaml:"summary_directory" json:"summary_directory"`
	WriteSummary     bool   `yaml:"write_summary" json:"write_summary"`
}

// FeedSourceConfig configures the external listing/post tool
type FeedSourceConfig struct {
	Command           string        `yaml:"command" json:"command"`
	CookieFile        string        `yaml:"cookie_file" json:"cookie_file"`
	URLTemplate       string        `yaml:"url_template" json:"url_template"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// DownloadConfig holds media download configuration
type DownloadConfig struct {
	RetryAttempts   int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay" json:"retry_delay"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
}

// ArchiveConfig configures the sqlite download index
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Names:       map[int64]string{},
		Incremental: true,
		Output: OutputConfig{
			BaseDirectory:    "./archive",
			TimeZone:         "Local",
			SummaryDirectory: "summaries",
			WriteSummary:     true,
		},
		FeedSource: FeedSourceConfig{
			Command:           "gallery-dl",
			URLTemplate:       "https://space.bilibili.com/%d/article",
			Timeout:           2 * time.Minute,
			MaxAttempts:       2,
			RetryDelay:        3 * time.Second,
			RequestsPerMinute: 30,
		},
		Download: DownloadConfig{
			RetryAttempts:   3,
			RetryDelay:      5 * time.Second,
			DownloadTimeout: 60 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    "archive.sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if accounts := os.Getenv("FEEDMIRROR_ACCOUNTS"); accounts != "" {
		ids, err := ParseAccountList(accounts)
		if err != nil {
			errs = append(errs, fmt.Errorf("FEEDMIRROR_ACCOUNTS: %w", err))
		} else {
			c.Accounts = ids
		}
	}
	if outputDir := os.Getenv("FEEDMIRROR_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if incremental := os.Getenv("FEEDMIRROR_INCREMENTAL"); incremental != "" {
		c.Incremental = strings.ToLower(incremental) == "true"
	}
	if cookies := os.Getenv("FEEDMIRROR_COOKIE_FILE"); cookies != "" {
		c.FeedSource.CookieFile = cookies
	}
	if command := os.Getenv("FEEDMIRROR_FEED_COMMAND"); command != "" {
		c.FeedSource.Command = command
	}
	if attempts := os.Getenv("FEEDMIRROR_RETRY_ATTEMPTS"); attempts != "" {
		if val, err := strconv.Atoi(attempts); err == nil && val > 0 {
			c.Download.RetryAttempts = val
		}
	}
	if delay := os.Getenv("FEEDMIRROR_RETRY_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			errs = append(errs, fmt.Errorf("FEEDMIRROR_RETRY_DELAY: %w", err))
		} else {
			c.Download.RetryDelay = d
		}
	}
	if logLevel := os.Getenv("FEEDMIRROR_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return errors.Join(errs...)
}

// ParseAccountList parses a comma or whitespace separated list of numeric account ids
func ParseAccountList(value string) ([]int64, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid account id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".feedmirror.yaml",
		".feedmirror.yml",
		filepath.Join(home, ".config", "feedmirror", "config.yaml"),
		filepath.Join(home, ".config", "feedmirror", "config.yml"),
		filepath.Join(home, ".feedmirror.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	for _, id := range c.Accounts {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("account id must be positive, got %d", id))
		}
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("invalid time zone: %w", err))
	}

	if c.FeedSource.Command == "" {
		errs = append(errs, errors.New("feed source command is required"))
	}
	if !strings.Contains(c.FeedSource.URLTemplate, "%d") {
		errs = append(errs, errors.New("feed source url template must contain %d"))
	}
	if c.FeedSource.Timeout <= 0 {
		errs = append(errs, errors.New("feed source timeout must be positive"))
	}
	if c.FeedSource.MaxAttempts <= 0 {
		errs = append(errs, errors.New("feed source max attempts must be positive"))
	}
	if c.FeedSource.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Download.RetryAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be positive"))
	}
	if c.Download.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive path is required when the archive index is enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Location resolves the configured time zone used for date-stamped file names
func (c *Config) Location() (*time.Location, error) {
	switch c.Output.TimeZone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	default:
		return time.LoadLocation(c.Output.TimeZone)
	}
}

// FeedURL returns the feed locator for an account
func (c *Config) FeedURL(accountID int64) string {
	return fmt.Sprintf(c.FeedSource.URLTemplate, accountID)
}

// ArchivePath returns the download index location, resolved against the base directory
func (c *Config) ArchivePath() string {
	if filepath.IsAbs(c.Archive.Path) {
		return c.Archive.Path
	}
	return filepath.Join(c.Output.BaseDirectory, c.Archive.Path)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if accounts, ok := flags["accounts"].([]int64); ok && len(accounts) > 0 {
		c.Accounts = accounts
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if noIncremental, ok := flags["no-incremental"].(bool); ok && noIncremental {
		c.Incremental = false
	}
	if cookies, ok := flags["cookies"].(string); ok && cookies != "" {
		c.FeedSource.CookieFile = cookies
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".feedmirror.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
