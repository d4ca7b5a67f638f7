package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for pinback
type Config struct {
	// Pinboard account and endpoints
	Pinboard PinboardConfig `yaml:"pinboard" json:"pinboard"`

	// Index page pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Archive fan-out settings
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PinboardConfig holds Pinboard-specific configuration
type PinboardConfig struct {
	Username       string        `yaml:"username" json:"username"`
	Password       string        `yaml:"password" json:"password"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	APIURL         string        `yaml:"api_url" json:"api_url"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RateLimitConfig holds index crawl pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds output location configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	MetadataFile  string `yaml:"metadata_file" json:"metadata_file"`
}

// ArchiveConfig holds download fan-out configuration
type ArchiveConfig struct {
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	JobTimeout  time.Duration `yaml:"job_timeout" json:"job_timeout"`
	WgetPath    string        `yaml:"wget_path" json:"wget_path"`
	ExtraArgs   []string      `yaml:"extra_args" json:"extra_args"`

	// StrictAssets fails a page when wget could not fetch one of its assets
	StrictAssets bool `yaml:"strict_assets" json:"strict_assets"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const (
	DefaultBaseURL     = "https://pinboard.in"
	DefaultAPIURL      = "https://api.pinboard.in/v1"
	DefaultConcurrency = 32
	DefaultJobTimeout  = 60 * time.Second
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pinboard: PinboardConfig{
			BaseURL:        DefaultBaseURL,
			APIURL:         DefaultAPIURL,
			UserAgent:      "pinback/1.0 (+https://pinboard.in)",
			RequestTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Output: OutputConfig{
			BaseDirectory: "pinboard",
			MetadataFile:  "pinboard.json",
		},
		Archive: ArchiveConfig{
			Concurrency: DefaultConcurrency,
			JobTimeout:  DefaultJobTimeout,
			WgetPath:    "wget",
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if username := os.Getenv("PINBACK_USERNAME"); username != "" {
		c.Pinboard.Username = username
	}
	if password := os.Getenv("PINBACK_PASSWORD"); password != "" {
		c.Pinboard.Password = password
	}
	if baseURL := os.Getenv("PINBACK_BASE_URL"); baseURL != "" {
		c.Pinboard.BaseURL = baseURL
	}
	if apiURL := os.Getenv("PINBACK_API_URL"); apiURL != "" {
		c.Pinboard.APIURL = apiURL
	}
	if userAgent := os.Getenv("PINBACK_USER_AGENT"); userAgent != "" {
		c.Pinboard.UserAgent = userAgent
	}

	if rpm := os.Getenv("PINBACK_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if outputDir := os.Getenv("PINBACK_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if concurrency := os.Getenv("PINBACK_CONCURRENCY"); concurrency != "" {
		var val int
		fmt.Sscanf(concurrency, "%d", &val)
		if val > 0 {
			c.Archive.Concurrency = val
		}
	}
	if timeout := os.Getenv("PINBACK_JOB_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid PINBACK_JOB_TIMEOUT: %w", err)
		}
		c.Archive.JobTimeout = d
	}
	if wget := os.Getenv("PINBACK_WGET_PATH"); wget != "" {
		c.Archive.WgetPath = wget
	}

	if notifEnabled := os.Getenv("PINBACK_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	if logLevel := os.Getenv("PINBACK_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".pinback.yaml",
		".pinback.yml",
		filepath.Join(home, ".config", "pinback", "config.yaml"),
		filepath.Join(home, ".config", "pinback", "config.yml"),
		filepath.Join(home, ".pinback.yaml"),
		filepath.Join(home, ".pinback.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are not
// required here; commands resolve them from the credential store or a prompt.
func (c *Config) Validate() error {
	var errs []error

	if c.Pinboard.BaseURL == "" {
		errs = append(errs, errors.New("pinboard base URL is required"))
	}
	if c.Pinboard.APIURL == "" {
		errs = append(errs, errors.New("pinboard API URL is required"))
	}
	if c.Pinboard.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Archive.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Archive.JobTimeout <= 0 {
		errs = append(errs, errors.New("job timeout must be positive"))
	}
	if c.Archive.WgetPath == "" {
		errs = append(errs, errors.New("wget path is required"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.MetadataFile == "" {
		errs = append(errs, errors.New("metadata file is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys match the cobra flag names.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Pinboard.Username = username
	}
	if password, ok := flags["password"].(string); ok && password != "" {
		c.Pinboard.Password = password
	}
	if outputDir, ok := flags["output-directory"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Output.MetadataFile = output
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency > 0 {
		c.Archive.Concurrency = concurrency
	}
	if timeout, ok := flags["job-timeout"].(time.Duration); ok && timeout > 0 {
		c.Archive.JobTimeout = timeout
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if enabled, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pinback.env"))

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
