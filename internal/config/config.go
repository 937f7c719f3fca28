package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Forge     ForgeConfig     `yaml:"forge"`
	Generator GeneratorConfig `yaml:"generator"`
	Publish   PublishConfig   `yaml:"publish"`
	Notify    NotifyConfig    `yaml:"notify"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP boundary settings. The shared secret is only
// ever read from the environment, never from the config file.
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Secret string `yaml:"-"`
}

// ForgeConfig holds credentials and endpoints for the remote hosting forge.
type ForgeConfig struct {
	Type     string `yaml:"type"` // currently only "github"
	Token    string `yaml:"-"`
	Username string `yaml:"username"`
	APIURL   string `yaml:"api_url"`
	BaseURL  string `yaml:"base_url"`
	// PagesHost is the public hostname pattern for published sites,
	// e.g. "github.io". The site URL becomes https://{owner}.{pages_host}/{repo}/.
	PagesHost string `yaml:"pages_host"`
}

// GeneratorConfig holds settings for the code generation service.
type GeneratorConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
}

// PublishConfig holds pipeline tuning knobs. All delays are in seconds so the
// YAML stays plain integers.
type PublishConfig struct {
	Branch              string `yaml:"branch"`
	IndexPath           string `yaml:"index_path"`
	AssetThreshold      int    `yaml:"asset_threshold"`
	UpsertMaxAttempts   int    `yaml:"upsert_max_attempts"`
	UpsertDelaySeconds  int    `yaml:"upsert_delay_seconds"`
	PagesMaxAttempts    int    `yaml:"pages_max_attempts"`
	PagesDelaySeconds   int    `yaml:"pages_delay_seconds"`
	PollTimeoutSeconds  int    `yaml:"poll_timeout_seconds"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	PollGraceSeconds    int    `yaml:"poll_grace_seconds"`
}

func (p PublishConfig) UpsertDelay() time.Duration  { return time.Duration(p.UpsertDelaySeconds) * time.Second }
func (p PublishConfig) PagesDelay() time.Duration   { return time.Duration(p.PagesDelaySeconds) * time.Second }
func (p PublishConfig) PollTimeout() time.Duration  { return time.Duration(p.PollTimeoutSeconds) * time.Second }
func (p PublishConfig) PollInterval() time.Duration { return time.Duration(p.PollIntervalSeconds) * time.Second }
func (p PublishConfig) PollGrace() time.Duration    { return time.Duration(p.PollGraceSeconds) * time.Second }

// NotifyConfig holds callback delivery settings.
type NotifyConfig struct {
	MaxAttempts         int `yaml:"max_attempts"`
	InitialDelaySeconds int `yaml:"initial_delay_seconds"`
}

func (n NotifyConfig) InitialDelay() time.Duration {
	return time.Duration(n.InitialDelaySeconds) * time.Second
}

// EvidenceConfig holds the audit sinks: a remote evidence endpoint and a
// local SQLite event store. Both are best-effort by design.
type EvidenceConfig struct {
	URL       string `yaml:"url"`
	StorePath string `yaml:"store_path"`
}

// EventsConfig enables publishing lifecycle events to NATS.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from the specified file, with .env and process
// environment applied on top. A missing config file is not an error: the
// defaults plus environment are a complete configuration.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	config := defaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// fall through to env-only configuration
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	applyEnvOverrides(config)
	applyDefaults(config)
	return config, nil
}

func defaultConfig() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Forge.Type == "" {
		c.Forge.Type = "github"
	}
	if c.Forge.APIURL == "" {
		c.Forge.APIURL = "https://api.github.com"
	}
	if c.Forge.BaseURL == "" {
		c.Forge.BaseURL = "https://github.com"
	}
	if c.Forge.PagesHost == "" {
		c.Forge.PagesHost = "github.io"
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "gemini-2.5-flash"
	}
	if c.Publish.Branch == "" {
		c.Publish.Branch = "main"
	}
	if c.Publish.IndexPath == "" {
		c.Publish.IndexPath = "index.html"
	}
	if c.Publish.AssetThreshold == 0 {
		c.Publish.AssetThreshold = 10000
	}
	if c.Publish.UpsertMaxAttempts == 0 {
		c.Publish.UpsertMaxAttempts = 3
	}
	if c.Publish.UpsertDelaySeconds == 0 {
		c.Publish.UpsertDelaySeconds = 1
	}
	if c.Publish.PagesMaxAttempts == 0 {
		c.Publish.PagesMaxAttempts = 3
	}
	if c.Publish.PagesDelaySeconds == 0 {
		c.Publish.PagesDelaySeconds = 2
	}
	if c.Publish.PollTimeoutSeconds == 0 {
		c.Publish.PollTimeoutSeconds = 300
	}
	if c.Publish.PollIntervalSeconds == 0 {
		c.Publish.PollIntervalSeconds = 15
	}
	if c.Publish.PollGraceSeconds == 0 {
		c.Publish.PollGraceSeconds = 30
	}
	if c.Notify.MaxAttempts == 0 {
		c.Notify.MaxAttempts = 5
	}
	if c.Notify.InitialDelaySeconds == 0 {
		c.Notify.InitialDelaySeconds = 1
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "pagepub.publish"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnvOverrides copies well-known environment variables into the config.
// Environment always wins over file values for secrets and deploy-specific
// endpoints, matching how the service is operated.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Forge.Token = v
	}
	if v := os.Getenv("GITHUB_USERNAME"); v != "" {
		c.Forge.Username = v
	}
	if v := os.Getenv("SECRET"); v != "" {
		c.Server.Secret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Generator.APIKey = v
	}
	if v := os.Getenv("EVIDENCE_URL"); v != "" {
		c.Evidence.URL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Events.NATSURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
}
