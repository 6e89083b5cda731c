package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ClientConfig holds the settings of the video workflow client.
type ClientConfig struct {
	APIBaseURL      string        `yaml:"api_base_url"`
	APIToken        string        `yaml:"api_token"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	CreditsTimeout  time.Duration `yaml:"credits_timeout"`
	DownloadDir     string        `yaml:"download_dir"`
	Environment     string        `yaml:"environment"`
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		APIBaseURL:     "http://localhost:8080",
		PollInterval:   3 * time.Second,
		CreditsTimeout: 10 * time.Second,
		DownloadDir:    ".",
		Environment:    "development",
	}
}

// LoadClient builds the client configuration from defaults, then the YAML
// file at path (if any, falling back to VIDEO_CONFIG_FILE), then the
// environment.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := defaultClientConfig()

	if path == "" {
		path = os.Getenv("VIDEO_CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.APIBaseURL = getEnv("VIDEO_API_BASE_URL", cfg.APIBaseURL)
	cfg.APIToken = getEnv("VIDEO_API_TOKEN", cfg.APIToken)
	cfg.PollInterval = getEnvDuration("VIDEO_POLL_INTERVAL", cfg.PollInterval)
	cfg.PollMaxAttempts = getEnvInt("VIDEO_POLL_MAX_ATTEMPTS", cfg.PollMaxAttempts)
	cfg.CreditsTimeout = getEnvDuration("VIDEO_CREDITS_TIMEOUT", cfg.CreditsTimeout)
	cfg.DownloadDir = getEnv("VIDEO_DOWNLOAD_DIR", cfg.DownloadDir)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *ClientConfig) overlayFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func (c *ClientConfig) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("VIDEO_API_BASE_URL is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("VIDEO_POLL_INTERVAL must be positive")
	}
	if c.PollMaxAttempts < 0 {
		return fmt.Errorf("VIDEO_POLL_MAX_ATTEMPTS must not be negative")
	}
	if c.CreditsTimeout <= 0 {
		return fmt.Errorf("VIDEO_CREDITS_TIMEOUT must be positive")
	}
	return nil
}
