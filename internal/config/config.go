package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int    `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`

	Data struct {
		Dir         string `yaml:"dir"`
		MaxDBSizeGB int    `yaml:"max_db_size_gb"`
	} `yaml:"data"`

	Tokens struct {
		Secret string `yaml:"secret"`
		TTL    string `yaml:"ttl"`
	} `yaml:"tokens"`

	Signup struct {
		LoginURL string `yaml:"login_url"`
		StoreURL string `yaml:"store_url"`
	} `yaml:"signup"`

	Integration struct {
		Vendor string                 `yaml:"vendor"`
		Config map[string]interface{} `yaml:"config"`
	} `yaml:"integration"`

	Webhooks struct {
		URLs       []string `yaml:"urls"`
		Timeout    string   `yaml:"timeout"`
		MaxRetries int      `yaml:"max_retries"`
	} `yaml:"webhooks"`

	Email struct {
		Host     string   `yaml:"host"`
		Port     int      `yaml:"port"`
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		From     string   `yaml:"from"`
		AdminTo  []string `yaml:"admin_to"`
	} `yaml:"email"`
}

// ParsedConfig contains parsed time.Duration values for easier use
type ParsedConfig struct {
	Config
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	TokenTTL       time.Duration
	WebhookTimeout time.Duration
}

// LoadConfig loads configuration from a YAML file, then applies environment
// overrides (POS_SERVICE_PORT, TOKEN_SECRET, SMTP_PASSWORD).
func LoadConfig(filepath string) (*ParsedConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	parsed, err := parseDurations(&cfg)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return parsed, nil
}

// Default returns a runnable configuration without a config file, for
// development and simulation mode.
func Default() *ParsedConfig {
	var cfg Config
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	parsed, _ := parseDurations(&cfg)
	return parsed
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 33490
	}
	if cfg.Server.ReadTimeout == "" {
		cfg.Server.ReadTimeout = "5s"
	}
	if cfg.Server.WriteTimeout == "" {
		cfg.Server.WriteTimeout = "30s"
	}
	if cfg.Data.MaxDBSizeGB == 0 {
		cfg.Data.MaxDBSizeGB = 2
	}
	if cfg.Tokens.TTL == "" {
		cfg.Tokens.TTL = "30m"
	}
	if cfg.Tokens.Secret == "" {
		cfg.Tokens.Secret = "dev-only-step-token-secret"
	}
	if cfg.Webhooks.Timeout == "" {
		cfg.Webhooks.Timeout = "10s"
	}
	if cfg.Webhooks.MaxRetries == 0 {
		cfg.Webhooks.MaxRetries = 2
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 587
	}
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("POS_SERVICE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if secret := os.Getenv("TOKEN_SECRET"); secret != "" {
		cfg.Tokens.Secret = secret
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.Email.Password = password
	}
}

func parseDurations(cfg *Config) (*ParsedConfig, error) {
	readTimeout, err := time.ParseDuration(cfg.Server.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.Server.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	tokenTTL, err := time.ParseDuration(cfg.Tokens.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid token ttl: %w", err)
	}

	webhookTimeout, err := time.ParseDuration(cfg.Webhooks.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook timeout: %w", err)
	}

	return &ParsedConfig{
		Config:         *cfg,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		TokenTTL:       tokenTTL,
		WebhookTimeout: webhookTimeout,
	}, nil
}

// validateConfig validates the configuration values
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.Webhooks.MaxRetries < 0 {
		return fmt.Errorf("webhook max_retries must be non-negative")
	}

	if cfg.Data.MaxDBSizeGB <= 0 {
		return fmt.Errorf("max_db_size_gb must be positive")
	}

	return nil
}
