// Package config loads daemon configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultListenAddr     = ":8000"
	DefaultBaseURL        = "http://localhost:8000"
	DefaultGrantTTL       = time.Hour
	DefaultAccessTokenTTL = 30 * time.Minute
	DefaultUploadDir      = "./uploads"
	DefaultLedgerBackend  = "memory"
)

// Config is the full daemon configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	BaseURL    string `yaml:"base_url"`

	// SealKeyHex is the hex-encoded 32-byte grant sealing key. It is
	// required and never logged.
	SealKeyHex string `yaml:"seal_key"`

	GrantTTL time.Duration `yaml:"grant_ttl"`

	AccessTokenSecret string        `yaml:"access_token_secret"`
	AccessTokenTTL    time.Duration `yaml:"access_token_ttl"`

	UploadDir         string   `yaml:"upload_dir"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`

	// LedgerBackend selects the grant ledger: memory, redis or badger.
	LedgerBackend string `yaml:"ledger_backend"`
	RedisURL      string `yaml:"redis_url"`
	BadgerDir     string `yaml:"badger_dir"`

	SMTP SMTPConfig `yaml:"smtp"`
}

// SMTPConfig configures the verification mailer. An empty Host disables
// outbound mail.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Load reads the YAML file at path when it exists, then applies EZ_*
// environment overrides and defaults. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString("EZ_LISTEN_ADDR", &c.ListenAddr)
	envString("EZ_BASE_URL", &c.BaseURL)
	envString("EZ_SEAL_KEY", &c.SealKeyHex)
	envDuration("EZ_GRANT_TTL", &c.GrantTTL)
	envString("EZ_ACCESS_TOKEN_SECRET", &c.AccessTokenSecret)
	envDuration("EZ_ACCESS_TOKEN_TTL", &c.AccessTokenTTL)
	envString("EZ_UPLOAD_DIR", &c.UploadDir)
	envInt64("EZ_MAX_FILE_SIZE", &c.MaxFileSize)
	envString("EZ_LEDGER_BACKEND", &c.LedgerBackend)
	envString("EZ_REDIS_URL", &c.RedisURL)
	envString("EZ_BADGER_DIR", &c.BadgerDir)
	envString("EZ_SMTP_HOST", &c.SMTP.Host)
	envInt("EZ_SMTP_PORT", &c.SMTP.Port)
	envString("EZ_SMTP_USERNAME", &c.SMTP.Username)
	envString("EZ_SMTP_PASSWORD", &c.SMTP.Password)
	envString("EZ_SMTP_FROM", &c.SMTP.From)

	if v := os.Getenv("EZ_ALLOWED_EXTENSIONS"); v != "" {
		c.AllowedExtensions = nil
		for _, ext := range strings.Split(v, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				c.AllowedExtensions = append(c.AllowedExtensions, ext)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.GrantTTL == 0 {
		c.GrantTTL = DefaultGrantTTL
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.UploadDir == "" {
		c.UploadDir = DefaultUploadDir
	}
	if c.LedgerBackend == "" {
		c.LedgerBackend = DefaultLedgerBackend
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

func (c *Config) validate() error {
	if c.SealKeyHex == "" {
		return fmt.Errorf("seal_key is required")
	}
	if _, err := c.SealKey(); err != nil {
		return err
	}
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("access_token_secret is required")
	}
	switch c.LedgerBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("redis_url is required for the redis ledger backend")
		}
	case "badger":
		if c.BadgerDir == "" {
			return fmt.Errorf("badger_dir is required for the badger ledger backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.LedgerBackend)
	}
	return nil
}

// SealKey decodes the configured sealing key.
func (c *Config) SealKey() ([]byte, error) {
	key, err := hex.DecodeString(c.SealKeyHex)
	if err != nil {
		return nil, fmt.Errorf("seal_key is not valid hex")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("seal_key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envInt64(name string, dst *int64) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
