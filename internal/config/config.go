package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"
)

type Logging struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

type Interpreter struct {
	MaxDepth int  `yaml:"maxDepth"` // 0 selects the interpreter default, negative disables the limit
	Trace    bool `yaml:"trace"`
}

type Repl struct {
	Prompt      string `yaml:"prompt"`
	HistorySize int    `yaml:"historySize"`
}

type RateLimiterConfig struct {
	Limit float64 `yaml:"limit"` // New sessions per second
	Burst int     `yaml:"burst"` // Burst size
}

type Serve struct {
	Address        string            `yaml:"address"`
	HostKeyPath    string            `yaml:"hostKeyPath"`
	AuthorizedKeys []string          `yaml:"authorizedKeys"` // empty accepts any key
	RateLimit      RateLimiterConfig `yaml:"rateLimit"`
	MaxSessionTime time.Duration     `yaml:"maxSessionTime"`
}

type Config struct {
	Logging     Logging     `yaml:"logging"`
	Interpreter Interpreter `yaml:"interpreter"`
	Repl        Repl        `yaml:"repl"`
	Serve       Serve       `yaml:"serve"`
}

var (
	ErrConfigFileUnreadable      = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable  = errors.New("config file is unmarshallable")
	ErrConfigFileUnwritable      = errors.New("config file could not be written")
	ErrLoggingLevelInvalid       = errors.New("logging.level must be one of debug, info, warn, error")
	ErrReplPromptMissing         = errors.New("repl.prompt is missing in config")
	ErrReplHistorySizeInvalid    = errors.New("repl.historySize must be positive")
	ErrServeAddressMissing       = errors.New("serve.address is missing in config")
	ErrServeHostKeyPathMissing   = errors.New("serve.hostKeyPath is missing in config")
	ErrServeAuthorizedKeyInvalid = errors.New("serve.authorizedKeys contains an invalid public key")
	ErrServeRateLimitInvalid     = errors.New("serve.rateLimit.limit and serve.rateLimit.burst must be positive")
	ErrHostKeyGeneration         = errors.New("failed to generate SSH host key")
)

func Default() *Config {
	return &Config{
		Logging: Logging{Level: "info"},
		Interpreter: Interpreter{
			MaxDepth: 10000,
		},
		Repl: Repl{
			Prompt:      "funcs> ",
			HistorySize: 100,
		},
		Serve: Serve{
			Address:        "127.0.0.1:2323",
			HostKeyPath:    "keys/funcs_host_key",
			AuthorizedKeys: []string{},
			RateLimit:      RateLimiterConfig{Limit: 1.0, Burst: 5},
			MaxSessionTime: time.Hour,
		},
	}
}

// LoadConfig reads configFile over the defaults, so a file only needs the
// settings it changes.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, ErrConfigFileUnreadable
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ErrConfigFileUnmarshallable
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, ok := parseLevel(c.Logging.Level); !ok {
		return ErrLoggingLevelInvalid
	}
	if c.Repl.Prompt == "" {
		return ErrReplPromptMissing
	}
	if c.Repl.HistorySize <= 0 {
		return ErrReplHistorySizeInvalid
	}
	if c.Serve.Address == "" {
		return ErrServeAddressMissing
	}
	if c.Serve.HostKeyPath == "" {
		return ErrServeHostKeyPathMissing
	}
	if c.Serve.RateLimit.Limit <= 0 || c.Serve.RateLimit.Burst <= 0 {
		return ErrServeRateLimitInvalid
	}
	for _, key := range c.Serve.AuthorizedKeys {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return ErrServeAuthorizedKeyInvalid
		}
	}
	return nil
}

// LogLevel returns the configured slog level. Validate has already
// rejected unknown names.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Logging.Level)
	return level
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// GenerateConfig writes the default configuration to configFile.
func GenerateConfig(configFile string) (*Config, error) {
	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, ErrConfigFileUnwritable
	}
	if dir := filepath.Dir(configFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, ErrConfigFileUnwritable
		}
	}
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return nil, ErrConfigFileUnwritable
	}
	return cfg, nil
}

// EnsureHostKey creates an ed25519 host key at keyPath unless one exists.
func EnsureHostKey(keyPath string) error {
	if _, err := os.Stat(keyPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return ErrHostKeyGeneration
	}
	if err := generateHostKey(keyPath); err != nil {
		return ErrHostKeyGeneration
	}
	return nil
}

func generateHostKey(keyPath string) error {
	dir := filepath.Dir(keyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}

	privateKeyPEM, err := ssh.MarshalPrivateKey(privateKey, "")
	if err != nil {
		return err
	}

	return os.WriteFile(keyPath, pem.EncodeToMemory(privateKeyPEM), 0600)
}
