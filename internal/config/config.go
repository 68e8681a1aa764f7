package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Slack    SlackConfig    `yaml:"slack"`
	Triage   TriageConfig   `yaml:"triage"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"readTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
	MetricsPort       int           `yaml:"metricsPort"`
}

type ProxyConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	InternalKey     string        `yaml:"internalKey"`
	JWTSecret       string        `yaml:"jwtSecret"`
}

type SlackConfig struct {
	BotToken       string `yaml:"botToken"`
	SigningSecret  string `yaml:"signingSecret"`
	Command        string `yaml:"command"`
	DefaultChannel string `yaml:"defaultChannel"`
}

type TriageConfig struct {
	URL         string        `yaml:"url"`
	InternalKey string        `yaml:"internalKey"`
	Timeout     time.Duration `yaml:"timeout"`
}

type OpenAIConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	ServiceKey string        `yaml:"serviceKey"`
	Timeout    time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path              string `yaml:"path"`
	MaxOpenConns      int    `yaml:"maxOpenConns"`
	PragmaJournalMode string `yaml:"pragmaJournalMode"`
	PragmaBusyTimeout int    `yaml:"pragmaBusyTimeout"`
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	BackoffBase  time.Duration `yaml:"backoffBase"`
	JobTimeout   time.Duration `yaml:"jobTimeout"`
	BatchSize    int           `yaml:"batchSize"`
	MaxAttempts  int           `yaml:"maxAttempts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads a YAML config file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RequestsPerMinute: 120,
			MetricsPort:       9090,
		},
		Proxy: ProxyConfig{
			Enabled:         true,
			Port:            8081,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Slack: SlackConfig{
			Command:        "/chamado",
			DefaultChannel: "#triagem-chamados",
		},
		Triage: TriageConfig{
			URL:     "http://localhost:8081/v1/triage",
			Timeout: 90 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			MaxTokens:   1500,
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Storage: StorageConfig{
			Timeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			SQLite: SQLiteConfig{
				Path:              "/data/triagebot.db",
				MaxOpenConns:      1,
				PragmaJournalMode: "wal",
				PragmaBusyTimeout: 5000,
			},
		},
		Worker: WorkerConfig{
			PollInterval: 5 * time.Second,
			BackoffBase:  10 * time.Second,
			JobTimeout:   2 * time.Minute,
			BatchSize:    10,
			MaxAttempts:  3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}
