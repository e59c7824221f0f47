package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = "5000"
	DefaultMaxUploadBytes = 32 << 20
)

type Config struct {
	Port           string     `yaml:"port"`
	MaxUploadBytes int64      `yaml:"max_upload_bytes"`
	Logger         Logger     `yaml:"logger"`
	Storage        Storage    `yaml:"storage"`
	Database       Database   `yaml:"database"`
	Classifier     Classifier `yaml:"classifier"`
}

type Logger struct {
	Level      string `yaml:"level"`
	JSONFormat bool   `yaml:"json_format"`
}

// Storage configures the blob store. An empty bucket selects the in-memory
// store.
type Storage struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// Database configures the findings table. An empty DSN selects the
// in-memory store.
type Database struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type Classifier struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Debug  bool   `yaml:"debug"`
}

func Default() *Config {
	return &Config{
		Port:           DefaultPort,
		MaxUploadBytes: DefaultMaxUploadBytes,
		Logger:         Logger{Level: "INFO"},
		Storage:        Storage{Region: "us-east-1"},
		Database:       Database{Table: "bug_reports"},
	}
}

// Load reads the optional YAML file at path, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, target *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}

	set("PORT", &cfg.Port)
	set("LOG_LEVEL", &cfg.Logger.Level)
	set("DATABASE_URL", &cfg.Database.DSN)
	set("FINDINGS_TABLE", &cfg.Database.Table)
	set("STORAGE_BUCKET", &cfg.Storage.Bucket)
	set("STORAGE_REGION", &cfg.Storage.Region)
	set("STORAGE_ENDPOINT", &cfg.Storage.Endpoint)
	set("STORAGE_PUBLIC_URL", &cfg.Storage.PublicBaseURL)
	set("CLASSIFIER_URL", &cfg.Classifier.URL)
	set("CLASSIFIER_API_KEY", &cfg.Classifier.APIKey)

	if value, ok := lookup("MAX_UPLOAD_BYTES"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
}

func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.Classifier.URL != "" {
		u, err := url.Parse(c.Classifier.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid classifier url %q", c.Classifier.URL)
		}
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
