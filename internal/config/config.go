package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers for per-identity progress.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Session struct {
		TTL string `yaml:"ttl"`
	} `yaml:"session"`
	LLM struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"llm"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	I18n struct {
		DefaultLang string `yaml:"default_lang"`
	} `yaml:"i18n"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Storage.Driver = DriverMemory
	cfg.Storage.SQLitePath = "quizmaster.db"
	cfg.Redis.TTL = "10m"
	cfg.Quiz.TTL = "10m"
	cfg.Session.TTL = "2h"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.I18n.DefaultLang = "en"
	return cfg
}

// Load reads YAML config from path on top of the defaults and applies
// QUIZMASTER_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"QUIZMASTER_STORAGE_DRIVER": &cfg.Storage.Driver,
		"QUIZMASTER_SQLITE_PATH":    &cfg.Storage.SQLitePath,
		"QUIZMASTER_REDIS_ADDR":     &cfg.Redis.Addr,
		"QUIZMASTER_REDIS_PASSWORD": &cfg.Redis.Password,
		"QUIZMASTER_POSTGRES_URL":   &cfg.Postgres.URL,
		"QUIZMASTER_LLM_BASE_URL":   &cfg.LLM.BaseURL,
		"QUIZMASTER_LLM_API_KEY":    &cfg.LLM.APIKey,
		"QUIZMASTER_LLM_MODEL":      &cfg.LLM.Model,
		"QUIZMASTER_LOG_LEVEL":      &cfg.Log.Level,
		"QUIZMASTER_LOG_FORMAT":     &cfg.Log.Format,
		"QUIZMASTER_DEFAULT_LANG":   &cfg.I18n.DefaultLang,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("QUIZMASTER_REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUIZMASTER_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	switch c.Storage.Driver {
	case DriverMemory, "":
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("storage driver redis requires redis.addr")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage driver sqlite requires storage.sqlite_path")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
