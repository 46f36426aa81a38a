package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
	Store struct {
		Backend string `yaml:"backend"` // memory, redis or sqlite
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Provider struct {
		Kind       string `yaml:"kind"` // opentdb, postgres or static
		URL        string `yaml:"url"`
		// Amount, Difficulty and Type shape the import command only; played
		// sessions always use the fixed batch.
		Amount     int    `yaml:"amount"`
		Difficulty string `yaml:"difficulty"`
		Type       string `yaml:"type"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"provider"`
	Quiz struct {
		Tick string `yaml:"tick"`
	} `yaml:"quiz"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Store.Backend = "memory"
	cfg.Redis.TTL = "24h"
	cfg.SQLite.Path = "./data/snapshots.db"
	cfg.Provider.Kind = "opentdb"
	cfg.Provider.Amount = 10
	cfg.Provider.Difficulty = "easy"
	cfg.Provider.Type = "multiple"
	cfg.Provider.Timeout = "10s"
	cfg.Quiz.Tick = "1s"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.SQLite.Path, "SQLITE_PATH")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Provider.Kind, "PROVIDER_KIND")
	setString(&cfg.Provider.URL, "PROVIDER_URL")
	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
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
