package config

import (
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// configPathEnv points at an optional YAML config file. Environment variables
// override anything loaded from it.
const configPathEnv = "CONFIG_FILE"

type Config struct {
	Port        string `yaml:"port"`
	DBPath      string `yaml:"dbPath"`
	UploadDir   string `yaml:"uploadDir"`
	Workers     int    `yaml:"workers"`
	ChunkSize   int    `yaml:"chunkSize"`
	MaxAttempts int    `yaml:"maxAttempts"`
	Redis       Redis  `yaml:"redis"`
}

// Redis is optional; with an empty Addr the importer falls back to the
// in-process progress tracker.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func Load() Config {
	cfg := Config{
		Port:        "8080",
		DBPath:      "products.db",
		UploadDir:   "uploads",
		Workers:     5,
		ChunkSize:   1000,
		MaxAttempts: 3,
	}

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("config: cannot read file, using defaults", "path", path, "error", err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			slog.Warn("config: cannot parse file, using defaults", "path", path, "error", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.ChunkSize = getEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.MaxAttempts = getEnvInt("MAX_ATTEMPTS", c.MaxAttempts)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
