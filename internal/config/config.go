// Package config loads runtime configuration from environment variables
// (optionally seeded by a .env file) and an optional YAML overlay, in the
// layering order spec §6 describes: defaults, then YAML file, then
// environment variables (highest precedence).
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Port               int    `yaml:"port"`
	NodeEnv            string `yaml:"node_env"`
	ProductionSafeMode bool   `yaml:"production_safe_mode"`

	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`

	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	LLMBaseURL       string        `yaml:"llm_base_url"`
	LLMModel         string        `yaml:"llm_model"`
	LLMTemperature   float64       `yaml:"llm_temperature"`
	LLMContextLength int           `yaml:"llm_context_length"`
	LLMTimeout       time.Duration `yaml:"-"`

	FSAllowedPath string `yaml:"fs_allowed_path"`
}

// defaults mirror the reference service's documented fallbacks.
func defaults() Config {
	return Config{
		Port:               4000,
		NodeEnv:            "development",
		ProductionSafeMode: false,
		DBHost:             "localhost",
		DBPort:             "5432",
		DBName:             "agentrt",
		RedisHost:          "localhost",
		RedisPort:          "6379",
		LLMBaseURL:         "http://localhost:11434",
		LLMModel:           "llama3.1",
		LLMTemperature:     0.1,
		LLMContextLength:   4096,
		LLMTimeout:         60 * time.Second,
		FSAllowedPath:      ".",
	}
}

// Load resolves configuration: defaults, overlaid by an optional YAML
// file at yamlPath, overlaid by environment variables (and a ".env" file
// in the working directory, loaded via godotenv if present).
func Load(yamlPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if yamlPath != "" {
		if err := applyYAML(&cfg, yamlPath); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("parse config file: expected single document")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		cfg.NodeEnv = v
	}
	if v := os.Getenv("PRODUCTION_SAFE_MODE"); v != "" {
		cfg.ProductionSafeMode = v == "true" || v == "1"
	}

	setStr(&cfg.DBHost, "DB_HOST")
	setStr(&cfg.DBPort, "DB_PORT")
	setStr(&cfg.DBUser, "DB_USER")
	setStr(&cfg.DBPassword, "DB_PASSWORD")
	setStr(&cfg.DBName, "DB_NAME")

	setStr(&cfg.RedisHost, "REDIS_HOST")
	setStr(&cfg.RedisPort, "REDIS_PORT")
	setStr(&cfg.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}

	setStr(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setStr(&cfg.LLMModel, "LLM_MODEL")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLMTemperature = f
		}
	}
	if v := os.Getenv("LLM_CONTEXT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLMContextLength = n
		}
	}
	if v := os.Getenv("LLM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLMTimeout = time.Duration(n) * time.Millisecond
		}
	}

	setStr(&cfg.FSAllowedPath, "FS_ALLOWED_PATH")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
