package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Lock backends accepted in lock_backend / AMYQ_LOCK_BACKEND.
const (
	LockBackendSQLite = "sqlite"
	LockBackendRedis  = "redis"
	LockBackendMemory = "memory"
)

// Config represents the application configuration
type Config struct {
	DBPath       string `yaml:"db_path"`
	DefaultActor string `yaml:"default_actor"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	Output       string `yaml:"output"`

	LockBackend   string        `yaml:"lock_backend"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	WebhookURLs []string `yaml:"webhook_urls"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`

	DaemonAddr  string `yaml:"daemon_addr"`
	DaemonToken string `yaml:"daemon_token"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/amyq/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:    "warn",
		LogFormat:   "console",
		Output:      "table",
		LockBackend: LockBackendSQLite,
		LockTTL:     30 * time.Second,
		KafkaTopic:  "record.merged",
		DaemonAddr:  "127.0.0.1:8088",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional
	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if dbPath := getEnvOrFile("AMYQ_DB_PATH", "AMYQ_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if actor := os.Getenv("AMYQ_ACTOR"); actor != "" {
		cfg.DefaultActor = actor
	}
	if logLevel := os.Getenv("AMYQ_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat := os.Getenv("AMYQ_LOG_FORMAT"); logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if output := os.Getenv("AMYQ_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if backend := os.Getenv("AMYQ_LOCK_BACKEND"); backend != "" {
		cfg.LockBackend = backend
	}
	if ttl := os.Getenv("AMYQ_LOCK_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid AMYQ_LOCK_TTL %q: %w", ttl, err)
		}
		cfg.LockTTL = d
	}
	if addr := os.Getenv("AMYQ_REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	if password := getEnvOrFile("AMYQ_REDIS_PASSWORD", "AMYQ_REDIS_PASSWORD_FILE"); password != "" {
		cfg.RedisPassword = password
	}
	if redisDB := os.Getenv("AMYQ_REDIS_DB"); redisDB != "" {
		n, err := strconv.Atoi(redisDB)
		if err != nil {
			return nil, fmt.Errorf("invalid AMYQ_REDIS_DB %q: %w", redisDB, err)
		}
		cfg.RedisDB = n
	}
	if brokers := os.Getenv("AMYQ_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}
	if topic := os.Getenv("AMYQ_KAFKA_TOPIC"); topic != "" {
		cfg.KafkaTopic = topic
	}
	if urls := os.Getenv("AMYQ_WEBHOOK_URLS"); urls != "" {
		cfg.WebhookURLs = splitList(urls)
	}
	if endpoint := os.Getenv("AMYQ_OTLP_ENDPOINT"); endpoint != "" {
		cfg.OTLPEndpoint = endpoint
	}
	if addr := os.Getenv("AMYQD_ADDR"); addr != "" {
		cfg.DaemonAddr = addr
	}
	if token := getEnvOrFile("AMYQD_TOKEN", "AMYQD_TOKEN_FILE"); token != "" {
		cfg.DaemonToken = token
	}

	switch cfg.LockBackend {
	case LockBackendSQLite, LockBackendMemory:
	case LockBackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("lock backend redis needs AMYQ_REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("unknown lock backend %q (expected sqlite, redis or memory)", cfg.LockBackend)
	}

	// Set defaults if not configured
	if cfg.DBPath == "" {
		// Check for project-local database first
		if _, err := os.Stat(".amyq/amyq.db"); err == nil {
			cfg.DBPath = ".amyq/amyq.db"
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", "amyq", "amyq.db")
		}
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/amyq/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "amyq", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// GetActorID returns the current actor identifier from environment or config.
// Priority: AMYQ_ACTOR_ID > AMYQ_ACTOR > config.default_actor
func (c *Config) GetActorID() string {
	if actorID := os.Getenv("AMYQ_ACTOR_ID"); actorID != "" {
		return actorID
	}
	if actor := os.Getenv("AMYQ_ACTOR"); actor != "" {
		return actor
	}
	return c.DefaultActor
}
