package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration, grouped by concern
type Config struct {
	Environment string

	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Queue    QueueConfig
	Storage  StorageConfig
	Parser   ParserConfig
	Ingest   IngestConfig
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadMB     int64
	MaxBatchItems   int

	// Per client IP
	RateLimitRPS   float64
	RateLimitBurst int
}

// DatabaseConfig configures the Postgres connection pool
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	LogLevel        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// CacheConfig configures the Redis parse-result cache
type CacheConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// QueueConfig configures the asynq client and worker
type QueueConfig struct {
	RedisAddr   string
	Password    string
	DB          int
	Concurrency int
	MaxRetries  int
	Timeout     time.Duration
	Queues      map[string]int
}

// StorageConfig configures where uploads and enriched exports are written
type StorageConfig struct {
	BasePath string
	// Retention is how long batch files are kept; zero keeps them forever
	Retention time.Duration
}

// ParserConfig configures the goods description parser
type ParserConfig struct {
	// PatternFile optionally points to a YAML keyword list overriding the built-ins
	PatternFile string
	Workers     int
}

// IngestConfig configures the shipment ingest pipeline
type IngestConfig struct {
	DescriptionColumn string
	NormalizeText     bool
	Deduplicate       bool
	DedupColumns      []string
	Persist           bool
	SaveBatchSize     int
}

// Load reads configuration from a .env file (if any) and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			slog.Debug("no .env file found, using environment variables only")
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "60s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("MAX_FILE_SIZE_MB", 100)
	v.SetDefault("MAX_BATCH_ITEMS", 5000)
	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "shipments")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("DB_MAX_CONNECTIONS", 20)
	v.SetDefault("DB_MIN_CONNECTIONS", 2)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "1h")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "10m")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "24h")

	v.SetDefault("QUEUE_REDIS_DB", 1)
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("WORKER_MAX_RETRIES", 3)
	v.SetDefault("WORKER_TASK_TIMEOUT", "30m")

	v.SetDefault("STORAGE_PATH", "./data")
	v.SetDefault("STORAGE_RETENTION", "0s")

	v.SetDefault("PARSER_PATTERN_FILE", "")
	v.SetDefault("PARSER_WORKERS", 0)

	v.SetDefault("INGEST_DESCRIPTION_COLUMN", "GOODS DESCRIPTION")
	v.SetDefault("INGEST_NORMALIZE_TEXT", true)
	v.SetDefault("INGEST_DEDUPLICATE", false)
	v.SetDefault("INGEST_DEDUP_COLUMNS", "DATE,GOODS DESCRIPTION,QUANTITY,TOTAL VALUE_INR")
	v.SetDefault("INGEST_PERSIST", true)
	v.SetDefault("INGEST_SAVE_BATCH_SIZE", 500)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{Environment: v.GetString("ENV")}

	cfg.Server = ServerConfig{
		Host:            v.GetString("SERVER_HOST"),
		Port:            v.GetString("SERVER_PORT"),
		ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		MaxUploadMB:     v.GetInt64("MAX_FILE_SIZE_MB"),
		MaxBatchItems:   v.GetInt("MAX_BATCH_ITEMS"),
		RateLimitRPS:    v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:  v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Database:        v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSLMODE"),
		LogLevel:        v.GetString("DB_LOG_LEVEL"),
		MaxConnections:  v.GetInt("DB_MAX_CONNECTIONS"),
		MinConnections:  v.GetInt("DB_MIN_CONNECTIONS"),
		MaxConnLifetime: v.GetDuration("DB_MAX_CONN_LIFETIME"),
		MaxConnIdleTime: v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
	}

	cfg.Cache = CacheConfig{
		Enabled:  v.GetBool("CACHE_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetString("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		TTL:      v.GetDuration("CACHE_TTL"),
	}

	cfg.Queue = QueueConfig{
		RedisAddr:   cfg.Cache.Addr(),
		Password:    cfg.Cache.Password,
		DB:          v.GetInt("QUEUE_REDIS_DB"),
		Concurrency: v.GetInt("WORKER_CONCURRENCY"),
		MaxRetries:  v.GetInt("WORKER_MAX_RETRIES"),
		Timeout:     v.GetDuration("WORKER_TASK_TIMEOUT"),
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}

	cfg.Storage = StorageConfig{
		BasePath:  v.GetString("STORAGE_PATH"),
		Retention: v.GetDuration("STORAGE_RETENTION"),
	}

	cfg.Parser = ParserConfig{
		PatternFile: v.GetString("PARSER_PATTERN_FILE"),
		Workers:     v.GetInt("PARSER_WORKERS"),
	}

	cfg.Ingest = IngestConfig{
		DescriptionColumn: v.GetString("INGEST_DESCRIPTION_COLUMN"),
		NormalizeText:     v.GetBool("INGEST_NORMALIZE_TEXT"),
		Deduplicate:       v.GetBool("INGEST_DEDUPLICATE"),
		DedupColumns:      splitList(v.GetString("INGEST_DEDUP_COLUMNS")),
		Persist:           v.GetBool("INGEST_PERSIST"),
		SaveBatchSize:     v.GetInt("INGEST_SAVE_BATCH_SIZE"),
	}

	return cfg
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.Ingest.Persist || c.Ingest.Deduplicate {
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required when persistence or deduplication is enabled")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required when persistence or deduplication is enabled")
		}
	}
	if c.Ingest.DescriptionColumn == "" {
		return fmt.Errorf("INGEST_DESCRIPTION_COLUMN must not be empty")
	}
	if c.Ingest.Deduplicate && len(c.Ingest.DedupColumns) == 0 {
		return fmt.Errorf("INGEST_DEDUP_COLUMNS must name at least one column")
	}
	if c.Parser.Workers < 0 {
		return fmt.Errorf("PARSER_WORKERS must be zero (auto) or positive, got %d", c.Parser.Workers)
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Queue.Concurrency)
	}
	if c.Ingest.SaveBatchSize <= 0 {
		return fmt.Errorf("INGEST_SAVE_BATCH_SIZE must be positive, got %d", c.Ingest.SaveBatchSize)
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("STORAGE_RETENTION must not be negative")
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// DSN builds the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Addr returns the Redis host:port
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Addr returns the HTTP listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LogConfig logs the configuration without secrets
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.String("env", c.Environment),
		slog.String("server", c.Server.Addr()),
		slog.String("database", fmt.Sprintf("%s:%d/%s", c.Database.Host, c.Database.Port, c.Database.Database)),
		slog.Bool("db_password_set", c.Database.Password != ""),
		slog.Bool("cache_enabled", c.Cache.Enabled),
		slog.String("redis", c.Cache.Addr()),
		slog.Int("worker_concurrency", c.Queue.Concurrency),
		slog.Int("parser_workers", c.Parser.Workers),
		slog.String("pattern_file", c.Parser.PatternFile),
		slog.Bool("normalize_text", c.Ingest.NormalizeText),
		slog.Bool("deduplicate", c.Ingest.Deduplicate),
		slog.Bool("persist", c.Ingest.Persist),
	)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
