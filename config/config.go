package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBURL     string
	OpsDBPath string
	LogLevel  string
	Provider  ProviderConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	S3        S3Config
}

// ProviderConfig describes the upstream listing-data API. The static parts
// live in a yaml profile; the token always comes from the environment.
type ProviderConfig struct {
	BaseURL       string            `yaml:"base_url"`
	Resources     map[string]string `yaml:"resources"`
	PropertyTypes []string          `yaml:"property_types"`
	PageSize      int               `yaml:"page_size"`
	RateRPS       float64           `yaml:"rate_rps"`
	Token         string            `yaml:"-"`
}

type SyncConfig struct {
	EnrichBatchSize    int
	FleetDelay         time.Duration
	StaleRunAfter      time.Duration
	IncrementalOverlap time.Duration
	RetryMax           int
	RequestTimeout     time.Duration
}

type SchedulerConfig struct {
	Cron     string
	Interval time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBURL:     os.Getenv("DATABASE_URL"),
		OpsDBPath: getEnv("OPS_DB_PATH", "condosync.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Sync: SyncConfig{
			EnrichBatchSize:    getEnvInt("ENRICH_BATCH_SIZE", 20),
			FleetDelay:         getEnvDuration("FLEET_DELAY", 2*time.Second),
			StaleRunAfter:      getEnvDuration("STALE_RUN_AFTER", 2*time.Hour),
			IncrementalOverlap: getEnvDuration("INCREMENTAL_OVERLAP", 5*time.Minute),
			RetryMax:           getEnvInt("PROVIDER_RETRY_MAX", 3),
			RequestTimeout:     getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SYNC_CRON"),
			Interval: getEnvDuration("SYNC_INTERVAL", 0),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
	}

	if err := cfg.loadProviderProfile(getEnv("PROVIDER_CONFIG", "config/provider.yaml")); err != nil {
		return nil, err
	}
	cfg.Provider.Token = os.Getenv("PROVIDER_TOKEN")

	if cfg.Provider.PageSize <= 0 {
		cfg.Provider.PageSize = 100
	}
	if cfg.Provider.RateRPS <= 0 {
		cfg.Provider.RateRPS = 2
	}

	return cfg, nil
}

func (c *Config) loadProviderProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Env-only setup.
			c.Provider.BaseURL = os.Getenv("PROVIDER_BASE_URL")
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, &c.Provider); err != nil {
		return fmt.Errorf("parse provider profile %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
