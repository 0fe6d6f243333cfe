package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendPostgres   = "postgres"
	BackendSqlite     = "sqlite"
	BackendTableStore = "tablestore"
	BackendMemory     = "memory"

	ArchiveNone   = ""
	ArchiveS3     = "s3"
	ArchiveGDrive = "gdrive"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// prometheus metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// redis (sessions, rate limiting)
	RedisHost  string `toml:"redis_host"`
	RedisPort  string `toml:"redis_port"`
	SessionTTL string `toml:"session_ttl"`

	LoginRateLimitAllowedPerMin   int `toml:"login_rate_limit_allowed_per_min"`
	RestoreRateLimitAllowedPerMin int `toml:"restore_rate_limit_allowed_per_min"`

	// record store
	StoreBackend    string `toml:"store_backend"`
	PostgresHost    string `toml:"postgres_host"`
	PostgresPort    string `toml:"postgres_port"`
	PostgresDBName  string `toml:"postgres_db_name"`
	SqlitePath      string `toml:"sqlite_path"`
	TableStoreURL   string `toml:"tablestore_url"`
	TableStoreTable string `toml:"tablestore_table"`

	// off-site backup archive
	BackupArchive    string `toml:"backup_archive"`
	S3Bucket         string `toml:"s3_bucket"`
	S3Region         string `toml:"s3_region"`
	S3Endpoint       string `toml:"s3_endpoint"`
	S3PathStyle      bool   `toml:"s3_path_style"`
	GDriveFolderName string `toml:"gdrive_folder_name"`
}

type Toml struct {
	Development *Config `toml:"development"`
	Production  *Config `toml:"production"`
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing", env)
	}

	return cfg, nil
}

// Load reads the TOML file and returns the validated config for env.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromToml(&t, env)
}

// Parse is like Load, but reads the TOML document from a string.
func Parse(env, content string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(content, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.StoreBackend == "" {
		c.StoreBackend = BackendPostgres
	}
	if c.SessionTTL == "" {
		c.SessionTTL = "168h"
	}
	if c.TableStoreTable == "" {
		c.TableStoreTable = "workouts_v2"
	}
	if c.SqlitePath == "" {
		c.SqlitePath = "workouts.db"
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 10
	}
	if c.RestoreRateLimitAllowedPerMin == 0 {
		c.RestoreRateLimitAllowedPerMin = 5
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be set")
	}

	switch c.StoreBackend {
	case BackendPostgres:
		if c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "" {
			return errors.New("postgres backend: host, port and db name must be set")
		}
	case BackendSqlite, BackendMemory:
	case BackendTableStore:
		if c.TableStoreURL == "" {
			return errors.New("tablestore backend: url must be set")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}

	switch c.BackupArchive {
	case ArchiveNone, ArchiveGDrive:
	case ArchiveS3:
		if c.S3Bucket == "" {
			return errors.New("s3 backup archive: bucket must be set")
		}
	default:
		return fmt.Errorf("unknown backup archive: %s", c.BackupArchive)
	}

	if _, err := c.SessionTTLDuration(); err != nil {
		return err
	}

	return nil
}

func (c *Config) SessionTTLDuration() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("parse session ttl [%s]: %w", c.SessionTTL, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	return ttl, nil
}
