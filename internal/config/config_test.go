package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigToml = `
[development]
host = "localhost"
port = 9000
prometheus_metrics_host = "localhost"
prometheus_metrics_port = "9091"
log_level = "trace"
log_to_stdout = true
redis_host = "localhost"
redis_port = "6379"
store_backend = "sqlite"
sqlite_path = "/tmp/workouts-dev.db"

[production]
host = "0.0.0.0"
port = 8080
log_level = "info"
logs_path = "/var/log/workoutlog/service"
redis_host = "redis"
redis_port = "6379"
session_ttl = "24h"
store_backend = "postgres"
postgres_host = "db"
postgres_port = "5432"
postgres_db_name = "workouts"
backup_archive = "s3"
s3_bucket = "workoutlog-backups"
s3_region = "eu-central-1"
`

func TestLoad(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfigToml), 0o600))

	devCfg, err := Load("dev", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "dev", devCfg.Environment)
	assert.Equal(t, 9000, devCfg.Port)
	assert.Equal(t, BackendSqlite, devCfg.StoreBackend)
	assert.Equal(t, "/tmp/workouts-dev.db", devCfg.SqlitePath)
	assert.Equal(t, "trace", devCfg.LogLevel)
	assert.True(t, devCfg.LogToStdout)
	assert.Equal(t, 10, devCfg.LoginRateLimitAllowedPerMin)
	ttl, err := devCfg.SessionTTLDuration()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, ttl)

	prodCfg, err := Load("production", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "production", prodCfg.Environment)
	assert.Equal(t, BackendPostgres, prodCfg.StoreBackend)
	assert.Equal(t, "workouts", prodCfg.PostgresDBName)
	assert.Equal(t, ArchiveS3, prodCfg.BackupArchive)
	assert.Equal(t, "workoutlog-backups", prodCfg.S3Bucket)
	ttl, err = prodCfg.SessionTTLDuration()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load("dev", "/non/existing/config.toml")
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name        string
		env         string
		content     string
		expectedErr string
	}{
		{
			name:        "unknown env",
			env:         "staging",
			content:     testConfigToml,
			expectedErr: "unknown env: staging",
		},
		{
			name:        "env section missing",
			env:         "prod",
			content:     "[development]\nport = 9000\n",
			expectedErr: "config for env [prod] missing",
		},
		{
			name:        "port missing",
			env:         "dev",
			content:     "[development]\nstore_backend = \"memory\"\n",
			expectedErr: "port must be set",
		},
		{
			name:        "unknown backend",
			env:         "dev",
			content:     "[development]\nport = 9000\nstore_backend = \"mongo\"\n",
			expectedErr: "unknown store backend: mongo",
		},
		{
			name:        "postgres without host",
			env:         "dev",
			content:     "[development]\nport = 9000\n",
			expectedErr: "postgres backend",
		},
		{
			name:        "tablestore without url",
			env:         "dev",
			content:     "[development]\nport = 9000\nstore_backend = \"tablestore\"\n",
			expectedErr: "tablestore backend: url must be set",
		},
		{
			name:        "s3 archive without bucket",
			env:         "dev",
			content:     "[development]\nport = 9000\nstore_backend = \"memory\"\nbackup_archive = \"s3\"\n",
			expectedErr: "bucket must be set",
		},
		{
			name:        "invalid session ttl",
			env:         "dev",
			content:     "[development]\nport = 9000\nstore_backend = \"memory\"\nsession_ttl = \"forever\"\n",
			expectedErr: "parse session ttl",
		},
		{
			name:        "broken toml",
			env:         "dev",
			content:     "[development\nport = 9000\n",
			expectedErr: "decode config",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse(tc.env, tc.content)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
}

func TestParse_TableStoreDefaults(t *testing.T) {
	cfg, err := Parse("dev", `
[development]
port = 9000
store_backend = "tablestore"
tablestore_url = "https://example.supabase.co"
`)
	require.NoError(t, err)
	assert.Equal(t, "workouts_v2", cfg.TableStoreTable)
	assert.Equal(t, 5, cfg.RestoreRateLimitAllowedPerMin)
}
