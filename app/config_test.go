package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"BLACKFONG_CONFIG",
	"BLACKFONG_BASE_DIR",
	"BLACKFONG_DATA_DIR",
	"BLACKFONG_DB_PATH",
	"BLACKFONG_LOG_DIR",
	"BLACKFONG_BACKUP_DIR",
	"BLACKFONG_API_HOST",
	"BLACKFONG_API_PORT",
	"BLACKFONG_TOKEN",
	"BLACKFONG_JWT_SECRET",
	"BLACKFONG_JWT_TTL",
	"BLACKFONG_ALLOWED_SYSTEMD_UNITS",
	"BLACKFONG_NODE_STALE_SECONDS",
	"BLACKFONG_BACKUP_KEEP_DAYS",
	"BLACKFONG_BACKUP_INTERVAL",
	"BLACKFONG_COMMAND_TIMEOUT",
	"BLACKFONG_EXECUTOR_CONCURRENCY",
	"BLACKFONG_CRITICAL_EVENT_WINDOW",
	"BLACKFONG_COMMAND_RATE",
	"BLACKFONG_COMMAND_BURST",
	"BLACKFONG_CORS_ORIGINS",
	"BLACKFONG_NATS_URL",
	"BLACKFONG_TRACE_STDOUT",
	"BLACKFONG_LOG_LEVEL",
	"BLACKFONG_LOG_FORMAT",
}

// clearConfigEnv unsets every config variable for the duration of the test
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/opt/blackfong", cfg.BaseDir)
	assert.Equal(t, "/opt/blackfong/data", cfg.DataDir)
	assert.Equal(t, "/opt/blackfong/data/blackfong.db", cfg.DBPath)
	assert.Equal(t, "/opt/blackfong/data/logs", cfg.LogDir)
	assert.Equal(t, "/opt/blackfong/data/backups", cfg.BackupDir)
	assert.Equal(t, "127.0.0.1:7331", cfg.Addr())
	assert.Empty(t, cfg.Token)
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.AllowedUnits)
	assert.Equal(t, []string{"reboot", "shutdown", "update"}, cfg.CommandNames())
	assert.Equal(t, []string{"shutdown", "-h", "now"}, cfg.AllowedCommands["shutdown"])
	assert.Equal(t, 60*time.Second, cfg.NodeStale)
	assert.Equal(t, 7, cfg.BackupKeepDays)
	assert.Equal(t, time.Hour, cfg.BackupInterval)
	assert.Equal(t, 5*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, 2, cfg.ExecutorConcurrency)
	assert.Equal(t, 15*time.Minute, cfg.CriticalWindow)
	assert.Equal(t, 1.0, cfg.CommandRate)
	assert.Equal(t, 5, cfg.CommandBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfigEnvironment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BLACKFONG_BASE_DIR", "/srv/bf")
	t.Setenv("BLACKFONG_API_PORT", "8080")
	t.Setenv("BLACKFONG_TOKEN", "  s3cret  ")
	t.Setenv("BLACKFONG_ALLOWED_SYSTEMD_UNITS", "nginx, ssh,,nginx")
	t.Setenv("BLACKFONG_NODE_STALE_SECONDS", "30")
	t.Setenv("BLACKFONG_BACKUP_INTERVAL", "90")
	t.Setenv("BLACKFONG_COMMAND_TIMEOUT", "2m")
	t.Setenv("BLACKFONG_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/srv/bf/data/blackfong.db", cfg.DBPath)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, "s3cret", cfg.Token)
	assert.Equal(t, []string{"nginx", "ssh"}, cfg.AllowedUnits)
	assert.Equal(t, 30*time.Second, cfg.NodeStale)
	assert.Equal(t, 90*time.Second, cfg.BackupInterval)
	assert.Equal(t, 2*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "blackfong.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_dir: /var/lib/bf
api:
  host: 0.0.0.0
  port: 9000
allowed_systemd_units: [docker, nginx]
commands:
  uptime: [uptime]
backup_keep_days: 0
node_stale_seconds: 120
critical_event_window: 5m
`), 0644))
	t.Setenv("BLACKFONG_CONFIG", path)
	t.Setenv("BLACKFONG_API_PORT", "9100")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/bf/data", cfg.DataDir)
	assert.Equal(t, "0.0.0.0", cfg.APIHost)
	assert.Equal(t, 9100, cfg.APIPort, "environment wins over the file")
	assert.Equal(t, []string{"docker", "nginx"}, cfg.AllowedUnits)
	assert.Equal(t, []string{"uptime"}, cfg.CommandNames())
	assert.Equal(t, 0, cfg.BackupKeepDays)
	assert.Equal(t, 2*time.Minute, cfg.NodeStale)
	assert.Equal(t, 5*time.Minute, cfg.CriticalWindow)
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BLACKFONG_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigCollectsErrors(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BLACKFONG_API_PORT", "70000")
	t.Setenv("BLACKFONG_NODE_STALE_SECONDS", "abc")
	t.Setenv("BLACKFONG_EXECUTOR_CONCURRENCY", "0")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api port 70000 out of range")
	assert.Contains(t, err.Error(), "BLACKFONG_NODE_STALE_SECONDS")
	assert.Contains(t, err.Error(), "executor concurrency must be at least 1")
}

func TestLoadConfigRejectsEmptyCommandArgv(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "blackfong.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commands:\n  broken: []\n"), 0644))
	t.Setenv("BLACKFONG_CONFIG", path)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `command "broken"`)
}
