package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	BaseDir   string
	DataDir   string
	DBPath    string
	LogDir    string
	BackupDir string

	APIHost string
	APIPort int

	Token     string
	JWTSecret string
	JWTTTL    time.Duration

	AllowedUnits    []string
	AllowedCommands map[string][]string

	NodeStale           time.Duration
	BackupKeepDays      int
	BackupInterval      time.Duration
	CommandTimeout      time.Duration
	ExecutorConcurrency int
	CriticalWindow      time.Duration
	CommandRate         float64
	CommandBurst        int

	CORSOrigins []string
	NATSURL     string
	TraceStdout bool
	LogLevel    string
	LogFormat   string
}

// fileConfig is the optional YAML file named by BLACKFONG_CONFIG. Every
// field is optional; environment variables take precedence.
type fileConfig struct {
	BaseDir   string `yaml:"base_dir"`
	DataDir   string `yaml:"data_dir"`
	DBPath    string `yaml:"db_path"`
	LogDir    string `yaml:"log_dir"`
	BackupDir string `yaml:"backup_dir"`

	API struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"api"`

	AllowedSystemdUnits []string            `yaml:"allowed_systemd_units"`
	Commands            map[string][]string `yaml:"commands"`

	NodeStaleSeconds    int64   `yaml:"node_stale_seconds"`
	BackupKeepDays      *int    `yaml:"backup_keep_days"`
	BackupInterval      string  `yaml:"backup_interval"`
	CommandTimeout      string  `yaml:"command_timeout"`
	ExecutorConcurrency int     `yaml:"executor_concurrency"`
	CriticalEventWindow string  `yaml:"critical_event_window"`
	CommandRate         float64 `yaml:"command_rate"`
	CommandBurst        int     `yaml:"command_burst"`

	CORSOrigins []string `yaml:"cors_origins"`
	NATSURL     string   `yaml:"nats_url"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
}

func defaultCommands() map[string][]string {
	return map[string][]string{
		"reboot":   {"reboot"},
		"shutdown": {"shutdown", "-h", "now"},
		"update":   {"apt", "update"},
	}
}

// LoadConfig loads configuration from the optional YAML file and environment variables
func LoadConfig() (*Config, error) {
	var file fileConfig
	if path := getEnv("BLACKFONG_CONFIG", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	var errs []error
	cfg := &Config{}

	cfg.BaseDir = getEnv("BLACKFONG_BASE_DIR", or(file.BaseDir, "/opt/blackfong"))
	cfg.DataDir = getEnv("BLACKFONG_DATA_DIR", or(file.DataDir, filepath.Join(cfg.BaseDir, "data")))
	cfg.DBPath = getEnv("BLACKFONG_DB_PATH", or(file.DBPath, filepath.Join(cfg.DataDir, "blackfong.db")))
	cfg.LogDir = getEnv("BLACKFONG_LOG_DIR", or(file.LogDir, filepath.Join(cfg.DataDir, "logs")))
	cfg.BackupDir = getEnv("BLACKFONG_BACKUP_DIR", or(file.BackupDir, filepath.Join(cfg.DataDir, "backups")))

	cfg.APIHost = getEnv("BLACKFONG_API_HOST", or(file.API.Host, "127.0.0.1"))
	cfg.APIPort = getEnvInt("BLACKFONG_API_PORT", orInt(file.API.Port, 7331), &errs)

	cfg.Token = strings.TrimSpace(os.Getenv("BLACKFONG_TOKEN"))
	cfg.JWTSecret = strings.TrimSpace(os.Getenv("BLACKFONG_JWT_SECRET"))
	cfg.JWTTTL = getEnvDuration("BLACKFONG_JWT_TTL", 24*time.Hour, &errs)

	cfg.AllowedUnits = file.AllowedSystemdUnits
	if raw, ok := os.LookupEnv("BLACKFONG_ALLOWED_SYSTEMD_UNITS"); ok {
		cfg.AllowedUnits = splitList(raw)
	}
	cfg.AllowedUnits = dedupe(cfg.AllowedUnits)

	cfg.AllowedCommands = file.Commands
	if cfg.AllowedCommands == nil {
		cfg.AllowedCommands = defaultCommands()
	}

	keepDays := 7
	if file.BackupKeepDays != nil {
		keepDays = *file.BackupKeepDays
	}
	cfg.NodeStale = time.Duration(getEnvInt("BLACKFONG_NODE_STALE_SECONDS", int(orInt64(file.NodeStaleSeconds, 60)), &errs)) * time.Second
	cfg.BackupKeepDays = getEnvInt("BLACKFONG_BACKUP_KEEP_DAYS", keepDays, &errs)
	cfg.BackupInterval = getEnvDuration("BLACKFONG_BACKUP_INTERVAL", fileDuration(file.BackupInterval, time.Hour, &errs), &errs)
	cfg.CommandTimeout = getEnvDuration("BLACKFONG_COMMAND_TIMEOUT", fileDuration(file.CommandTimeout, 5*time.Minute, &errs), &errs)
	cfg.ExecutorConcurrency = getEnvInt("BLACKFONG_EXECUTOR_CONCURRENCY", orInt(file.ExecutorConcurrency, 2), &errs)
	cfg.CriticalWindow = getEnvDuration("BLACKFONG_CRITICAL_EVENT_WINDOW", fileDuration(file.CriticalEventWindow, 15*time.Minute, &errs), &errs)
	cfg.CommandRate = getEnvFloat("BLACKFONG_COMMAND_RATE", orFloat(file.CommandRate, 1), &errs)
	cfg.CommandBurst = getEnvInt("BLACKFONG_COMMAND_BURST", orInt(file.CommandBurst, 5), &errs)

	cfg.CORSOrigins = file.CORSOrigins
	if raw, ok := os.LookupEnv("BLACKFONG_CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(raw)
	}
	cfg.NATSURL = getEnv("BLACKFONG_NATS_URL", file.NATSURL)
	cfg.TraceStdout = getEnvBool("BLACKFONG_TRACE_STDOUT", false, &errs)
	cfg.LogLevel = getEnv("BLACKFONG_LOG_LEVEL", or(file.LogLevel, "info"))
	cfg.LogFormat = getEnv("BLACKFONG_LOG_FORMAT", or(file.LogFormat, "json"))

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.APIPort < 1 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("api port %d out of range", c.APIPort))
	}
	if c.NodeStale <= 0 {
		errs = append(errs, errors.New("node stale seconds must be positive"))
	}
	if c.BackupInterval <= 0 {
		errs = append(errs, errors.New("backup interval must be positive"))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, errors.New("command timeout must be positive"))
	}
	if c.ExecutorConcurrency < 1 {
		errs = append(errs, errors.New("executor concurrency must be at least 1"))
	}
	if c.CriticalWindow <= 0 {
		errs = append(errs, errors.New("critical event window must be positive"))
	}
	if c.CommandRate < 0 || c.CommandBurst < 0 {
		errs = append(errs, errors.New("command rate and burst must not be negative"))
	}
	if c.JWTTTL < 0 {
		errs = append(errs, errors.New("jwt ttl must not be negative"))
	}
	for name, argv := range c.AllowedCommands {
		if strings.TrimSpace(name) == "" || len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
			errs = append(errs, fmt.Errorf("command %q needs a name and a non-empty argv", name))
		}
	}
	return errs
}

// CommandNames returns the allow-listed names, sorted
func (c *Config) CommandNames() []string {
	names := make([]string, 0, len(c.AllowedCommands))
	for name := range c.AllowedCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return c.APIHost + ":" + strconv.Itoa(c.APIPort)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

// getEnvDuration accepts Go durations ("90s", "1h") or bare seconds
func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := parseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func fileDuration(raw string, defaultValue time.Duration, errs *[]error) time.Duration {
	if raw == "" {
		return defaultValue
	}
	d, err := parseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config file: %w", err))
		return defaultValue
	}
	return d
}

func parseDuration(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orInt64(v, def int64) int64 {
	if v != 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
