package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Taskwarrior TaskwarriorConfig
	Breaker     BreakerConfig
	Settings    SettingsConfig
	Cache       CacheConfig
	Journal     JournalConfig
	Refresh     RefreshConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type TaskwarriorConfig struct {
	Binary          string
	Timeout         time.Duration
	Overrides       []string
	TaskRC          string
	TaskData        string
	DispatchTimeout time.Duration
}

type BreakerConfig struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenRequests int
}

type SettingsConfig struct {
	// Path is empty when the location should be resolved from the environment.
	Path  string
	TTL   time.Duration
	Watch bool
}

type CacheConfig struct {
	TTL time.Duration
}

type JournalConfig struct {
	Path      string
	Retention time.Duration
}

type RefreshConfig struct {
	Interval        time.Duration
	MonitorInterval time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskwarlock"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "127.0.0.1"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 40*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Taskwarrior: TaskwarriorConfig{
			Binary:          getString("TASK_BIN", "task"),
			Timeout:         getDuration("TASK_TIMEOUT", 10*time.Second),
			Overrides:       getList("TASK_RC_OVERRIDES"),
			TaskRC:          os.Getenv("TASKRC"),
			TaskData:        os.Getenv("TASKDATA"),
			DispatchTimeout: getDuration("TASK_DISPATCH_TIMEOUT", 30*time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getInt("BREAKER_FAILURE_THRESHOLD", 5),
			OpenTimeout:      getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
			HalfOpenRequests: getInt("BREAKER_HALF_OPEN_REQUESTS", 1),
		},
		Settings: SettingsConfig{
			Path:  os.Getenv("SETTINGS_FILE"),
			TTL:   getDuration("SETTINGS_TTL", 5*time.Second),
			Watch: getBool("SETTINGS_WATCH", true),
		},
		Cache: CacheConfig{
			TTL: getDuration("CACHE_TTL", 5*time.Minute),
		},
		Journal: JournalConfig{
			Path:      getString("JOURNAL_PATH", "./data/journal.db"),
			Retention: getDuration("JOURNAL_RETENTION", 7*24*time.Hour),
		},
		Refresh: RefreshConfig{
			Interval:        getDuration("REFRESH_INTERVAL", time.Minute),
			MonitorInterval: getDuration("MONITOR_INTERVAL", 15*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 35*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Taskwarrior.Binary == "" {
		return fmt.Errorf("TASK_BIN must not be empty")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be positive, got %d", c.Breaker.FailureThreshold)
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("JOURNAL_PATH must not be empty")
	}
	for _, o := range c.Taskwarrior.Overrides {
		if !strings.HasPrefix(o, "rc.") || !strings.Contains(o, "=") {
			return fmt.Errorf("TASK_RC_OVERRIDES entry %q must look like rc.<name>=<value>", o)
		}
	}
	return nil
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getList splits a comma separated variable, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
