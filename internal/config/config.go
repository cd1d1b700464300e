package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Remote drivers.
const (
	RemoteHTTP     = "http"
	RemotePostgres = "postgres"
)

// Notification drivers.
const (
	NotifyRemote = "remote"
	NotifyRedis  = "redis"
	NotifyNone   = "none"
)

var defaultFacilities = []string{"Building A", "Building B", "Building C", "Building D", "Building E"}

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Cache       CacheConfig
	Remote      RemoteConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Notify      NotifyConfig
	Schedule    ScheduleConfig
	Breaker     BreakerConfig
	Tasks       TasksConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type CacheConfig struct {
	Path string
}

type RemoteConfig struct {
	Driver    string
	BaseURL   string
	Timeout   time.Duration
	JWTSecret string
	ClientID  string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Password string
	DB       int
	UsersTTL time.Duration
}

type NotifyConfig struct {
	Driver  string
	Channel string
}

type ScheduleConfig struct {
	SyncInterval    time.Duration
	SweepInterval   time.Duration
	MonitorInterval time.Duration
}

type BreakerConfig struct {
	MaxFailures int
	Cooldown    time.Duration
}

type TasksConfig struct {
	Facilities  []string
	DueLocation *time.Location
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the daemon can boot with nothing set.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	loc, err := getLocation("DUE_LOCATION", time.Local)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskcached"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "127.0.0.1"),
			Port:         getString("SERVER_PORT", "8787"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Cache: CacheConfig{
			Path: getString("CACHE_PATH", "./data/tasks.db"),
		},
		Remote: RemoteConfig{
			Driver:    strings.ToLower(getString("REMOTE_DRIVER", RemoteHTTP)),
			BaseURL:   getString("REMOTE_BASE_URL", "http://localhost:8000/api/tasks-fix"),
			Timeout:   getDuration("REMOTE_TIMEOUT", 10*time.Second),
			JWTSecret: os.Getenv("REMOTE_JWT_SECRET"),
			ClientID:  getString("REMOTE_CLIENT_ID", "taskcached"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "tasks_db"),
			User:            getString("DB_USER", "tasks_user"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 2),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			UsersTTL: getDuration("USERS_CACHE_TTL", time.Hour),
		},
		Notify: NotifyConfig{
			Driver:  strings.ToLower(getString("NOTIFY_DRIVER", NotifyRemote)),
			Channel: getString("NOTIFY_CHANNEL", "taskcache:notifications"),
		},
		Schedule: ScheduleConfig{
			SyncInterval:    getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			SweepInterval:   getDuration("SWEEP_INTERVAL_SECONDS", 60*time.Second),
			MonitorInterval: getDuration("MONITOR_INTERVAL_SECONDS", 10*time.Second),
		},
		Breaker: BreakerConfig{
			MaxFailures: getInt("BREAKER_MAX_FAILURES", 3),
			Cooldown:    getDuration("BREAKER_COOLDOWN", 30*time.Second),
		},
		Tasks: TasksConfig{
			Facilities:  getList("FACILITIES", defaultFacilities),
			DueLocation: loc,
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", false),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
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
	switch c.Remote.Driver {
	case RemoteHTTP, RemotePostgres:
	default:
		return fmt.Errorf("config: unknown REMOTE_DRIVER %q", c.Remote.Driver)
	}
	switch c.Notify.Driver {
	case NotifyRemote, NotifyRedis, NotifyNone:
	default:
		return fmt.Errorf("config: unknown NOTIFY_DRIVER %q", c.Notify.Driver)
	}
	if c.Notify.Driver == NotifyRemote && c.Remote.Driver != RemoteHTTP {
		return fmt.Errorf("config: NOTIFY_DRIVER=remote requires REMOTE_DRIVER=http; set NOTIFY_DRIVER to redis or none")
	}
	if c.Notify.Driver == NotifyRedis && !c.Redis.Enabled {
		return fmt.Errorf("config: NOTIFY_DRIVER=redis requires REDIS_ENABLED=true")
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("config: CACHE_PATH is empty")
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
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

// getList splits a comma-separated variable, dropping blank entries.
func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

func getLocation(key string, fallback *time.Location) (*time.Location, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(val)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return loc, nil
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
