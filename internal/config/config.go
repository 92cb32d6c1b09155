package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	ModeHeartbeat = "heartbeat"
	ModeDevice    = "device"

	HeartbeatStoreDB    = "db"
	HeartbeatStoreRedis = "redis"
)

// ErrMissing is wrapped by Validate for every required setting that is absent.
var ErrMissing = errors.New("missing required setting")

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Device    DeviceConfig    `mapstructure:"device"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	API       APIConfig       `mapstructure:"api"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type MonitorConfig struct {
	Mode                string        `mapstructure:"mode"`
	Label               string        `mapstructure:"label"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	StalenessMultiplier int           `mapstructure:"staleness_multiplier"`
}

// DeviceConfig drives the direct-query liveness source.
type DeviceConfig struct {
	URL         string        `mapstructure:"url"`
	Token       string        `mapstructure:"token"`
	OnPath      string        `mapstructure:"on_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Attempts    int           `mapstructure:"attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
}

type HeartbeatConfig struct {
	Path  string `mapstructure:"path"`
	Token string `mapstructure:"token"`
	Store string `mapstructure:"store"`
	// Label is the agent label the staleness check watches.
	Label string `mapstructure:"label"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      int    `mapstructure:"qos"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type NotifyConfig struct {
	TelegramToken   string        `mapstructure:"telegram_token"`
	DryRun          bool          `mapstructure:"dry_run"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	BackoffCap      time.Duration `mapstructure:"backoff_cap"`
	SendTimeout     time.Duration `mapstructure:"send_timeout"`
	NightStartHour  int           `mapstructure:"night_start_hour"`
	NightEndHour    int           `mapstructure:"night_end_hour"`
	Timezone        string        `mapstructure:"timezone"`
	DefaultLocale   string        `mapstructure:"default_locale"`
	SurgeWarnAfter  time.Duration `mapstructure:"surge_warn_after"`
	ResumeCursor    bool          `mapstructure:"resume_cursor"`
}

type APIConfig struct {
	Token string `mapstructure:"token"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":5566")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("monitor.mode", ModeHeartbeat)
	v.SetDefault("monitor.label", "power")
	v.SetDefault("monitor.poll_interval", "0s")
	v.SetDefault("monitor.staleness_multiplier", 5)

	v.SetDefault("device.url", "")
	v.SetDefault("device.token", "")
	v.SetDefault("device.on_path", "result.device_on")
	v.SetDefault("device.timeout", "5s")
	v.SetDefault("device.attempts", 5)
	v.SetDefault("device.backoff_base", "1s")
	v.SetDefault("device.backoff_cap", "10s")

	v.SetDefault("heartbeat.path", "/heartbeat")
	v.SetDefault("heartbeat.token", "")
	v.SetDefault("heartbeat.store", HeartbeatStoreDB)
	v.SetDefault("heartbeat.label", "UNKNOWN")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "heartbeat:")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic", "power/heartbeat")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.dry_run", false)
	v.SetDefault("notify.rate_limit_per_sec", 20)
	v.SetDefault("notify.max_concurrency", 10)
	v.SetDefault("notify.retry_attempts", 3)
	v.SetDefault("notify.backoff_base", "1s")
	v.SetDefault("notify.backoff_cap", "5s")
	v.SetDefault("notify.send_timeout", "10s")
	v.SetDefault("notify.night_start_hour", 22)
	v.SetDefault("notify.night_end_hour", 8)
	v.SetDefault("notify.timezone", "Europe/Kyiv")
	v.SetDefault("notify.default_locale", "ru")
	v.SetDefault("notify.surge_warn_after", "5m")
	v.SetDefault("notify.resume_cursor", false)

	v.SetDefault("api.token", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()

	return cfg, nil
}

func (c *Config) normalize() {
	c.Monitor.Mode = strings.ToLower(strings.TrimSpace(c.Monitor.Mode))
	if c.Monitor.PollInterval <= 0 {
		if c.Monitor.Mode == ModeDevice {
			c.Monitor.PollInterval = 60 * time.Second
		} else {
			c.Monitor.PollInterval = 10 * time.Second
		}
	}
	if c.Monitor.StalenessMultiplier <= 0 {
		c.Monitor.StalenessMultiplier = 1
	}
	if c.Device.Attempts <= 0 {
		c.Device.Attempts = 1
	}

	c.Heartbeat.Path = NormalizePath(c.Heartbeat.Path)
	c.Heartbeat.Token = strings.TrimSpace(c.Heartbeat.Token)
	c.Heartbeat.Store = strings.ToLower(strings.TrimSpace(c.Heartbeat.Store))
	c.Heartbeat.Label = strings.TrimSpace(c.Heartbeat.Label)
	if c.Heartbeat.Label == "" {
		c.Heartbeat.Label = "UNKNOWN"
	}

	if c.Notify.RateLimitPerSec <= 0 {
		c.Notify.RateLimitPerSec = 1
	}
	if c.Notify.MaxConcurrency <= 0 {
		c.Notify.MaxConcurrency = 1
	}
	if c.Notify.RetryAttempts <= 0 {
		c.Notify.RetryAttempts = 1
	}
	c.Notify.DefaultLocale = strings.ToLower(strings.TrimSpace(c.Notify.DefaultLocale))
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	missing := func(key string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, key))
	}

	if strings.TrimSpace(c.DB.DSN) == "" {
		missing("db.dsn")
	}
	switch c.Monitor.Mode {
	case ModeHeartbeat:
		switch c.Heartbeat.Store {
		case HeartbeatStoreDB:
		case HeartbeatStoreRedis:
			if strings.TrimSpace(c.Redis.Addr) == "" {
				missing("redis.addr")
			}
		default:
			errs = append(errs, fmt.Errorf("heartbeat.store: unsupported value %q", c.Heartbeat.Store))
		}
	case ModeDevice:
		if strings.TrimSpace(c.Device.URL) == "" {
			missing("device.url")
		}
	default:
		errs = append(errs, fmt.Errorf("monitor.mode: unsupported value %q", c.Monitor.Mode))
	}
	if strings.TrimSpace(c.Monitor.Label) == "" {
		missing("monitor.label")
	}
	if reservedPath(c.Heartbeat.Path) {
		errs = append(errs, fmt.Errorf("heartbeat.path: %q collides with a built-in route", c.Heartbeat.Path))
	}
	if !c.Notify.DryRun && strings.TrimSpace(c.Notify.TelegramToken) == "" {
		missing("notify.telegram_token")
	}
	if c.MQTT.Enabled && strings.TrimSpace(c.MQTT.Broker) == "" {
		missing("mqtt.broker")
	}
	if !validHour(c.Notify.NightStartHour) || !validHour(c.Notify.NightEndHour) {
		errs = append(errs, fmt.Errorf("notify night hours must be within 0..23, got %d..%d",
			c.Notify.NightStartHour, c.Notify.NightEndHour))
	}
	if _, err := time.LoadLocation(c.Notify.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("notify.timezone: %w", err))
	}

	return errors.Join(errs...)
}

// NormalizePath trims the value and guarantees a single leading slash.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/heartbeat"
	}
	return "/" + strings.TrimLeft(p, "/")
}

// reservedPath reports whether p is served by the health or API routes.
func reservedPath(p string) bool {
	p = strings.ToLower(strings.TrimRight(p, "/"))
	switch p {
	case "/health", "/healthz", "/readyz", "/api":
		return true
	}
	return strings.HasPrefix(p, "/api/")
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}
