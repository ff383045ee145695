package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Environment     string        `mapstructure:"environment"`
	BasePath        string        `mapstructure:"base_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type StoreConfig struct {
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type CacheBreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	CoolDown            time.Duration `mapstructure:"cool_down"`
}

type CacheConfig struct {
	Backend string             `mapstructure:"backend"`
	TTL     time.Duration      `mapstructure:"ttl"`
	Redis   RedisConfig        `mapstructure:"redis"`
	Breaker CacheBreakerConfig `mapstructure:"breaker"`
}

type DependencyConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type BreakerConfig struct {
	WindowSize    int           `mapstructure:"window_size"`
	MinCalls      int           `mapstructure:"min_calls"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	CoolDown      time.Duration `mapstructure:"cool_down"`
	HalfOpenCalls int           `mapstructure:"half_open_calls"`
}

type HealthCheckConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Store       StoreConfig       `mapstructure:"store"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Dependency  DependencyConfig  `mapstructure:"dependency"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("logging.level", LogLevelInfo)

	v.SetDefault("store.driver", StoreDriverSQLite)
	v.SetDefault("store.dsn", "items.db")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("store.max_open_conns", 10)

	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.timeout", "100ms")
	v.SetDefault("cache.breaker.consecutive_failures", 3)
	v.SetDefault("cache.breaker.cool_down", "5s")

	v.SetDefault("dependency.base_url", "http://localhost:8081")
	v.SetDefault("dependency.connect_timeout", "1s")
	v.SetDefault("dependency.timeout", "2s")

	v.SetDefault("breaker.window_size", 10)
	v.SetDefault("breaker.min_calls", 5)
	v.SetDefault("breaker.failure_ratio", 0.5)
	v.SetDefault("breaker.cool_down", "10s")
	v.SetDefault("breaker.half_open_calls", 1)

	v.SetDefault("health_check.interval", "5s")

	v.SetDefault("metrics.buffer_size", 1000)
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Logging),
		validation.Field(&c.Store),
		validation.Field(&c.Cache),
		validation.Field(&c.Dependency),
		validation.Field(&c.Breaker),
		validation.Field(&c.HealthCheck),
		validation.Field(&c.Metrics),
	)
}

func (sc ServerConfig) Validate() error {
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&sc.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
		validation.Field(&sc.BasePath, validation.By(validateBasePath)),
		validation.Field(&sc.ReadTimeout, validation.By(validatePositiveDuration)),
		validation.Field(&sc.WriteTimeout, validation.By(validatePositiveDuration)),
		validation.Field(&sc.ShutdownTimeout, validation.By(validatePositiveDuration)),
	)
}

func (lc LoggingConfig) Validate() error {
	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
	)
}

func (sc StoreConfig) Validate() error {
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Driver,
			validation.Required,
			validation.In(StoreDriverPostgres, StoreDriverSQLite),
		),
		validation.Field(&sc.DSN, validation.Required),
		validation.Field(&sc.Timeout, validation.By(validatePositiveDuration)),
		validation.Field(&sc.MaxOpenConns, validation.Min(0)),
	)
}

func (rc RedisConfig) Validate() error {
	return validation.ValidateStruct(&rc,
		validation.Field(&rc.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
		validation.Field(&rc.DB, validation.Min(0), validation.Max(15)),
		validation.Field(&rc.Timeout, validation.By(validatePositiveDuration)),
	)
}

func (cc CacheConfig) Validate() error {
	return validation.ValidateStruct(&cc,
		validation.Field(&cc.Backend,
			validation.Required,
			validation.In(CacheBackendMemory, CacheBackendRedis),
		),
		validation.Field(&cc.TTL, validation.By(validatePositiveDuration)),
		validation.Field(&cc.Redis, validation.Skip.When(cc.Backend != CacheBackendRedis)),
		validation.Field(&cc.Breaker),
	)
}

func (bc CacheBreakerConfig) Validate() error {
	return validation.ValidateStruct(&bc,
		validation.Field(&bc.ConsecutiveFailures, validation.Required),
		validation.Field(&bc.CoolDown, validation.By(validatePositiveDuration)),
	)
}

func (dc DependencyConfig) Validate() error {
	return validation.ValidateStruct(&dc,
		validation.Field(&dc.BaseURL,
			validation.Required,
			validation.By(validateServerURL),
		),
		validation.Field(&dc.ConnectTimeout,
			validation.By(validatePositiveDuration),
			validation.Max(dc.Timeout).Error("must not exceed the total timeout"),
		),
		validation.Field(&dc.Timeout, validation.By(validatePositiveDuration)),
	)
}

func (bc BreakerConfig) Validate() error {
	return validation.ValidateStruct(&bc,
		validation.Field(&bc.WindowSize, validation.Required, validation.Min(1)),
		validation.Field(&bc.MinCalls,
			validation.Required,
			validation.Min(1),
			validation.Max(bc.WindowSize).Error("must not exceed the window size"),
		),
		validation.Field(&bc.FailureRatio, validation.By(validateRatio)),
		validation.Field(&bc.CoolDown, validation.By(validatePositiveDuration)),
		validation.Field(&bc.HalfOpenCalls, validation.Required, validation.Min(1)),
	)
}

func (hc HealthCheckConfig) Validate() error {
	return validation.ValidateStruct(&hc,
		validation.Field(&hc.Interval, validation.By(validatePositiveDuration)),
	)
}

func (mc MetricsConfig) Validate() error {
	return validation.ValidateStruct(&mc,
		validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	d, ok := value.(time.Duration)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a duration")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be a positive duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateRatio(value interface{}) error {
	ratio, ok := value.(float64)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a number")
	}

	if ratio <= 0 || ratio > 1 {
		return validation.NewError("validation_invalid_ratio", "must be greater than 0 and at most 1")
	}

	return nil
}

func validateBasePath(value interface{}) error {
	path, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if path == "" {
		return nil
	}

	if !strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return validation.NewError("validation_invalid_base_path", fmt.Sprintf("%q must start with / and not end with /", path))
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
