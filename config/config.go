package config

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
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
	ChannelMemory = "memory"
	ChannelRedis  = "redis"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
	Name        string `mapstructure:"name"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// InstanceConfig is a statically known backend instance.
type InstanceConfig struct {
	Service string `mapstructure:"service"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type RegistryConfig struct {
	Instances      []InstanceConfig `mapstructure:"instances"`
	EtcdEndpoints  []string         `mapstructure:"etcd_endpoints"`
	LeaseTTL       int64            `mapstructure:"lease_ttl"`
	HealthInterval string           `mapstructure:"health_interval"`
	Advertise      string           `mapstructure:"advertise"`
}

type StrategyConfig struct {
	Type string `mapstructure:"type"`
}

type BreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	FailureWindow    string `mapstructure:"failure_window"`
	Cooldown         string `mapstructure:"cooldown"`
	CallTimeout      string `mapstructure:"call_timeout"`
}

type ChannelConfig struct {
	Type        string `mapstructure:"type"`
	Destination string `mapstructure:"destination"`
	Buffer      int    `mapstructure:"buffer"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StoreConfig struct {
	Type string `mapstructure:"type"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// SeedConfig holds the sample data loaded once when the reservation service starts.
type SeedConfig struct {
	Reservations []string `mapstructure:"reservations"`
	Accounts     []string `mapstructure:"accounts"`
}

// ConfigServerConfig serves both sides: Directory is what the config server
// publishes, URL and Profile are where a client fetches its properties from.
type ConfigServerConfig struct {
	Directory string `mapstructure:"directory"`
	URL       string `mapstructure:"url"`
	Profile   string `mapstructure:"profile"`
}

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Strategy     StrategyConfig     `mapstructure:"strategy"`
	Breaker      BreakerConfig      `mapstructure:"breaker"`
	Channel      ChannelConfig      `mapstructure:"channel"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Store        StoreConfig        `mapstructure:"store"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Message      string             `mapstructure:"message"`
	Seed         SeedConfig         `mapstructure:"seed"`
	ConfigServer ConfigServerConfig `mapstructure:"config_server"`
}

// Loader reads one named configuration file plus environment overrides.
// Each binary owns a loader so that watching one file does not affect another.
type Loader struct {
	v    *viper.Viper
	name string

	mu     sync.Mutex
	remote map[string]any
}

// NewLoader creates a loader for <name>.yaml searched in the given paths,
// or in ./config and . when none are given.
func NewLoader(name string, paths ...string) *Loader {
	v := viper.New()
	setDefaults(v, name)

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Loader{v: v, name: name}
}

// Load is a shortcut for NewLoader(name).Load().
func Load(name string) (*Config, error) {
	return NewLoader(name).Load()
}

func (l *Loader) Load() (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables",
			slog.String("name", l.name))
	} else {
		slog.Info("loaded config file", slog.String("file", l.v.ConfigFileUsed()))
	}

	return l.decode()
}

// Watch re-reads the config file on every change and passes each valid
// result to onChange. Invalid edits are logged and ignored.
func (l *Loader) Watch(onChange func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		slog.Warn("no config file to watch", slog.String("name", l.name))
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.reapplyRemote()
		if err != nil {
			slog.Warn("ignoring invalid config change",
				slog.String("file", e.Name),
				slog.String("error", err.Error()))
			return
		}
		slog.Info("config reloaded", slog.String("file", e.Name))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, name string) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.name", name)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("registry.lease_ttl", 10)
	v.SetDefault("registry.health_interval", "2s")
	v.SetDefault("strategy.type", "round-robin")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.failure_window", "10s")
	v.SetDefault("breaker.cooldown", "5s")
	v.SetDefault("breaker.call_timeout", "2s")
	v.SetDefault("channel.type", ChannelMemory)
	v.SetDefault("channel.destination", "reservations")
	v.SetDefault("channel.buffer", 1024)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("store.type", StoreMemory)
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("message", "Hello from the reservation service")
	v.SetDefault("seed.reservations", []string{"Vikash", "Mintoo", "Aakash", "Hetal", "Vidhi"})
	v.SetDefault("seed.accounts", []string{"jhoeller", "dsyer", "pwebb", "ogierke", "rwinch", "mfisher", "mpollack", "jlong"})
	v.SetDefault("config_server.directory", "./config-repo")
	v.SetDefault("config_server.profile", "default")
}

// HealthIntervalDuration returns the parsed health check interval. Validate guarantees it parses.
func (r RegistryConfig) HealthIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(r.HealthInterval)
	return d
}

func (b BreakerConfig) FailureWindowDuration() time.Duration {
	d, _ := time.ParseDuration(b.FailureWindow)
	return d
}

func (b BreakerConfig) CooldownDuration() time.Duration {
	d, _ := time.ParseDuration(b.Cooldown)
	return d
}

func (b BreakerConfig) CallTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(b.CallTimeout)
	return d
}

// UsesRedis reports whether the channel or the store needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Channel.Type == ChannelRedis || c.Store.Type == StoreRedis
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.Name, validation.Required),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Registry,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RegistryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RegistryConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.Instances, validation.Each(validation.By(validateInstanceConfig))),
					validation.Field(&rc.EtcdEndpoints, validation.Each(validation.Required, validation.By(validateHostPort))),
					validation.Field(&rc.LeaseTTL, validation.Min(int64(1))),
					validation.Field(&rc.HealthInterval, validation.Required, validation.By(validateDuration)),
					validation.Field(&rc.Advertise, validation.By(validateHostPort)),
				)
			}),
		),
		validation.Field(&c.Strategy,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StrategyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type,
						validation.Required,
						validation.In("round-robin", "random"),
					),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.FailureThreshold, validation.Required, validation.Min(1)),
					validation.Field(&bc.FailureWindow, validation.Required, validation.By(validateDuration)),
					validation.Field(&bc.Cooldown, validation.Required, validation.By(validateDuration)),
					validation.Field(&bc.CallTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Channel,
			validation.Required,
			validation.By(func(value interface{}) error {
				cc, ok := value.(ChannelConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ChannelConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.Type, validation.Required, validation.In(ChannelMemory, ChannelRedis)),
					validation.Field(&cc.Destination, validation.Required),
					validation.Field(&cc.Buffer, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Store,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StoreConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StoreConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type, validation.Required, validation.In(StoreMemory, StoreRedis)),
				)
			}),
		),
		validation.Field(&c.Redis,
			validation.When(c.UsesRedis(), validation.By(func(value interface{}) error {
				rc, ok := value.(RedisConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RedisConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.Address, validation.Required, validation.By(validateHostPort)),
					validation.Field(&rc.DB, validation.Min(0)),
				)
			})),
		),
		validation.Field(&c.ConfigServer,
			validation.By(func(value interface{}) error {
				cs, ok := value.(ConfigServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ConfigServerConfig")
				}
				return validation.ValidateStruct(&cs,
					validation.Field(&cs.URL, is.URL),
					validation.Field(&cs.Profile, validation.When(cs.URL != "", validation.Required)),
				)
			}),
		),
		validation.Field(&c.RateLimit,
			validation.By(func(value interface{}) error {
				rl, ok := value.(RateLimitConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RateLimitConfig")
				}
				return validation.ValidateStruct(&rl,
					validation.Field(&rl.RPS, validation.Min(0.0)),
					validation.Field(&rl.Burst, validation.When(rl.RPS > 0, validation.Required, validation.Min(1))),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if addr == "" {
		return nil
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

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_non_positive_duration", "must be greater than zero")
	}

	return nil
}

func validateInstanceConfig(value interface{}) error {
	inst, ok := value.(InstanceConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an InstanceConfig")
	}

	return validation.ValidateStruct(&inst,
		validation.Field(&inst.Service, validation.Required),
		validation.Field(&inst.Host, validation.Required, is.Host),
		validation.Field(&inst.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}
