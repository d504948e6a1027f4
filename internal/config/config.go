// Package config loads the consumer's typed configuration from defaults,
// an optional YAML file, and HUEWORK_* environment variables, grounded
// on the teacher's internal/config/config.go viper wiring.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration surface for cmd/consumer and
// cmd/adminserver.
type Config struct {
	Backend  BackendConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Backoff  BackoffConfig
	Admin    AdminConfig
	Metrics  MetricsConfig
	Auth     AuthConfig
	LogLevel string
	LogFile  string
}

// BackendConfig selects which backend.Queue/ResultStore/TaskStore
// implementation to wire up.
type BackendConfig struct {
	// Kind is "memory" or "redis".
	Kind string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	ListKey      string
	BlockTimeout time.Duration
	ResultTTL    time.Duration
}

// WorkerConfig controls the core's concurrency and periodic-task
// behavior.
type WorkerConfig struct {
	Threads         int
	Periodic        bool
	ShutdownTimeout time.Duration
	ConvertUTC      bool
}

// BackoffConfig controls the receiver's adaptive idle-poll delay.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

type AdminConfig struct {
	Enabled      bool
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	APIKeys   []string
}

// Load assembles Config from defaults, ./config.yaml (if present), and
// HUEWORK_* environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/huework")

	setDefaults()

	viper.SetEnvPrefix("HUEWORK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("backend.kind", "memory")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.listkey", "huework:queue")
	viper.SetDefault("redis.blocktimeout", 1*time.Second)
	viper.SetDefault("redis.resultttl", 24*time.Hour)

	viper.SetDefault("worker.threads", 10)
	viper.SetDefault("worker.periodic", true)
	viper.SetDefault("worker.shutdowntimeout", 30*time.Second)
	viper.SetDefault("worker.convertutc", true)

	viper.SetDefault("backoff.initialdelay", 100*time.Millisecond)
	viper.SetDefault("backoff.maxdelay", 2*time.Second)
	viper.SetDefault("backoff.factor", 1.5)

	viper.SetDefault("admin.enabled", false)
	viper.SetDefault("admin.addr", ":8081")
	viper.SetDefault("admin.readtimeout", 15*time.Second)
	viper.SetDefault("admin.writetimeout", 15*time.Second)
	viper.SetDefault("admin.idletimeout", 60*time.Second)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwtsecret", "")
	viper.SetDefault("auth.apikeys", []string{})

	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
}
