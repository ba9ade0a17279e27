package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SIGNALING"

const (
	Development = "development"
	Production  = "production"
)

type Config struct {
	Addr             string
	Environment      string
	LogLevel         string
	AllowedOrigins   []string
	Redis            RedisConfig
	PresenceTTL      time.Duration
	PingPeriod       time.Duration
	OutboxSize       int
	CommandQueueSize int
	MaxMessageSize   int64
}

// RedisConfig configures the optional presence mirror. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from command-line args, SIGNALING_* environment
// variables and an optional config file, in that order of precedence.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("signaling", pflag.ContinueOnError)
	fs.String("config", "", "optional config file (yaml, json or toml)")
	fs.String("addr", "", "listen address host:port (default 127.0.0.1:8080, 0.0.0.0:8080 in production)")
	fs.String("environment", Development, "development or production")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("allowed-origins", "", "comma-separated allowed origins; empty allows all")
	fs.String("redis-addr", "", "redis host:port for the presence mirror; empty disables it")
	fs.String("redis-password", "", "redis password")
	fs.Int("redis-db", 0, "redis database")
	fs.Duration("presence-ttl", 24*time.Hour, "expiry of mirrored room membership")
	fs.Duration("ping-period", 0, "websocket keepalive ping period; 0 disables")
	fs.Int("outbox-size", 24, "messages buffered per client before dropping")
	fs.Int("command-queue-size", 24, "commands buffered per room")
	fs.Int64("max-message-size", 64*1024, "maximum inbound frame size in bytes")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{
		Addr:        v.GetString("addr"),
		Environment: v.GetString("environment"),
		LogLevel:    v.GetString("log-level"),
		Redis: RedisConfig{
			Addr:     v.GetString("redis-addr"),
			Password: v.GetString("redis-password"),
			DB:       v.GetInt("redis-db"),
		},
		PresenceTTL:      v.GetDuration("presence-ttl"),
		PingPeriod:       v.GetDuration("ping-period"),
		OutboxSize:       v.GetInt("outbox-size"),
		CommandQueueSize: v.GetInt("command-queue-size"),
		MaxMessageSize:   v.GetInt64("max-message-size"),
	}
	cfg.AllowedOrigins = splitList(v.GetString("allowed-origins"))

	if cfg.Addr == "" {
		cfg.Addr = defaultAddr(cfg.Environment)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultAddr(environment string) string {
	if environment == Production {
		return "0.0.0.0:8080"
	}
	return "127.0.0.1:8080"
}

func (c *Config) validate() error {
	var errs []error
	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("environment must be %q or %q, got %q", Development, Production, c.Environment))
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		errs = append(errs, fmt.Errorf("addr: %w", err))
	}
	if c.OutboxSize <= 0 {
		errs = append(errs, errors.New("outbox-size must be positive"))
	}
	if c.CommandQueueSize <= 0 {
		errs = append(errs, errors.New("command-queue-size must be positive"))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("max-message-size must be positive"))
	}
	if c.PingPeriod < 0 {
		errs = append(errs, errors.New("ping-period must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
