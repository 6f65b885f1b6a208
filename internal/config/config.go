// Package config loads the velocex configuration from file and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the exchange backend.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Bus      BusConfig      `mapstructure:"bus"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// ExchangeConfig identifies the fiat quote currency and the fixed user
// standing in for the external reference market on every trade.
type ExchangeConfig struct {
	QuoteCurrency  string `mapstructure:"quote_currency"`
	CounterpartyID string `mapstructure:"counterparty_id"`
}

type FeedConfig struct {
	URL         string `mapstructure:"url"`
	QuoteSuffix string `mapstructure:"quote_suffix"`
	Simulate    bool   `mapstructure:"simulate"`
	DepthLimit  int    `mapstructure:"depth_limit"`
}

type BusConfig struct {
	Kind    string   `mapstructure:"kind"` // "memory" or "kafka"
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// LoadConfig reads config.yaml from the usual locations, applies
// VELOCEX_-prefixed environment overrides and validates the result.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/velocex")

	v.SetEnvPrefix("VELOCEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.dsn", "host=localhost user=velocex password=velocex dbname=velocex port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("exchange.quote_currency", "USD")
	v.SetDefault("exchange.counterparty_id", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("feed.url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("feed.quote_suffix", "USDT")
	v.SetDefault("feed.simulate", false)
	v.SetDefault("feed.depth_limit", 20)
	v.SetDefault("bus.kind", "memory")
	v.SetDefault("bus.topic", "orders.market.created")
	v.SetDefault("bus.group_id", "velocex-execution")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.channel", "velocex.trades")
}

func validate(cfg *Config) error {
	if _, err := uuid.Parse(cfg.Exchange.CounterpartyID); err != nil {
		return fmt.Errorf("exchange.counterparty_id is not a valid uuid: %w", err)
	}
	switch cfg.Bus.Kind {
	case "memory":
	case "kafka":
		if len(cfg.Bus.Brokers) == 0 {
			return fmt.Errorf("bus.kind is kafka but bus.brokers is empty")
		}
	default:
		return fmt.Errorf("unknown bus.kind %q", cfg.Bus.Kind)
	}
	return nil
}
