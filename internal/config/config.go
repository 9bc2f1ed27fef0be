// Package config loads server settings through viper: defaults first, then
// an optional config file, then LABCHAT_* environment variables, then any
// command-line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Keys use dashes to line up with the serve command's flag names; the env
// replacer turns them into underscores, so LABCHAT_HISTORY_FILE works.
type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	HistoryFile string `mapstructure:"history-file"`
	HistoryCap  int    `mapstructure:"history-cap"`
	BridgeAddr  string `mapstructure:"bridge-addr"`
	LogLevel    string `mapstructure:"log-level"`
}

// Load resolves the configuration on the given viper instance. The caller
// may have bound flags on v beforehand; file is an optional explicit config
// file path.
func Load(v *viper.Viper, file string) (*Config, error) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 5050)
	v.SetDefault("history-file", "chat_history.jsonl")
	v.SetDefault("history-cap", 1000)
	v.SetDefault("bridge-addr", "")
	v.SetDefault("log-level", "info")

	v.SetEnvPrefix("LABCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("labchat")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Addr is the TCP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SlogLevel maps the configured level name onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
