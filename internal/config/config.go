package config

import (
	"fmt"
	"time"
)

// Join modes control what happens to existing memberships when a connection joins another room.
const (
	JoinModeAccumulate = "accumulate"
	JoinModeReplace    = "replace"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	StoreDriver    string        `mapstructure:"store_driver" yaml:"store_driver"`
	DatabasePath   string        `mapstructure:"database_path" yaml:"database_path"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`

	HistoryLimit    int `mapstructure:"history_limit" yaml:"history_limit"`
	MaxHistoryLimit int `mapstructure:"max_history_limit" yaml:"max_history_limit"`

	ClientBuffer      int    `mapstructure:"client_buffer" yaml:"client_buffer"`
	MaxMessageBytes   int64  `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerMinute int    `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	JoinMode          string `mapstructure:"join_mode" yaml:"join_mode"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		StoreDriver:       StoreDriverSQLite,
		DatabasePath:      "roomchat.db",
		PersistTimeout:    5 * time.Second,
		HistoryLimit:      50,
		MaxHistoryLimit:   200,
		ClientBuffer:      32,
		MaxMessageBytes:   64 << 10,
		MessagesPerMinute: 120,
		JoinMode:          JoinModeAccumulate,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.StoreDriver != "" {
		c.StoreDriver = other.StoreDriver
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.PersistTimeout != 0 {
		c.PersistTimeout = other.PersistTimeout
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.MaxHistoryLimit != 0 {
		c.MaxHistoryLimit = other.MaxHistoryLimit
	}
	if other.ClientBuffer != 0 {
		c.ClientBuffer = other.ClientBuffer
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MessagesPerMinute != 0 {
		c.MessagesPerMinute = other.MessagesPerMinute
	}
	if other.JoinMode != "" {
		c.JoinMode = other.JoinMode
	}
}

// Validate reports configuration values the server cannot run with.
func (c *Config) Validate() error {
	switch c.JoinMode {
	case JoinModeAccumulate, JoinModeReplace:
	default:
		return fmt.Errorf("unknown join_mode %q", c.JoinMode)
	}
	switch c.StoreDriver {
	case StoreDriverSQLite, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store_driver %q", c.StoreDriver)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	if c.MaxHistoryLimit < c.HistoryLimit {
		return fmt.Errorf("max_history_limit (%d) is below history_limit (%d)", c.MaxHistoryLimit, c.HistoryLimit)
	}
	if c.ClientBuffer <= 0 {
		return fmt.Errorf("client_buffer must be positive, got %d", c.ClientBuffer)
	}
	return nil
}
