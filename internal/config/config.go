package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chanlun/internal/decision"
	"chanlun/internal/store"
)

// Config chanscan 全部配置。零值字段在 ApplyDefaults 中补齐。
type Config struct {
	Log      LogConfig       `toml:"log" yaml:"log"`
	Store    StoreConfig     `toml:"store" yaml:"store"`
	Redis    RedisConfig     `toml:"redis" yaml:"redis"`
	Scanner  ScannerConfig   `toml:"scanner" yaml:"scanner"`
	HTTP     HTTPConfig      `toml:"http" yaml:"http"`
	Decision decision.Params `toml:"decision" yaml:"decision"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // console/json
}

// StoreConfig 信号存储。driver=memory 时仅进程内有效。
type StoreConfig struct {
	Driver string `toml:"driver" yaml:"driver"`
	Path   string `toml:"path" yaml:"path"`
}

// RedisConfig 跨进程 key 锁，未启用时使用进程内锁。
// 锁不续期，TTLSeconds 必须大于 scanner.timeout_seconds。
type RedisConfig struct {
	Enabled    bool   `toml:"enabled" yaml:"enabled"`
	Addr       string `toml:"addr" yaml:"addr"`
	Password   string `toml:"password" yaml:"password"`
	DB         int    `toml:"db" yaml:"db"`
	Prefix     string `toml:"prefix" yaml:"prefix"`
	TTLSeconds int    `toml:"ttl_seconds" yaml:"ttl_seconds"`
}

type ScannerConfig struct {
	Concurrency    int      `toml:"concurrency" yaml:"concurrency"`
	TimeoutSeconds int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Cron           string   `toml:"cron" yaml:"cron"`
	FeedDir        string   `toml:"feed_dir" yaml:"feed_dir"`
	Symbols        []string `toml:"symbols" yaml:"symbols"`
	SymbolsURL     string   `toml:"symbols_url" yaml:"symbols_url"`
	RefreshSeconds int      `toml:"refresh_seconds" yaml:"refresh_seconds"`
	Freqs          []string `toml:"freqs" yaml:"freqs"`
	Levels         []string `toml:"levels" yaml:"levels"`
}

type HTTPConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Default 返回可直接运行的默认配置。
func Default() Config {
	cfg := Config{
		Log:   LogConfig{Level: "info", Format: "console"},
		Store: StoreConfig{Driver: DriverSQLite, Path: "data/signals.db"},
		Redis: RedisConfig{Addr: "127.0.0.1:6379", Prefix: "chanlun:lock:", TTLSeconds: 60},
		Scanner: ScannerConfig{
			Concurrency:    4,
			TimeoutSeconds: 30,
			Cron:           "5 */4 * * *",
			FeedDir:        "data/feeds",
			Symbols:        []string{"BTCUSDT", "ETHUSDT"},
			RefreshSeconds: 3600,
			Freqs:          []string{"1d"},
			Levels:         []string{string(store.LevelStroke)},
		},
		HTTP:     HTTPConfig{Addr: ":8088"},
		Decision: decision.DefaultParams(),
	}
	return cfg
}

// ApplyDefaults 补齐缺省字段，不覆盖显式配置。
func (c *Config) ApplyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = def.Log.Level
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = def.Log.Format
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.Store.Driver == DriverSQLite && strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = def.Redis.Prefix
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = def.Redis.TTLSeconds
	}
	if c.Scanner.Concurrency <= 0 {
		c.Scanner.Concurrency = def.Scanner.Concurrency
	}
	if c.Scanner.TimeoutSeconds <= 0 {
		c.Scanner.TimeoutSeconds = def.Scanner.TimeoutSeconds
	}
	if c.Scanner.FeedDir == "" {
		c.Scanner.FeedDir = def.Scanner.FeedDir
	}
	if c.Scanner.RefreshSeconds <= 0 {
		c.Scanner.RefreshSeconds = def.Scanner.RefreshSeconds
	}
	if len(c.Scanner.Freqs) == 0 {
		c.Scanner.Freqs = def.Scanner.Freqs
	}
	if len(c.Scanner.Levels) == 0 {
		c.Scanner.Levels = def.Scanner.Levels
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	c.Decision = c.Decision.Normalize()
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return errors.New("store.path 不能为空")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver 不支持: %q", c.Store.Driver)
	}
	if c.Redis.Enabled {
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis.addr 不能为空")
		}
		if c.Redis.TTL() <= c.Scanner.Timeout() {
			return fmt.Errorf("redis.ttl_seconds(%d) 必须大于 scanner.timeout_seconds(%d)", c.Redis.TTLSeconds, c.Scanner.TimeoutSeconds)
		}
	}
	if len(c.Scanner.Symbols) == 0 && strings.TrimSpace(c.Scanner.SymbolsURL) == "" {
		return errors.New("scanner.symbols 与 scanner.symbols_url 不能同时为空")
	}
	for _, f := range c.Scanner.Freqs {
		if strings.TrimSpace(f) == "" {
			return errors.New("scanner.freqs 含空值")
		}
	}
	if _, err := c.Scanner.ParsedLevels(); err != nil {
		return err
	}
	if err := c.Decision.Validate(); err != nil {
		return fmt.Errorf("decision: %w", err)
	}
	return nil
}

// ParsedLevels 将配置中的级别字符串转换为 store.Level。
func (s ScannerConfig) ParsedLevels() ([]store.Level, error) {
	out := make([]store.Level, 0, len(s.Levels))
	for _, raw := range s.Levels {
		switch lv := store.Level(strings.ToLower(strings.TrimSpace(raw))); lv {
		case store.LevelStroke, store.LevelSegment:
			out = append(out, lv)
		default:
			return nil, fmt.Errorf("scanner.levels 不支持: %q", raw)
		}
	}
	return out, nil
}

func (s ScannerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}
