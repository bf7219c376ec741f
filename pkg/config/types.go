package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent recall configuration stored as
// config.toml in the .recall/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Memory     MemoryConfig     `toml:"memory"`
	Summarizer SummarizerConfig `toml:"summarizer"`
	Store      StoreConfig      `toml:"store"`
	API        APIConfig        `toml:"api"`
	Events     EventsConfig     `toml:"events"`
	Client     ClientConfig     `toml:"client"`
}

// MemoryConfig holds the session bounds of the conversation manager.
type MemoryConfig struct {
	MaxRecentTurns   int    `toml:"max_recent_turns,omitempty"`
	MaxTotalTokens   int    `toml:"max_total_tokens,omitempty"`
	MaxSummaryTokens int    `toml:"max_summary_tokens,omitempty"`
	ForceRetainTurns int    `toml:"force_retain_turns,omitempty"`
	Compaction       string `toml:"compaction,omitempty"`
	Workers          uint   `toml:"workers,omitempty"`
	QueueSize        uint   `toml:"queue_size,omitempty"`
	Tokenizer        string `toml:"tokenizer,omitempty"`
}

// SummarizerConfig holds the model-backed summarizer settings. An empty
// provider leaves only the rule-based summarizer.
type SummarizerConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	Timeout  string `toml:"timeout,omitempty"`
	MaxItems int    `toml:"max_items,omitempty"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend     string `toml:"backend,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	Prefix      string `toml:"prefix,omitempty"`
	TTL         string `toml:"ttl,omitempty"`
	Size        int    `toml:"size,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig selects the session event publisher.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. recall history). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func oneOfKey(name string, field func(c *Config) *string, allowed ...string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, a := range allowed {
				if v == a {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (allowed: %v)", name, v, allowed)
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"memory.max_recent_turns":   intKey("memory.max_recent_turns", func(c *Config) *int { return &c.Memory.MaxRecentTurns }),
	"memory.max_total_tokens":   intKey("memory.max_total_tokens", func(c *Config) *int { return &c.Memory.MaxTotalTokens }),
	"memory.max_summary_tokens": intKey("memory.max_summary_tokens", func(c *Config) *int { return &c.Memory.MaxSummaryTokens }),
	"memory.force_retain_turns": intKey("memory.force_retain_turns", func(c *Config) *int { return &c.Memory.ForceRetainTurns }),
	"memory.compaction": oneOfKey("memory.compaction",
		func(c *Config) *string { return &c.Memory.Compaction }, "sync", "deferred"),
	"memory.workers":    uintKey("memory.workers", func(c *Config) *uint { return &c.Memory.Workers }),
	"memory.queue_size": uintKey("memory.queue_size", func(c *Config) *uint { return &c.Memory.QueueSize }),
	"memory.tokenizer": oneOfKey("memory.tokenizer",
		func(c *Config) *string { return &c.Memory.Tokenizer }, "heuristic", "cl100k_base", "o200k_base"),

	"summarizer.provider": oneOfKey("summarizer.provider",
		func(c *Config) *string { return &c.Summarizer.Provider }, "", "openai", "anthropic", "ollama"),
	"summarizer.model":     stringKey(func(c *Config) *string { return &c.Summarizer.Model }),
	"summarizer.base_url":  stringKey(func(c *Config) *string { return &c.Summarizer.BaseURL }),
	"summarizer.timeout":   durationKey("summarizer.timeout", func(c *Config) *string { return &c.Summarizer.Timeout }),
	"summarizer.max_items": intKey("summarizer.max_items", func(c *Config) *int { return &c.Summarizer.MaxItems }),

	"store.backend": oneOfKey("store.backend",
		func(c *Config) *string { return &c.Store.Backend }, "memory", "sqlite", "postgres"),
	"store.sqlite_path":  stringKey(func(c *Config) *string { return &c.Store.SQLitePath }),
	"store.postgres_dsn": stringKey(func(c *Config) *string { return &c.Store.PostgresDSN }),
	"store.prefix":       stringKey(func(c *Config) *string { return &c.Store.Prefix }),
	"store.ttl":          durationKey("store.ttl", func(c *Config) *string { return &c.Store.TTL }),
	"store.size":         intKey("store.size", func(c *Config) *int { return &c.Store.Size }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"events.provider": oneOfKey("events.provider",
		func(c *Config) *string { return &c.Events.Provider }, "nop", "kafka"),
	"events.brokers": stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":   stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
}
