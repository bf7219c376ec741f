package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RECALL_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RECALL_API_LISTEN, RECALL_STORE_BACKEND, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper decodes the resolved values of v into a Config.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Memory: MemoryConfig{
			MaxRecentTurns:   v.GetInt("memory.max_recent_turns"),
			MaxTotalTokens:   v.GetInt("memory.max_total_tokens"),
			MaxSummaryTokens: v.GetInt("memory.max_summary_tokens"),
			ForceRetainTurns: v.GetInt("memory.force_retain_turns"),
			Compaction:       v.GetString("memory.compaction"),
			Workers:          v.GetUint("memory.workers"),
			QueueSize:        v.GetUint("memory.queue_size"),
			Tokenizer:        v.GetString("memory.tokenizer"),
		},
		Summarizer: SummarizerConfig{
			Provider: v.GetString("summarizer.provider"),
			Model:    v.GetString("summarizer.model"),
			BaseURL:  v.GetString("summarizer.base_url"),
			Timeout:  v.GetString("summarizer.timeout"),
			MaxItems: v.GetInt("summarizer.max_items"),
		},
		Store: StoreConfig{
			Backend:     v.GetString("store.backend"),
			SQLitePath:  v.GetString("store.sqlite_path"),
			PostgresDSN: v.GetString("store.postgres_dsn"),
			Prefix:      v.GetString("store.prefix"),
			TTL:         v.GetString("store.ttl"),
			Size:        v.GetInt("store.size"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. Every key is registered, even when empty, so
// AutomaticEnv can resolve it.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)
	for _, key := range ValidConfigKeys() {
		v.SetDefault(key, configKeys[key].get(d))
	}
}
