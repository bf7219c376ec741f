package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/recall/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml inside the resolved .recall dir.
type Configer struct {
	path string
}

// NewConfiger resolves the config file under override, $RECALL_DIR, a local
// .recall dir or ~/.recall, in that order. The file itself may not exist yet.
func NewConfiger(override string) (*Configer, error) {
	path, err := dotdir.NewManager().Path(override, configFile)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{path: path}, nil
}

// orderedKeys lists config keys in the TOML section layout.
var orderedKeys = []string{
	"memory.max_recent_turns",
	"memory.max_total_tokens",
	"memory.max_summary_tokens",
	"memory.force_retain_turns",
	"memory.compaction",
	"memory.workers",
	"memory.queue_size",
	"memory.tokenizer",
	"summarizer.provider",
	"summarizer.model",
	"summarizer.base_url",
	"summarizer.timeout",
	"summarizer.max_items",
	"store.backend",
	"store.sqlite_path",
	"store.postgres_dsn",
	"store.prefix",
	"store.ttl",
	"store.size",
	"api.listen",
	"events.provider",
	"events.brokers",
	"events.topic",
	"client.api_target",
}

// ValidConfigKeys returns the list of all supported configuration key names
// in a stable order matching the TOML section layout.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// GetTarget returns the config file path.
func (c *Configer) GetTarget() string {
	return c.path
}

// LoadConfig loads the configuration from config.toml in the target .recall/
// directory. If the file does not exist, returns NewDefaultConfig() so
// callers always receive a fully-populated Config. Fields explicitly set in
// the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.path == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

func fill[T comparable](dst *T, def T) {
	var zero T
	if *dst == zero {
		*dst = def
	}
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	m := &cfg.Memory
	fill(&m.MaxRecentTurns, d.Memory.MaxRecentTurns)
	fill(&m.MaxTotalTokens, d.Memory.MaxTotalTokens)
	fill(&m.MaxSummaryTokens, d.Memory.MaxSummaryTokens)
	fill(&m.ForceRetainTurns, d.Memory.ForceRetainTurns)
	fill(&m.Compaction, d.Memory.Compaction)
	fill(&m.Workers, d.Memory.Workers)
	fill(&m.QueueSize, d.Memory.QueueSize)
	fill(&m.Tokenizer, d.Memory.Tokenizer)

	fill(&cfg.Summarizer.Timeout, d.Summarizer.Timeout)

	st := &cfg.Store
	fill(&st.Backend, d.Store.Backend)
	fill(&st.Prefix, d.Store.Prefix)
	fill(&st.TTL, d.Store.TTL)
	fill(&st.Size, d.Store.Size)

	fill(&cfg.API.Listen, d.API.Listen)
	fill(&cfg.Events.Provider, d.Events.Provider)
	fill(&cfg.Events.Topic, d.Events.Topic)
	fill(&cfg.Client.APITarget, d.Client.APITarget)
}

// SaveConfig persists the configuration to config.toml in the target .recall/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.path == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// Setting is one config key with its current string value.
type Setting struct {
	Key   string
	Value string
}

// Settings loads the config once and returns every key in
// ValidConfigKeys order.
func (c *Configer) Settings() ([]Setting, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}

	keys := ValidConfigKeys()
	out := make([]Setting, 0, len(keys))
	for _, k := range keys {
		out = append(out, Setting{Key: k, Value: configKeys[k].get(cfg)})
	}
	return out, nil
}

// PresetConfig returns a default Config with the summarizer set up for the
// named provider preset. Supported presets: "openai", "anthropic", "ollama".
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openai":
		cfg.Summarizer.Provider = "openai"
		cfg.Summarizer.Model = "gpt-4o-mini"
		cfg.Memory.Tokenizer = "o200k_base"

	case "anthropic":
		cfg.Summarizer.Provider = "anthropic"
		cfg.Summarizer.Model = "claude-haiku-4-5-20251001"

	case "ollama":
		cfg.Summarizer.Provider = "ollama"
		cfg.Summarizer.Model = "llama3.2"
		cfg.Summarizer.BaseURL = "http://localhost:11434"

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: openai, anthropic, ollama)", name)
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "anthropic", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
