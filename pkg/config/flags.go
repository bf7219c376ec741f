package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen             = "listen"
	FlagStoreBackend       = "store"
	FlagSQLite             = "sqlite"
	FlagPostgres           = "postgres"
	FlagStoreTTL           = "ttl"
	FlagMaxRecentTurns     = "max-recent-turns"
	FlagMaxTotalTokens     = "max-total-tokens"
	FlagMaxSummaryTokens   = "max-summary-tokens"
	FlagCompaction         = "compaction"
	FlagTokenizer          = "tokenizer"
	FlagSummarizerProvider = "summarizer-provider"
	FlagSummarizerModel    = "summarizer-model"
	FlagSummarizerURL      = "summarizer-base-url"
	FlagSummarizerTimeout  = "summarizer-timeout"
	FlagEventsProvider     = "events"
	FlagKafkaBrokers       = "kafka-brokers"
	FlagKafkaTopic         = "kafka-topic"
	FlagAPITarget          = "api-target"
)

// Flags is the registry shared by every recall command.
var Flags = FlagSet{
	FlagListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagStoreBackend: {
		Name: "store", ViperKey: "store.backend",
		Description: "Session store backend (memory, sqlite, postgres)",
	},
	FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "store.sqlite_path",
		Description: "Path to the SQLite session database",
	},
	FlagPostgres: {
		Name: "postgres", ViperKey: "store.postgres_dsn",
		Description: "PostgreSQL connection string for the session store",
	},
	FlagStoreTTL: {
		Name: "ttl", ViperKey: "store.ttl",
		Description: "Session expiry after the last access (e.g. 24h)",
	},
	FlagMaxRecentTurns: {
		Name: "max-recent-turns", ViperKey: "memory.max_recent_turns",
		Description: "Most turns kept verbatim per session",
	},
	FlagMaxTotalTokens: {
		Name: "max-total-tokens", ViperKey: "memory.max_total_tokens",
		Description: "Token budget for recent turns plus summary",
	},
	FlagMaxSummaryTokens: {
		Name: "max-summary-tokens", ViperKey: "memory.max_summary_tokens",
		Description: "Token budget of the rolling summary",
	},
	FlagCompaction: {
		Name: "compaction", ViperKey: "memory.compaction",
		Description: "When to compact sessions (sync, deferred)",
	},
	FlagTokenizer: {
		Name: "tokenizer", ViperKey: "memory.tokenizer",
		Description: "Token estimator (heuristic, cl100k_base, o200k_base)",
	},
	FlagSummarizerProvider: {
		Name: "summarizer-provider", ViperKey: "summarizer.provider",
		Description: "Model provider for summaries (openai, anthropic, ollama; empty for rules only)",
	},
	FlagSummarizerModel: {
		Name: "summarizer-model", ViperKey: "summarizer.model",
		Description: "Model name used for summaries",
	},
	FlagSummarizerURL: {
		Name: "summarizer-base-url", ViperKey: "summarizer.base_url",
		Description: "Base URL of the summary model provider",
	},
	FlagSummarizerTimeout: {
		Name: "summarizer-timeout", ViperKey: "summarizer.timeout",
		Description: "Time allowed for a model summary before falling back to rules",
	},
	FlagEventsProvider: {
		Name: "events", ViperKey: "events.provider",
		Description: "Session event publisher (nop, kafka)",
	},
	FlagKafkaBrokers: {
		Name: "kafka-brokers", ViperKey: "events.brokers",
		Description: "Comma separated Kafka broker addresses",
	},
	FlagKafkaTopic: {
		Name: "kafka-topic", ViperKey: "events.topic",
		Description: "Kafka topic for session events",
	},
	FlagAPITarget: {
		Name: "api-target", Shorthand: "a", ViperKey: "client.api_target",
		Description: "Recall API server URL",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
