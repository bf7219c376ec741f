package config

const (
	defaultMaxRecentTurns   = 6
	defaultMaxTotalTokens   = 2000
	defaultMaxSummaryTokens = 400
	defaultForceRetainTurns = 2
	defaultCompaction       = "sync"
	defaultWorkers          = 3
	defaultQueueSize        = 256
	defaultTokenizer        = "heuristic"

	defaultSummarizerTimeout = "10s"

	defaultStoreBackend = "memory"
	defaultStorePrefix  = "recall"
	defaultStoreTTL     = "24h"
	defaultStoreSize    = 10000

	defaultAPIListen       = ":8082"
	defaultClientAPITarget = "http://localhost:8082"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "recall.sessions"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Memory: MemoryConfig{
			MaxRecentTurns:   defaultMaxRecentTurns,
			MaxTotalTokens:   defaultMaxTotalTokens,
			MaxSummaryTokens: defaultMaxSummaryTokens,
			ForceRetainTurns: defaultForceRetainTurns,
			Compaction:       defaultCompaction,
			Workers:          defaultWorkers,
			QueueSize:        defaultQueueSize,
			Tokenizer:        defaultTokenizer,
		},
		Summarizer: SummarizerConfig{
			Timeout: defaultSummarizerTimeout,
		},
		Store: StoreConfig{
			Backend: defaultStoreBackend,
			Prefix:  defaultStorePrefix,
			TTL:     defaultStoreTTL,
			Size:    defaultStoreSize,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
