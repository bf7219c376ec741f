// Package configcmder provides the config command for managing persistent
// recall configuration stored in the .recall/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent recall configuration.

Configuration is stored as config.toml in the .recall/ directory and provides
default values for command flags. CLI flags and RECALL_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  memory.max_recent_turns, memory.max_total_tokens, memory.max_summary_tokens,
  memory.force_retain_turns, memory.compaction, memory.workers,
  memory.queue_size, memory.tokenizer,
  summarizer.provider, summarizer.model, summarizer.base_url,
  summarizer.timeout, summarizer.max_items,
  store.backend, store.sqlite_path, store.postgres_dsn, store.prefix,
  store.ttl, store.size,
  api.listen, events.provider, events.brokers, events.topic,
  client.api_target

Use subcommands to get, set, or list configuration values:
  recall config set <key> <value>    Set a configuration value
  recall config get <key>            Get a configuration value
  recall config list                 List all configuration values

Examples:
  recall config set summarizer.provider anthropic
  recall config set store.backend sqlite
  recall config get memory.max_total_tokens
  recall config list`

const configShortDesc string = "Manage persistent recall configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
