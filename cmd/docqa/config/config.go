// Package configcmder provides the config command for managing persistent
// docqa configuration stored in the .docqa/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/pkg/cliui"
	"github.com/papercomputeco/docqa/pkg/config"
)

const configLongDesc string = `Manage persistent docqa configuration.

Configuration is stored as config.toml in the .docqa/ directory and provides
default values for command flags. Environment variables (DOCQA_LLM_MODEL,
DOCQA_EMBEDDING_TARGET, ...) override the file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure:
  documents.root, documents.extensions,
  chunking.size, chunking.overlap,
  vector_store.provider, vector_store.target, vector_store.path, vector_store.collection,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions, embedding.batch_size,
  llm.provider, llm.target, llm.model, llm.temperature,
  retrieval.top_k, api.listen, client.api_target,
  event_stream.provider, event_stream.brokers, event_stream.topic

Use subcommands to get, set, or list configuration values:
  docqa config set <key> <value>    Set a configuration value
  docqa config get <key>            Get a configuration value
  docqa config list                 List all configuration values

Examples:
  docqa config set llm.provider openai
  docqa config set chunking.size 800
  docqa config get embedding.model
  docqa config list`

const configShortDesc string = "Manage persistent docqa configuration"

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

func validateKey(key string) error {
	if config.IsValidConfigKey(key) {
		return nil
	}
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if target == "" {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
		return
	}

	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(target),
	)
}
