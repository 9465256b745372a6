// Package docqacmder is the root docqa command.
package docqacmder

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/docqa/cmd/docqa/ask"
	authcmder "github.com/papercomputeco/docqa/cmd/docqa/auth"
	chatcmder "github.com/papercomputeco/docqa/cmd/docqa/chat"
	configcmder "github.com/papercomputeco/docqa/cmd/docqa/config"
	ingestcmder "github.com/papercomputeco/docqa/cmd/docqa/ingest"
	initcmder "github.com/papercomputeco/docqa/cmd/docqa/init"
	servecmder "github.com/papercomputeco/docqa/cmd/docqa/serve"
	versioncmder "github.com/papercomputeco/docqa/cmd/version"
)

const docqaLongDesc string = `docqa answers questions about a folder of documents.

Build an index, then serve and query it:
  docqa ingest           Load, chunk, embed and persist the documents
  docqa serve            Run the question answering API server
  docqa ask "question"   Ask the running server a question
  docqa chat             Ask questions interactively

Configuration lives in .docqa/config.toml (see "docqa config" and "docqa init").
A .env file in the working directory is loaded before any command runs.`

const docqaShortDesc string = "docqa - Document question answering"

func NewDocqaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docqa",
		Short:         docqaShortDesc,
		Long:          docqaLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env is the common case.
			_ = godotenv.Load()
		},
	}

	// Global flags
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .docqa/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
