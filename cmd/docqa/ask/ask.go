// Package askcmder provides the ask command, a client for a running docqa
// API server.
package askcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/api/client"
	"github.com/papercomputeco/docqa/pkg/answer"
	"github.com/papercomputeco/docqa/pkg/cliui"
	"github.com/papercomputeco/docqa/pkg/config"
)

type askCommander struct {
	question  string
	apiTarget string
	jsonOut   bool
	plain     bool

	out io.Writer
}

const askLongDesc string = `Ask a question about the ingested documents.

Sends the question to a running docqa API server ("docqa serve"), renders the
answer as markdown and lists the source documents the answer was built from.

Examples:
  docqa ask "How many days of annual leave do employees get?"
  docqa ask "What is the warranty period?" --api-target http://localhost:9000
  docqa ask "Summarize the onboarding guide" --json`

const askShortDesc string = "Ask a question about the documents"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.question = strings.Join(args, " ")
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "docqa API server URL")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw JSON answer")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print the answer without markdown rendering")

	return cmd
}

func (c *askCommander) run(ctx context.Context) error {
	api := client.New(c.apiTarget)

	if _, err := api.Banner(ctx); err != nil {
		return err
	}

	result, err := api.Ask(ctx, c.question)
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	c.printAnswer(result)
	return nil
}

func (c *askCommander) printAnswer(result *answer.Answer) {
	text := result.Text
	if !c.plain {
		if rendered, err := cliui.RenderMarkdown(text); err == nil {
			text = rendered
		}
	} else {
		text = "\n  " + text + "\n"
	}
	fmt.Fprint(c.out, text)

	if len(result.Sources) == 0 {
		fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("No source documents."))
		return
	}

	fmt.Fprintf(c.out, "\n  %s\n", cliui.HeaderStyle.Render("Sources"))
	for i, s := range result.Sources {
		fmt.Fprintf(c.out, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.NameStyle.Render(s.Source),
			cliui.DimStyle.Render("page "+s.PageLabel()),
		)
	}
	fmt.Fprintln(c.out)
}
