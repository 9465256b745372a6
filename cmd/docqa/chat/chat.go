// Package chatcmder provides the chat command, an interactive terminal client
// for a running docqa API server.
package chatcmder

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/api/client"
	"github.com/papercomputeco/docqa/pkg/config"
)

type chatCommander struct {
	apiTarget string

	in  io.Reader
	out io.Writer
}

const chatLongDesc string = `Open an interactive question and answer session.

Connects to a running docqa API server ("docqa serve"), checks that it is
reachable, then lets you ask questions one after another. Each answer is
rendered as markdown together with its source documents.

Keys:
  Enter        ask the typed question
  PgUp/PgDn    scroll the transcript
  Esc, Ctrl+C  quit

Examples:
  docqa chat
  docqa chat --api-target http://localhost:9000`

const chatShortDesc string = "Ask questions interactively"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("api-target") {
				return nil
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.apiTarget = cfg.Client.APITarget
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "docqa API server URL")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	api := client.New(c.apiTarget)

	banner, err := api.Banner(ctx)
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		newModel(ctx, api, banner),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}
