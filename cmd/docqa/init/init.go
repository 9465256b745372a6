// Package initcmder provides the init command for initializing a local .docqa
// directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/pkg/cliui"
	"github.com/papercomputeco/docqa/pkg/config"
	"github.com/papercomputeco/docqa/pkg/dotdir"
)

const remotePresetTimeout = 10 * time.Second

type initCommander struct {
	preset string
	out    io.Writer
}

const initLongDesc string = `Initialize a new .docqa/ directory in the current working directory.

Creates a local .docqa/ directory that takes precedence over the default
~/.docqa/ directory, and writes a config.toml into it. The persisted index
built by "docqa ingest" is stored here unless vector_store.path says otherwise.

An existing config.toml is kept unless --preset is given. A preset is either
a provider name or an http(s) URL serving a config.toml.

Examples:
  docqa init
  docqa init --preset openai
  docqa init --preset https://example.com/docqa/config.toml`

const initShortDesc string = "Initialize a local .docqa/ directory"

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Provider preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dotdir.DirName)
	configPath := filepath.Join(dir, "config.toml")

	// Resolve the preset before touching the filesystem.
	var cfg *config.Config
	if c.preset != "" {
		cfg, err = c.resolvePreset(ctx)
		if err != nil {
			return err
		}
	}

	info, err := os.Stat(dir)
	alreadyInitialized := err == nil && info.IsDir()
	if !alreadyInitialized {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .docqa directory: %w", err)
		}
	}

	_, statErr := os.Stat(configPath)
	configExists := statErr == nil

	if cfg == nil && !configExists {
		cfg = config.NewDefaultConfig()
	}

	if cfg != nil {
		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	}

	switch {
	case alreadyInitialized && cfg == nil:
		fmt.Fprintf(c.out, "\n  %s %s\n\n", cliui.DimStyle.Render("Already initialized:"), dir)
	case alreadyInitialized:
		fmt.Fprintf(c.out, "\n  %s Wrote %s\n\n", cliui.SuccessMark, cliui.KeyStyle.Render(configPath))
	default:
		fmt.Fprintf(c.out, "\n  %s Initialized %s\n\n", cliui.SuccessMark, cliui.KeyStyle.Render(dir))
	}

	return nil
}

func (c *initCommander) resolvePreset(ctx context.Context) (*config.Config, error) {
	if strings.HasPrefix(c.preset, "http://") || strings.HasPrefix(c.preset, "https://") {
		return fetchRemoteConfig(ctx, c.preset)
	}
	return config.PresetConfig(c.preset)
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, remotePresetTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
