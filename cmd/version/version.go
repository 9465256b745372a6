// Package versioncmder provides the version command.
package versioncmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/pkg/utils"
)

type versionCommander struct {
	out     io.Writer
	asJSON  bool
	onlyVer bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the docqa version",
		Long:  "Print the version, commit and build time of this docqa binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run()
		},
	}

	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print build information as JSON")
	cmd.Flags().BoolVar(&cmder.onlyVer, "short", false, "Print only the version string")

	return cmd
}

func (c *versionCommander) run() error {
	info := utils.Info()

	switch {
	case c.asJSON:
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case c.onlyVer:
		_, err := fmt.Fprintln(c.out, info.Version)
		return err
	}

	_, err := fmt.Fprintf(c.out, "docqa %s\nSha: %s\nBuilt at: %s\n", info.Version, info.Sha, info.Buildtime)
	return err
}
