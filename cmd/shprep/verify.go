package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opal-lang/shprep/internal/manifest"
	"github.com/opal-lang/shprep/internal/pipeline"
)

func newVerifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <manifest>",
		Short: "Check that the region files listed in a manifest are intact",
		Long: `verify reads a manifest and checks every region file it lists. The format
is detected from the content unless --manifest-format is given.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			useColor := ShouldUseColor(flags.noColor)
			load := manifest.Load
			if cmd.Flags().Changed("manifest-format") {
				format, err := manifest.ParseFormat(flags.manifestFormat)
				if err != nil {
					return usageError(err)
				}
				load = func(path string) (*manifest.Manifest, error) {
					return manifest.LoadFormat(path, format)
				}
			}
			m, err := load(args[0])
			if err != nil {
				return &exitError{code: pipeline.ExitIOError, err: err}
			}
			if err := m.Verify(); err != nil {
				return &exitError{code: pipeline.ExitIOError, err: &CLIError{
					Type:    "verify",
					Message: fmt.Sprintf("manifest %s does not match its region files", args[0]),
					Details: err.Error(),
					Hint:    "Region files are not cleaned up by shprep; something else changed or removed them.",
				}}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d regions of run %s\n",
				Colorize("verified", ColorGreen, useColor), len(m.Regions), m.Run.ID)
			return nil
		},
	}
}
