package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opal-lang/shprep/internal/pipeline"
	"github.com/opal-lang/shprep/internal/watch"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var (
		output   string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <input-script>",
		Short: "Preprocess a script again every time it changes",
		Long: `watch runs the preprocessor once and then again whenever the input file is
written, until interrupted. A failed run leaves the previous output in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return usageError(fmt.Errorf("--output is required"))
			}
			s, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			input := args[0]
			out := cmd.OutOrStdout()
			return watch.File(cmd.Context(), input, debounce, s.logger,
				func(ctx context.Context) error {
					res := pipeline.Run(ctx, s.options(input, output, s.cfg.Manifest))
					if res.Status != pipeline.StatusSuccess {
						return res.Err
					}
					_, _ = fmt.Fprintf(out, "%s %s (%d regions)\n",
						Colorize("rewrote", ColorGreen, s.colorful), output, len(res.Regions))
					return nil
				},
				func(err error) {
					// already logged by the pipeline
					s.logger.Debug("run failed, waiting for the next change", zap.Error(err))
				})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Path to write the preprocessed script")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period after a change before rerunning")
	return cmd
}
