package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opal-lang/shprep/internal/pipeline"
)

type batchFlags struct {
	outDir    string
	jobs      int
	manifests bool
}

func newBatchCmd(flags *globalFlags) *cobra.Command {
	bf := &batchFlags{}
	cmd := &cobra.Command{
		Use:   "batch <input-script>...",
		Short: "Preprocess several scripts concurrently into one directory",
		Long: `batch runs one independent preprocessing run per input. Runs share nothing
but the settings; each output is written to --out-dir under the input's base
name. A failed run does not stop the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, flags, bf, args)
		},
	}
	cmd.Flags().StringVar(&bf.outDir, "out-dir", "", "Directory receiving the preprocessed scripts")
	cmd.Flags().IntVarP(&bf.jobs, "jobs", "j", runtime.NumCPU(), "Maximum number of concurrent runs")
	cmd.Flags().BoolVar(&bf.manifests, "manifests", false, "Write <name>.manifest.<format> next to every output")
	return cmd
}

func runBatch(cmd *cobra.Command, flags *globalFlags, bf *batchFlags, inputs []string) error {
	if bf.outDir == "" {
		return usageError(fmt.Errorf("--out-dir is required"))
	}
	if bf.jobs < 1 {
		return usageError(fmt.Errorf("--jobs must be at least 1, got %d", bf.jobs))
	}
	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		base := filepath.Base(in)
		if prev, ok := seen[base]; ok {
			return usageError(fmt.Errorf("%s and %s would both be written to %s", prev, in, base))
		}
		seen[base] = in
	}

	s, err := flags.resolve(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := os.MkdirAll(bf.outDir, 0o755); err != nil {
		return usageError(fmt.Errorf("creating %s: %w", bf.outDir, err))
	}

	results := make([]pipeline.Result, len(inputs))
	var g errgroup.Group
	g.SetLimit(bf.jobs)
	for i, in := range inputs {
		i := i
		output := filepath.Join(bf.outDir, filepath.Base(in))
		manifestPath := ""
		if bf.manifests {
			manifestPath = output + ".manifest." + string(s.format)
		}
		opts := s.options(in, output, manifestPath)
		g.Go(func() error {
			results[i] = pipeline.Run(cmd.Context(), opts)
			return nil
		})
	}
	_ = g.Wait()

	out := cmd.OutOrStdout()
	var firstFailure error
	for i, res := range results {
		if res.Status == pipeline.StatusSuccess {
			_, _ = fmt.Fprintf(out, "%s %s -> %s (%d regions)\n",
				Colorize("ok  ", ColorGreen, s.colorful), inputs[i], res.Output, len(res.Regions))
			continue
		}
		_, _ = fmt.Fprintf(out, "%s %s: %s\n", Colorize("FAIL", ColorRed, s.colorful), inputs[i], res.Status)
		if firstFailure == nil {
			firstFailure = statusError(res)
		}
	}
	return firstFailure
}
