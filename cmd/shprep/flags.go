package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opal-lang/shprep/internal/config"
	"github.com/opal-lang/shprep/internal/logging"
	"github.com/opal-lang/shprep/internal/manifest"
	"github.com/opal-lang/shprep/internal/oracle"
	"github.com/opal-lang/shprep/internal/pipeline"
	"github.com/opal-lang/shprep/internal/shell"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath     string
	runtime        string
	dialect        string
	bash           bool
	strategy       string
	tempDir        string
	manifest       string
	manifestFormat string
	debug          int
	logFile        string
	noColor        bool

	output string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Settings file (default ./"+config.FileName+" when present)")
	pf.StringVarP(&f.runtime, "runtime-executable", "r", "", "Path to the runtime entrypoint sourced in place of each region")
	pf.StringVar(&f.dialect, "dialect", "posix", "Input dialect: posix, bash or mksh")
	pf.BoolVar(&f.bash, "bash", false, "Interpret the input as a bash script (same as --dialect bash)")
	pf.StringVar(&f.strategy, "strategy", oracle.StrategyDataflow, "Region selection: none, whole or dataflow")
	pf.StringVar(&f.tempDir, "temp-dir", "", "Directory for region files (default system temp dir)")
	pf.StringVar(&f.manifest, "manifest", "", "Write a manifest of the replaced regions to this path")
	pf.StringVar(&f.manifestFormat, "manifest-format", "yaml", "Manifest encoding: yaml or cbor")
	pf.IntVarP(&f.debug, "debug", "d", 0, "Debug level: 1 logs stage timings, 2 logs every region")
	pf.StringVar(&f.logFile, "log-file", "", "Append the log to this file instead of stderr")
	pf.BoolVar(&f.noColor, "no-color", false, "Disable colored output")

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Path to write the preprocessed script")
}

// settings is the merged result of the settings file and the flags.
type settings struct {
	cfg      config.Config
	dialect  shell.Dialect
	oracle   oracle.Oracle
	format   manifest.Format
	logger   *zap.Logger
	logFile  *os.File
	colorful bool
}

// close flushes the logger and closes the log file, if any.
func (s *settings) close() {
	_ = s.logger.Sync()
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

// resolve loads the settings file and lets every flag the user actually set
// override it.
func (f *globalFlags) resolve(cmd *cobra.Command) (*settings, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, usageError(err)
	}
	cfg, err := config.LoadOptional(f.configPath, cwd)
	if err != nil {
		return nil, usageError(err)
	}

	changed := cmd.Flags().Changed
	if changed("runtime-executable") {
		cfg.Runtime = f.runtime
	}
	if changed("dialect") {
		cfg.Dialect = f.dialect
	}
	if f.bash {
		cfg.Dialect = shell.DialectBash.String()
	}
	if changed("strategy") {
		cfg.Strategy = f.strategy
	}
	if changed("temp-dir") {
		cfg.TempDir = f.tempDir
	}
	if changed("manifest") {
		cfg.Manifest = f.manifest
	}
	if changed("manifest-format") {
		cfg.ManifestFormat = f.manifestFormat
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("log-file") {
		cfg.LogFile = f.logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError(err)
	}

	s := &settings{cfg: cfg, colorful: ShouldUseColor(f.noColor)}
	logOut := cmd.ErrOrStderr()
	if cfg.LogFile != "" {
		s.logFile, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, usageError(fmt.Errorf("opening log file: %w", err))
		}
		logOut = s.logFile
	}
	s.logger = logging.New(cfg.Debug, logOut)
	s.dialect, _ = shell.ParseDialect(cfg.Dialect)
	s.format, _ = manifest.ParseFormat(cfg.ManifestFormat)
	s.oracle, err = oracle.New(cfg.Strategy, s.logger)
	if err != nil {
		s.close()
		return nil, usageError(err)
	}

	s.logger.Debug("settings resolved",
		zap.String("config", cfg.Path),
		zap.String("runtime", cfg.Runtime),
		zap.String("dialect", s.dialect.String()),
		zap.String("strategy", s.oracle.Name()),
		zap.String("temp_dir", cfg.TempDir))
	return s, nil
}

// options builds the pipeline options for one input/output pair.
func (s *settings) options(input, output, manifestPath string) pipeline.Options {
	return pipeline.Options{
		Input:          input,
		Output:         output,
		Runtime:        s.cfg.Runtime,
		Dialect:        s.dialect,
		Oracle:         s.oracle,
		TempDir:        s.cfg.TempDir,
		Manifest:       manifestPath,
		ManifestFormat: s.format,
		Logger:         s.logger,
	}
}

func usageError(err error) error {
	return &exitError{code: pipeline.ExitInvalidUsage, err: &CLIError{
		Type:    "usage",
		Message: err.Error(),
		Hint:    "Run 'shprep --help' for usage.",
	}}
}

func runPreprocess(cmd *cobra.Command, flags *globalFlags, input string) error {
	if flags.output == "" {
		return usageError(fmt.Errorf("--output is required"))
	}
	s, err := flags.resolve(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	res := pipeline.Run(cmd.Context(), s.options(input, flags.output, s.cfg.Manifest))
	return statusError(res)
}
