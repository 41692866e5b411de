// Package pipeline drives one preprocessing run: parse, replace regions,
// unparse, and write the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opal-lang/shprep/internal/ast"
	shperrors "github.com/opal-lang/shprep/internal/errors"
	"github.com/opal-lang/shprep/internal/invariant"
	"github.com/opal-lang/shprep/internal/manifest"
	"github.com/opal-lang/shprep/internal/oracle"
	"github.com/opal-lang/shprep/internal/shell"
	"github.com/opal-lang/shprep/internal/transform"
)

// Options configures a run.
type Options struct {
	Input   string
	Output  string
	Runtime string // runtime entrypoint sourced in place of each region
	Dialect shell.Dialect
	Oracle  oracle.Oracle
	TempDir string // region files; empty means os.TempDir()

	Manifest       string // optional manifest path
	ManifestFormat manifest.Format

	RunID  string // generated when empty
	Logger *zap.Logger
}

// Preprocessed is the outcome of a successful Preprocess.
type Preprocessed struct {
	Text    string
	Timings []StageTiming
	Regions []transform.Region
}

// Preprocess parses the script at opts.Input in opts.Dialect, lets the oracle
// replace regions and unparses the result. Each stage is timed. The first
// failure is returned as a *errors.Error tagged with its stage; contract
// violations raised inside a stage are recovered and reported as internal
// failures.
func Preprocess(ctx context.Context, opts Options) (out *Preprocessed, err error) {
	defer func() {
		if v := invariant.Recover(recover()); v != nil {
			out = nil
			err = shperrors.NewInternalError("contract violation", v)
		}
	}()
	invariant.NotNil(ctx, "ctx")

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	orc := opts.Oracle
	if orc == nil {
		orc = oracle.None{}
	}

	out = &Preprocessed{}
	stage := func(name shperrors.Stage, label string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return shperrors.NewInternalError("run cancelled", err).WithStage(name)
		}
		start := time.Now()
		err := fn()
		timing := StageTiming{Stage: name, Duration: time.Since(start)}
		out.Timings = append(out.Timings, timing)
		logger.Info(fmt.Sprintf("Preprocessing -- %s time", label),
			zap.String("stage", string(name)),
			zap.Float64("ms", timing.Milliseconds()))
		if err != nil {
			return tag(err, name)
		}
		return nil
	}

	var script ast.Script
	if err := stage(shperrors.StageParse, "Parsing", func() (err error) {
		script, err = shell.ParseFile(opts.Input, opts.Dialect)
		return err
	}); err != nil {
		return nil, err
	}

	state := transform.NewState(transform.Options{TempDir: opts.TempDir, Dialect: opts.Dialect, Logger: logger})
	var rewritten ast.Script
	if err := stage(shperrors.StageReplace, "Replacing regions", func() (err error) {
		rewritten, err = orc.WalkAndReplace(ctx, script, state.Bind(opts.Runtime))
		if err != nil {
			return err
		}
		for _, orphan := range state.MarkSpliced(rewritten) {
			logger.Warn("region file was never spliced into the script",
				zap.Int("region", orphan.ID),
				zap.String("path", orphan.Path))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	out.Regions = state.Regions()

	if err := stage(shperrors.StageUnparse, "Unparsing", func() (err error) {
		out.Text, err = shell.Unparse(rewritten)
		return err
	}); err != nil {
		return nil, err
	}

	return out, nil
}

// tag makes sure err is a classified error carrying the stage it came from.
// Unclassified errors, such as an oracle returning a plain error, are
// internal failures.
func tag(err error, stage shperrors.Stage) error {
	var e *shperrors.Error
	if errors.As(err, &e) {
		e.WithStage(stage)
		return err
	}
	return shperrors.NewInternalError(fmt.Sprintf("%s stage failed", stage), err).WithStage(stage)
}

// Run is the entry procedure: it preprocesses opts.Input and, only if every
// stage succeeded, writes the text to opts.Output (and the manifest, when
// requested). On failure it logs a single diagnostic and leaves the output
// path untouched.
func Run(ctx context.Context, opts Options) Result {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With(zap.String("run_id", runID))
	opts.Logger = logger

	logger.Info("Preprocessor starting",
		zap.String("input", opts.Input),
		zap.String("output", opts.Output),
		zap.String("runtime", opts.Runtime),
		zap.String("dialect", opts.Dialect.String()))

	res := Result{RunID: runID}
	fail := func(err error) Result {
		res.Status = StatusOf(err)
		res.Err = err
		logger.Error("Preprocessing failed", failureFields(err)...)
		return res
	}

	if opts.Input == "" || opts.Output == "" || opts.Runtime == "" {
		return fail(shperrors.New(shperrors.KindInternal, "input, output and runtime paths are required").
			WithStage(shperrors.StageConfig))
	}

	out, err := Preprocess(ctx, opts)
	if err != nil {
		return fail(err)
	}
	res.Timings = out.Timings
	res.Regions = out.Regions

	// The output is committed before the manifest, so a published manifest
	// always describes an output that exists.
	output, err := stageFile(opts.Output, []byte(out.Text))
	if err != nil {
		return fail(err)
	}
	commits := []*pendingFile{output}
	if opts.Manifest != "" {
		m := manifest.New(manifest.Run{
			ID:       runID,
			Input:    opts.Input,
			Output:   opts.Output,
			Runtime:  opts.Runtime,
			Dialect:  opts.Dialect.String(),
			Strategy: oracleName(opts.Oracle),
		}, out.Regions)
		data, err := m.Marshal(opts.ManifestFormat)
		if err != nil {
			output.abort()
			return fail(shperrors.NewInternalError("cannot encode manifest", err).WithStage(shperrors.StageWrite))
		}
		p, err := stageFile(opts.Manifest, data)
		if err != nil {
			output.abort()
			return fail(err)
		}
		commits = append(commits, p)
	}

	for i, p := range commits {
		if err := p.commit(); err != nil {
			for _, rest := range commits[i+1:] {
				rest.abort()
			}
			return fail(err)
		}
	}

	res.Status = StatusSuccess
	res.Output = opts.Output
	logger.Info("Preprocessed script written",
		zap.String("output", opts.Output),
		zap.Int("regions", len(out.Regions)))
	return res
}

// failureFields puts the failing path on the diagnostic line when the error
// names one.
func failureFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var e *shperrors.Error
	if errors.As(err, &e) {
		if path, ok := e.GetContext("path"); ok {
			fields = append(fields, zap.Any("path", path))
		}
	}
	return fields
}

func oracleName(o oracle.Oracle) string {
	if o == nil {
		return oracle.StrategyNone
	}
	return o.Name()
}
