// Package transform owns the per-run transformation state: region id issuance
// and the mechanics of swapping a region for a runtime invocation.
package transform

import (
	"os"

	"go.uber.org/zap"

	"github.com/opal-lang/shprep/internal/ast"
	"github.com/opal-lang/shprep/internal/invariant"
	"github.com/opal-lang/shprep/internal/shell"
)

// Options configures a State.
type Options struct {
	// TempDir is where region files are created. Empty means os.TempDir().
	TempDir string
	// Dialect picks the sourcing builtin of replacement nodes.
	Dialect shell.Dialect
	Logger  *zap.Logger
}

// State is the transformation state of exactly one preprocessing run.
//
// It is created when a run starts and dropped when it ends; nothing in it is
// global or persisted. A run is single-threaded, so State is not safe for
// concurrent use and needs no locking. Independent runs use independent
// States.
type State struct {
	counter int
	tempDir string
	dialect shell.Dialect
	logger  *zap.Logger
	regions []*Region
}

// NewState creates the state for a new run. The first issued id is 0.
func NewState(opts Options) *State {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &State{tempDir: tempDir, dialect: opts.Dialect, logger: logger}
}

// NextID returns a fresh id, strictly greater than every id issued before in
// this run.
func (s *State) NextID() int {
	id := s.counter
	s.counter++
	return id
}

// CurrentID returns the last issued id, or -1 if none has been issued.
func (s *State) CurrentID() int {
	return s.counter - 1
}

// IssuedCount returns how many ids have been issued.
func (s *State) IssuedCount() int {
	return s.counter
}

// TempDir is the directory region files are created in.
func (s *State) TempDir() string {
	return s.tempDir
}

// Regions returns the records of every region persisted in this run, in
// the order they were replaced.
func (s *State) Regions() []Region {
	out := make([]Region, len(s.regions))
	for i, r := range s.regions {
		out[i] = *r
	}
	return out
}

// Bind fixes the runtime entrypoint for every replacement made through the
// returned Binding.
func (s *State) Bind(runtimePath string) *Binding {
	invariant.Precondition(runtimePath != "", "runtime path must not be empty")
	return &Binding{state: s, runtimePath: runtimePath}
}

// Binding is a State bound to one runtime entrypoint. It is the handle the
// region-selection oracle receives.
type Binding struct {
	state       *State
	runtimePath string
}

// ReplaceRegion replaces nodes using the bound runtime path.
func (b *Binding) ReplaceRegion(nodes []ast.Node, literal *string) (ast.Node, error) {
	return b.state.ReplaceRegion(nodes, b.runtimePath, literal)
}
