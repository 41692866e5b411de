// Package oracle decides which regions of a script get extracted and splices
// the replacement nodes back into the tree.
package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/opal-lang/shprep/internal/ast"
	"github.com/opal-lang/shprep/internal/shell"
)

// Replacer turns a region into the node that takes its place. literal, when
// non-nil, is used as the region text instead of unparsing nodes.
type Replacer interface {
	ReplaceRegion(nodes []ast.Node, literal *string) (ast.Node, error)
}

// Oracle walks a script and calls the Replacer once per chosen region. It
// returns the rewritten sequence; the input script may be shared with the
// result but is never modified.
type Oracle interface {
	Name() string
	WalkAndReplace(ctx context.Context, script ast.Script, rep Replacer) (ast.Script, error)
}

const (
	StrategyNone     = "none"
	StrategyWhole    = "whole"
	StrategyDataflow = "dataflow"
)

// Strategies lists the accepted strategy names, sorted.
func Strategies() []string {
	names := []string{StrategyNone, StrategyWhole, StrategyDataflow}
	sort.Strings(names)
	return names
}

// New creates the oracle for a strategy name.
func New(strategy string, logger *zap.Logger) (Oracle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyNone:
		return None{}, nil
	case StrategyWhole:
		return Whole{}, nil
	case StrategyDataflow:
		return &Dataflow{logger: logger.Named("oracle")}, nil
	}
	if suggestion := shell.ClosestMatch(strategy, Strategies()); suggestion != "" {
		return nil, fmt.Errorf("unknown strategy %q (did you mean %q?)", strategy, suggestion)
	}
	return nil, fmt.Errorf("unknown strategy %q (valid: %s)", strategy, strings.Join(Strategies(), ", "))
}

// None selects no regions.
type None struct{}

func (None) Name() string { return StrategyNone }

func (None) WalkAndReplace(_ context.Context, script ast.Script, _ Replacer) (ast.Script, error) {
	return script, nil
}

// Whole selects the entire script as a single region.
type Whole struct{}

func (Whole) Name() string { return StrategyWhole }

func (Whole) WalkAndReplace(ctx context.Context, script ast.Script, rep Replacer) (ast.Script, error) {
	if len(script) == 0 {
		return script, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	node, err := rep.ReplaceRegion(script, nil)
	if err != nil {
		return nil, err
	}
	return ast.Script{node}, nil
}
