package transform

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
	"mvdan.cc/sh/v3/syntax"

	"github.com/opal-lang/shprep/internal/ast"
	shperrors "github.com/opal-lang/shprep/internal/errors"
	"github.com/opal-lang/shprep/internal/invariant"
	"github.com/opal-lang/shprep/internal/shell"
)

const (
	// ScriptVariable is bound to the region file path before the runtime
	// is sourced. The runtime reads the region's commands from it.
	ScriptVariable = "__jit_script_to_execute"

	regionFilePattern = "shprep-region-*.sh"
)

// RegionPhase is the lifecycle of one region. Phases only move forward.
type RegionPhase int

const (
	PhaseSelected RegionPhase = iota
	PhaseSerialized
	PhasePersisted
	PhaseSpliced
)

func (p RegionPhase) String() string {
	switch p {
	case PhaseSelected:
		return "selected"
	case PhaseSerialized:
		return "serialized"
	case PhasePersisted:
		return "persisted"
	case PhaseSpliced:
		return "spliced"
	default:
		return fmt.Sprintf("RegionPhase(%d)", int(p))
	}
}

// Region records one replaced region.
type Region struct {
	ID        int
	Path      string // region file
	Bytes     int
	Digest    string // hex sha3-256 of the region text
	StartLine int    // 0 when the region has no source position
	EndLine   int
	Literal   bool // text came from the caller, not the unparser
	Phase     RegionPhase
}

func (r *Region) advance(next RegionPhase) {
	invariant.Invariant(next == r.Phase+1, "region %d: cannot move from %s to %s", r.ID, r.Phase, next)
	r.Phase = next
}

// Digest returns the hex sha3-256 digest of text.
func Digest(text string) string {
	sum := sha3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SourceBuiltin returns the builtin that runs a file in the current shell,
// not a subshell, so a region's side effects on shell state survive. POSIX sh
// only has ".".
func SourceBuiltin(d shell.Dialect) string {
	if d == shell.DialectPOSIX {
		return "."
	}
	return "source"
}

// RuntimeInvocation builds the node that replaces a region:
//
//	__jit_script_to_execute=<scriptPath> source <runtimePath>
//
// with "." in place of "source" for POSIX sh. The prefix assignment is
// visible to the sourced runtime, which executes the region file in the
// current shell.
func RuntimeInvocation(d shell.Dialect, scriptPath, runtimePath string) *ast.Command {
	return &ast.Command{
		Assigns: []*ast.Assign{{Name: ScriptVariable, Value: scriptPath}},
		Args:    []string{SourceBuiltin(d), runtimePath},
	}
}

// ReplaceRegion extracts a region into a fresh region file and returns the
// node that should take its place.
//
// The region text is literal when non-nil, otherwise the unparsed nodes.
// The text is written verbatim to a file whose name is unique across
// processes on this host. The returned node is not spliced anywhere:
// splicing is the caller's job, and nodes are never mutated.
//
// A file that cannot be created or written yields a KindIO error. It is not
// retried; the run is expected to abort.
func (s *State) ReplaceRegion(nodes []ast.Node, runtimePath string, literal *string) (ast.Node, error) {
	invariant.Precondition(runtimePath != "", "runtime path must not be empty")
	invariant.Precondition(len(nodes) > 0 || literal != nil, "region must have nodes or literal text")

	region := &Region{ID: s.NextID(), Phase: PhaseSelected, Literal: literal != nil}
	region.StartLine, region.EndLine = lineSpan(nodes)
	log := s.logger.With(zap.Int("region", region.ID))

	var text string
	if literal != nil {
		text = *literal
	} else {
		var err error
		text, err = shell.Unparse(nodes)
		if err != nil {
			return nil, wrapStage(err)
		}
	}
	region.advance(PhaseSerialized)

	path, err := s.persist(text)
	if err != nil {
		log.Error("cannot persist region", zap.Error(err))
		return nil, err
	}
	region.Path = path
	region.Bytes = len(text)
	region.Digest = Digest(text)
	region.advance(PhasePersisted)
	s.regions = append(s.regions, region)

	log.Debug("region persisted",
		zap.String("path", path),
		zap.Int("bytes", region.Bytes),
		zap.Int("start_line", region.StartLine),
		zap.Int("end_line", region.EndLine),
		zap.Bool("literal", region.Literal))

	return RuntimeInvocation(s.dialect, path, runtimePath), nil
}

func (s *State) persist(text string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, regionFilePattern)
	if err != nil {
		return "", shperrors.NewIOError("cannot create region file", s.tempDir, err).
			WithStage(shperrors.StageReplace)
	}
	n, werr := io.WriteString(f, text)
	cerr := f.Close()
	if werr != nil {
		return "", shperrors.NewIOError("cannot write region file", f.Name(), werr).
			WithStage(shperrors.StageReplace)
	}
	if cerr != nil {
		return "", shperrors.NewIOError("cannot close region file", f.Name(), cerr).
			WithStage(shperrors.StageReplace)
	}
	invariant.Postcondition(n == len(text), "region file must hold all %d bytes, wrote %d", len(text), n)
	return f.Name(), nil
}

// MarkSpliced finds every runtime invocation of this run in script and moves
// the matching regions to PhaseSpliced. It returns the regions that were
// persisted but never made it into the script.
func (s *State) MarkSpliced(script ast.Script) []Region {
	found := make(map[string]bool)
	for _, stmt := range ast.Lower(script) {
		syntax.Walk(stmt, func(node syntax.Node) bool {
			call, ok := node.(*syntax.CallExpr)
			if !ok || len(call.Assigns) == 0 {
				return true
			}
			as := call.Assigns[0]
			if as.Name == nil || as.Name.Value != ScriptVariable || as.Value == nil {
				return true
			}
			if path, ok := ast.WordText(as.Value); ok {
				found[path] = true
			}
			return true
		})
	}

	var orphans []Region
	for _, r := range s.regions {
		if r.Phase != PhasePersisted {
			continue
		}
		if found[r.Path] {
			r.advance(PhaseSpliced)
			continue
		}
		orphans = append(orphans, *r)
	}
	return orphans
}

func lineSpan(nodes []ast.Node) (start, end int) {
	for _, n := range nodes {
		if seq, ok := n.(*ast.Sequence); ok {
			s, e := lineSpan(seq.Nodes)
			if start == 0 {
				start = s
			}
			if e > end {
				end = e
			}
			continue
		}
		pos := n.Position()
		if !pos.IsValid() {
			continue
		}
		if start == 0 {
			start = pos.Line
		}
		last := pos.Line
		for _, stmt := range n.Stmts() {
			if stmt.End().IsValid() && int(stmt.End().Line()) > last {
				last = int(stmt.End().Line())
			}
		}
		if last > end {
			end = last
		}
	}
	return start, end
}

func wrapStage(err error) error {
	var e *shperrors.Error
	if errors.As(err, &e) {
		return e.WithStage(shperrors.StageReplace)
	}
	return shperrors.NewSerializationError("cannot serialize region", err).WithStage(shperrors.StageReplace)
}
