package oracle

import (
	"context"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/syntax"

	"github.com/opal-lang/shprep/internal/ast"
)

// stateful builtins change the state of the calling shell, or depend on it
// in ways a sourced runtime cannot reproduce, so they always stay in place.
var stateful = map[string]bool{
	".": true, "alias": true, "break": true, "builtin": true, "cd": true,
	"command": true, "continue": true, "declare": true, "eval": true,
	"exec": true, "exit": true, "export": true, "getopts": true, "hash": true,
	"let": true, "local": true, "popd": true, "pushd": true, "read": true,
	"readonly": true, "return": true, "set": true, "shift": true,
	"shopt": true, "source": true, "trap": true, "typeset": true,
	"ulimit": true, "umask": true, "unalias": true, "unset": true, "wait": true,
}

// Dataflow selects maximal runs of consecutive dataflow candidates: pipelines
// and simple commands that leave the calling shell's state alone. It
// recurses into the bodies of loops, conditionals, groups, subshells, case
// arms and function definitions. Conditions and &&/|| lists are left alone
// because their exit status steers control flow.
type Dataflow struct {
	logger *zap.Logger
}

func (*Dataflow) Name() string { return StrategyDataflow }

func (d *Dataflow) WalkAndReplace(ctx context.Context, script ast.Script, rep Replacer) (ast.Script, error) {
	w := &walker{ctx: ctx, rep: rep, logger: d.logger}
	out, err := w.list(script)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("dataflow walk finished", zap.Int("regions", w.replaced))
	return out, nil
}

type walker struct {
	ctx      context.Context
	rep      Replacer
	logger   *zap.Logger
	replaced int
}

func (w *walker) list(nodes []ast.Node) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(nodes))
	var run []ast.Node

	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		node, err := w.rep.ReplaceRegion([]ast.Node{&ast.Sequence{Nodes: run}}, nil)
		if err != nil {
			return err
		}
		w.logger.Debug("region selected",
			zap.Int("nodes", len(run)),
			zap.Int("line", run[0].Position().Line))
		w.replaced++
		out = append(out, node)
		run = nil
		return nil
	}

	for _, n := range nodes {
		if err := w.ctx.Err(); err != nil {
			return nil, err
		}
		if isCandidate(n) {
			run = append(run, n)
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		rewritten, err := w.descend(n)
		if err != nil {
			return nil, err
		}
		out = append(out, rewritten)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// stmts rewrites a nested statement list. The original slice is returned
// untouched when nothing inside it was replaced.
func (w *walker) stmts(list []*syntax.Stmt) ([]*syntax.Stmt, bool, error) {
	before := w.replaced
	nodes := make([]ast.Node, len(list))
	for i, stmt := range list {
		nodes[i] = ast.FromStmt(stmt)
	}
	out, err := w.list(nodes)
	if err != nil {
		return nil, false, err
	}
	if w.replaced == before {
		return list, false, nil
	}
	return ast.Lower(out), true, nil
}

// descend rewrites the bodies of a compound statement. Changed statements
// are shallow copies; the parsed tree is never written to.
func (w *walker) descend(n ast.Node) (ast.Node, error) {
	op, ok := n.(*ast.Opaque)
	if !ok || op.Stmt.Background || op.Stmt.Coprocess {
		return n, nil
	}
	stmt, changed, err := w.compound(op.Stmt)
	if err != nil || !changed {
		return n, err
	}
	return &ast.Opaque{Stmt: stmt}, nil
}

func (w *walker) compound(stmt *syntax.Stmt) (*syntax.Stmt, bool, error) {
	var cmd syntax.Command
	switch x := stmt.Cmd.(type) {
	case *syntax.IfClause:
		clause, changed, err := w.ifClause(x)
		if err != nil || !changed {
			return stmt, false, err
		}
		cmd = clause
	case *syntax.WhileClause:
		body, changed, err := w.stmts(x.Do)
		if err != nil || !changed {
			return stmt, false, err
		}
		cp := *x
		cp.Do = body
		cmd = &cp
	case *syntax.ForClause:
		body, changed, err := w.stmts(x.Do)
		if err != nil || !changed {
			return stmt, false, err
		}
		cp := *x
		cp.Do = body
		cmd = &cp
	case *syntax.Block:
		body, changed, err := w.stmts(x.Stmts)
		if err != nil || !changed {
			return stmt, false, err
		}
		cp := *x
		cp.Stmts = body
		cmd = &cp
	case *syntax.Subshell:
		body, changed, err := w.stmts(x.Stmts)
		if err != nil || !changed {
			return stmt, false, err
		}
		cp := *x
		cp.Stmts = body
		cmd = &cp
	case *syntax.CaseClause:
		items := make([]*syntax.CaseItem, len(x.Items))
		anyChanged := false
		for i, item := range x.Items {
			body, changed, err := w.stmts(item.Stmts)
			if err != nil {
				return stmt, false, err
			}
			items[i] = item
			if changed {
				cp := *item
				cp.Stmts = body
				items[i] = &cp
				anyChanged = true
			}
		}
		if !anyChanged {
			return stmt, false, nil
		}
		cp := *x
		cp.Items = items
		cmd = &cp
	case *syntax.FuncDecl:
		body, changed, err := w.compound(x.Body)
		if err != nil || !changed {
			return stmt, false, err
		}
		cp := *x
		cp.Body = body
		cmd = &cp
	default:
		return stmt, false, nil
	}
	cp := *stmt
	cp.Cmd = cmd
	return &cp, true, nil
}

func (w *walker) ifClause(x *syntax.IfClause) (*syntax.IfClause, bool, error) {
	then, thenChanged, err := w.stmts(x.Then)
	if err != nil {
		return nil, false, err
	}
	var els *syntax.IfClause
	elseChanged := false
	if x.Else != nil {
		els, elseChanged, err = w.ifClause(x.Else)
		if err != nil {
			return nil, false, err
		}
	}
	if !thenChanged && !elseChanged {
		return x, false, nil
	}
	cp := *x
	cp.Then = then
	if elseChanged {
		cp.Else = els
	}
	return &cp, true, nil
}

func isCandidate(n ast.Node) bool {
	switch x := n.(type) {
	case *ast.Command:
		return !stateful[x.Name()]
	case *ast.Sequence:
		if len(x.Nodes) == 0 {
			return false
		}
		for _, child := range x.Nodes {
			if !isCandidate(child) {
				return false
			}
		}
		return true
	case *ast.Opaque:
		return isCandidateStmt(x.Stmt)
	default:
		return false
	}
}

func isCandidateStmt(stmt *syntax.Stmt) bool {
	if stmt.Background || stmt.Coprocess {
		return false
	}
	switch cmd := stmt.Cmd.(type) {
	case *syntax.BinaryCmd:
		// every pipeline stage runs in its own subshell
		return cmd.Op == syntax.Pipe || cmd.Op == syntax.PipeAll
	case *syntax.CallExpr:
		if len(cmd.Args) == 0 {
			return false
		}
		name, ok := ast.WordText(cmd.Args[0])
		return ok && !stateful[name]
	default:
		return false
	}
}
