// Package ast is the node model shprep rewrites.
//
// It is a closed variant over the node kinds the rewriter inspects or builds
// (assignment, command, sequence) plus Opaque, which carries any other parsed
// statement through untouched. Every node lowers to mvdan.cc/sh syntax
// statements, which is what the printer consumes.
package ast

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Kind tags a Node variant.
type Kind int

const (
	KindOpaque Kind = iota
	KindAssign
	KindCommand
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindAssign:
		return "Assign"
	case KindCommand:
		return "Command"
	case KindSequence:
		return "Sequence"
	default:
		return "Opaque"
	}
}

// Node represents any node in the AST
type Node interface {
	Kind() Kind
	// Stmts lowers the node to printable statements. Lowering never shares
	// mutable state between calls for synthesized nodes.
	Stmts() []*syntax.Stmt
	Position() Position
	String() string
	node()
}

// Script is an ordered sequence of top-level nodes representing one program.
type Script []Node

// Position represents source location information. Synthesized nodes have
// the zero Position.
type Position struct {
	Line   int
	Column int
	Offset int // Byte offset in source
}

// IsValid reports whether the position came from parsed source.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func positionOf(pos syntax.Pos) Position {
	if !pos.IsValid() {
		return Position{}
	}
	return Position{Line: int(pos.Line()), Column: int(pos.Col()), Offset: int(pos.Offset())}
}

// Assign is a bare variable assignment: NAME=value
type Assign struct {
	Name  string
	Value string
	Pos   Position
}

func (*Assign) node() {}
func (*Assign) Kind() Kind { return KindAssign }
func (a *Assign) Position() Position { return a.Pos }

func (a *Assign) String() string {
	return fmt.Sprintf("%s=%s", a.Name, a.Value)
}

func (a *Assign) Stmts() []*syntax.Stmt {
	return []*syntax.Stmt{{Cmd: &syntax.CallExpr{Assigns: []*syntax.Assign{a.lower()}}}}
}

func (a *Assign) lower() *syntax.Assign {
	as := &syntax.Assign{Name: &syntax.Lit{Value: a.Name}}
	if a.Value != "" {
		as.Value = Word(a.Value)
	}
	return as
}

// Command is a simple command with optional prefix assignments:
// NAME=value ... word ...
type Command struct {
	Assigns []*Assign
	Args    []string
	Pos     Position
}

func (*Command) node() {}
func (*Command) Kind() Kind { return KindCommand }
func (c *Command) Position() Position { return c.Pos }

// Name returns the command name, or "" when the command has no words.
func (c *Command) Name() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

func (c *Command) String() string {
	parts := make([]string, 0, len(c.Assigns)+len(c.Args))
	for _, a := range c.Assigns {
		parts = append(parts, a.String())
	}
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

func (c *Command) Stmts() []*syntax.Stmt {
	call := &syntax.CallExpr{}
	for _, a := range c.Assigns {
		call.Assigns = append(call.Assigns, a.lower())
	}
	for _, arg := range c.Args {
		call.Args = append(call.Args, Word(arg))
	}
	return []*syntax.Stmt{{Cmd: call}}
}

// Sequence is an ordered group of nodes executed one after another in the
// current shell. It lowers to its children's statements in order.
type Sequence struct {
	Nodes []Node
}

func (*Sequence) node() {}
func (*Sequence) Kind() Kind { return KindSequence }

func (s *Sequence) Position() Position {
	if len(s.Nodes) == 0 {
		return Position{}
	}
	return s.Nodes[0].Position()
}

func (s *Sequence) String() string {
	parts := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, "; ")
}

func (s *Sequence) Stmts() []*syntax.Stmt {
	var stmts []*syntax.Stmt
	for _, n := range s.Nodes {
		stmts = append(stmts, n.Stmts()...)
	}
	return stmts
}

// Opaque carries a parsed statement of any kind the rewriter does not model.
type Opaque struct {
	Stmt *syntax.Stmt
}

func (*Opaque) node() {}
func (*Opaque) Kind() Kind { return KindOpaque }

func (o *Opaque) Position() Position {
	return positionOf(o.Stmt.Pos())
}

func (o *Opaque) String() string {
	return fmt.Sprintf("<%T@%d>", o.Stmt.Cmd, o.Position().Line)
}

func (o *Opaque) Stmts() []*syntax.Stmt {
	return []*syntax.Stmt{o.Stmt}
}

// FromStmt classifies a parsed statement. Only statements that lower back to
// the exact same shell text become Assign or Command; everything else is
// wrapped in Opaque.
func FromStmt(stmt *syntax.Stmt) Node {
	if stmt.Negated || stmt.Background || stmt.Coprocess || len(stmt.Redirs) > 0 || len(stmt.Comments) > 0 {
		return &Opaque{Stmt: stmt}
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok {
		return &Opaque{Stmt: stmt}
	}

	pos := positionOf(stmt.Pos())
	assigns := make([]*Assign, 0, len(call.Assigns))
	for _, as := range call.Assigns {
		a, ok := literalAssign(as)
		if !ok {
			return &Opaque{Stmt: stmt}
		}
		assigns = append(assigns, a)
	}
	args := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		lit, ok := bareLiteral(w)
		if !ok {
			return &Opaque{Stmt: stmt}
		}
		args = append(args, lit)
	}

	switch {
	case len(args) == 0 && len(assigns) == 1:
		assigns[0].Pos = pos
		return assigns[0]
	case len(args) > 0:
		return &Command{Assigns: assigns, Args: args, Pos: pos}
	default:
		return &Opaque{Stmt: stmt}
	}
}

// FromFile classifies every top-level statement of a parsed file.
func FromFile(f *syntax.File) Script {
	script := make(Script, 0, len(f.Stmts))
	for _, stmt := range f.Stmts {
		script = append(script, FromStmt(stmt))
	}
	return script
}

// Lower flattens nodes into statements, preserving order.
func Lower(nodes []Node) []*syntax.Stmt {
	var stmts []*syntax.Stmt
	for _, n := range nodes {
		stmts = append(stmts, n.Stmts()...)
	}
	return stmts
}

func literalAssign(as *syntax.Assign) (*Assign, bool) {
	if as.Append || as.Naked || as.Index != nil || as.Array != nil || as.Name == nil {
		return nil, false
	}
	a := &Assign{Name: as.Name.Value}
	if as.Value == nil {
		return a, true
	}
	lit, ok := bareLiteral(as.Value)
	if !ok {
		return nil, false
	}
	a.Value = lit
	return a, true
}

func bareLiteral(w *syntax.Word) (string, bool) {
	if len(w.Parts) != 1 {
		return "", false
	}
	lit, ok := w.Parts[0].(*syntax.Lit)
	if !ok || !IsBare(lit.Value) {
		return "", false
	}
	return lit.Value, true
}
