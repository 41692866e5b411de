// Package shell converts between script text and the ast node model.
package shell

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"mvdan.cc/sh/v3/syntax"

	"github.com/opal-lang/shprep/internal/ast"
	shperrors "github.com/opal-lang/shprep/internal/errors"
)

// Parse reads a whole script from r. name is used in diagnostics only.
// Shells treat scripts as bytes, so invalid UTF-8 is not a parse failure:
// each invalid sequence is replaced with U+FFFD before parsing. Malformed
// input yields a KindParse error whose cause is the parser's positional
// *syntax.ParseError.
func Parse(r io.Reader, name string, d Dialect) (ast.Script, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, shperrors.NewIOError("cannot read input script", name, err)
	}
	p := syntax.NewParser(syntax.Variant(d.Variant()))
	f, err := p.Parse(bytes.NewReader(ValidUTF8(src)), name)
	if err != nil {
		return nil, shperrors.NewParseError(name, err).WithContext("dialect", d.String())
	}
	return ast.FromFile(f), nil
}

// ValidUTF8 returns src with every invalid UTF-8 sequence replaced by U+FFFD.
func ValidUTF8(src []byte) []byte {
	if utf8.Valid(src) {
		return src
	}
	return bytes.ToValidUTF8(src, []byte("\uFFFD"))
}

// ParseFile parses the script at path. The file is only read.
func ParseFile(path string, d Dialect) (ast.Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, shperrors.NewIOError("cannot open input script", path, err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f, path, d)
}

// Unparse prints nodes back to script text, one top-level statement per
// line. Each statement is printed on its own so synthesized nodes, which
// carry no source positions, cannot disturb the layout of parsed ones.
func Unparse(nodes []ast.Node) (string, error) {
	printer := syntax.NewPrinter()
	var sb strings.Builder
	for _, n := range nodes {
		for _, stmt := range n.Stmts() {
			text, err := printStmt(printer, stmt)
			if err != nil {
				return "", shperrors.NewSerializationError(fmt.Sprintf("cannot print %s node", n.Kind()), err).
					WithContext("node", n.String())
			}
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

// printStmt wraps stmt in a file so pending heredoc bodies are flushed.
// The printer dereferences node fields freely; a malformed synthesized node
// surfaces as a panic, which is reported as an error instead.
func printStmt(printer *syntax.Printer, stmt *syntax.Stmt) (text string, err error) {
	if stmt == nil || (stmt.Cmd == nil && len(stmt.Redirs) == 0) {
		return "", fmt.Errorf("empty statement")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("printer panic: %v", r)
		}
	}()

	var buf bytes.Buffer
	if err := printer.Print(&buf, &syntax.File{Stmts: []*syntax.Stmt{stmt}}); err != nil {
		return "", err
	}
	out := strings.TrimRight(buf.String(), "\n")
	return out + "\n", nil
}
