package shell

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/syntax"

	"github.com/opal-lang/shprep/internal/ast"
	shperrors "github.com/opal-lang/shprep/internal/errors"
)

func TestParseUnparseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		dialect Dialect
	}{
		{name: "pipeline", input: "echo hi | sort\n"},
		{name: "mixed", input: "x=1\necho hi | sort\ncd /tmp\n"},
		{name: "heredoc", input: "cat <<EOF\nhello\nEOF\n"},
		{name: "bash test", input: "[[ -n $x ]] && echo set\n", dialect: DialectBash},
		{name: "loop", input: "for f in a b; do\n\techo $f\ndone\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := Parse(strings.NewReader(tt.input), "test.sh", tt.dialect)
			require.NoError(t, err)

			out, err := Unparse(script)
			require.NoError(t, err)
			assert.Equal(t, tt.input, out)
		})
	}
}

func TestParseClassifiesStatements(t *testing.T) {
	script, err := Parse(strings.NewReader("x=1\necho hi\necho hi | sort\n"), "test.sh", DialectPOSIX)
	require.NoError(t, err)
	require.Len(t, script, 3)
	assert.Equal(t, ast.KindAssign, script[0].Kind())
	assert.Equal(t, ast.KindCommand, script[1].Kind())
	assert.Equal(t, ast.KindOpaque, script[2].Kind())
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		dialect Dialect
	}{
		{name: "unterminated if", input: "if true; then echo\n"},
		{name: "unbalanced quote", input: "echo 'oops\n"},
		{name: "array in posix", input: "a=(1 2)\n", dialect: DialectPOSIX},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), "bad.sh", tt.dialect)
			require.Error(t, err)
			assert.Equal(t, shperrors.KindParse, shperrors.KindOf(err))

			var perr syntax.ParseError
			var lerr syntax.LangError
			assert.True(t, errors.As(err, &perr) || errors.As(err, &lerr), "cause should be positional: %v", err)
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseFile(filepath.Join(dir, "missing.sh"), DialectPOSIX)
	require.Error(t, err)
	assert.Equal(t, shperrors.KindIO, shperrors.KindOf(err))

	path := filepath.Join(dir, "in.sh")
	require.NoError(t, os.WriteFile(path, []byte("echo hi\n"), 0o644))
	script, err := ParseFile(path, DialectPOSIX)
	require.NoError(t, err)
	require.Len(t, script, 1)
}

func TestUnparseSynthesizedNodes(t *testing.T) {
	nodes := []ast.Node{
		&ast.Assign{Name: "x", Value: "a b"},
		&ast.Sequence{Nodes: []ast.Node{
			&ast.Command{Args: []string{"echo", "it's"}},
			&ast.Command{
				Assigns: []*ast.Assign{{Name: "LC_ALL", Value: "C"}},
				Args:    []string{"sort"},
			},
		}},
	}

	out, err := Unparse(nodes)
	require.NoError(t, err)
	assert.Equal(t, "x='a b'\necho 'it'\\''s'\nLC_ALL=C sort\n", out)
}

func TestUnparseRejectsEmptyStatement(t *testing.T) {
	_, err := Unparse([]ast.Node{&ast.Opaque{Stmt: &syntax.Stmt{}}})
	require.Error(t, err)
	assert.Equal(t, shperrors.KindSerialization, shperrors.KindOf(err))
}

func TestUnparseEmpty(t *testing.T) {
	out, err := Unparse(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseSubstitutesInvalidUTF8(t *testing.T) {
	script, err := Parse(strings.NewReader("echo 'caf\xe9' | sort\n"), "latin1.sh", DialectPOSIX)
	require.NoError(t, err)

	out, err := Unparse(script)
	require.NoError(t, err)
	assert.Equal(t, "echo 'caf\uFFFD' | sort\n", out)
}

func TestValidUTF8(t *testing.T) {
	assert.Equal(t, "echo \uFFFD\n", string(ValidUTF8([]byte("echo \xff\xfe\n"))))
	assert.Equal(t, "echo héllo\n", string(ValidUTF8([]byte("echo héllo\n"))))
}
