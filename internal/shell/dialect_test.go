package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/syntax"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input   string
		want    Dialect
		variant syntax.LangVariant
	}{
		{input: "posix", want: DialectPOSIX, variant: syntax.LangPOSIX},
		{input: "sh", want: DialectPOSIX, variant: syntax.LangPOSIX},
		{input: "Bash", want: DialectBash, variant: syntax.LangBash},
		{input: " mksh ", want: DialectMksh, variant: syntax.LangMirBSDKorn},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDialect(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
			assert.Equal(t, tt.variant, d.Variant())
		})
	}
}

func TestParseDialectSuggestion(t *testing.T) {
	tests := []struct {
		input   string
		suggest string
	}{
		{input: "bsh", suggest: `did you mean "bash"?`},
		{input: "bashh", suggest: `did you mean "bash"?`},
		{input: "psx", suggest: `did you mean "posix"?`},
		{input: "zzz", suggest: "valid: bash, mksh, posix, sh"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseDialect(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.suggest)
		})
	}
}

func TestDialectsSorted(t *testing.T) {
	assert.Equal(t, []string{"bash", "mksh", "posix", "sh"}, Dialects())
}
