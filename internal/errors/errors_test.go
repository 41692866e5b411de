package errors_test

import (
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shperrors "github.com/opal-lang/shprep/internal/errors"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *shperrors.Error
		want string
	}{
		{
			name: "without cause or stage",
			err:  shperrors.New(shperrors.KindInternal, "oracle returned nil"),
			want: "INTERNAL_ERROR: oracle returned nil",
		},
		{
			name: "with stage and cause",
			err: shperrors.NewIOError("cannot create region file", "/tmp", os.ErrPermission).
				WithStage(shperrors.StageReplace),
			want: "IO_ERROR [replace]: cannot create region file: permission denied",
		},
		{
			name: "parse error",
			err:  shperrors.NewParseError("in.sh", fmt.Errorf("1:5: unexpected token")),
			want: "PARSE_ERROR: cannot parse in.sh: 1:5: unexpected token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWithStageKeepsInnermost(t *testing.T) {
	err := shperrors.NewSerializationError("cannot print", nil).
		WithStage(shperrors.StageReplace).
		WithStage(shperrors.StageUnparse)
	assert.Equal(t, shperrors.StageReplace, err.Stage)
}

func TestKindOfThroughWrapping(t *testing.T) {
	inner := shperrors.NewIOError("cannot write region file", "/tmp/x", os.ErrClosed).
		WithStage(shperrors.StageReplace)
	wrapped := fmt.Errorf("run failed: %w", inner)

	assert.Equal(t, shperrors.KindIO, shperrors.KindOf(wrapped))
	assert.Equal(t, shperrors.StageReplace, shperrors.StageOf(wrapped))
	assert.True(t, stderrors.Is(wrapped, os.ErrClosed))

	path, ok := inner.GetContext("path")
	require.True(t, ok)
	assert.Equal(t, "/tmp/x", path)
}

func TestUnclassifiedErrorsAreInternal(t *testing.T) {
	plain := stderrors.New("boom")
	assert.Equal(t, shperrors.KindInternal, shperrors.KindOf(plain))
	assert.Equal(t, shperrors.Stage(""), shperrors.StageOf(plain))
}
