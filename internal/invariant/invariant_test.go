package invariant_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/shprep/internal/invariant"
)

func catch(fn func()) (v *invariant.Violation) {
	defer func() {
		v = invariant.Recover(recover())
	}()
	fn()
	return nil
}

// TestPreconditionPass verifies Precondition does not panic when condition is true
func TestPreconditionPass(t *testing.T) {
	assert.Nil(t, catch(func() {
		invariant.Precondition(true, "this should pass")
		invariant.Precondition(len("hello") > 0, "string not empty")
	}))
}

// TestPreconditionFail verifies the violation carries kind, message and location
func TestPreconditionFail(t *testing.T) {
	v := catch(func() {
		invariant.Precondition(false, "runtime path must not be empty")
	})
	require.NotNil(t, v)
	assert.Equal(t, "PRECONDITION", v.Kind)
	assert.Equal(t, "runtime path must not be empty", v.Message)
	assert.True(t, strings.HasSuffix(v.File, "invariant_test.go"), "file: %s", v.File)
	assert.Contains(t, v.Error(), "PRECONDITION VIOLATION")
	assert.Contains(t, v.Error(), "(at ")
	assert.NotContains(t, v.Error(), "\n")
}

func TestPostconditionAndInvariantKinds(t *testing.T) {
	v := catch(func() { invariant.Postcondition(false, "id %d must be fresh", 3) })
	require.NotNil(t, v)
	assert.Equal(t, "POSTCONDITION", v.Kind)
	assert.Equal(t, "id 3 must be fresh", v.Message)

	v = catch(func() { invariant.Invariant(false, "phase must advance") })
	require.NotNil(t, v)
	assert.Equal(t, "INVARIANT", v.Kind)
}

func TestNotNil(t *testing.T) {
	var typedNil *strings.Builder
	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{name: "untyped nil", value: nil, wantErr: true},
		{name: "typed nil pointer", value: typedNil, wantErr: true},
		{name: "nil slice", value: []int(nil), wantErr: true},
		{name: "non-nil pointer", value: &strings.Builder{}},
		{name: "plain value", value: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := catch(func() { invariant.NotNil(tt.value, "value") })
			if tt.wantErr {
				require.NotNil(t, v)
				assert.Contains(t, v.Message, "value must not be nil")
				return
			}
			assert.Nil(t, v)
		})
	}
}

func TestExpectNoError(t *testing.T) {
	assert.Nil(t, catch(func() { invariant.ExpectNoError(nil, "noop") }))

	v := catch(func() { invariant.ExpectNoError(errors.New("boom"), "printing") })
	require.NotNil(t, v)
	assert.Equal(t, "printing must not fail: boom", v.Message)
}

// TestRecoverRepanicsForeignValues verifies runtime crashes are not swallowed
func TestRecoverRepanicsForeignValues(t *testing.T) {
	assert.Nil(t, invariant.Recover(nil))
	assert.PanicsWithValue(t, "not a violation", func() {
		invariant.Recover("not a violation")
	})
}
