// Package invariant provides contract assertions for shprep.
//
// Use Precondition/Postcondition to express function contracts, and Invariant
// for internal consistency checks. All functions panic with a *Violation on
// failure; these are programming errors, not user errors. The pipeline
// boundary recovers a Violation with Recover and reports it as an internal
// failure instead of crashing the process.
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
)

// Violation is the panic value raised by every assertion in this package.
type Violation struct {
	Kind    string // PRECONDITION, POSTCONDITION or INVARIANT
	Message string
	File    string
	Line    int
}

func (v *Violation) Error() string {
	msg := fmt.Sprintf("%s VIOLATION: %s", v.Kind, v.Message)
	if v.File != "" {
		msg += fmt.Sprintf(" (at %s:%d)", v.File, v.Line)
	}
	return msg
}

// Precondition checks an input contract at function entry.
//
// Example:
//
//	func (s *State) ReplaceRegion(nodes []ast.Node, runtimePath string) {
//	    invariant.Precondition(runtimePath != "", "runtime path must not be empty")
//	}
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before function return.
func Postcondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks an internal invariant during function execution.
//
// Example:
//
//	invariant.Invariant(next > prev, "region phase must advance")
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including typed nils such as (*T)(nil).
func NotNil(value interface{}, name string) {
	if isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func isNilValue(value interface{}) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// ExpectNoError panics if err is not nil.
// Use it for operations that cannot fail on well-formed input.
func ExpectNoError(err error, msg string) {
	if err != nil {
		fail("POSTCONDITION", "%s must not fail: %v", msg, err)
	}
}

// Recover converts a recovered panic value into an error. It returns nil
// when r is nil and re-panics for anything that is not a Violation, so
// genuine runtime crashes are never masked.
//
//	defer func() {
//	    if v := invariant.Recover(recover()); v != nil {
//	        err = v
//	    }
//	}()
func Recover(r interface{}) *Violation {
	if r == nil {
		return nil
	}
	if v, ok := r.(*Violation); ok {
		return v
	}
	panic(r)
}

// fail panics with a Violation carrying the caller's location.
func fail(kind, format string, args ...interface{}) {
	v := &Violation{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}

	// skip runtime.Callers, fail and the exported wrapper
	pc := make([]uintptr, 1)
	if runtime.Callers(3, pc) > 0 {
		frame, _ := runtime.CallersFrames(pc).Next()
		v.File = frame.File
		v.Line = frame.Line
	}

	panic(v)
}
