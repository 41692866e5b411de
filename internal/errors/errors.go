// Package errors defines the failure taxonomy shared by every preprocessing stage.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure. Every kind is fatal for the run that produced it.
type Kind int

const (
	// KindInternal covers contract violations: a misbehaving oracle, a
	// recovered invariant panic or anything else that should never happen.
	KindInternal Kind = iota
	// KindParse is malformed input.
	KindParse
	// KindSerialization is a node that the unparser rejected.
	KindSerialization
	// KindIO is a temporary file or output file that could not be created
	// or written.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "PARSE_ERROR"
	case KindSerialization:
		return "SERIALIZATION_ERROR"
	case KindIO:
		return "IO_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Stage names the pipeline step a failure came from.
type Stage string

const (
	StageParse   Stage = "parse"
	StageReplace Stage = "replace"
	StageUnparse Stage = "unparse"
	StageWrite   Stage = "write"
	StageConfig  Stage = "config"
)

// Error is a structured failure with kind, stage and context.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap allows error unwrapping
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Wrap creates an Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithStage tags the error with the stage that produced it. A stage that is
// already set is kept so the innermost stage wins.
func (e *Error) WithStage(stage Stage) *Error {
	if e.Stage == "" {
		e.Stage = stage
	}
	return e
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	e.Context[key] = value
	return e
}

// GetContext returns context value by key
func (e *Error) GetContext(key string) (interface{}, bool) {
	value, exists := e.Context[key]
	return value, exists
}

// NewParseError wraps a parser diagnostic for path.
func NewParseError(path string, cause error) *Error {
	return Wrap(KindParse, fmt.Sprintf("cannot parse %s", path), cause).
		WithContext("path", path)
}

// NewSerializationError wraps an unparser failure.
func NewSerializationError(message string, cause error) *Error {
	return Wrap(KindSerialization, message, cause)
}

// NewIOError wraps a filesystem failure on path.
func NewIOError(message, path string, cause error) *Error {
	return Wrap(KindIO, message, cause).WithContext("path", path)
}

// NewInternalError wraps a contract violation.
func NewInternalError(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// KindOf returns the kind of the first *Error in err's chain. Errors that
// carry no classification are internal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StageOf returns the stage of the first *Error in err's chain.
func StageOf(err error) Stage {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Stage
	}
	return ""
}

