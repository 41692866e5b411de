package pipeline

import (
	"time"

	shperrors "github.com/opal-lang/shprep/internal/errors"
	"github.com/opal-lang/shprep/internal/transform"
)

// Status is the outcome of one run at the pipeline boundary.
type Status int

const (
	StatusSuccess Status = iota
	StatusParseFailure
	StatusIOFailure
	StatusInternalFailure
)

// Exit code constants
const (
	ExitSuccess       = 0
	ExitInvalidUsage  = 1
	ExitIOError       = 2
	ExitParseError    = 3
	ExitInternalError = 4
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusParseFailure:
		return "parse-failure"
	case StatusIOFailure:
		return "io-failure"
	default:
		return "internal-failure"
	}
}

// ExitCode maps a status onto the process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return ExitSuccess
	case StatusParseFailure:
		return ExitParseError
	case StatusIOFailure:
		return ExitIOError
	default:
		return ExitInternalError
	}
}

// StatusOf classifies an error returned by a stage.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	switch shperrors.KindOf(err) {
	case shperrors.KindParse:
		return StatusParseFailure
	case shperrors.KindIO:
		return StatusIOFailure
	default:
		// serialization failures are contract violations too
		return StatusInternalFailure
	}
}

// StageTiming is the wall time one stage took.
type StageTiming struct {
	Stage    shperrors.Stage
	Duration time.Duration
}

// Milliseconds returns the duration as fractional milliseconds.
func (t StageTiming) Milliseconds() float64 {
	return float64(t.Duration) / float64(time.Millisecond)
}

// Result is what Run reports. Err is nil exactly when Status is
// StatusSuccess.
type Result struct {
	Status  Status
	RunID   string
	Output  string // path written, empty on failure
	Timings []StageTiming
	Regions []transform.Region
	Err     error
}
