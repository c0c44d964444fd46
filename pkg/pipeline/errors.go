package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure per spec.md §7.
type ErrorKind string

const (
	// KindInputInvalid: SRT malformed. Terminal.
	KindInputInvalid ErrorKind = "input_invalid"
	// KindTransientAPI: 429/5xx/timeout, recovered locally by the LLM
	// Client's own backoff. Stages attach this kind when Complete returns
	// an error, which llm.Client does only when the call's context ends;
	// an exhausted retry budget comes back as an empty reply instead.
	KindTransientAPI ErrorKind = "transient_api"
	// KindUnrecoverableAPI: non-429 4xx surfaced by the LLM Client.
	KindUnrecoverableAPI ErrorKind = "unrecoverable_api"
	// KindCoverageIrreparable: a validator exhausted its repair budget.
	KindCoverageIrreparable ErrorKind = "coverage_irreparable"
	// KindParseError: LLM output could not be interpreted as the stage's
	// required structure.
	KindParseError ErrorKind = "parse_error"
	// KindTerminal: propagates out of the Stage Runner with a non-zero
	// exit code.
	KindTerminal ErrorKind = "terminal"
)

// Sentinel errors for the continuous runner.
var (
	// ErrProjectAlreadyExists guards duplicate inbox imports (spec.md §6
	// "Continuous mode").
	ErrProjectAlreadyExists = errors.New("pipeline: project already exists")
	// ErrNoSRTFound is returned when an inbox project directory has no
	// matching .srt file.
	ErrNoSRTFound = errors.New("pipeline: no srt file found")
)

// StageError wraps a stage failure with its kind and the stage name.
// Runner.Run stops at the first stage error of any kind; the kind tells
// callers (such as the CLI's exit-code choice) what went wrong.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Terminal reports whether this error's kind is one of the terminal
// kinds (input invalid, coverage irreparable, terminal).
func (e *StageError) Terminal() bool {
	switch e.Kind {
	case KindInputInvalid, KindCoverageIrreparable, KindTerminal:
		return true
	default:
		return false
	}
}

func newStageError(stage string, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// errFailedCall reports an LLM call that returned "" — a terminal
// failure per the Complete contract (spec.md §4.1: "None" iff
// non-retryable or retry budget exhausted).
func errFailedCall(what string) error {
	return fmt.Errorf("%s: llm call failed after retries", what)
}

// coverageReport is the subset of coverage.Report needed for the error
// message, kept unexported to avoid pipeline importing coverage just for
// this signature.
type coverageReport interface {
	Satisfied() bool
}

// errCoverageIrreparable reports a validator that exhausted its repair
// budget without reaching a valid partition (spec.md §4.9
// CoverageIrreparable).
func errCoverageIrreparable(stage string, report coverageReport) error {
	return fmt.Errorf("%s: coverage gaps remain after repair budget exhausted (satisfied=%v)", stage, report.Satisfied())
}
