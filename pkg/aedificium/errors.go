package aedificium

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanLength is wrapped by every plan length violation.
	ErrPlanLength = errors.New("route plan length must be 18 times the number of rooms")
	// ErrPlanTooShort marks plans that would impair identifiability.
	ErrPlanTooShort = fmt.Errorf("%w: plan too short", ErrPlanLength)
	// ErrPlanTooLong marks plans that exceed the traversal limit.
	ErrPlanTooLong = fmt.Errorf("%w: plan too long", ErrPlanLength)

	// ErrMalformedTrace is wrapped by MalformedTraceError.
	ErrMalformedTrace = errors.New("malformed label trace")

	// ErrEncodingContradiction means a formula built from a genuine
	// observation was unsatisfiable. This is a defect in the encoder and
	// must never be retried with the same logic.
	ErrEncodingContradiction = errors.New("encoding contradiction: unsatisfiable formula for an honest observation")

	// ErrSaturation means a decoded map left a door unmatched or matched
	// twice. It indicates a defect in the encoder or solver contract.
	ErrSaturation = errors.New("decoded map is not saturated")

	// ErrReplayMismatch means a decoded map does not reproduce the trace it
	// was decoded from.
	ErrReplayMismatch = errors.New("decoded map does not reproduce the observed trace")

	// ErrSolverTimeout means no model was found within the attempt budget.
	// Callers abandon the attempt and start a fresh session.
	ErrSolverTimeout = errors.New("solver timed out")

	// ErrIncorrectGuess means the judge rejected the submitted map.
	ErrIncorrectGuess = errors.New("judge rejected the guess")

	// ErrUnfavorableTrace means the feasibility gate aborted the attempt.
	ErrUnfavorableTrace = errors.New("label trace classified as unfavorable")
)

// PlanLengthError reports a route plan whose length differs from 18n.
type PlanLengthError struct {
	Rooms  int
	Length int
}

func (e *PlanLengthError) Error() string {
	return fmt.Sprintf("route plan has %d doors, want %d for %d rooms", e.Length, PlanLength(e.Rooms), e.Rooms)
}

func (e *PlanLengthError) Unwrap() error {
	if e.Length > PlanLength(e.Rooms) {
		return ErrPlanTooLong
	}
	return ErrPlanTooShort
}

// MalformedTraceError reports a trace whose length is not plan length + 1,
// which means the exploration protocol is out of sync.
type MalformedTraceError struct {
	PlanLength  int
	TraceLength int
}

func (e *MalformedTraceError) Error() string {
	return fmt.Sprintf("label trace has %d entries, want %d for a plan of %d doors", e.TraceLength, e.PlanLength+1, e.PlanLength)
}

func (e *MalformedTraceError) Unwrap() error {
	return ErrMalformedTrace
}

// IsDefect reports whether err is an internal invariant violation that must
// fail loudly instead of being retried.
func IsDefect(err error) bool {
	return errors.Is(err, ErrEncodingContradiction) ||
		errors.Is(err, ErrSaturation) ||
		errors.Is(err, ErrReplayMismatch)
}

// IsRecoverable reports whether err is an operational outcome that the
// driver answers with a fresh attempt.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSolverTimeout) ||
		errors.Is(err, ErrIncorrectGuess) ||
		errors.Is(err, ErrUnfavorableTrace)
}
