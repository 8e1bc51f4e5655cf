/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:

	Every validation failure the engine can raise lives here as a
	sentinel, so callers classify with errors.Is and the API layer maps
	errors to HTTP statuses in one place. Structured error types carry
	the offending values and Unwrap to their sentinel.

CONTRACT:

	All of these are raised BEFORE any ledger mutation. The engine fails
	closed: an error means the store was not touched.

SEE ALSO:
  - allocation/closure.go: raises ErrInvalidWeight, ErrClosureMismatch
  - settlement/orchestrator.go: raises the settlement errors
  - api/handlers.go: HTTP status mapping
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for zero or negative currency amounts,
	// and for unparseable money input.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned for unparseable or out-of-range dates.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidCompetency is returned for malformed mm/aaaa competencies.
	ErrInvalidCompetency = errors.New("invalid competency")

	// ErrInvalidWeight is returned when a cost-share weight is not > 0.
	ErrInvalidWeight = errors.New("invalid weight")

	// ErrClosureMismatch is returned when the closed weight table misses
	// its target sum beyond tolerance.
	ErrClosureMismatch = errors.New("closure mismatch")

	// ErrInsufficientCandidates is returned by discount-mode lot and
	// whole-unit settlement when fewer open installments exist than the
	// call requires.
	ErrInsufficientCandidates = errors.New("insufficient open installments")

	// ErrNoSettlableInstallment is returned by normal-mode lot settlement
	// when the amount cannot fully close even one installment.
	ErrNoSettlableInstallment = errors.New("amount settles no installment in full")

	// ErrAlreadySettled is returned when re-settling a QUITADA installment
	// without the explicit confirmation flag.
	ErrAlreadySettled = errors.New("installment already settled")

	// ErrNotFound is returned for unknown installments, units or tables.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCost is returned when a monthly cost already exists for
	// the competency.
	ErrDuplicateCost = errors.New("monthly cost already recorded for competency")

	// ErrConfirmationRequired is returned when whole-unit settlement is
	// attempted without both confirmation flags.
	ErrConfirmationRequired = errors.New("explicit confirmation required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidWeightError reports which unit carried a non-positive weight.
type InvalidWeightError struct {
	UnitID string
	Weight Weight
}

func (e *InvalidWeightError) Error() string {
	return fmt.Sprintf("invalid weight for unit %s: %s", e.UnitID, e.Weight)
}

func (e *InvalidWeightError) Unwrap() error { return ErrInvalidWeight }

// ClosureMismatchError reports how far the closed table landed from its
// target.
type ClosureMismatchError struct {
	Sum    Weight
	Target Weight
}

func (e *ClosureMismatchError) Error() string {
	return fmt.Sprintf("weight table closed at %s, target %s", e.Sum, e.Target)
}

func (e *ClosureMismatchError) Unwrap() error { return ErrClosureMismatch }

// InsufficientCandidatesError reports how many open installments were
// required versus available.
type InsufficientCandidatesError struct {
	Required  int
	Available int
}

func (e *InsufficientCandidatesError) Error() string {
	return fmt.Sprintf("need %d open installments, only %d available", e.Required, e.Available)
}

func (e *InsufficientCandidatesError) Unwrap() error { return ErrInsufficientCandidates }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is a validation failure caused
// by the caller's input, as opposed to an internal/storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidCompetency) ||
		errors.Is(err, ErrInvalidWeight) ||
		errors.Is(err, ErrClosureMismatch) ||
		errors.Is(err, ErrInsufficientCandidates) ||
		errors.Is(err, ErrNoSettlableInstallment) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrDuplicateCost) ||
		errors.Is(err, ErrConfirmationRequired)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
