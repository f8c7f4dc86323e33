package models

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is against these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

var (
	ErrSelfDealing       = fmt.Errorf("%w: cannot trade with yourself", ErrValidation)
	ErrPhoneMissing      = fmt.Errorf("%w: a phone number is required to place orders", ErrValidation)
	ErrMismatchedSeller  = fmt.Errorf("%w: product does not belong to the selected seller", ErrValidation)
	ErrUnknownReason     = fmt.Errorf("%w: unknown ledger reason", ErrValidation)
	ErrUnauthorizedRole  = fmt.Errorf("%w: active role does not allow this action", ErrUnauthorized)
	ErrIllegalTransition = fmt.Errorf("%w: illegal state transition", ErrConflict)
	ErrVersionConflict   = fmt.Errorf("%w: record was modified concurrently", ErrConflict)
)

// TransitionError reports an attempted move between two lifecycle states
// that the state machine does not allow.
type TransitionError struct {
	Kind string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }
