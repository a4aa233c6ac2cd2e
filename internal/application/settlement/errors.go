package settlement

import (
	"errors"
	"fmt"
)

var (
	// ErrGigNotFound: the gig id resolves to nothing. Surfaced explicitly so
	// callers never mistake a bad id for a successful settlement.
	ErrGigNotFound = errors.New("gig not found")
	// ErrNoPendingPayment: no active hold awaits settlement for the gig.
	ErrNoPendingPayment = errors.New("no pending payment for gig")
	// ErrGigLocked: another settlement attempt currently holds the gig lock.
	ErrGigLocked = errors.New("settlement already in progress for gig")
	// ErrInsufficientHolds: the gig's holds together do not cover the final
	// price; the gig is left unadvanced.
	ErrInsufficientHolds = errors.New("holds do not cover the final price")
	// ErrInvalidTipAmount: tips must be positive.
	ErrInvalidTipAmount = errors.New("tip amount must be positive")
)

// PersistenceError means money moved at the processor but the local write
// afterwards failed. A reconciliation event is recorded before this is
// returned so the mismatch can be found later.
type PersistenceError struct {
	GigID      string
	PaymentRef string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("settlement persisted at processor but local write failed (gig %s, ref %s): %v", e.GigID, e.PaymentRef, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
