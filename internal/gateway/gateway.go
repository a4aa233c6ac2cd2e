// Package gateway is the only component that talks to the payment processor.
// Raw processor payloads never leave this package; callers see the Hold and
// Charge value types and the normalized errors below.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Hold is a pre-authorized reservation of funds awaiting capture.
type Hold struct {
	Reference        string
	Amount           float64
	Status           string
	Capturable       bool
	CustomerRef      string
	PaymentMethodRef string
	DestinationRef   string
}

// Charge is the result of a capture or a direct charge. IntentRef identifies
// the hold (or the freshly created intent, for direct charges) the charge
// belongs to.
type Charge struct {
	Reference  string
	IntentRef  string
	ReceiptURL string
	Status     string
}

var (
	// ErrHoldNotFound: the processor has no hold for the reference.
	ErrHoldNotFound = errors.New("hold not found")
	// ErrHoldNotCapturable: the hold exists but is already captured, canceled
	// or expired.
	ErrHoldNotCapturable = errors.New("hold is not capturable")
)

// CaptureError is a processor-reported capture rejection (insufficient hold
// amount, expired authorization).
type CaptureError struct {
	Reference string
	Reason    string
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failed for %s: %s", e.Reference, e.Reason)
}

// ChargeError is a processor-reported charge failure (card declined,
// authentication required).
type ChargeError struct {
	Reason string
}

func (e *ChargeError) Error() string {
	return fmt.Sprintf("charge failed: %s", e.Reason)
}

// Gateway is the processor contract the settlement engine consumes.
type Gateway interface {
	// RetrieveHold fetches current processor-side state for a hold.
	RetrieveHold(ctx context.Context, reference string) (*Hold, error)

	// CaptureHold captures part or all of a hold, routing feeAmount to the
	// platform account and the remainder to destinationRef.
	CaptureHold(ctx context.Context, reference string, amountToCapture, feeAmount float64, destinationRef string) (*Charge, error)

	// CreateDirectCharge creates and immediately confirms a new charge against
	// a stored payment method, with a platform fee and a transfer destination.
	CreateDirectCharge(ctx context.Context, customerRef, paymentMethodRef, destinationRef string, amount, feeAmount float64, metadata map[string]string) (*Charge, error)

	// CreateImmediateCharge is the tip flow: a confirmed charge with the full
	// amount transferred to destinationRef and no platform fee.
	CreateImmediateCharge(ctx context.Context, customerRef, paymentMethodRef, destinationRef string, amount float64, metadata map[string]string) (*Charge, error)
}
