package gateway

import (
	"context"
	"errors"

	"able-backend/internal/pkg/money"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeGateway implements Gateway on the Stripe API. Holds are PaymentIntents
// created upstream with manual capture and a transfer destination; capture
// splits the fee via application_fee_amount, Stripe routes the remainder to
// the destination fixed at creation.
type StripeGateway struct {
	api      *client.API
	currency string
}

func NewStripeGateway(secretKey, currency string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	if currency == "" {
		currency = "usd"
	}
	return &StripeGateway{api: api, currency: currency}
}

func (g *StripeGateway) RetrieveHold(ctx context.Context, reference string) (*Hold, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := g.api.PaymentIntents.Get(reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}
	return holdFromIntent(pi), nil
}

func (g *StripeGateway) CaptureHold(ctx context.Context, reference string, amountToCapture, feeAmount float64, destinationRef string) (*Charge, error) {
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture:      stripe.Int64(money.Cents(amountToCapture)),
		ApplicationFeeAmount: stripe.Int64(money.Cents(feeAmount)),
	}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := g.api.PaymentIntents.Capture(reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			if stripeErr.Code == stripe.ErrorCodeResourceMissing {
				return nil, ErrHoldNotFound
			}
			return nil, &CaptureError{Reference: reference, Reason: stripeReason(stripeErr)}
		}
		return nil, err
	}
	return chargeFromIntent(pi), nil
}

func (g *StripeGateway) CreateDirectCharge(ctx context.Context, customerRef, paymentMethodRef, destinationRef string, amount, feeAmount float64, metadata map[string]string) (*Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(money.Cents(amount)),
		Currency:             stripe.String(g.currency),
		Customer:             stripe.String(customerRef),
		PaymentMethod:        stripe.String(paymentMethodRef),
		Confirm:              stripe.Bool(true),
		OffSession:           stripe.Bool(true),
		ApplicationFeeAmount: stripe.Int64(money.Cents(feeAmount)),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(destinationRef),
		},
	}
	params.Context = ctx
	params.AddExpand("latest_charge")
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &ChargeError{Reason: stripeReason(stripeErr)}
		}
		return nil, err
	}
	return chargeFromIntent(pi), nil
}

func (g *StripeGateway) CreateImmediateCharge(ctx context.Context, customerRef, paymentMethodRef, destinationRef string, amount float64, metadata map[string]string) (*Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(money.Cents(amount)),
		Currency:      stripe.String(g.currency),
		Customer:      stripe.String(customerRef),
		PaymentMethod: stripe.String(paymentMethodRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(destinationRef),
		},
	}
	params.Context = ctx
	params.AddExpand("latest_charge")
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &ChargeError{Reason: stripeReason(stripeErr)}
		}
		return nil, err
	}
	return chargeFromIntent(pi), nil
}

func holdFromIntent(pi *stripe.PaymentIntent) *Hold {
	hold := &Hold{
		Reference:  pi.ID,
		Amount:     float64(pi.Amount) / 100,
		Status:     string(pi.Status),
		Capturable: pi.Status == stripe.PaymentIntentStatusRequiresCapture,
	}
	if pi.Customer != nil {
		hold.CustomerRef = pi.Customer.ID
	}
	if pi.PaymentMethod != nil {
		hold.PaymentMethodRef = pi.PaymentMethod.ID
	}
	if pi.TransferData != nil && pi.TransferData.Destination != nil {
		hold.DestinationRef = pi.TransferData.Destination.ID
	}
	return hold
}

func chargeFromIntent(pi *stripe.PaymentIntent) *Charge {
	charge := &Charge{IntentRef: pi.ID, Status: string(pi.Status)}
	if pi.LatestCharge != nil {
		charge.Reference = pi.LatestCharge.ID
		charge.ReceiptURL = pi.LatestCharge.ReceiptURL
	}
	return charge
}

func stripeReason(err *stripe.Error) string {
	if err.Msg != "" {
		return err.Msg
	}
	return string(err.Code)
}
