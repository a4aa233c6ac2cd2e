// Package settlement reconciles a gig's final price against its payment
// records: it decides how much of the original hold to capture, splits the
// captured amount into platform fee and worker payout, and opens a new direct
// charge when an amendment pushed the price past the original authorization.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"able-backend/internal/domain"
	"able-backend/internal/gateway"
	"able-backend/internal/pkg/money"
	"able-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Service is the settlement orchestrator. Locks is optional; when nil the
// caller is expected to serialize per-gig settlement, and the payment-claim
// CAS in the store still prevents a double capture.
type Service struct {
	Gigs     store.GigStore
	Payments store.PaymentStore
	Recon    store.ReconciliationStore
	Gateway  gateway.Gateway
	Locks    *LockManager
}

// SettleGig settles the gig's single pending hold against its final price,
// reduced by an optional caller-supplied discount. Final price within the
// original authorization: partial/full capture with a fee split. Final price
// above it: a fresh direct charge for the full final price supersedes the
// hold, which the processor releases on its own when the authorization window
// lapses.
func (s *Service) SettleGig(ctx context.Context, gigID uuid.UUID, discount *money.Discount) error {
	if s.Locks != nil {
		release, err := s.Locks.Acquire(ctx, gigID)
		if err != nil {
			return err
		}
		defer release()
	}

	gig, err := s.Gigs.FindByID(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGigNotFound
		}
		return err
	}

	payment, err := s.Payments.ClaimPending(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoPendingPayment
		}
		return err
	}

	hold, err := s.Gateway.RetrieveHold(ctx, payment.StripePaymentIntentID)
	if err != nil {
		s.releaseClaim(ctx, payment.ID)
		log.Error().Err(err).Str("gig_id", gigID.String()).Str("payment_ref", payment.StripePaymentIntentID).Msg("retrieve hold failed")
		return err
	}
	if !hold.Capturable {
		s.releaseClaim(ctx, payment.ID)
		log.Warn().Str("gig_id", gigID.String()).Str("payment_ref", hold.Reference).Str("hold_status", hold.Status).Msg("hold not capturable")
		return gateway.ErrHoldNotCapturable
	}

	finalPrice := money.ApplyDiscount(gig.FinalPrice(), discount)
	feePercent := money.EffectiveFeePercent(gig.AbleFeePercent)

	if finalPrice > gig.TotalAgreedPrice {
		return s.settleWithNewCharge(ctx, gig, payment, hold, finalPrice, feePercent)
	}
	return s.settleByCapture(ctx, gig, payment, hold, finalPrice, feePercent)
}

// settleByCapture handles the unchanged/reduced price case: capture at most
// what this specific record authorized, never more.
func (s *Service) settleByCapture(ctx context.Context, gig *domain.Gig, payment *domain.Payment, hold *gateway.Hold, finalPrice, feePercent float64) error {
	amountToCapture := math.Min(finalPrice, payment.AmountGross)
	fee, net := money.FeeSplit(amountToCapture, feePercent)

	charge, err := s.Gateway.CaptureHold(ctx, payment.StripePaymentIntentID, amountToCapture, fee, hold.DestinationRef)
	if err != nil {
		s.releaseClaim(ctx, payment.ID)
		log.Error().Err(err).Str("gig_id", gig.ID.String()).Str("payment_ref", payment.StripePaymentIntentID).Msg("capture failed")
		return err
	}

	if err := s.Payments.MarkCompleted(ctx, payment.ID, charge.Reference, charge.ReceiptURL, fee, net, time.Now()); err != nil {
		return s.persistenceFailure(ctx, gig.ID, charge.IntentRef, err, map[string]interface{}{
			"charge_ref": charge.Reference,
			"captured":   amountToCapture,
			"fee":        fee,
			"net":        net,
		})
	}
	return s.markGigPaid(ctx, gig.ID, charge.IntentRef)
}

// settleWithNewCharge handles the amended-up price: charge the full final
// price against the hold's payment method, mark the original payment FAILED
// (superseded, not collected) and record the new charge as COMPLETED.
func (s *Service) settleWithNewCharge(ctx context.Context, gig *domain.Gig, payment *domain.Payment, hold *gateway.Hold, finalPrice, feePercent float64) error {
	fee, net := money.FeeSplit(finalPrice, feePercent)

	charge, err := s.Gateway.CreateDirectCharge(ctx, hold.CustomerRef, hold.PaymentMethodRef, hold.DestinationRef, finalPrice, fee, map[string]string{
		"gig_id":     gig.ID.String(),
		"supersedes": payment.StripePaymentIntentID,
	})
	if err != nil {
		s.releaseClaim(ctx, payment.ID)
		log.Error().Err(err).Str("gig_id", gig.ID.String()).Str("payment_ref", payment.StripePaymentIntentID).Msg("direct charge failed")
		return err
	}

	now := time.Now()
	newPayment := &domain.Payment{
		GigID:                 gig.ID,
		AmountGross:           finalPrice,
		Status:                domain.PaymentStatusCompleted,
		Kind:                  domain.PaymentKindSettlement,
		StripePaymentIntentID: charge.IntentRef,
		StripeChargeID:        charge.Reference,
		AbleFeeAmount:         fee,
		AmountNetToWorker:     net,
		InvoiceURL:            charge.ReceiptURL,
		PaidAt:                &now,
		PayerUserID:           gig.BuyerUserID,
		ReceiverUserID:        gig.WorkerUserID,
	}
	if err := s.Payments.Insert(ctx, newPayment); err != nil {
		return s.persistenceFailure(ctx, gig.ID, charge.IntentRef, err, map[string]interface{}{
			"charge_ref": charge.Reference,
			"charged":    finalPrice,
			"supersedes": payment.StripePaymentIntentID,
		})
	}
	if err := s.Payments.MarkFailed(ctx, payment.ID); err != nil {
		return s.persistenceFailure(ctx, gig.ID, payment.StripePaymentIntentID, err, map[string]interface{}{
			"reason": "superseded hold not marked failed",
		})
	}
	return s.markGigPaid(ctx, gig.ID, charge.IntentRef)
}

// FinalizeMultiPartyGig settles a gig holding more than one payment record
// (e.g. separate deposit and balance holds). Rows are walked in creation
// order, greedily capturing from each pending hold until the cumulative
// collected amount covers the final price; rows past that point stay
// untouched.
func (s *Service) FinalizeMultiPartyGig(ctx context.Context, gigID uuid.UUID) error {
	if s.Locks != nil {
		release, err := s.Locks.Acquire(ctx, gigID)
		if err != nil {
			return err
		}
		defer release()
	}

	gig, err := s.Gigs.FindByID(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGigNotFound
		}
		return err
	}

	payments, err := s.Payments.FindAllForGig(ctx, gigID)
	if err != nil {
		return err
	}

	finalPrice := gig.FinalPrice()
	feePercent := money.EffectiveFeePercent(gig.AbleFeePercent)
	remaining := finalPrice

	var lastIntentRef string
	for i := range payments {
		if remaining <= 0 {
			break
		}
		p := payments[i]
		// Tips are gratuities on top of the agreed price; they never count
		// toward it.
		if p.Kind == domain.PaymentKindTip {
			continue
		}
		switch p.Status {
		case domain.PaymentStatusCompleted:
			remaining = money.Round2(remaining - (p.AbleFeeAmount + p.AmountNetToWorker))
			lastIntentRef = p.StripePaymentIntentID
			continue
		case domain.PaymentStatusPending:
		default:
			continue
		}

		if err := s.Payments.Claim(ctx, p.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return err
		}

		hold, err := s.Gateway.RetrieveHold(ctx, p.StripePaymentIntentID)
		if err != nil {
			s.releaseClaim(ctx, p.ID)
			log.Error().Err(err).Str("gig_id", gigID.String()).Str("payment_ref", p.StripePaymentIntentID).Msg("retrieve hold failed")
			return err
		}
		if !hold.Capturable {
			s.releaseClaim(ctx, p.ID)
			log.Warn().Str("gig_id", gigID.String()).Str("payment_ref", p.StripePaymentIntentID).Str("hold_status", hold.Status).Msg("hold not capturable")
			return gateway.ErrHoldNotCapturable
		}

		amountToCapture := math.Min(remaining, p.AmountGross)
		fee, net := money.FeeSplit(amountToCapture, feePercent)

		charge, err := s.Gateway.CaptureHold(ctx, p.StripePaymentIntentID, amountToCapture, fee, hold.DestinationRef)
		if err != nil {
			s.releaseClaim(ctx, p.ID)
			log.Error().Err(err).Str("gig_id", gigID.String()).Str("payment_ref", p.StripePaymentIntentID).Msg("capture failed")
			return err
		}
		if err := s.Payments.MarkCompleted(ctx, p.ID, charge.Reference, charge.ReceiptURL, fee, net, time.Now()); err != nil {
			return s.persistenceFailure(ctx, gigID, charge.IntentRef, err, map[string]interface{}{
				"charge_ref": charge.Reference,
				"captured":   amountToCapture,
			})
		}
		lastIntentRef = charge.IntentRef
		remaining = money.Round2(remaining - amountToCapture)
	}

	if remaining > 0 {
		log.Warn().Str("gig_id", gigID.String()).Float64("outstanding", remaining).Msg("holds do not cover final price")
		return ErrInsufficientHolds
	}
	return s.markGigPaid(ctx, gigID, lastIntentRef)
}

// PayTip charges a tip to the buyer's stored payment method and transfers the
// full amount to the worker. Tips carry no platform fee and never touch gig
// status.
func (s *Service) PayTip(ctx context.Context, gigID uuid.UUID, tipAmount float64, paymentMethodRef string) error {
	if tipAmount <= 0 {
		return ErrInvalidTipAmount
	}

	gig, err := s.Gigs.FindByID(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGigNotFound
		}
		return err
	}

	charge, err := s.Gateway.CreateImmediateCharge(ctx, gig.BuyerCustomerRef, paymentMethodRef, gig.WorkerAccountRef, tipAmount, map[string]string{
		"gig_id": gigID.String(),
		"kind":   "tip",
	})
	if err != nil {
		log.Error().Err(err).Str("gig_id", gigID.String()).Float64("tip", tipAmount).Msg("tip charge failed")
		return err
	}

	now := time.Now()
	tip := &domain.Payment{
		GigID:                 gig.ID,
		AmountGross:           tipAmount,
		Status:                domain.PaymentStatusCompleted,
		Kind:                  domain.PaymentKindTip,
		StripePaymentIntentID: charge.IntentRef,
		StripeChargeID:        charge.Reference,
		AmountNetToWorker:     tipAmount,
		InvoiceURL:            charge.ReceiptURL,
		PaidAt:                &now,
		PayerUserID:           gig.BuyerUserID,
		ReceiverUserID:        gig.WorkerUserID,
	}
	if err := s.Payments.Insert(ctx, tip); err != nil {
		return s.persistenceFailure(ctx, gig.ID, charge.IntentRef, err, map[string]interface{}{
			"charge_ref": charge.Reference,
			"tip":        tipAmount,
		})
	}
	return nil
}

func (s *Service) markGigPaid(ctx context.Context, gigID uuid.UUID, paymentRef string) error {
	if err := s.Gigs.UpdateStatus(ctx, gigID, domain.GigStatusPaid); err != nil {
		return s.persistenceFailure(ctx, gigID, paymentRef, err, map[string]interface{}{
			"reason": "gig not marked paid after successful settlement",
		})
	}
	log.Info().Str("gig_id", gigID.String()).Str("payment_ref", paymentRef).Msg("gig settled")
	return nil
}

func (s *Service) releaseClaim(ctx context.Context, paymentID uuid.UUID) {
	if err := s.Payments.ReleaseClaim(ctx, paymentID); err != nil {
		log.Error().Err(err).Str("payment_id", paymentID.String()).Msg("release claim failed")
	}
}

// persistenceFailure records a reconciliation event for a processor-side
// success whose local write failed, then returns the wrapped error. The event
// is the durable trace; losing it too is only logged.
func (s *Service) persistenceFailure(ctx context.Context, gigID uuid.UUID, paymentRef string, cause error, detail map[string]interface{}) error {
	detailBytes, _ := json.Marshal(detail)
	event := &domain.ReconciliationEvent{
		GigID:      &gigID,
		PaymentRef: paymentRef,
		Kind:       domain.ReconKindPersistenceFailure,
		Detail:     datatypes.JSON(detailBytes),
	}
	if recErr := s.Recon.Record(ctx, event); recErr != nil {
		log.Error().Err(recErr).Str("gig_id", gigID.String()).Str("payment_ref", paymentRef).Msg("failed to record reconciliation event")
	}
	log.Error().Err(cause).Str("gig_id", gigID.String()).Str("payment_ref", paymentRef).Msg("persistence failed after processor success")
	return &PersistenceError{GigID: gigID.String(), PaymentRef: paymentRef, Err: cause}
}
