package store

import (
	"context"
	"errors"
	"time"

	"able-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStore reads and advances persisted payments. ClaimPending is the
// concurrency guard: the PENDING -> SETTLING transition is a conditional
// single-row update, so two settlement attempts on the same gig cannot both
// hold the claim.
type PaymentStore interface {
	ClaimPending(ctx context.Context, gigID uuid.UUID) (*domain.Payment, error)
	Claim(ctx context.Context, paymentID uuid.UUID) error
	ReleaseClaim(ctx context.Context, paymentID uuid.UUID) error
	FindAllForGig(ctx context.Context, gigID uuid.UUID) ([]domain.Payment, error)
	Insert(ctx context.Context, p *domain.Payment) error
	MarkCompleted(ctx context.Context, paymentID uuid.UUID, chargeRef, receiptURL string, fee, net float64, paidAt time.Time) error
	MarkFailed(ctx context.Context, paymentID uuid.UUID) error
}

type GormPaymentStore struct {
	DB *gorm.DB
}

// ClaimPending finds the gig's single PENDING payment and atomically moves it
// to SETTLING. ErrNotFound means there is no pending payment, or another
// caller claimed it first.
func (s *GormPaymentStore) ClaimPending(ctx context.Context, gigID uuid.UUID) (*domain.Payment, error) {
	var payment domain.Payment
	err := s.DB.WithContext(ctx).
		Where("gig_id = ? AND status = ?", gigID, domain.PaymentStatusPending).
		Order("created_at ASC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.Claim(ctx, payment.ID); err != nil {
		return nil, err
	}
	payment.Status = domain.PaymentStatusSettling
	return &payment, nil
}

// Claim moves a specific PENDING payment to SETTLING. ErrNotFound means the
// row is no longer pending.
func (s *GormPaymentStore) Claim(ctx context.Context, paymentID uuid.UUID) error {
	res := s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", paymentID, domain.PaymentStatusPending).
		Update("status", domain.PaymentStatusSettling)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseClaim rolls a SETTLING payment back to PENDING so a later retry can
// claim it again.
func (s *GormPaymentStore) ReleaseClaim(ctx context.Context, paymentID uuid.UUID) error {
	return s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", paymentID, domain.PaymentStatusSettling).
		Update("status", domain.PaymentStatusPending).Error
}

func (s *GormPaymentStore) FindAllForGig(ctx context.Context, gigID uuid.UUID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := s.DB.WithContext(ctx).
		Where("gig_id = ?", gigID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (s *GormPaymentStore) Insert(ctx context.Context, p *domain.Payment) error {
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *GormPaymentStore) MarkCompleted(ctx context.Context, paymentID uuid.UUID, chargeRef, receiptURL string, fee, net float64, paidAt time.Time) error {
	res := s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ?", paymentID).
		Updates(map[string]interface{}{
			"status":               domain.PaymentStatusCompleted,
			"stripe_charge_id":     chargeRef,
			"invoice_url":          receiptURL,
			"able_fee_amount":      fee,
			"amount_net_to_worker": net,
			"paid_at":              paidAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormPaymentStore) MarkFailed(ctx context.Context, paymentID uuid.UUID) error {
	res := s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ?", paymentID).
		Update("status", domain.PaymentStatusFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
