package store

import (
	"context"

	"able-backend/internal/domain"

	"gorm.io/gorm"
)

// ReconciliationStore records processor/local mismatches for later manual
// resolution.
type ReconciliationStore interface {
	Record(ctx context.Context, event *domain.ReconciliationEvent) error
	ExistsForRef(ctx context.Context, paymentRef, kind string) (bool, error)
	FindUnresolved(ctx context.Context) ([]domain.ReconciliationEvent, error)
}

type GormReconciliationStore struct {
	DB *gorm.DB
}

func (s *GormReconciliationStore) Record(ctx context.Context, event *domain.ReconciliationEvent) error {
	return s.DB.WithContext(ctx).Create(event).Error
}

// ExistsForRef reports whether an event of the given kind was already recorded
// for a processor reference. Keeps webhook redeliveries idempotent.
func (s *GormReconciliationStore) ExistsForRef(ctx context.Context, paymentRef, kind string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&domain.ReconciliationEvent{}).
		Where("payment_ref = ? AND kind = ?", paymentRef, kind).
		Count(&count).Error
	return count > 0, err
}

func (s *GormReconciliationStore) FindUnresolved(ctx context.Context) ([]domain.ReconciliationEvent, error) {
	var events []domain.ReconciliationEvent
	err := s.DB.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
