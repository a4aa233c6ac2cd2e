package store

import (
	"context"
	"errors"

	"able-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GigStore reads and advances persisted gigs. Settlement only ever flips the
// status; gigs are created and otherwise mutated upstream.
type GigStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Gig, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GigStatus) error
}

type GormGigStore struct {
	DB *gorm.DB
}

func (s *GormGigStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Gig, error) {
	var gig domain.Gig
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&gig).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &gig, nil
}

func (s *GormGigStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GigStatus) error {
	res := s.DB.WithContext(ctx).Model(&domain.Gig{}).
		Where("id = ?", id).
		Update("status_internal", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
