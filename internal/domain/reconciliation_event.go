package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// ReconKindPersistenceFailure: money moved at the processor but the local
	// write failed afterwards.
	ReconKindPersistenceFailure = "persistence_failure"
	// ReconKindUnmatchedCharge: the processor reported a succeeded charge that
	// no COMPLETED local payment accounts for.
	ReconKindUnmatchedCharge = "unmatched_charge"
)

// ReconciliationEvent is an out-of-band marker that local payment records and
// processor-side state may disagree. Written whenever a capture or charge
// succeeded but the follow-up persistence did not, and by the webhook when a
// succeeded charge matches no local record.
type ReconciliationEvent struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GigID      *uuid.UUID     `gorm:"column:gig_id;type:uuid;index" json:"gig_id"`
	PaymentRef string         `gorm:"column:payment_ref;not null;index" json:"payment_ref"`
	Kind       string         `gorm:"column:kind;type:varchar(40);not null" json:"kind"`
	Detail     datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail"`
	Resolved   bool           `gorm:"column:resolved;not null;default:false" json:"resolved"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (ReconciliationEvent) TableName() string {
	return "ReconciliationEvents"
}

func (e *ReconciliationEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
