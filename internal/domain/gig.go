package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GigStatus is the gig's internal lifecycle status. Only the transition to
// PAID is owned by the settlement engine; the rest are set upstream.
type GigStatus string

const (
	GigStatusOpen           GigStatus = "OPEN"
	GigStatusAccepted       GigStatus = "ACCEPTED"
	GigStatusInProgress     GigStatus = "IN_PROGRESS"
	GigStatusPendingPayment GigStatus = "PENDING_PAYMENT"
	GigStatusPaid           GigStatus = "PAID"
	GigStatusCancelled      GigStatus = "CANCELLED"
)

type Gig struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TotalAgreedPrice float64   `gorm:"column:total_agreed_price;type:decimal(18,2);not null" json:"total_agreed_price"`
	FinalAgreedPrice float64   `gorm:"column:final_agreed_price;type:decimal(18,2)" json:"final_agreed_price"`
	AbleFeePercent   float64   `gorm:"column:able_fee_percent;type:decimal(6,4)" json:"able_fee_percent"`
	StatusInternal   GigStatus `gorm:"column:status_internal;type:varchar(30);not null" json:"status_internal"`
	BuyerUserID      uuid.UUID `gorm:"column:buyer_user_id;type:uuid;not null" json:"buyer_user_id"`
	WorkerUserID     uuid.UUID `gorm:"column:worker_user_id;type:uuid;not null" json:"worker_user_id"`
	// Processor references snapshotted at booking time: the buyer's customer
	// object and the worker's payout (connected) account.
	BuyerCustomerRef string    `gorm:"column:buyer_customer_ref" json:"buyer_customer_ref"`
	WorkerAccountRef string    `gorm:"column:worker_account_ref" json:"worker_account_ref"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (Gig) TableName() string {
	return "Gigs"
}

func (g *Gig) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// FinalPrice is the price settlement reconciles against: the amended price
// when one was agreed, otherwise the original quote.
func (g *Gig) FinalPrice() float64 {
	if g.FinalAgreedPrice > 0 {
		return g.FinalAgreedPrice
	}
	return g.TotalAgreedPrice
}
