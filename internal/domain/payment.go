package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus is the payment's settlement state. SETTLING is a transient
// claim marker: it guards against two settlement attempts capturing the same
// hold, and rolls back to PENDING if the attempt fails.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSettling  PaymentStatus = "SETTLING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// PaymentKind separates rows that pay the gig's agreed price from
// gratuities. Only SETTLEMENT rows count toward the final price.
type PaymentKind string

const (
	PaymentKindSettlement PaymentKind = "SETTLEMENT"
	PaymentKindTip        PaymentKind = "TIP"
)

type Payment struct {
	ID                    uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GigID                 uuid.UUID     `gorm:"column:gig_id;type:uuid;not null;index" json:"gig_id"`
	AmountGross           float64       `gorm:"column:amount_gross;type:decimal(18,2);not null" json:"amount_gross"`
	Status                PaymentStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Kind                  PaymentKind   `gorm:"column:kind;type:varchar(20);not null;default:SETTLEMENT" json:"kind"`
	StripePaymentIntentID string        `gorm:"column:stripe_payment_intent_id;uniqueIndex;not null" json:"stripe_payment_intent_id"`
	StripeChargeID        string        `gorm:"column:stripe_charge_id" json:"stripe_charge_id"`
	AbleFeeAmount         float64       `gorm:"column:able_fee_amount;type:decimal(18,2)" json:"able_fee_amount"`
	AmountNetToWorker     float64       `gorm:"column:amount_net_to_worker;type:decimal(18,2)" json:"amount_net_to_worker"`
	InvoiceURL            string        `gorm:"column:invoice_url" json:"invoice_url"`
	PaidAt                *time.Time    `gorm:"column:paid_at" json:"paid_at"`
	PayerUserID           uuid.UUID     `gorm:"column:payer_user_id;type:uuid;not null" json:"payer_user_id"`
	ReceiverUserID        uuid.UUID     `gorm:"column:receiver_user_id;type:uuid;not null" json:"receiver_user_id"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

func (Payment) TableName() string {
	return "Payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Kind == "" {
		p.Kind = PaymentKindSettlement
	}
	return nil
}
