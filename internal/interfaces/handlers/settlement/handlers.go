package settlement

import (
	"errors"

	settlesvc "able-backend/internal/application/settlement"
	"able-backend/internal/gateway"
	"able-backend/internal/pkg/money"
	"able-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *settlesvc.Service
}

// SettleGig POST /api/v1/settlement/gigs/:id/settle
// Body is optional; it may carry a discount to apply to the final price.
func (h *Handlers) SettleGig(c *fiber.Ctx) error {
	gigID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for gig id", 400, nil)
	}

	var body struct {
		Discount *struct {
			Type       string  `json:"type"`
			Amount     float64 `json:"amount"`
			Percentage float64 `json:"percentage"`
		} `json:"discount"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", 400, nil)
		}
	}
	var discount *money.Discount
	if body.Discount != nil {
		dt := money.DiscountType(body.Discount.Type)
		if dt != money.DiscountFixed && dt != money.DiscountPercentage {
			return response.Error(c, "discount type must be FIXED or PERCENTAGE", 400, nil)
		}
		discount = &money.Discount{
			Type:       dt,
			Amount:     body.Discount.Amount,
			Percentage: body.Discount.Percentage,
		}
	}

	if err := h.Service.SettleGig(c.Context(), gigID, discount); err != nil {
		return settlementError(c, err)
	}
	return response.Success(c, "Gig settled successfully", fiber.Map{"gig_id": gigID}, nil)
}

// FinalizeGig POST /api/v1/settlement/gigs/:id/finalize — multi-payment gigs.
func (h *Handlers) FinalizeGig(c *fiber.Ctx) error {
	gigID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for gig id", 400, nil)
	}

	if err := h.Service.FinalizeMultiPartyGig(c.Context(), gigID); err != nil {
		return settlementError(c, err)
	}
	return response.Success(c, "Gig finalized successfully", fiber.Map{"gig_id": gigID}, nil)
}

// PayTip POST /api/v1/settlement/gigs/:id/tip
func (h *Handlers) PayTip(c *fiber.Ctx) error {
	gigID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for gig id", 400, nil)
	}

	var body struct {
		TipAmount        float64 `json:"tip_amount"`
		PaymentMethodRef string  `json:"payment_method_ref"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if body.TipAmount <= 0 || body.PaymentMethodRef == "" {
		return response.Error(c, "tip_amount and payment_method_ref are required", 400, nil)
	}

	if err := h.Service.PayTip(c.Context(), gigID, body.TipAmount, body.PaymentMethodRef); err != nil {
		return settlementError(c, err)
	}
	return response.Success(c, "Tip paid successfully", fiber.Map{
		"gig_id":     gigID,
		"tip_amount": body.TipAmount,
	}, nil)
}

// ListReconciliation GET /api/v1/settlement/reconciliation — unresolved
// processor/local mismatches.
func (h *Handlers) ListReconciliation(c *fiber.Ctx) error {
	events, err := h.Service.Recon.FindUnresolved(c.Context())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Unresolved reconciliation events", events, fiber.Map{"count": len(events)})
}

// settlementError maps orchestrator errors onto the standard error envelope.
func settlementError(c *fiber.Ctx, err error) error {
	var capErr *gateway.CaptureError
	var chargeErr *gateway.ChargeError
	var persistErr *settlesvc.PersistenceError

	switch {
	case errors.Is(err, settlesvc.ErrGigNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, settlesvc.ErrNoPendingPayment),
		errors.Is(err, settlesvc.ErrInsufficientHolds),
		errors.Is(err, settlesvc.ErrInvalidTipAmount):
		return response.Error(c, err.Error(), 400, nil)
	case errors.Is(err, settlesvc.ErrGigLocked),
		errors.Is(err, gateway.ErrHoldNotCapturable):
		return response.Error(c, err.Error(), 409, nil)
	case errors.Is(err, gateway.ErrHoldNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.As(err, &capErr), errors.As(err, &chargeErr):
		return response.Error(c, err.Error(), 402, nil)
	case errors.As(err, &persistErr):
		// money moved; the reconciliation event carries the trail
		return response.Error(c, err.Error(), 500, fiber.Map{"reconciliation": true})
	default:
		return response.Error(c, "Internal Server Error", 500, nil)
	}
}
