package entity

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/solveprint/printshop/internal/lifecycle"
	"github.com/solveprint/printshop/internal/pricing"
)

// Order is a customer print job stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              string                  `bun:"id,pk"`
	PickupCode      string                  `bun:"pickup_code,notnull"`
	HeldPickupCode  string                  `bun:"active_pickup_code,nullzero"`
	CustomerID      string                  `bun:"customer_id,notnull"`
	FilePath        string                  `bun:"file_path,notnull"`
	FileName        string                  `bun:"file_name"`
	TotalPages      int                     `bun:"total_pages,notnull"`
	PrintType       pricing.PrintType       `bun:"print_type,notnull"`
	SideType        pricing.SideType        `bun:"side_type,notnull"`
	EstimatedCost   float64                 `bun:"estimated_cost,notnull"`
	PaymentStatus   lifecycle.PaymentStatus `bun:"payment_status,notnull"`
	Status          lifecycle.Status        `bun:"status,notnull"`
	UTRID           string                  `bun:"utr_id,nullzero"`
	VerificationLog string                  `bun:"verification_log,nullzero"`
	VerifiedBy      string                  `bun:"verified_by,nullzero"`
	CreatedAt       time.Time               `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time               `bun:"updated_at,nullzero"`
}

// HoldPickupCode keeps HeldPickupCode in step with Status. The column is
// unique, so a code is held by at most one order awaiting handover and is
// released on completion.
func (o *Order) HoldPickupCode() {
	if o.Status.Terminal() {
		o.HeldPickupCode = ""
		return
	}
	o.HeldPickupCode = o.PickupCode
}

// Paid reports whether the order has been paid, explicitly or because its
// status can only be reached after payment.
func (o *Order) Paid() bool {
	return o.PaymentStatus == lifecycle.PaymentPaid || lifecycle.ImpliesPaid(o.Status)
}

// Revenue is the amount the order contributes to shop revenue.
func (o *Order) Revenue() float64 {
	if o.Paid() {
		return o.EstimatedCost
	}
	return 0
}
