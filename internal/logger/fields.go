package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solveprint/printshop/internal/entity"
)

// Order logs the operational view of an order. The storage path, payment
// reference and verification log are left out.
func Order(o *entity.Order) zap.Field {
	if o == nil {
		return zap.Skip()
	}
	return zap.Object("order", orderFields{o})
}

type orderFields struct {
	o *entity.Order
}

func (f orderFields) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", f.o.ID)
	enc.AddString("status", string(f.o.Status))
	enc.AddString("payment_status", string(f.o.PaymentStatus))
	enc.AddString("pickup_code", f.o.PickupCode)
	enc.AddInt("pages", f.o.TotalPages)
	enc.AddString("print_type", string(f.o.PrintType))
	enc.AddString("side_type", string(f.o.SideType))
	enc.AddFloat64("estimated_cost", f.o.EstimatedCost)
	return nil
}
