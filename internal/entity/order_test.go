package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solveprint/printshop/internal/lifecycle"
)

func TestOrder_Revenue(t *testing.T) {
	tests := []struct {
		name    string
		payment lifecycle.PaymentStatus
		status  lifecycle.Status
		want    float64
	}{
		{"unpaid_pending", lifecycle.PaymentUnpaid, lifecycle.StatusPendingPayment, 0},
		{"paid_flag_only", lifecycle.PaymentPaid, lifecycle.StatusPendingPayment, 75},
		{"queued_without_flag", lifecycle.PaymentUnpaid, lifecycle.StatusQueued, 75},
		{"completed", lifecycle.PaymentPaid, lifecycle.StatusCompleted, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{EstimatedCost: 75, PaymentStatus: tt.payment, Status: tt.status}
			assert.Equal(t, tt.want, o.Revenue())
		})
	}
}

func TestShopSettings_ActiveVPA(t *testing.T) {
	s := &ShopSettings{PrimaryVPA: "shop@upi", BackupVPA: "backup@upi", ActiveVPAType: VPAPrimary}
	assert.Equal(t, "shop@upi", s.ActiveVPA())

	s.ActiveVPAType = VPABackup
	assert.Equal(t, "backup@upi", s.ActiveVPA())

	s.BackupVPA = ""
	assert.Equal(t, "shop@upi", s.ActiveVPA())
}
