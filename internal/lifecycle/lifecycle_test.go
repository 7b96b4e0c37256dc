package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		paid     bool
		wantErr  error
	}{
		{StatusPendingPayment, StatusQueued, true, nil},
		{StatusPendingPayment, StatusQueued, false, ErrPaymentRequired},
		{StatusPendingPayment, StatusPrinting, false, ErrPaymentRequired},
		{StatusPendingPayment, StatusPendingPayment, false, nil},
		{StatusQueued, StatusPrinting, true, nil},
		{StatusQueued, StatusReady, true, nil},
		{StatusPrinting, StatusPrinting, true, nil},
		{StatusPrinting, StatusReady, true, nil},
		{StatusReady, StatusCompleted, true, nil},
		{StatusReady, StatusPrinting, true, ErrBackward},
		{StatusCompleted, StatusQueued, true, ErrBackward},
		{StatusQueued, StatusPendingPayment, true, ErrBackward},
		{StatusQueued, Status("cancelled"), true, ErrUnknownStatus},
		{Status(""), StatusQueued, true, ErrUnknownStatus},
	}

	for _, tt := range tests {
		err := CanTransition(tt.from, tt.to, tt.paid)
		if tt.wantErr == nil {
			assert.NoErrorf(t, err, "%s -> %s", tt.from, tt.to)
			continue
		}
		assert.ErrorIsf(t, err, tt.wantErr, "%s -> %s", tt.from, tt.to)
	}
}

func TestImpliesPaid(t *testing.T) {
	assert.False(t, ImpliesPaid(StatusPendingPayment))
	for _, s := range OperationalStatuses() {
		assert.True(t, ImpliesPaid(s), s)
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Printing")
	require.NoError(t, err)
	assert.Equal(t, StatusPrinting, s)

	_, err = ParseStatus("shipped")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestTally(t *testing.T) {
	c := Tally(StatusQueued, StatusQueued, StatusReady)
	assert.Equal(t, 2, c[StatusQueued])
	assert.Equal(t, 1, c[StatusReady])
	assert.Zero(t, c[StatusPrinting])
}
