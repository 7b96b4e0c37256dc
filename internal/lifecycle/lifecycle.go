package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusQueued         Status = "queued"
	StatusPrinting       Status = "printing"
	StatusReady          Status = "ready"
	StatusCompleted      Status = "completed"
)

// PaymentStatus tracks whether the order has been paid for.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

var (
	ErrUnknownStatus   = errors.New("unknown order status")
	ErrBackward        = errors.New("order status cannot move backward")
	ErrPaymentRequired = errors.New("order must be paid before it leaves pending_payment")
)

// All lists every status in lifecycle order.
func All() []Status {
	return []Status{StatusPendingPayment, StatusQueued, StatusPrinting, StatusReady, StatusCompleted}
}

// OperationalStatuses lists the statuses visible in the owner queue.
func OperationalStatuses() []Status {
	return []Status{StatusQueued, StatusPrinting, StatusReady, StatusCompleted}
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := s.rank()
	return ok
}

func (s Status) rank() (int, bool) {
	switch s {
	case StatusPendingPayment:
		return 0, true
	case StatusQueued:
		return 1, true
	case StatusPrinting:
		return 2, true
	case StatusReady:
		return 3, true
	case StatusCompleted:
		return 4, true
	default:
		return -1, false
	}
}

// Terminal reports whether no further transition exists.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// ImpliesPaid reports whether reaching s requires a verified payment.
func ImpliesPaid(s Status) bool {
	switch s {
	case StatusQueued, StatusPrinting, StatusReady, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransition validates moving an order from one status to an absolute
// target. Re-applying the current status is accepted so repeated requests
// converge. Forward moves may skip intermediate states; backward moves are
// rejected.
func CanTransition(from, to Status, paid bool) error {
	fromRank, ok := from.rank()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	toRank, ok := to.rank()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}

	switch {
	case fromRank == toRank:
		return nil
	case toRank < fromRank:
		return fmt.Errorf("%w: %s -> %s", ErrBackward, from, to)
	case from == StatusPendingPayment && !paid:
		return ErrPaymentRequired
	default:
		return nil
	}
}

// Counts holds per-status order counts.
type Counts map[Status]int

// Tally counts statuses.
func Tally(statuses ...Status) Counts {
	c := make(Counts, len(statuses))
	for _, s := range statuses {
		c[s]++
	}
	return c
}
