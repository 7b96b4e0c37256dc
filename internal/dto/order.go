package dto

import "time"

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID            string    `json:"id"`
	PickupCode    string    `json:"pickup_code"`
	CustomerID    string    `json:"customer_id"`
	FileName      string    `json:"file_name"`
	TotalPages    int       `json:"total_pages"`
	PrintType     string    `json:"print_type"`
	SideType      string    `json:"side_type"`
	EstimatedCost float64   `json:"estimated_cost"`
	PaymentStatus string    `json:"payment_status"`
	Status        string    `json:"status"`
	UTRID         string    `json:"utr_id,omitempty"`
	VerifiedBy    string    `json:"verified_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// QuoteOption is the price of one print combination.
type QuoteOption struct {
	PrintType string  `json:"print_type"`
	SideType  string  `json:"side_type"`
	Cost      float64 `json:"cost"`
}

// QuoteResponse lists every price option for a document.
type QuoteResponse struct {
	Pages   int           `json:"pages"`
	Options []QuoteOption `json:"options"`
}

// PaymentRequestResponse tells the customer where to pay.
type PaymentRequestResponse struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	VPA     string  `json:"vpa"`
	Payee   string  `json:"payee"`
	UPILink string  `json:"upi_link"`
}

// StatusRequest sets an absolute order status.
type StatusRequest struct {
	Status string `json:"status"`
}

// BatchStatusRequest sets one status on many orders.
type BatchStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

// HandoverRequest completes the ready order holding a pickup code.
type HandoverRequest struct {
	Code string `json:"code"`
}

// ConfirmPaymentRequest records an owner-verified payment.
type ConfirmPaymentRequest struct {
	UTR string `json:"utr"`
}

// QueueResponse is the owner's queue.
type QueueResponse struct {
	Orders  []OrderResponse `json:"orders"`
	Counts  map[string]int  `json:"counts"`
	Version uint64          `json:"version"`
}

// RevenueResponse reports revenue of a shop day.
type RevenueResponse struct {
	Day            string  `json:"day"`
	Live           float64 `json:"live"`
	Archived       float64 `json:"archived"`
	ArchivedOrders int     `json:"archived_orders"`
	Total          float64 `json:"total"`
}

// FileLinkResponse carries a signed download link.
type FileLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PlatformStatsResponse summarises the platform for developers.
type PlatformStatsResponse struct {
	Orders      int             `json:"orders"`
	PaidRevenue float64         `json:"paid_revenue"`
	ByStatus    map[string]int  `json:"by_status"`
	Recent      []OrderResponse `json:"recent"`
}
