// Package payment verifies customer payment proofs and builds UPI payment links.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
)

// ErrManualOnly is returned by verifiers that leave confirmation to the owner.
var ErrManualOnly = errors.New("automatic payment verification is unavailable; the shop owner will confirm the payment")

// Proof is the evidence a customer submits for a payment.
type Proof struct {
	Data     []byte
	MimeType string
}

// Result is the verifier's judgement of a proof.
type Result struct {
	IsSuccessful   bool    `json:"isSuccessful"`
	IsMatch        bool    `json:"isMatch"`
	Amount         float64 `json:"amount"`
	TransactionRef string  `json:"utr"`
	Raw            string  `json:"-"`
}

// Verified reports whether the proof shows a successful payment of the
// expected amount. Both conditions are required.
func (r Result) Verified() bool {
	return r.IsSuccessful && r.IsMatch
}

// Log renders the result for the order's verification log.
func (r Result) Log() string {
	b, err := json.Marshal(struct {
		Result
		Raw string `json:"raw,omitempty"`
	}{r, r.Raw})
	if err != nil {
		return ""
	}
	return string(b)
}

// Verifier judges a payment proof against the expected amount.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, proof Proof, expected float64) (Result, error)
}

// NewFromConfig selects the verifier named by configuration.
func NewFromConfig(cfg config.Config, logger *zap.Logger) (Verifier, error) {
	switch cfg.Payment.Verifier {
	case "gemini":
		v, err := NewGeminiVerifier(context.Background(), GeminiOptions{
			BaseURL: cfg.Payment.GeminiBaseURL,
			APIKey:  cfg.Payment.GeminiAPIKey,
			Model:   cfg.Payment.GeminiModel,
			Timeout: cfg.Payment.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "manual", "":
		return ManualVerifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported payment verifier: %s", cfg.Payment.Verifier)
	}
}

// ManualVerifier never verifies automatically.
type ManualVerifier struct{}

// Name identifies the verifier in verification logs.
func (ManualVerifier) Name() string { return "manual" }

// Verify always returns ErrManualOnly.
func (ManualVerifier) Verify(context.Context, Proof, float64) (Result, error) {
	return Result{}, ErrManualOnly
}

// UPILink builds the deep link a UPI app opens to pay amount to vpa.
func UPILink(vpa, payee string, amount float64, orderID string) string {
	q := url.Values{}
	q.Set("pa", vpa)
	q.Set("pn", payee)
	q.Set("am", FormatAmount(amount))
	q.Set("tr", orderID)
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode()
}

// FormatAmount renders rupees without trailing zeros, e.g. 21.5 or 20.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(math.Round(amount*100)/100, 'f', -1, 64)
}
