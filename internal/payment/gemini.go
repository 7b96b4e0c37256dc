package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	// ErrUnparseable is returned when the model reply holds no JSON verdict.
	ErrUnparseable = errors.New("could not parse verification response")
	// ErrUpstream is returned when the model API call fails.
	ErrUpstream = errors.New("verification service error")
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// GeminiOptions configures GeminiVerifier.
type GeminiOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiVerifier asks a Gemini model to read a payment screenshot.
type GeminiVerifier struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiVerifier creates a verifier backed by the Gemini API client.
func NewGeminiVerifier(ctx context.Context, opts GeminiOptions, logger *zap.Logger) (*GeminiVerifier, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: opts.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiVerifier{client: client, model: opts.Model, logger: logger}, nil
}

// Name identifies the verifier in verification logs.
func (g *GeminiVerifier) Name() string { return "gemini" }

func verificationPrompt(expected float64) string {
	return fmt.Sprintf(`You verify UPI payment screenshots for a print shop.
Check whether the screenshot shows a SUCCESSFUL payment and whether the paid amount equals exactly %s INR.
Return ONLY a JSON object like this:
{"isSuccessful": boolean, "isMatch": boolean, "amount": number, "utr": "transaction reference or empty string"}`, FormatAmount(expected))
}

// Verify sends the proof and the expected amount to the model.
func (g *GeminiVerifier) Verify(ctx context.Context, proof Proof, expected float64) (Result, error) {
	if len(proof.Data) == 0 {
		return Result{}, errors.New("empty payment proof")
	}
	mime := proof.MimeType
	if mime == "" {
		mime = http.DetectContentType(proof.Data)
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(verificationPrompt(expected)),
		genai.NewPartFromBytes(proof.Data, mime),
	}, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		g.logger.Warn("gemini verification failed", zap.String("model", g.model), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return ParseResult(resp.Text())
}

// ParseResult extracts the JSON verdict from a model reply that may wrap it
// in prose or code fences.
func ParseResult(reply string) (Result, error) {
	match := jsonObject.FindString(reply)
	if match == "" {
		return Result{}, ErrUnparseable
	}
	var res Result
	if err := json.Unmarshal([]byte(match), &res); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	res.Raw = match
	return res, nil
}
