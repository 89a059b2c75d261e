package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrGatewayUnavailable means the provider could not be reached or rejected
// the call. Checkout must fail synchronously on this so the user is never
// shown a dead payment link.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrMissingCredentials is returned at construction when the secret key is
// empty; callers treat it the same as gateway unavailability.
var ErrMissingCredentials = errors.New("paystack secret key not configured")

type VerifyStatus string

const (
	VerifySuccess   VerifyStatus = "success"
	VerifyFailed    VerifyStatus = "failed"
	VerifyAbandoned VerifyStatus = "abandoned"
)

type InitResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyResult struct {
	Status      VerifyStatus
	AmountMinor int64
	PaidAt      *time.Time
	Raw         string
}

// Client talks to the Paystack transaction API. Construct once at service
// start and inject; it holds no mutable state beyond the http.Client.
type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func New(baseURL, secretKey string, timeout time.Duration) (*Client, error) {
	if secretKey == "" {
		return nil, ErrMissingCredentials
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type initRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initialize opens a transaction with the provider and returns the redirect
// handle the client completes payment through. Amount is in minor units.
func (c *Client) Initialize(ctx context.Context, email string, amountMinor int64, reference, callbackURL string, metadata map[string]string) (*InitResult, error) {
	body := initRequest{
		Email:       email,
		Amount:      amountMinor,
		Reference:   reference,
		CallbackURL: callbackURL,
		Metadata:    metadata,
	}
	var resp initResponse
	if err := c.postJSON(ctx, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, resp.Message)
	}
	return &InitResult{
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
		Reference:        resp.Data.Reference,
	}, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
		PaidAt string `json:"paid_at"`
	} `json:"data"`
}

// Verify reads the provider's current view of a transaction. Safe to call
// repeatedly; it has no provider-side effects.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	raw, err := c.getRaw(ctx, "/transaction/verify/"+reference)
	if err != nil {
		return nil, err
	}
	var resp verifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: bad verify response: %v", ErrGatewayUnavailable, err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, resp.Message)
	}

	out := &VerifyResult{
		AmountMinor: resp.Data.Amount,
		Raw:         string(raw),
	}
	switch resp.Data.Status {
	case "success":
		out.Status = VerifySuccess
	case "abandoned":
		out.Status = VerifyAbandoned
	default:
		// "failed", "reversed", anything unrecognized: not paid.
		out.Status = VerifyFailed
	}
	if resp.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.Data.PaidAt); err == nil {
			out.PaidAt = &t
		}
	}
	return out, nil
}

// ValidateWebhookSignature checks the x-paystack-signature header: a hex
// HMAC-SHA512 of the raw body under the secret key, compared constant-time.
// Webhooks arrive from the public internet; this is their only
// authentication, so it runs before the payload is parsed.
func (c *Client) ValidateWebhookSignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	return body, nil
}
