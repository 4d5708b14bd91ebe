package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadloop/internal/types"

	stripe "github.com/stripe/stripe-go/v82"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// invoiceDaysUntilDue is how long a generated invoice stays payable before
// the payment reminder runner starts nagging.
const invoiceDaysUntilDue = 14

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey string
	BaseURL   string // Override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient implements InvoiceGateway by making direct HTTP calls to the
// Stripe REST API through BaseClient. This routes all requests through the
// platform's resilience infrastructure (circuit breaker, retries, error
// mapping) and makes testing with httptest straightforward.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a new StripeClient.
func NewStripeClient(
	httpClient *http.Client,
	cfg StripeClientConfig,
) *StripeClient {
	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"LeadLoop/1.0",
		WithSleepFunc(time.Sleep),
	)

	return NewStripeClientWithBase(base, cfg)
}

// NewStripeClientWithBase creates a StripeClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration.
func NewStripeClientWithBase(
	base *BaseClient,
	cfg StripeClientConfig,
) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// CreateInvoice creates a one-item invoice for the customer and finalizes it
// so Stripe emails the hosted payment link. Three sequential API calls:
//
//  1. POST /v1/invoiceitems   -- pending line item on the customer
//  2. POST /v1/invoices       -- draft invoice collecting pending items
//  3. POST /v1/invoices/{id}/finalize -- open the invoice for payment
//
// Returns the Stripe invoice ID. A failure between steps leaves a draft
// behind in Stripe; the template is only advanced after all three succeed,
// so the next sweep retries cleanly.
func (s *StripeClient) CreateInvoice(ctx context.Context, customerID string, amountCents int64, currency, description string) (string, error) {
	// Step 1: pending invoice item.
	itemParams := url.Values{}
	itemParams.Set("customer", customerID)
	itemParams.Set("amount", strconv.FormatInt(amountCents, 10))
	itemParams.Set("currency", currency)
	itemParams.Set("description", description)

	itemResp, err := s.doPost(ctx, "/v1/invoiceitems", itemParams)
	if err != nil {
		return "", s.wrapStripeError("CreateInvoice.item", err)
	}
	defer itemResp.Body.Close()

	if itemResp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(itemResp, "CreateInvoice.item")
	}

	// Step 2: draft invoice picking up pending items.
	invParams := url.Values{}
	invParams.Set("customer", customerID)
	invParams.Set("collection_method", "send_invoice")
	invParams.Set("days_until_due", strconv.Itoa(invoiceDaysUntilDue))
	invParams.Set("pending_invoice_items_behavior", "include")

	invResp, err := s.doPost(ctx, "/v1/invoices", invParams)
	if err != nil {
		return "", s.wrapStripeError("CreateInvoice.draft", err)
	}
	defer invResp.Body.Close()

	if invResp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(invResp, "CreateInvoice.draft")
	}

	var draft stripeInvoice
	if err := json.NewDecoder(invResp.Body).Decode(&draft); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe invoice response",
			err,
		)
	}

	// Step 3: finalize.
	finResp, err := s.doPost(ctx, "/v1/invoices/"+draft.ID+"/finalize", url.Values{})
	if err != nil {
		return "", s.wrapStripeError("CreateInvoice.finalize", err)
	}
	defer finResp.Body.Close()

	if finResp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(finResp, "CreateInvoice.finalize")
	}

	return draft.ID, nil
}

// doPost performs an authenticated POST request to the Stripe API with a
// form-encoded body.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)

	return s.base.Do(req)
}

// stripeInvoice is the subset of the Stripe invoice object we read.
type stripeInvoice struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// stripeErrorResponse represents the JSON error body returned by Stripe.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

// handleErrorResponse reads a Stripe error response and maps it to a
// types.AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Stripe server error: %s", operation, stripeErr.Error.Message),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message),
			nil,
		)
	}
}

// wrapStripeError wraps a BaseClient transport error with context.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	// AppErrors from BaseClient already carry the right upstream code.
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err),
		err,
	)
}

// Compile-time assertion that StripeClient satisfies InvoiceGateway.
var _ InvoiceGateway = (*StripeClient)(nil)
