package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadloop/internal/types"
)

// twilioAPIBase is the default Twilio API base URL.
// Overridable in tests via TwilioClientConfig.BaseURL.
const twilioAPIBase = "https://api.twilio.com"

// TwilioClientConfig holds the configuration for creating a TwilioClient.
type TwilioClientConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string // Override for testing; defaults to twilioAPIBase
	Logger     *slog.Logger
}

// TwilioClient implements SMSSender by posting to the Twilio Messages API
// through BaseClient. Twilio uses form-encoded requests and HTTP basic auth
// with the account SID and auth token.
type TwilioClient struct {
	base       *BaseClient
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	logger     *slog.Logger
}

// NewTwilioClient creates a new TwilioClient.
func NewTwilioClient(
	httpClient *http.Client,
	cfg TwilioClientConfig,
) *TwilioClient {
	base := NewBaseClient(
		httpClient,
		"twilio",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"LeadLoop/1.0",
		WithSleepFunc(time.Sleep),
	)

	return NewTwilioClientWithBase(base, cfg)
}

// NewTwilioClientWithBase creates a TwilioClient with a pre-configured
// BaseClient, for tests that control retry behavior.
func NewTwilioClientWithBase(
	base *BaseClient,
	cfg TwilioClientConfig,
) *TwilioClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TwilioClient{
		base:       base,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// twilioMessageResponse is the subset of the Messages API response we read.
type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendSMS sends one SMS via the Twilio Messages API and returns the message
// SID. Twilio returns 201 Created on success.
func (t *TwilioClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.fromNumber)
	form.Set("Body", body)

	reqURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create Twilio message request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.base.Do(req)
	if err != nil {
		if _, ok := err.(*types.AppError); ok {
			return "", err
		}
		return "", types.NewAppError(
			types.ErrCodeUpstreamSMS,
			fmt.Sprintf("SendSMS: Twilio request failed: %v", err),
			err,
		)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamSMS,
			fmt.Sprintf("SendSMS: Twilio returned status %d and response body was unreadable", resp.StatusCode),
			readErr,
		)
	}

	var msg twilioMessageResponse
	_ = json.Unmarshal(respBody, &msg)

	if resp.StatusCode == http.StatusCreated {
		return msg.SID, nil
	}

	errMsg := msg.Message
	if errMsg == "" {
		errMsg = string(respBody)
	}
	return "", types.NewAppError(
		types.ErrCodeUpstreamSMS,
		fmt.Sprintf("SendSMS: Twilio error (%d): %s", resp.StatusCode, errMsg),
		nil,
	)
}

// Compile-time assertion that TwilioClient satisfies SMSSender.
var _ SMSSender = (*TwilioClient)(nil)
