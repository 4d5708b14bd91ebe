package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadloop/internal/types"
)

func newNoRetryBase() *BaseClient {
	return NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-no-retry",
		noRetryPolicy,
		"LeadLoop-Test/1.0",
		WithSleepFunc(func(time.Duration) {}),
	)
}

func TestSendGridClient_Send_Success(t *testing.T) {
	var captured sendGridMailPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer SG.test_key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("X-Message-Id", "msg_abc123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewSendGridClientWithBase(newNoRetryBase(), SendGridClientConfig{
		APIKey:      "SG.test_key",
		FromAddress: "no-reply@leadloop.io",
		FromName:    "LeadLoop",
		BaseURL:     srv.URL,
	})

	msgID, err := client.Send(context.Background(), EmailMessage{
		To:      "lead@example.com",
		ToName:  "Jordan Lead",
		Subject: "Your appointment tomorrow",
		Body:    "<p>See you at 10am.</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msgID != "msg_abc123" {
		t.Errorf("message ID = %q", msgID)
	}
	if captured.From.Email != "no-reply@leadloop.io" {
		t.Errorf("from = %q", captured.From.Email)
	}
	if len(captured.Personalizations) != 1 || captured.Personalizations[0].To[0].Email != "lead@example.com" {
		t.Errorf("personalizations = %+v", captured.Personalizations)
	}
	if captured.Subject != "Your appointment tomorrow" {
		t.Errorf("subject = %q", captured.Subject)
	}
}

func TestSendGridClient_Send_BadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"The from address does not match a verified Sender Identity"}]}`))
	}))
	defer srv.Close()

	client := NewSendGridClientWithBase(newNoRetryBase(), SendGridClientConfig{
		APIKey:  "SG.test_key",
		BaseURL: srv.URL,
	})

	_, err := client.Send(context.Background(), EmailMessage{To: "lead@example.com"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error is not AppError: %v", err)
	}
	if appErr.Code != types.ErrCodeUpstreamEmail {
		t.Errorf("Code = %s, want %s", appErr.Code, types.ErrCodeUpstreamEmail)
	}
}

func TestSendGridClient_Send_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewSendGridClientWithBase(newNoRetryBase(), SendGridClientConfig{
		APIKey:  "SG.test_key",
		BaseURL: srv.URL,
	})

	_, err := client.Send(context.Background(), EmailMessage{To: "lead@example.com"})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error is not AppError: %v", err)
	}
	if appErr.Code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("Code = %s, want %s", appErr.Code, types.ErrCodeUpstreamUnavailable)
	}
}
