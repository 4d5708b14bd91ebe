package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadloop/internal/types"
)

func TestTwilioClient_SendSMS_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/ACtest/Messages.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ACtest" || pass != "token123" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("To"); got != "+15550002222" {
			t.Errorf("To = %q", got)
		}
		if got := r.PostForm.Get("From"); got != "+15550001111" {
			t.Errorf("From = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	client := NewTwilioClientWithBase(newNoRetryBase(), TwilioClientConfig{
		AccountSID: "ACtest",
		AuthToken:  "token123",
		FromNumber: "+15550001111",
		BaseURL:    srv.URL,
	})

	sid, err := client.SendSMS(context.Background(), "+15550002222", "Reminder: appointment at 10am")
	if err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if sid != "SM123" {
		t.Errorf("sid = %q", sid)
	}
}

func TestTwilioClient_SendSMS_InvalidNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number."}`))
	}))
	defer srv.Close()

	client := NewTwilioClientWithBase(newNoRetryBase(), TwilioClientConfig{
		AccountSID: "ACtest",
		AuthToken:  "token123",
		FromNumber: "+15550001111",
		BaseURL:    srv.URL,
	})

	_, err := client.SendSMS(context.Background(), "not-a-number", "hello")
	if err == nil {
		t.Fatal("expected error for invalid number")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error is not AppError: %v", err)
	}
	if appErr.Code != types.ErrCodeUpstreamSMS {
		t.Errorf("Code = %s, want %s", appErr.Code, types.ErrCodeUpstreamSMS)
	}
}
