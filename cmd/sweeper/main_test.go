package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"leadloop/internal/sweep"
)

type stubRunner struct {
	report *sweep.Report
	ranAt  time.Time
}

func (s *stubRunner) Run(_ context.Context, now time.Time) *sweep.Report {
	s.ranAt = now
	return s.report
}

func successReport() *sweep.Report {
	return &sweep.Report{
		Success:     true,
		Duration:    "2.1s",
		Automations: sweep.TaskResult{Success: true},
		DataCleanup: sweep.TaskResult{Skipped: true, Reason: "outside run window 02:00-04:59"},
	}
}

func TestHandle_Success(t *testing.T) {
	runner := &stubRunner{report: successReport()}
	h := &Handler{Runner: runner, Location: time.UTC, WorkerID: "w1"}

	summary, err := h.Handle(context.Background(), SweepPayload{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(summary, "1 succeeded") || !strings.Contains(summary, "1 skipped") {
		t.Errorf("summary = %q", summary)
	}
}

func TestHandle_ReferenceTime(t *testing.T) {
	runner := &stubRunner{report: successReport()}
	h := &Handler{Runner: runner, Location: time.UTC}

	ref := time.Date(2026, 8, 30, 6, 30, 0, 0, time.UTC)
	if _, err := h.Handle(context.Background(), SweepPayload{ReferenceTime: &ref}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !runner.ranAt.Equal(ref) {
		t.Errorf("ran at %v, want %v", runner.ranAt, ref)
	}
}

func TestHandle_AllTasksFailed(t *testing.T) {
	runner := &stubRunner{report: &sweep.Report{Success: false, Duration: "1s"}}
	h := &Handler{Runner: runner, Location: time.UTC}

	if _, err := h.Handle(context.Background(), SweepPayload{}); err == nil {
		t.Fatal("a pass with no successful task must error so alarms fire")
	}
}
