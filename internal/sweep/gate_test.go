package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadloop/internal/types"
)

// 10:00 UTC, inside a 9-11 window.
var insideWindow = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

func newGate(store CronStateStore, inner Runner) *DailyGate {
	return NewDailyGate("payment_reminders", Window{StartHour: 9, EndHour: 11}, store, time.UTC, inner, nil)
}

func TestDailyGate_RunsInsideWindow(t *testing.T) {
	store := newFakeCronStore()
	inner := &stubRunner{result: TaskResult{Success: true, Details: map[string]any{"sent": 3}}}
	gate := newGate(store, inner)

	res := gate.Run(context.Background(), insideWindow)
	if !res.Success || res.Skipped {
		t.Fatalf("result = %+v", res)
	}
	if inner.calls != 1 {
		t.Errorf("inner runner called %d times, want 1", inner.calls)
	}

	// The real run must be recorded with today's date and the details.
	if len(store.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserts))
	}
	if store.upserts[0].LastRunDate != "2026-08-30" {
		t.Errorf("last run date = %q", store.upserts[0].LastRunDate)
	}
}

func TestDailyGate_SkipsOutsideWindowRegardlessOfCronState(t *testing.T) {
	store := newFakeCronStore()
	// CronState says it never ran, but the hour is outside the window.
	inner := &stubRunner{result: TaskResult{Success: true}}
	gate := newGate(store, inner)

	res := gate.Run(context.Background(), time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC))
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}
	if inner.calls != 0 {
		t.Error("inner runner must not execute outside the window")
	}
	if len(store.claims) != 0 {
		t.Error("no claim should be attempted outside the window")
	}
}

func TestDailyGate_SkipsWhenAlreadyRanToday(t *testing.T) {
	store := newFakeCronStore()
	store.states["payment_reminders"] = &types.CronState{
		TaskName:    "payment_reminders",
		LastRunDate: "2026-08-30",
	}
	inner := &stubRunner{result: TaskResult{Success: true}}
	gate := newGate(store, inner)

	res := gate.Run(context.Background(), insideWindow)
	if !res.Skipped || res.Reason != "Already processed today" {
		t.Fatalf("result = %+v", res)
	}
	if inner.calls != 0 {
		t.Error("inner runner must not execute twice in one day")
	}
}

func TestDailyGate_SecondRunSameDaySkips(t *testing.T) {
	store := newFakeCronStore()
	inner := &stubRunner{result: TaskResult{Success: true}}
	gate := newGate(store, inner)

	first := gate.Run(context.Background(), insideWindow)
	second := gate.Run(context.Background(), insideWindow.Add(30*time.Minute))

	if !first.Success {
		t.Fatalf("first = %+v", first)
	}
	if !second.Skipped {
		t.Fatalf("second = %+v, want skipped", second)
	}
	if inner.calls != 1 {
		t.Errorf("inner runner called %d times, want 1", inner.calls)
	}
}

func TestDailyGate_RunsAgainNextDay(t *testing.T) {
	store := newFakeCronStore()
	inner := &stubRunner{result: TaskResult{Success: true}}
	gate := newGate(store, inner)

	gate.Run(context.Background(), insideWindow)
	res := gate.Run(context.Background(), insideWindow.AddDate(0, 0, 1))

	if !res.Success || inner.calls != 2 {
		t.Fatalf("next-day result = %+v, inner calls = %d", res, inner.calls)
	}
}

func TestDailyGate_ClaimLostToConcurrentPass(t *testing.T) {
	store := newFakeCronStore()
	store.denied = true
	inner := &stubRunner{result: TaskResult{Success: true}}
	gate := newGate(store, inner)

	res := gate.Run(context.Background(), insideWindow)
	if !res.Skipped || res.Reason != "Already processed today" {
		t.Fatalf("result = %+v", res)
	}
	if inner.calls != 0 {
		t.Error("losing the claim must skip the run")
	}
}

func TestDailyGate_FailedRunStillConsumesDay(t *testing.T) {
	store := newFakeCronStore()
	inner := &stubRunner{result: TaskResult{Success: false, Error: "db down"}}
	gate := newGate(store, inner)

	first := gate.Run(context.Background(), insideWindow)
	second := gate.Run(context.Background(), insideWindow.Add(30*time.Minute))

	if first.Success || first.Skipped {
		t.Fatalf("first = %+v, want failure", first)
	}
	// The claim preceded the run, so the failure holds the date until the
	// next calendar day.
	if !second.Skipped {
		t.Fatalf("second = %+v, want skipped", second)
	}
	if inner.calls != 1 {
		t.Errorf("inner runner called %d times, want 1", inner.calls)
	}
}

func TestDailyGate_StateReadError(t *testing.T) {
	store := newFakeCronStore()
	store.getErr = errors.New("db down")
	inner := &stubRunner{result: TaskResult{Success: true}}
	gate := newGate(store, inner)

	res := gate.Run(context.Background(), insideWindow)
	if res.Success || res.Skipped || res.Error == "" {
		t.Fatalf("result = %+v, want failure", res)
	}
	if inner.calls != 0 {
		t.Error("inner runner must not execute when the guard is unreadable")
	}
}

func TestWindow_Contains(t *testing.T) {
	w := Window{StartHour: 5, EndHour: 7}
	for hour, want := range map[int]bool{4: false, 5: true, 6: true, 7: true, 8: false} {
		if got := w.Contains(hour); got != want {
			t.Errorf("Contains(%d) = %v, want %v", hour, got, want)
		}
	}
}
