package sweep

import (
	"context"
	"time"

	"leadloop/internal/external"
	"leadloop/internal/types"
)

// Shared hand-rolled fakes for the runner tests.

type fakeCompanyLister struct {
	companies []types.Company
	err       error
}

func (f *fakeCompanyLister) ListActive(context.Context) ([]types.Company, error) {
	return f.companies, f.err
}

type fakeCronStore struct {
	states map[string]*types.CronState

	getErr   error
	claimErr error
	denied   bool

	claims  []string
	upserts []*types.CronState
}

func newFakeCronStore() *fakeCronStore {
	return &fakeCronStore{states: map[string]*types.CronState{}}
}

func (f *fakeCronStore) Get(_ context.Context, taskName string) (*types.CronState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.states[taskName], nil
}

func (f *fakeCronStore) Upsert(_ context.Context, state *types.CronState) error {
	f.upserts = append(f.upserts, state)
	f.states[state.TaskName] = state
	return nil
}

func (f *fakeCronStore) Claim(_ context.Context, taskName, runDate string, now time.Time) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	f.claims = append(f.claims, taskName+"@"+runDate)
	if f.denied {
		return false, nil
	}
	if st := f.states[taskName]; st != nil && st.LastRunDate == runDate {
		return false, nil
	}
	f.states[taskName] = &types.CronState{TaskName: taskName, LastRunDate: runDate, LastRunAt: now}
	return true, nil
}

type recordEmailSender struct {
	sent    []external.EmailMessage
	sendErr error
}

func (f *recordEmailSender) Send(_ context.Context, msg external.EmailMessage) (string, error) {
	f.sent = append(f.sent, msg)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "msg_1", nil
}

type recordSMSSender struct {
	sent    []string
	sendErr error
}

func (f *recordSMSSender) SendSMS(_ context.Context, to, _ string) (string, error) {
	f.sent = append(f.sent, to)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "SM1", nil
}

// stubRunner returns canned results and records invocations.
type stubRunner struct {
	result TaskResult
	calls  int
	panics bool
}

func (s *stubRunner) Run(context.Context, time.Time) TaskResult {
	s.calls++
	if s.panics {
		panic("boom")
	}
	return s.result
}

func activeCompany(id string) types.Company {
	return types.Company{ID: id, Name: id, Status: types.CompanyActive, Timezone: "UTC"}
}
