package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"inboxinspire/internal/content"
	"inboxinspire/internal/notifications/core"
	"inboxinspire/internal/notifications/email"
	"inboxinspire/internal/types"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakePending struct {
	records      map[string]*types.PendingSend
	claimedUntil map[string]time.Time
	markErr      error
}

func newFakePending(recs ...types.PendingSend) *fakePending {
	f := &fakePending{
		records:      make(map[string]*types.PendingSend),
		claimedUntil: make(map[string]time.Time),
	}
	for i := range recs {
		r := recs[i]
		f.records[r.ID] = &r
	}
	return f
}

func (f *fakePending) GetByID(_ context.Context, id string) (*types.PendingSend, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundPendingSend, "not found", nil)
	}
	cp := *r
	return &cp, nil
}

func (f *fakePending) Claim(_ context.Context, id string, now, until time.Time) (bool, error) {
	r, ok := f.records[id]
	if !ok || r.Status != types.SendStatusPending {
		return false, nil
	}
	if held, ok := f.claimedUntil[id]; ok && !held.Before(now) {
		return false, nil
	}
	f.claimedUntil[id] = until
	return true, nil
}

func (f *fakePending) Release(_ context.Context, id string) error {
	delete(f.claimedUntil, id)
	return nil
}

func (f *fakePending) Mark(_ context.Context, id string, status types.SendStatus, errMsg string) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	r, ok := f.records[id]
	if !ok {
		return false, types.NewAppError(types.ErrCodeNotFoundPendingSend, "not found", nil)
	}
	if r.Status != types.SendStatusPending {
		return false, nil
	}
	r.Status = status
	r.ErrorMessage = errMsg
	return true, nil
}

func (f *fakePending) Reschedule(_ context.Context, id string, retryCount int, next time.Time, errMsg string) error {
	r, ok := f.records[id]
	if !ok || r.Status != types.SendStatusPending {
		return types.NewAppError(types.ErrCodeConflictTerminalStatus, "not pending", nil)
	}
	r.RetryCount = retryCount
	r.NextAttemptAt = &next
	r.ErrorMessage = errMsg
	delete(f.claimedUntil, id)
	return nil
}

type fakeOwners struct {
	owners      map[string]*types.Owner
	stateWrites int
}

func (f *fakeOwners) Get(_ context.Context, id string) (*types.Owner, error) {
	o, ok := f.owners[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundOwner, "not found", nil)
	}
	cp := *o
	cp.Schedules = append(types.Schedules(nil), o.Schedules...)
	return &cp, nil
}

func (f *fakeOwners) ClearSkipNext(_ context.Context, ownerID, scheduleID string) (bool, error) {
	o := f.owners[ownerID]
	for i := range o.Schedules {
		if o.Schedules[i].ID == scheduleID && o.Schedules[i].SkipNext {
			o.Schedules[i].SkipNext = false
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOwners) UpdateSendState(_ context.Context, ownerID string, state types.SendState) error {
	f.owners[ownerID].State = state
	f.stateWrites++
	return nil
}

type fakeHistory struct {
	rows []types.MessageHistory
}

func (f *fakeHistory) Insert(_ context.Context, h *types.MessageHistory) error {
	f.rows = append(f.rows, *h)
	return nil
}

type fakeContent struct{}

func (fakeContent) Generate(_ context.Context, oc content.OwnerContext) content.Content {
	c := content.Content{Subject: content.Subject(oc), Body: "Go get it."}
	if oc.Personality != nil {
		c.Personality = *oc.Personality
	}
	return c
}

// scriptedMailer returns results in order, repeating the last one.
type scriptedMailer struct {
	results []email.SendResult
	calls   int
	panics  bool
}

func (m *scriptedMailer) Send(_ context.Context, _, _, _, _ string) email.SendResult {
	if m.panics {
		panic("smtp exploded")
	}
	m.calls++
	if len(m.results) == 0 {
		return email.SendResult{OK: true, ProviderMessageID: "msg"}
	}
	i := min(m.calls-1, len(m.results)-1)
	return m.results[i]
}

type fakeLimiter struct {
	deny bool
}

func (l fakeLimiter) Check(context.Context, *types.Owner, *types.Schedule, time.Time) (core.RateDecision, error) {
	if l.deny {
		return core.RateDecision{Allowed: false, Reason: types.SkipReasonRateLimited, Limit: 1, Count: 1}, nil
	}
	return core.RateDecision{Allowed: true}, nil
}

type recordingFollowUp struct {
	retries []types.PendingSend
	nexts   []string
}

func (f *recordingFollowUp) ScheduleRetry(_ context.Context, p types.PendingSend) error {
	f.retries = append(f.retries, p)
	return nil
}

func (f *recordingFollowUp) ScheduleNext(_ context.Context, ownerID string) error {
	f.nexts = append(f.nexts, ownerID)
	return nil
}

type mockLogger struct{}

func (mockLogger) Info(string, ...any)      {}
func (mockLogger) Error(string, ...any)     {}
func (mockLogger) Warn(string, ...any)      {}
func (mockLogger) With(...any) types.Logger { return mockLogger{} }

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	exec     *Executor
	pending  *fakePending
	owners   *fakeOwners
	history  *fakeHistory
	mailer   *scriptedMailer
	followUp *recordingFollowUp
	clock    *fakeClock
}

func newOwner(kind types.OwnerKind) *types.Owner {
	return &types.Owner{
		ID:        "o1",
		Kind:      kind,
		Email:     "jane@example.com",
		Title:     "Run a marathon",
		GoalsText: "run a marathon",
		Timezone:  "UTC",
		Active:    true,
		Personalities: types.Personalities{
			{Type: types.PersonalityFamous, Value: "Seneca"},
			{Type: types.PersonalityTone, Value: "calm"},
		},
		Schedules: types.Schedules{
			{ID: "s1", Frequency: types.FrequencyDaily, Times: []string{"09:00"}},
		},
	}
}

func newRecord(id string) types.PendingSend {
	return types.PendingSend{
		ID:           id,
		OwnerID:      "o1",
		OwnerKind:    types.OwnerKindUser,
		ScheduleID:   "s1",
		ScheduledFor: t0,
		Status:       types.SendStatusPending,
	}
}

func newHarness(owner *types.Owner, limiter RateChecker, recs ...types.PendingSend) *harness {
	h := &harness{
		pending:  newFakePending(recs...),
		owners:   &fakeOwners{owners: map[string]*types.Owner{}},
		history:  &fakeHistory{},
		mailer:   &scriptedMailer{},
		followUp: &recordingFollowUp{},
		clock:    &fakeClock{now: t0},
	}
	if owner != nil {
		h.owners.owners[owner.ID] = owner
	}
	if limiter == nil {
		limiter = fakeLimiter{}
	}
	h.exec = NewExecutor(Deps{
		Pending:  h.pending,
		Owners:   h.owners,
		History:  h.history,
		Content:  fakeContent{},
		Mailer:   h.mailer,
		Limiter:  limiter,
		FollowUp: h.followUp,
		Clock:    h.clock,
		Logger:   mockLogger{},
	}, Config{})
	return h
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestExecute_SendsAndRecords(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), nil, newRecord("p1"))

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSent {
		t.Fatalf("outcome = %s, want sent", got)
	}

	if st := h.pending.records["p1"].Status; st != types.SendStatusSent {
		t.Errorf("status = %s", st)
	}
	if len(h.history.rows) != 1 {
		t.Fatalf("history rows = %d", len(h.history.rows))
	}
	row := h.history.rows[0]
	if row.PendingSendID != "p1" || row.Personality.Value != "Seneca" || row.ProviderMessageID != "msg" {
		t.Errorf("history row = %+v", row)
	}
	state := h.owners.owners["o1"].State
	if state.StreakCount != 1 || state.RotationIndex != 1 || state.LastSentAt == nil {
		t.Errorf("send state = %+v", state)
	}
	if len(h.followUp.nexts) != 0 {
		t.Errorf("lookahead owners must not schedule next, got %v", h.followUp.nexts)
	}
}

func TestExecute_GoalSchedulesNextAfterSend(t *testing.T) {
	rec := newRecord("p1")
	rec.OwnerKind = types.OwnerKindGoal
	h := newHarness(newOwner(types.OwnerKindGoal), nil, rec)

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSent {
		t.Fatalf("outcome = %s", got)
	}
	if len(h.followUp.nexts) != 1 || h.followUp.nexts[0] != "o1" {
		t.Errorf("ScheduleNext calls = %v", h.followUp.nexts)
	}
	if h.history.rows[0].Subject != "Your Daily Motivation: Run a marathon" {
		t.Errorf("subject = %q", h.history.rows[0].Subject)
	}
}

func TestExecute_IdempotencyGuard(t *testing.T) {
	done := newRecord("p2")
	done.Status = types.SendStatusSent
	h := newHarness(newOwner(types.OwnerKindUser), nil, done)

	if got := h.exec.Execute(context.Background(), "missing"); got != OutcomeNoop {
		t.Errorf("missing record outcome = %s", got)
	}
	if got := h.exec.Execute(context.Background(), "p2"); got != OutcomeNoop {
		t.Errorf("terminal record outcome = %s", got)
	}
	if h.mailer.calls != 0 {
		t.Errorf("mailer called %d times", h.mailer.calls)
	}
}

func TestExecute_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		owner  func() *types.Owner
		reason string
	}{
		{"owner missing", func() *types.Owner { return nil }, types.SkipReasonOwnerInactive},
		{"owner inactive", func() *types.Owner {
			o := newOwner(types.OwnerKindUser)
			o.Active = false
			return o
		}, types.SkipReasonOwnerInactive},
		{"owner unsubscribed", func() *types.Owner {
			o := newOwner(types.OwnerKindUser)
			o.Unsubscribed = true
			return o
		}, types.SkipReasonOwnerInactive},
		{"owner deleted", func() *types.Owner {
			o := newOwner(types.OwnerKindUser)
			o.DeletedAt = &t0
			return o
		}, types.SkipReasonOwnerInactive},
		{"schedule removed", func() *types.Owner {
			o := newOwner(types.OwnerKindUser)
			o.Schedules = nil
			return o
		}, types.SkipReasonScheduleRemoved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.owner(), nil, newRecord("p1"))

			if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSkipped {
				t.Fatalf("outcome = %s, want skipped", got)
			}
			rec := h.pending.records["p1"]
			if rec.Status != types.SendStatusSkipped || rec.ErrorMessage != tt.reason {
				t.Errorf("record = %s/%q, want skipped/%q", rec.Status, rec.ErrorMessage, tt.reason)
			}
			if h.mailer.calls != 0 {
				t.Error("mailer must not be called")
			}
		})
	}
}

func TestExecute_PausedLeavesRecordPending(t *testing.T) {
	owner := newOwner(types.OwnerKindUser)
	owner.Schedules[0].Paused = true
	h := newHarness(owner, nil, newRecord("p1"))

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeDeferred {
		t.Fatalf("outcome = %s", got)
	}
	if st := h.pending.records["p1"].Status; st != types.SendStatusPending {
		t.Errorf("status = %s, want pending", st)
	}
	if h.mailer.calls != 0 {
		t.Error("mailer must not be called")
	}
	if _, held := h.pending.claimedUntil["p1"]; held {
		t.Error("deferred record must release its claim")
	}
}

func TestExecute_SkipNextConsumedOnce(t *testing.T) {
	owner := newOwner(types.OwnerKindUser)
	owner.Schedules[0].SkipNext = true
	second := newRecord("p2")
	second.ScheduledFor = t0.Add(24 * time.Hour)
	h := newHarness(owner, nil, newRecord("p1"), second)

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSkipped {
		t.Fatalf("first outcome = %s, want skipped", got)
	}
	if msg := h.pending.records["p1"].ErrorMessage; msg != types.SkipReasonSkipNext {
		t.Errorf("reason = %q", msg)
	}
	if h.owners.owners["o1"].Schedules[0].SkipNext {
		t.Error("skip_next should be cleared")
	}

	h.clock.Set(second.ScheduledFor)
	if got := h.exec.Execute(context.Background(), "p2"); got != OutcomeSent {
		t.Fatalf("second outcome = %s, want sent", got)
	}
	if h.mailer.calls != 1 {
		t.Errorf("mailer calls = %d, want 1", h.mailer.calls)
	}
}

func TestExecute_SkipNextGoalSchedulesNext(t *testing.T) {
	owner := newOwner(types.OwnerKindGoal)
	owner.Schedules[0].SkipNext = true
	rec := newRecord("p1")
	rec.OwnerKind = types.OwnerKindGoal
	h := newHarness(owner, nil, rec)

	h.exec.Execute(context.Background(), "p1")

	if len(h.followUp.nexts) != 1 {
		t.Errorf("ScheduleNext calls = %d, want 1", len(h.followUp.nexts))
	}
}

func TestExecute_RateLimited(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), fakeLimiter{deny: true}, newRecord("p1"))

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSkipped {
		t.Fatalf("outcome = %s", got)
	}
	rec := h.pending.records["p1"]
	if rec.Status != types.SendStatusSkipped || rec.ErrorMessage != types.SkipReasonRateLimited {
		t.Errorf("record = %s/%q", rec.Status, rec.ErrorMessage)
	}
	if h.mailer.calls != 0 {
		t.Error("mailer must not be called")
	}
}

func TestExecute_RetryExhaustion(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), nil, newRecord("p1"))
	h.mailer.results = []email.SendResult{{OK: false, Error: "smtp 451"}}

	wantDelays := []time.Duration{5 * time.Minute, 15 * time.Minute, 45 * time.Minute}
	for i, delay := range wantDelays {
		now := h.clock.Now()
		if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeRetry {
			t.Fatalf("attempt %d outcome = %s, want retry", i+1, got)
		}
		rec := h.pending.records["p1"]
		if rec.RetryCount != i+1 {
			t.Errorf("attempt %d retry_count = %d", i+1, rec.RetryCount)
		}
		if !rec.NextAttemptAt.Equal(now.Add(delay)) {
			t.Errorf("attempt %d next_attempt_at = %v, want %v", i+1, rec.NextAttemptAt, now.Add(delay))
		}
		if len(h.followUp.retries) != i+1 || !h.followUp.retries[i].FireAt().Equal(*rec.NextAttemptAt) {
			t.Errorf("attempt %d retry registrations = %+v", i+1, h.followUp.retries)
		}
		h.clock.Set(*rec.NextAttemptAt)
	}

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeFailed {
		t.Fatalf("fourth attempt outcome = %s, want failed", got)
	}
	rec := h.pending.records["p1"]
	if rec.Status != types.SendStatusFailed || rec.RetryCount != 3 {
		t.Errorf("final record = %s retry_count=%d", rec.Status, rec.RetryCount)
	}
	if len(h.followUp.retries) != 3 {
		t.Errorf("retry registrations = %d, want 3", len(h.followUp.retries))
	}
	if h.mailer.calls != 4 {
		t.Errorf("mailer calls = %d, want 4", h.mailer.calls)
	}
	if len(h.history.rows) != 0 {
		t.Error("failed delivery must not write history")
	}
}

func TestExecute_PermanentFailureNotRetried(t *testing.T) {
	rec := newRecord("p1")
	rec.OwnerKind = types.OwnerKindGoal
	h := newHarness(newOwner(types.OwnerKindGoal), nil, rec)
	h.mailer.results = []email.SendResult{{OK: false, Error: "blocked", Permanent: true}}

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeFailed {
		t.Fatalf("outcome = %s", got)
	}
	if got := h.pending.records["p1"]; got.RetryCount != 0 || got.Status != types.SendStatusFailed {
		t.Errorf("record = %+v", got)
	}
	if len(h.followUp.retries) != 0 {
		t.Error("permanent failures must not register retries")
	}
	if len(h.followUp.nexts) != 1 {
		t.Errorf("goal should schedule next after permanent failure, got %v", h.followUp.nexts)
	}
}

func TestExecute_ConcurrentFinalizeIsNoop(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), nil, newRecord("p1"))
	// Another worker sends the record while this one is delivering.
	h.exec.Mailer = mailerFunc(func() email.SendResult {
		h.pending.records["p1"].Status = types.SendStatusSent
		return email.SendResult{OK: true}
	})

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeNoop {
		t.Fatalf("outcome = %s, want noop", got)
	}
	if h.owners.stateWrites != 0 || len(h.history.rows) != 0 {
		t.Error("losing writer must not advance state or write history")
	}
}

func TestExecute_PanicIsContained(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), nil, newRecord("p1"))
	h.mailer.panics = true

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeError {
		t.Fatalf("outcome = %s, want error", got)
	}
	if st := h.pending.records["p1"].Status; st != types.SendStatusPending {
		t.Errorf("status = %s, want pending", st)
	}
}

// TestExecute_InFlightRecordIsNotSentTwice re-fires the record while the
// first dispatch is still delivering, as a sweep inside the grace window does.
func TestExecute_InFlightRecordIsNotSentTwice(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), nil, newRecord("p1"))

	var sends int
	var second Outcome
	h.exec.Mailer = mailerFunc(func() email.SendResult {
		sends++
		if sends == 1 {
			second = h.exec.Execute(context.Background(), "p1")
		}
		return email.SendResult{OK: true, ProviderMessageID: "msg"}
	})

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSent {
		t.Fatalf("first outcome = %s, want sent", got)
	}
	if second != OutcomeNoop {
		t.Errorf("second outcome = %s, want noop", second)
	}
	if sends != 1 {
		t.Errorf("mailer calls = %d, want 1", sends)
	}
	if len(h.history.rows) != 1 {
		t.Errorf("history rows = %d, want 1", len(h.history.rows))
	}
}

func TestExecute_ExpiredClaimIsRetaken(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), nil, newRecord("p1"))
	// A dispatch that died mid-flight left a lease behind.
	h.pending.claimedUntil["p1"] = t0.Add(time.Minute)

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeNoop {
		t.Fatalf("outcome while leased = %s, want noop", got)
	}
	if h.mailer.calls != 0 {
		t.Fatal("leased record must not be mailed")
	}

	h.clock.Set(t0.Add(2 * time.Minute))
	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSent {
		t.Fatalf("outcome after expiry = %s, want sent", got)
	}
}

func TestExecute_RetryReleasesClaim(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), nil, newRecord("p1"))
	h.mailer.results = []email.SendResult{{OK: false, Error: "smtp 451"}, {OK: true}}

	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeRetry {
		t.Fatalf("outcome = %s, want retry", got)
	}
	if _, held := h.pending.claimedUntil["p1"]; held {
		t.Fatal("rescheduled record must not stay claimed")
	}
	h.clock.Set(*h.pending.records["p1"].NextAttemptAt)
	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSent {
		t.Fatalf("retry outcome = %s, want sent", got)
	}
}

// slowContent spends delay generating and records the deadline it was given.
type slowContent struct {
	delay    time.Duration
	deadline time.Time
}

func (c *slowContent) Generate(ctx context.Context, oc content.OwnerContext) content.Content {
	c.deadline, _ = ctx.Deadline()
	time.Sleep(c.delay)
	return fakeContent{}.Generate(ctx, oc)
}

type deadlineMailer struct {
	remaining time.Duration
}

func (m *deadlineMailer) Send(ctx context.Context, _, _, _, _ string) email.SendResult {
	deadline, ok := ctx.Deadline()
	if !ok {
		return email.SendResult{OK: false, Error: "no deadline"}
	}
	m.remaining = time.Until(deadline)
	if m.remaining < 100*time.Millisecond {
		return email.SendResult{OK: false, Error: "context deadline exceeded"}
	}
	return email.SendResult{OK: true, ProviderMessageID: "msg"}
}

func TestExecute_SlowContentKeepsDeliveryBudget(t *testing.T) {
	h := newHarness(newOwner(types.OwnerKindUser), nil, newRecord("p1"))
	gen := &slowContent{delay: 150 * time.Millisecond}
	mailer := &deadlineMailer{}
	h.exec.Content = gen
	h.exec.Mailer = mailer
	h.exec.cfg.ContentTimeout = time.Second
	h.exec.cfg.DeliveryTimeout = 250 * time.Millisecond

	started := time.Now()
	if got := h.exec.Execute(context.Background(), "p1"); got != OutcomeSent {
		t.Fatalf("outcome = %s, want sent", got)
	}
	if mailer.remaining < 200*time.Millisecond {
		t.Errorf("mailer saw %v of its budget, want close to 250ms", mailer.remaining)
	}
	if gen.deadline.IsZero() || gen.deadline.After(started.Add(time.Second+50*time.Millisecond)) {
		t.Errorf("content deadline = %v, want bounded by ContentTimeout", gen.deadline)
	}
}

// TestExecute_DailyScenario walks three days of a 09:00 UTC daily schedule.
func TestExecute_DailyScenario(t *testing.T) {
	var recs []types.PendingSend
	for d := 0; d < 3; d++ {
		r := newRecord("day" + string(rune('0'+d)))
		r.ScheduledFor = t0.AddDate(0, 0, d)
		recs = append(recs, r)
	}
	h := newHarness(newOwner(types.OwnerKindUser), nil, recs...)

	for d, r := range recs {
		h.clock.Set(r.ScheduledFor)
		if got := h.exec.Execute(context.Background(), r.ID); got != OutcomeSent {
			t.Fatalf("day %d outcome = %s", d, got)
		}
	}

	state := h.owners.owners["o1"].State
	if state.StreakCount != 3 {
		t.Errorf("streak = %d, want 3", state.StreakCount)
	}
	if state.RotationIndex != 1 {
		t.Errorf("rotation = %d, want 1", state.RotationIndex)
	}
	wantPersonalities := []string{"Seneca", "calm", "Seneca"}
	for i, row := range h.history.rows {
		if row.Personality.Value != wantPersonalities[i] {
			t.Errorf("day %d personality = %q, want %q", i, row.Personality.Value, wantPersonalities[i])
		}
	}
}

type mailerFunc func() email.SendResult

func (f mailerFunc) Send(context.Context, string, string, string, string) email.SendResult {
	return f()
}
