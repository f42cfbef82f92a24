package worker

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"remind/internal/domain"
	"remind/internal/store/memory"
	"remind/internal/template"
)

type fakeSender struct {
	failures int // fail the first n deliveries
	calls    int
}

func (f *fakeSender) Deliver(ctx context.Context, rcpt domain.Recipient, subject, body string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("smtp 451 try again later")
	}
	return nil
}

type fixture struct {
	store  *memory.Store
	sender *fakeSender
	proc   *Processor
	now    time.Time
}

func newFixture(t *testing.T, failures int) *fixture {
	t.Helper()
	st := memory.New()
	snd := &fakeSender{failures: failures}
	f := &fixture{
		store:  st,
		sender: snd,
		now:    time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC),
	}
	n := 0
	f.proc = &Processor{
		Store:    st,
		Sender:   snd,
		Renderer: template.New(),
		Settings: domain.DefaultSettings(),
		IDGen: func() string {
			n++
			return "log-" + strconv.Itoa(n)
		},
		Now: func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) seed(t *testing.T, ruleTemplate domain.RuleTemplate) domain.ReminderSchedule {
	t.Helper()
	ctx := context.Background()
	f.store.PutClient(domain.Client{ID: "cl-1", Name: "Acme GmbH", Email: "billing@acme.test"})
	f.store.PutInvoice(domain.Invoice{
		ID: "inv-1", Number: "2025-042", ClientID: "cl-1", Status: "issued",
		Total: 900, Currency: "EUR", DueDate: f.now.AddDate(0, 0, -5),
	})
	rule := domain.ReminderRule{
		ID: "rule-1", Name: "overdue", ReminderType: domain.TypeOverdue,
		TriggerType: domain.TriggerAfter, TriggerDays: 5,
		Template: ruleTemplate, IsEnabled: true,
	}
	if err := f.store.InsertRule(ctx, rule); err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	sched := domain.ReminderSchedule{
		ID: "sch-1", InvoiceID: "inv-1", RuleID: "rule-1",
		ScheduledAt: f.now.Add(-time.Minute), Status: domain.ScheduleScheduled,
		CreatedAt: f.now, UpdatedAt: f.now,
	}
	if err := f.store.InsertSchedules(ctx, []domain.ReminderSchedule{sched}); err != nil {
		t.Fatalf("insert schedule: %v", err)
	}
	return sched
}

func okTemplate() domain.RuleTemplate {
	return domain.RuleTemplate{
		Subject: "Invoice {{invoice.number}} overdue",
		Body:    "Dear {{client.name}}, {{invoice.amount | currency}} {{invoice.currency}} is open.",
	}
}

func (f *fixture) schedule(t *testing.T, id string) domain.ReminderSchedule {
	t.Helper()
	all, err := f.store.ListSchedules(context.Background())
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	for _, sc := range all {
		if sc.ID == id {
			return sc
		}
	}
	t.Fatalf("schedule %s not found", id)
	return domain.ReminderSchedule{}
}

func TestProcessDueSendsAndLogs(t *testing.T) {
	f := newFixture(t, 0)
	f.seed(t, okTemplate())

	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("want 1 log, got %d", len(logs))
	}
	l := logs[0]
	if l.Status != domain.LogSent {
		t.Fatalf("log status: want sent, got %s", l.Status)
	}
	if l.Subject != "Invoice 2025-042 overdue" {
		t.Fatalf("rendered subject: got %q", l.Subject)
	}
	if l.Recipient.Email != "billing@acme.test" || l.Recipient.Type != "client" {
		t.Fatalf("recipient: %+v", l.Recipient)
	}
	if l.Metadata.OverdueDays != 5 || l.Metadata.Currency != "EUR" {
		t.Fatalf("metadata: %+v", l.Metadata)
	}

	sc := f.schedule(t, "sch-1")
	if sc.Status != domain.ScheduleSent || sc.AttemptCount != 1 || sc.LastAttempt == nil {
		t.Fatalf("schedule after send: %+v", sc)
	}
}

func TestProcessDueRetriesWithBackoff(t *testing.T) {
	f := newFixture(t, 1)
	f.seed(t, okTemplate())

	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != domain.LogFailed {
		t.Fatalf("failed attempt must still log: %+v", logs)
	}

	sc := f.schedule(t, "sch-1")
	if sc.Status != domain.ScheduleScheduled || sc.AttemptCount != 1 {
		t.Fatalf("after first failure: %+v", sc)
	}
	if sc.NextAttempt == nil || !sc.NextAttempt.Equal(f.now.Add(time.Hour)) {
		t.Fatalf("nextAttempt must be +1h, got %v", sc.NextAttempt)
	}

	// Not due again until the backoff elapses.
	f.now = f.now.Add(30 * time.Minute)
	logs, err = f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("schedule inside backoff must not be reprocessed")
	}

	// After the backoff the retry succeeds.
	f.now = f.now.Add(31 * time.Minute)
	logs, err = f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != domain.LogSent {
		t.Fatalf("retry should succeed: %+v", logs)
	}
	sc = f.schedule(t, "sch-1")
	if sc.Status != domain.ScheduleSent || sc.AttemptCount != 2 {
		t.Fatalf("after successful retry: %+v", sc)
	}
}

func TestProcessDueThreeFailuresTerminal(t *testing.T) {
	f := newFixture(t, 10)
	f.seed(t, okTemplate())

	for i := 0; i < 3; i++ {
		if _, err := f.proc.ProcessDue(context.Background()); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
		f.now = f.now.Add(2 * time.Hour)
	}

	sc := f.schedule(t, "sch-1")
	if sc.Status != domain.ScheduleFailed || sc.AttemptCount != 3 {
		t.Fatalf("want terminal failed with 3 attempts, got %+v", sc)
	}
	if sc.ErrorMessage == "" {
		t.Fatalf("terminal failure must record an error message")
	}

	// Terminal schedules are never picked up again.
	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 0 || f.sender.calls != 3 {
		t.Fatalf("failed schedule must not be reprocessed: logs=%d calls=%d", len(logs), f.sender.calls)
	}
}

func TestProcessDueRenderFailureSkipsLogButBooksAttempt(t *testing.T) {
	f := newFixture(t, 0)
	f.seed(t, domain.RuleTemplate{Subject: "{{invoice.number", Body: "x"})

	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("render failure produces no log, got %+v", logs)
	}
	if f.sender.calls != 0 {
		t.Fatalf("render failure must not reach the sender")
	}
	sc := f.schedule(t, "sch-1")
	if sc.Status != domain.ScheduleScheduled || sc.AttemptCount != 1 || sc.NextAttempt == nil {
		t.Fatalf("render failure books a retry: %+v", sc)
	}
}

func TestProcessDueContinuesPastBadSchedule(t *testing.T) {
	f := newFixture(t, 0)
	f.seed(t, okTemplate())

	// Second schedule pointing at a deleted rule sorts first and must not
	// halt the batch.
	bad := domain.ReminderSchedule{
		ID: "sch-0", InvoiceID: "inv-1", RuleID: "rule-gone",
		ScheduledAt: f.now.Add(-time.Hour), Status: domain.ScheduleScheduled,
	}
	if err := f.store.InsertSchedules(context.Background(), []domain.ReminderSchedule{bad}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].ScheduleID != "sch-1" {
		t.Fatalf("good schedule must still be dispatched: %+v", logs)
	}
	sc := f.schedule(t, "sch-0")
	if sc.AttemptCount != 1 || sc.Status != domain.ScheduleScheduled {
		t.Fatalf("bad schedule books a retry: %+v", sc)
	}
}

func TestProcessDueBreakerOpenAbortsBatch(t *testing.T) {
	f := newFixture(t, 10)
	first := f.seed(t, okTemplate())
	second := domain.ReminderSchedule{
		ID: "sch-2", InvoiceID: "inv-1", RuleID: "rule-1",
		ScheduledAt: first.ScheduledAt.Add(time.Second), Status: domain.ScheduleScheduled,
	}
	if err := f.store.InsertSchedules(context.Background(), []domain.ReminderSchedule{second}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	f.proc.Breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "test",
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	// First schedule fails and is booked; breaker now open, second untouched.
	if len(logs) != 1 || logs[0].Status != domain.LogFailed {
		t.Fatalf("first schedule should fail and log: %+v", logs)
	}
	sc := f.schedule(t, "sch-2")
	if sc.AttemptCount != 0 || sc.Status != domain.ScheduleScheduled {
		t.Fatalf("schedule behind open breaker must stay untouched: %+v", sc)
	}
}

func TestProcessDueDailyCap(t *testing.T) {
	f := newFixture(t, 0)
	first := f.seed(t, okTemplate())
	second := domain.ReminderSchedule{
		ID: "sch-2", InvoiceID: "inv-1", RuleID: "rule-1",
		ScheduledAt: first.ScheduledAt.Add(time.Second), Status: domain.ScheduleScheduled,
	}
	if err := f.store.InsertSchedules(context.Background(), []domain.ReminderSchedule{second}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	f.proc.Settings.RateLimit.MaxPerDay = 1

	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("daily cap of 1 must allow exactly one send, got %d", len(logs))
	}
	sc := f.schedule(t, "sch-2")
	if sc.Status != domain.ScheduleScheduled || sc.AttemptCount != 0 {
		t.Fatalf("capped schedule must stay untouched: %+v", sc)
	}

	// A new local day refills the budget.
	f.now = f.now.AddDate(0, 0, 1)
	logs, err = f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].ScheduleID != "sch-2" {
		t.Fatalf("budget must reset at midnight: %+v", logs)
	}
}

func TestProcessDueDailyCapCountsEarlierSends(t *testing.T) {
	f := newFixture(t, 0)
	f.seed(t, okTemplate())
	f.proc.Settings.RateLimit.MaxPerDay = 1

	// A reminder already logged earlier today consumes the whole budget.
	err := f.store.InsertLog(context.Background(), domain.ReminderLog{
		ID: "log-prior", InvoiceID: "inv-1", RuleID: "rule-1",
		Status: domain.LogSent, SentAt: f.now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("insert log: %v", err)
	}

	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 0 || f.sender.calls != 0 {
		t.Fatalf("exhausted daily budget must not dispatch: logs=%d calls=%d", len(logs), f.sender.calls)
	}
}

func TestProcessDueDisabledEngine(t *testing.T) {
	f := newFixture(t, 0)
	f.seed(t, okTemplate())
	f.proc.Settings.Enabled = false

	logs, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 0 || f.sender.calls != 0 {
		t.Fatalf("disabled engine must not dispatch")
	}
}
