// Package worker dispatches due reminder schedules: render, deliver, log,
// and apply the retry state machine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"remind/internal/domain"
	"remind/internal/observability"
	"remind/internal/store"
	"remind/internal/template"
)

const (
	maxAttempts  = 3
	retryBackoff = time.Hour
)

// errSenderUnavailable aborts the remaining batch when the breaker is open;
// untouched schedules are still due on the next poll.
var errSenderUnavailable = errors.New("mail sender unavailable")

type Store interface {
	ListDueSchedules(ctx context.Context, now time.Time) ([]domain.ReminderSchedule, error)
	MarkSchedule(ctx context.Context, m store.ScheduleMark) error
	InsertLog(ctx context.Context, l domain.ReminderLog) error
	CountLogsSince(ctx context.Context, since time.Time) (int, error)
	GetRule(ctx context.Context, id string) (domain.ReminderRule, bool, error)
	GetInvoice(ctx context.Context, id string) (domain.Invoice, bool, error)
	GetClient(ctx context.Context, id string) (domain.Client, bool, error)
}

type Sender interface {
	Deliver(ctx context.Context, rcpt domain.Recipient, subject, body string) error
}

type Renderer interface {
	Render(tmpl string, ctx template.Context) (string, error)
}

// Processor runs one dispatch pass over all currently-due schedules. It
// assumes at most one concurrent poller per store; serialization across
// processes is the caller's job.
type Processor struct {
	Store    Store
	Sender   Sender
	Renderer Renderer
	Settings domain.ReminderSettings
	Limiter  *rate.Limiter
	Breaker  *gobreaker.CircuitBreaker
	IDGen    func() string
	Now      func() time.Time
}

// ProcessDue processes due schedules oldest first and returns the logs
// written in this pass. One bad schedule never halts the batch; a tripped
// breaker or an exhausted daily send budget does.
func (p *Processor) ProcessDue(ctx context.Context) ([]domain.ReminderLog, error) {
	if !p.Settings.Enabled {
		return nil, nil
	}
	now := p.Now()

	due, err := p.Store.ListDueSchedules(ctx, now)
	if err != nil {
		return nil, err
	}

	// Daily send budget: logged attempts since local midnight count against
	// RateLimit.MaxPerDay. Schedules beyond it stay due for tomorrow.
	budget := -1
	if limit := p.Settings.RateLimit.MaxPerDay; limit > 0 {
		loc := p.Settings.BusinessHours.Location()
		local := now.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		sentToday, err := p.Store.CountLogsSince(ctx, midnight)
		if err != nil {
			return nil, err
		}
		budget = limit - sentToday
	}

	var logs []domain.ReminderLog
	for _, sched := range due {
		if budget == 0 {
			observability.Dispatch.WithLabelValues("daily_cap").Inc()
			slog.Info("daily send cap reached", "processed", len(logs), "due", len(due))
			break
		}
		l, err := p.processOne(ctx, sched, now)
		if errors.Is(err, errSenderUnavailable) {
			slog.Warn("dispatch pass aborted, sender unavailable", "processed", len(logs), "due", len(due))
			break
		}
		if err != nil {
			slog.Error("schedule processing failed", "schedule_id", sched.ID, "err", err)
			continue
		}
		if l != nil {
			logs = append(logs, *l)
			if budget > 0 {
				budget--
			}
		}
	}
	return logs, nil
}

func (p *Processor) processOne(ctx context.Context, sched domain.ReminderSchedule, now time.Time) (*domain.ReminderLog, error) {
	fail := func(msg string) (*domain.ReminderLog, error) {
		if err := p.recordFailure(ctx, sched, now, msg); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("schedule %s: %s", sched.ID, msg)
	}

	rule, found, err := p.Store.GetRule(ctx, sched.RuleID)
	if err != nil {
		return nil, err
	}
	if !found {
		return fail("rule not found: " + sched.RuleID)
	}
	inv, found, err := p.Store.GetInvoice(ctx, sched.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !found {
		return fail("invoice not found: " + sched.InvoiceID)
	}
	client, found, err := p.Store.GetClient(ctx, inv.ClientID)
	if err != nil {
		return nil, err
	}
	if !found {
		return fail("client not found: " + inv.ClientID)
	}

	tctx := template.NewContext(inv, client, p.Settings.Sender, now)
	subject, err := p.Renderer.Render(rule.Template.Subject, tctx)
	if err != nil {
		observability.Dispatch.WithLabelValues("render_error").Inc()
		return fail("render subject: " + err.Error())
	}
	body, err := p.Renderer.Render(rule.Template.Body, tctx)
	if err != nil {
		observability.Dispatch.WithLabelValues("render_error").Inc()
		return fail("render body: " + err.Error())
	}

	if p.Limiter != nil {
		waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
		err := p.Limiter.Wait(waitCtx)
		cancelWait()
		if err != nil {
			// No token in time: leave the schedule untouched for the next poll.
			observability.Dispatch.WithLabelValues("rate_limited").Inc()
			return nil, nil
		}
	}

	rcpt := domain.Recipient{Email: client.Email, Name: client.Name, Type: "client"}

	start := time.Now()
	sendErr := p.deliver(ctx, rcpt, subject, body)
	if errors.Is(sendErr, gobreaker.ErrOpenState) || errors.Is(sendErr, gobreaker.ErrTooManyRequests) {
		observability.Dispatch.WithLabelValues("cb_open").Inc()
		return nil, errSenderUnavailable
	}
	observability.DeliveryLatency.Observe(time.Since(start).Seconds())

	status := domain.LogSent
	if sendErr != nil {
		status = domain.LogFailed
	}
	l := domain.ReminderLog{
		ID:           p.IDGen(),
		InvoiceID:    inv.ID,
		RuleID:       rule.ID,
		ScheduleID:   sched.ID,
		ReminderType: rule.ReminderType,
		Status:       status,
		SentAt:       now,
		Recipient:    rcpt,
		Subject:      subject,
		Body:         body,
		Metadata: domain.LogMetadata{
			InvoiceNumber: inv.Number,
			ClientName:    client.Name,
			Amount:        inv.Total,
			Currency:      inv.Currency,
			DueDate:       inv.DueDate,
			OverdueDays:   domain.OverdueDays(inv, now),
			UserID:        inv.UserID,
			Channel:       "email",
		},
	}
	if err := p.Store.InsertLog(ctx, l); err != nil {
		return nil, err
	}

	if sendErr != nil {
		observability.Dispatch.WithLabelValues("failed").Inc()
		if err := p.recordFailure(ctx, sched, now, sendErr.Error()); err != nil {
			return nil, err
		}
		return &l, nil
	}

	observability.Dispatch.WithLabelValues("sent").Inc()
	if err := p.Store.MarkSchedule(ctx, store.ScheduleMark{
		ID:           sched.ID,
		Status:       domain.ScheduleSent,
		AttemptCount: sched.AttemptCount + 1,
		LastAttempt:  &now,
		Now:          now,
	}); err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *Processor) deliver(ctx context.Context, rcpt domain.Recipient, subject, body string) error {
	call := func() (any, error) {
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return nil, p.Sender.Deliver(sendCtx, rcpt, subject, body)
	}
	if p.Breaker == nil {
		_, err := call()
		return err
	}
	_, err := p.Breaker.Execute(call)
	return err
}

// recordFailure applies the retry bookkeeping: bounded attempts with a fixed
// one-hour backoff, then terminally failed. It returns only storage errors.
func (p *Processor) recordFailure(ctx context.Context, sched domain.ReminderSchedule, now time.Time, msg string) error {
	attempts := sched.AttemptCount + 1
	m := store.ScheduleMark{
		ID:           sched.ID,
		AttemptCount: attempts,
		LastAttempt:  &now,
		ErrorMessage: msg,
		Now:          now,
	}
	if attempts < maxAttempts {
		next := now.Add(retryBackoff)
		m.Status = domain.ScheduleScheduled
		m.NextAttempt = &next
	} else {
		m.Status = domain.ScheduleFailed
	}
	if err := p.Store.MarkSchedule(ctx, m); err != nil {
		return err
	}
	slog.Warn("reminder attempt failed",
		"schedule_id", sched.ID,
		"attempt", attempts,
		"terminal", attempts >= maxAttempts,
		"reason", msg,
	)
	return nil
}
