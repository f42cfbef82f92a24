package service

import (
	"context"
	"log/slog"
	"time"

	"remind/internal/condition"
	"remind/internal/domain"
	"remind/internal/observability"
)

type ScheduleStore interface {
	InsertSchedules(ctx context.Context, schedules []domain.ReminderSchedule) error
	ListSchedules(ctx context.Context) ([]domain.ReminderSchedule, error)
}

// Generator turns invoices × rules into concrete reminder schedules.
// Settings are fixed at construction. Generation is idempotent against
// earlier runs: a pair with a pending schedule is skipped, terminal
// schedules count toward the rule's reminder cap, and follow-ups for
// repeating rules fire RepeatInterval days after the previous attempt.
type Generator struct {
	Store    ScheduleStore
	Settings domain.ReminderSettings
	IDGen    func() string
	Now      func() time.Time
}

type schedulePair struct {
	invoiceID string
	ruleID    string
}

func (g *Generator) Generate(ctx context.Context, invoices []domain.Invoice, rules []domain.ReminderRule) ([]domain.ReminderSchedule, error) {
	if !g.Settings.Enabled {
		return nil, nil
	}
	now := g.Now()

	existing, err := g.Store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	pending := make(map[schedulePair]bool)
	attempts := make(map[schedulePair]int)
	lastFired := make(map[schedulePair]time.Time)
	perInvoice := make(map[string]int)
	for _, sc := range existing {
		k := schedulePair{sc.InvoiceID, sc.RuleID}
		if sc.Status == domain.ScheduleScheduled {
			pending[k] = true
		}
		attempts[k]++
		if sc.ScheduledAt.After(lastFired[k]) {
			lastFired[k] = sc.ScheduledAt
		}
		perInvoice[sc.InvoiceID]++
	}

	var schedules []domain.ReminderSchedule
	for _, inv := range invoices {
		if inv.IsPaid() {
			continue
		}
		for _, rule := range rules {
			if !rule.IsEnabled {
				continue
			}
			if !condition.Evaluate(rule.Conditions, inv, now) {
				continue
			}

			k := schedulePair{inv.ID, rule.ID}
			if pending[k] {
				continue
			}
			limit := 1
			if rule.RepeatInterval > 0 {
				limit = rule.MaxReminders
			}
			if attempts[k] >= limit {
				continue
			}
			if g.Settings.MaxPerInvoice > 0 && perInvoice[inv.ID] >= g.Settings.MaxPerInvoice {
				continue
			}

			var fireAt time.Time
			switch {
			case attempts[k] > 0:
				// Follow-up for a repeating rule, anchored to the previous attempt.
				fireAt = lastFired[k].AddDate(0, 0, rule.RepeatInterval)
			case rule.TriggerType == domain.TriggerAfter:
				fireAt = inv.DueDate.AddDate(0, 0, rule.TriggerDays)
			default:
				fireAt = inv.DueDate.AddDate(0, 0, -rule.TriggerDays)
				// A pre-due reminder whose moment has already passed is pointless;
				// post-due reminders stay and get picked up on the next poll.
				if fireAt.Before(now) {
					continue
				}
			}
			fireAt = g.Settings.BusinessHours.Adjust(fireAt)

			schedules = append(schedules, domain.ReminderSchedule{
				ID:          g.IDGen(),
				InvoiceID:   inv.ID,
				RuleID:      rule.ID,
				ScheduledAt: fireAt,
				Status:      domain.ScheduleScheduled,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			perInvoice[inv.ID]++
		}
	}

	if len(schedules) == 0 {
		return nil, nil
	}
	if err := g.Store.InsertSchedules(ctx, schedules); err != nil {
		return nil, err
	}
	observability.SchedulesGenerated.Add(float64(len(schedules)))
	slog.Info("schedules generated", "count", len(schedules), "invoices", len(invoices), "rules", len(rules))
	return schedules, nil
}
