// Package memory is a mutex-guarded in-memory store. It backs tests and
// single-process deployments where the surrounding application supplies
// invoices and clients directly.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"remind/internal/domain"
	"remind/internal/store"
	"time"
)

type Store struct {
	mu        sync.Mutex
	rules     map[string]domain.ReminderRule
	templates map[string]domain.ReminderTemplate
	schedules map[string]domain.ReminderSchedule
	logs      []domain.ReminderLog
	settings  *domain.ReminderSettings
	invoices  map[string]domain.Invoice
	clients   map[string]domain.Client
}

func New() *Store {
	return &Store{
		rules:     map[string]domain.ReminderRule{},
		templates: map[string]domain.ReminderTemplate{},
		schedules: map[string]domain.ReminderSchedule{},
		invoices:  map[string]domain.Invoice{},
		clients:   map[string]domain.Client{},
	}
}

func (s *Store) ListRules(ctx context.Context) ([]domain.ReminderRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReminderRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetRule(ctx context.Context, id string) (domain.ReminderRule, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	return r, ok, nil
}

func (s *Store) InsertRule(ctx context.Context, r domain.ReminderRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) UpdateRule(ctx context.Context, r domain.ReminderRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return fmt.Errorf("rule %s: %w", r.ID, domain.ErrNotFound)
	}
	s.rules[r.ID] = r
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]domain.ReminderTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReminderTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (domain.ReminderTemplate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	return t, ok, nil
}

func (s *Store) InsertTemplate(ctx context.Context, t domain.ReminderTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
	return nil
}

func (s *Store) UpdateTemplate(ctx context.Context, t domain.ReminderTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; !ok {
		return fmt.Errorf("template %s: %w", t.ID, domain.ErrNotFound)
	}
	s.templates[t.ID] = t
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.templates, id)
	return nil
}

func (s *Store) InsertSchedules(ctx context.Context, schedules []domain.ReminderSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range schedules {
		s.schedules[sc.ID] = sc
	}
	return nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]domain.ReminderSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReminderSchedule, 0, len(s.schedules))
	for _, sc := range s.schedules {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

// ListDueSchedules returns schedules ready for dispatch now, oldest first.
func (s *Store) ListDueSchedules(ctx context.Context, now time.Time) ([]domain.ReminderSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ReminderSchedule
	for _, sc := range s.schedules {
		if sc.Status != domain.ScheduleScheduled || sc.ScheduledAt.After(now) {
			continue
		}
		if sc.NextAttempt != nil && sc.NextAttempt.After(now) {
			continue
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *Store) MarkSchedule(ctx context.Context, m store.ScheduleMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[m.ID]
	if !ok {
		return fmt.Errorf("schedule %s: %w", m.ID, domain.ErrNotFound)
	}
	sc.Status = m.Status
	sc.AttemptCount = m.AttemptCount
	sc.LastAttempt = m.LastAttempt
	sc.NextAttempt = m.NextAttempt
	sc.ErrorMessage = m.ErrorMessage
	sc.UpdatedAt = m.Now
	s.schedules[m.ID] = sc
	return nil
}

func (s *Store) InsertLog(ctx context.Context, l domain.ReminderLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
	return nil
}

// ListLogs returns logs newest first, optionally filtered.
func (s *Store) ListLogs(ctx context.Context, f store.LogFilter) ([]domain.ReminderLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ReminderLog
	for _, l := range s.logs {
		if f.InvoiceID != "" && l.InvoiceID != f.InvoiceID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountLogsSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.logs {
		if !l.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) LoadSettings(ctx context.Context) (domain.ReminderSettings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return domain.ReminderSettings{}, false, nil
	}
	return *s.settings, true, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.ReminderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

func (s *Store) ListOpenInvoices(ctx context.Context) ([]domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range s.invoices {
		switch inv.Status {
		case "draft", "paid", "cancelled":
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (domain.Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	return inv, ok, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (domain.Client, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	return c, ok, nil
}

// PutInvoice and PutClient seed collaborator records, mainly for tests.

func (s *Store) PutInvoice(inv domain.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = inv
}

func (s *Store) PutClient(c domain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}
