// Package service holds the engine's business logic: rule and template
// management, schedule generation and reporting.
package service

import (
	"context"
	"fmt"
	"time"

	"remind/internal/domain"
	"remind/internal/template"
)

type RuleStore interface {
	ListRules(ctx context.Context) ([]domain.ReminderRule, error)
	GetRule(ctx context.Context, id string) (domain.ReminderRule, bool, error)
	InsertRule(ctx context.Context, r domain.ReminderRule) error
	UpdateRule(ctx context.Context, r domain.ReminderRule) error
	DeleteRule(ctx context.Context, id string) error
}

type Renderer interface {
	Render(tmpl string, ctx template.Context) (string, error)
}

type RuleService struct {
	Store    RuleStore
	Renderer Renderer
	IDGen    func() string
	Now      func() time.Time
}

// GetRules returns all persisted rules, seeding the default set on an empty
// store so a fresh installation has sensible reminders from the first call.
func (s *RuleService) GetRules(ctx context.Context) ([]domain.ReminderRule, error) {
	rules, err := s.Store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		return rules, nil
	}

	now := s.Now()
	for _, r := range DefaultRules() {
		r.ID = s.IDGen()
		r.CreatedAt = now
		r.UpdatedAt = now
		if err := s.Store.InsertRule(ctx, r); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (s *RuleService) GetRule(ctx context.Context, id string) (domain.ReminderRule, error) {
	r, found, err := s.Store.GetRule(ctx, id)
	if err != nil {
		return domain.ReminderRule{}, err
	}
	if !found {
		return domain.ReminderRule{}, fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (s *RuleService) CreateRule(ctx context.Context, r domain.ReminderRule) (domain.ReminderRule, error) {
	r.ID = s.IDGen()
	now := s.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := r.Validate(); err != nil {
		return domain.ReminderRule{}, err
	}
	if err := s.Store.InsertRule(ctx, r); err != nil {
		return domain.ReminderRule{}, err
	}
	return r, nil
}

// RulePatch is a partial rule update; nil fields keep their current value.
type RulePatch struct {
	Name           *string              `json:"name,omitempty"`
	Description    *string              `json:"description,omitempty"`
	ReminderType   *domain.ReminderType `json:"reminderType,omitempty"`
	TriggerType    *domain.TriggerType  `json:"triggerType,omitempty"`
	TriggerDays    *int                 `json:"triggerDays,omitempty"`
	RepeatInterval *int                 `json:"repeatInterval,omitempty"`
	MaxReminders   *int                 `json:"maxReminders,omitempty"`
	Conditions     *[]domain.Condition  `json:"conditions,omitempty"`
	Template       *domain.RuleTemplate `json:"template,omitempty"`
	IsEnabled      *bool                `json:"isEnabled,omitempty"`
}

func (s *RuleService) UpdateRule(ctx context.Context, id string, patch RulePatch) (domain.ReminderRule, error) {
	r, err := s.GetRule(ctx, id)
	if err != nil {
		return domain.ReminderRule{}, err
	}

	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	if patch.ReminderType != nil {
		r.ReminderType = *patch.ReminderType
	}
	if patch.TriggerType != nil {
		r.TriggerType = *patch.TriggerType
	}
	if patch.TriggerDays != nil {
		r.TriggerDays = *patch.TriggerDays
	}
	if patch.RepeatInterval != nil {
		r.RepeatInterval = *patch.RepeatInterval
	}
	if patch.MaxReminders != nil {
		r.MaxReminders = *patch.MaxReminders
	}
	if patch.Conditions != nil {
		r.Conditions = *patch.Conditions
	}
	if patch.Template != nil {
		r.Template = *patch.Template
	}
	if patch.IsEnabled != nil {
		r.IsEnabled = *patch.IsEnabled
	}
	r.UpdatedAt = s.Now()

	if err := r.Validate(); err != nil {
		return domain.ReminderRule{}, err
	}
	if err := s.Store.UpdateRule(ctx, r); err != nil {
		return domain.ReminderRule{}, err
	}
	return r, nil
}

// DeleteRule removes a rule. Deleting an unknown id is a no-op.
func (s *RuleService) DeleteRule(ctx context.Context, id string) error {
	return s.Store.DeleteRule(ctx, id)
}

// TestRule renders a rule's template against a sample invoice so users can
// preview content before enabling the rule.
func (s *RuleService) TestRule(ctx context.Context, id string) (subject, body string, err error) {
	r, err := s.GetRule(ctx, id)
	if err != nil {
		return "", "", err
	}

	now := s.Now()
	inv := domain.Invoice{
		ID:       "sample",
		Number:   "2025-001",
		Status:   "issued",
		Total:    1500,
		Currency: "EUR",
		IssuedAt: now.AddDate(0, 0, -14),
		DueDate:  now.AddDate(0, 0, -7),
	}
	client := domain.Client{Name: "Sample Client", Email: "client@example.com"}
	tctx := template.NewContext(inv, client, domain.SenderIdentity{FromName: "Preview"}, now)

	subject, err = s.Renderer.Render(r.Template.Subject, tctx)
	if err != nil {
		return "", "", err
	}
	body, err = s.Renderer.Render(r.Template.Body, tctx)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}
