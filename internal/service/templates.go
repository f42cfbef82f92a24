package service

import (
	"context"
	"fmt"
	"time"

	"remind/internal/domain"
)

type TemplateStore interface {
	ListTemplates(ctx context.Context) ([]domain.ReminderTemplate, error)
	GetTemplate(ctx context.Context, id string) (domain.ReminderTemplate, bool, error)
	InsertTemplate(ctx context.Context, t domain.ReminderTemplate) error
	UpdateTemplate(ctx context.Context, t domain.ReminderTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
}

type TemplateService struct {
	Store TemplateStore
	IDGen func() string
	Now   func() time.Time
}

// GetTemplates seeds the default library on first call, mirroring
// RuleService.GetRules.
func (s *TemplateService) GetTemplates(ctx context.Context) ([]domain.ReminderTemplate, error) {
	templates, err := s.Store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if len(templates) > 0 {
		return templates, nil
	}

	now := s.Now()
	for _, t := range DefaultTemplates() {
		t.ID = s.IDGen()
		t.CreatedAt = now
		t.UpdatedAt = now
		if err := s.Store.InsertTemplate(ctx, t); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func (s *TemplateService) CreateTemplate(ctx context.Context, t domain.ReminderTemplate) (domain.ReminderTemplate, error) {
	t.ID = s.IDGen()
	now := s.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := t.Validate(); err != nil {
		return domain.ReminderTemplate{}, err
	}
	if err := s.Store.InsertTemplate(ctx, t); err != nil {
		return domain.ReminderTemplate{}, err
	}
	return t, nil
}

type TemplatePatch struct {
	Name         *string              `json:"name,omitempty"`
	ReminderType *domain.ReminderType `json:"reminderType,omitempty"`
	Subject      *string              `json:"subject,omitempty"`
	Body         *string              `json:"body,omitempty"`
}

func (s *TemplateService) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (domain.ReminderTemplate, error) {
	t, found, err := s.Store.GetTemplate(ctx, id)
	if err != nil {
		return domain.ReminderTemplate{}, err
	}
	if !found {
		return domain.ReminderTemplate{}, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}

	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.ReminderType != nil {
		t.ReminderType = *patch.ReminderType
	}
	if patch.Subject != nil {
		t.Subject = *patch.Subject
	}
	if patch.Body != nil {
		t.Body = *patch.Body
	}
	t.UpdatedAt = s.Now()

	if err := t.Validate(); err != nil {
		return domain.ReminderTemplate{}, err
	}
	if err := s.Store.UpdateTemplate(ctx, t); err != nil {
		return domain.ReminderTemplate{}, err
	}
	return t, nil
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	return s.Store.DeleteTemplate(ctx, id)
}
