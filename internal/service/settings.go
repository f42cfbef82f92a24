package service

import (
	"context"

	"remind/internal/domain"
)

type SettingsStore interface {
	LoadSettings(ctx context.Context) (domain.ReminderSettings, bool, error)
	SaveSettings(ctx context.Context, settings domain.ReminderSettings) error
}

type SettingsService struct {
	Store SettingsStore
}

// Get returns persisted settings, falling back to defaults on an empty store.
func (s *SettingsService) Get(ctx context.Context) (domain.ReminderSettings, error) {
	settings, found, err := s.Store.LoadSettings(ctx)
	if err != nil {
		return domain.ReminderSettings{}, err
	}
	if !found {
		return domain.DefaultSettings(), nil
	}
	return settings, nil
}

// Update replaces settings wholesale after validation. Running workers keep
// their constructed snapshot; new constructions pick the update up.
func (s *SettingsService) Update(ctx context.Context, settings domain.ReminderSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.Store.SaveSettings(ctx, settings)
}
