package service

import (
	"context"
	"time"

	"remind/internal/domain"
	"remind/internal/store"
)

type StatsStore interface {
	ListLogs(ctx context.Context, f store.LogFilter) ([]domain.ReminderLog, error)
	ListSchedules(ctx context.Context) ([]domain.ReminderSchedule, error)
}

// StatsService derives reporting counters from logs and schedules. Pure
// read: safe to call at any frequency.
type StatsService struct {
	Store    StatsStore
	Settings domain.ReminderSettings
}

func (s *StatsService) Stats(ctx context.Context, now time.Time) (domain.ReminderStats, error) {
	logs, err := s.Store.ListLogs(ctx, store.LogFilter{})
	if err != nil {
		return domain.ReminderStats{}, err
	}
	schedules, err := s.Store.ListSchedules(ctx)
	if err != nil {
		return domain.ReminderStats{}, err
	}

	loc := s.Settings.BusinessHours.Location()
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	weekStart := midnight.AddDate(0, 0, -6)
	monthStart := midnight.AddDate(0, 0, -29)

	stats := domain.ReminderStats{
		RemindersByStatus: map[domain.LogStatus]int{},
		RemindersByType:   map[domain.ReminderType]int{},
	}

	delivered := 0
	for _, l := range logs {
		stats.RemindersByStatus[l.Status]++
		stats.RemindersByType[l.ReminderType]++

		if l.Status == domain.LogSent || l.Status == domain.LogDelivered {
			delivered++
			sent := l.SentAt.In(loc)
			if !sent.Before(midnight) {
				stats.SentToday++
			}
			if !sent.Before(weekStart) {
				stats.SentThisWeek++
			}
			if !sent.Before(monthStart) {
				stats.SentThisMonth++
			}
		}
	}
	if len(logs) > 0 {
		stats.SuccessRate = float64(delivered) / float64(len(logs)) * 100
	}

	for _, sc := range schedules {
		if sc.Status == domain.ScheduleScheduled && sc.ScheduledAt.After(now) {
			stats.UpcomingReminders++
		}
	}
	return stats, nil
}
