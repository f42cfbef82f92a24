package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"remind/internal/domain"
	"remind/internal/store/memory"
)

func TestStatsCountsAndRate(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	now := time.Date(2025, 9, 17, 15, 0, 0, 0, time.UTC) // Wednesday

	logAt := func(ts time.Time, status domain.LogStatus, typ domain.ReminderType) {
		_ = st.InsertLog(ctx, domain.ReminderLog{
			ID: "log-" + ts.Format("20060102T150405") + string(status), Status: status,
			ReminderType: typ, SentAt: ts,
		})
	}
	logAt(now.Add(-2*time.Hour), domain.LogSent, domain.TypeGentle)            // today
	logAt(now.AddDate(0, 0, -3), domain.LogSent, domain.TypeOverdue)           // this week
	logAt(now.AddDate(0, 0, -20), domain.LogDelivered, domain.TypeOverdue)     // this month
	logAt(now.AddDate(0, 0, -60), domain.LogSent, domain.TypeFinal)            // older
	logAt(now.Add(-1*time.Hour), domain.LogFailed, domain.TypeGentle)          // failure, today

	_ = st.InsertSchedules(ctx, []domain.ReminderSchedule{
		{ID: "s1", Status: domain.ScheduleScheduled, ScheduledAt: now.Add(48 * time.Hour)},
		{ID: "s2", Status: domain.ScheduleScheduled, ScheduledAt: now.Add(-time.Hour)}, // due, not upcoming
		{ID: "s3", Status: domain.ScheduleSent, ScheduledAt: now.Add(72 * time.Hour)},
	})

	svc := &StatsService{Store: st, Settings: domain.DefaultSettings()}
	stats, err := svc.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if stats.SentToday != 1 {
		t.Fatalf("sentToday: want 1, got %d", stats.SentToday)
	}
	if stats.SentThisWeek != 2 {
		t.Fatalf("sentThisWeek: want 2, got %d", stats.SentThisWeek)
	}
	if stats.SentThisMonth != 3 {
		t.Fatalf("sentThisMonth: want 3, got %d", stats.SentThisMonth)
	}
	if stats.SuccessRate != 80 {
		t.Fatalf("successRate: want 80, got %v", stats.SuccessRate)
	}
	if stats.UpcomingReminders != 1 {
		t.Fatalf("upcoming: want 1, got %d", stats.UpcomingReminders)
	}
	if stats.RemindersByStatus[domain.LogFailed] != 1 {
		t.Fatalf("byStatus[failed]: want 1, got %d", stats.RemindersByStatus[domain.LogFailed])
	}
	if stats.RemindersByType[domain.TypeOverdue] != 2 {
		t.Fatalf("byType[overdue]: want 2, got %d", stats.RemindersByType[domain.TypeOverdue])
	}
}

func TestStatsIdempotent(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	now := time.Date(2025, 9, 17, 15, 0, 0, 0, time.UTC)
	_ = st.InsertLog(ctx, domain.ReminderLog{ID: "l1", Status: domain.LogSent,
		ReminderType: domain.TypeGentle, SentAt: now.Add(-time.Hour)})

	svc := &StatsService{Store: st, Settings: domain.DefaultSettings()}
	first, err := svc.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	second, err := svc.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("stats not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	svc := &StatsService{Store: memory.New(), Settings: domain.DefaultSettings()}
	stats, err := svc.Stats(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("successRate on empty store must be 0, got %v", stats.SuccessRate)
	}
}
