package store

import (
	"time"

	"remind/internal/domain"
)

// Param structs for multi-field store mutations, so call sites stay
// readable and new columns don't ripple through interfaces.

// ScheduleMark carries a dispatch-side state transition for one schedule.
type ScheduleMark struct {
	ID           string
	Status       domain.ScheduleStatus
	AttemptCount int
	LastAttempt  *time.Time
	NextAttempt  *time.Time
	ErrorMessage string
	Now          time.Time
}

// LogFilter narrows log listings for the admin API.
type LogFilter struct {
	InvoiceID string
	Limit     int
}
