package domain

import "time"

type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	ScheduleSent      ScheduleStatus = "sent"
	ScheduleFailed    ScheduleStatus = "failed"
)

// ReminderSchedule is one planned firing of a rule against one invoice.
// The generator creates it in status scheduled; the dispatch processor owns
// every mutation after that. sent and failed are terminal; a failed delivery
// attempt puts the schedule back to scheduled with nextAttempt set while
// attempts remain.
type ReminderSchedule struct {
	ID           string         `json:"id"`
	InvoiceID    string         `json:"invoiceId"`
	RuleID       string         `json:"ruleId"`
	ScheduledAt  time.Time      `json:"scheduledAt"`
	Status       ScheduleStatus `json:"status"`
	AttemptCount int            `json:"attemptCount"`
	LastAttempt  *time.Time     `json:"lastAttempt,omitempty"`
	NextAttempt  *time.Time     `json:"nextAttempt,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type LogStatus string

const (
	LogPending   LogStatus = "pending"
	LogSent      LogStatus = "sent"
	LogDelivered LogStatus = "delivered"
	LogFailed    LogStatus = "failed"
	LogBounced   LogStatus = "bounced"
	LogClicked   LogStatus = "clicked"
	LogReplied   LogStatus = "replied"
)

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Type  string `json:"type"` // client, cc, internal
}

type LogMetadata struct {
	InvoiceNumber string    `json:"invoiceNumber"`
	ClientName    string    `json:"clientName"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	DueDate       time.Time `json:"dueDate"`
	OverdueDays   int       `json:"overdueDays"`
	UserID        string    `json:"userId,omitempty"`
	Channel       string    `json:"channel"`
}

// ReminderLog records one delivery attempt, with the rendered content frozen
// at send time. Append-only: never updated after insert.
type ReminderLog struct {
	ID           string       `json:"id"`
	InvoiceID    string       `json:"invoiceId"`
	RuleID       string       `json:"ruleId"`
	ScheduleID   string       `json:"scheduleId"`
	ReminderType ReminderType `json:"reminderType"`
	Status       LogStatus    `json:"status"`
	SentAt       time.Time    `json:"sentAt"`
	Recipient    Recipient    `json:"recipient"`
	Subject      string       `json:"subject"`
	Body         string       `json:"body"`
	Metadata     LogMetadata  `json:"metadata"`
}

// ReminderStats is the derived reporting view over logs and schedules.
type ReminderStats struct {
	SentToday         int               `json:"sentToday"`
	SentThisWeek      int               `json:"sentThisWeek"`
	SentThisMonth     int               `json:"sentThisMonth"`
	SuccessRate       float64           `json:"successRate"`
	UpcomingReminders int               `json:"upcomingReminders"`
	RemindersByStatus map[LogStatus]int `json:"remindersByStatus"`
	RemindersByType   map[ReminderType]int `json:"remindersByType"`
}
