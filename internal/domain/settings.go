package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BusinessHours is the send window reminders are shifted into: configured
// weekdays only, firing at the start-of-window time in the configured zone.
type BusinessHours struct {
	Start    string         `json:"start"` // "HH:MM"
	End      string         `json:"end"`
	Timezone string         `json:"timezone"`
	Weekdays []time.Weekday `json:"weekdays"`
}

func (b BusinessHours) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (b BusinessHours) startClock() (hour, min int) {
	parts := strings.SplitN(b.Start, ":", 2)
	if len(parts) == 2 {
		hour, _ = strconv.Atoi(parts[0])
		min, _ = strconv.Atoi(parts[1])
	}
	return hour, min
}

func (b BusinessHours) isBusinessDay(d time.Weekday) bool {
	for _, w := range b.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// Adjust shifts t onto the next configured weekday and pins the time of day
// to the start of the window. A time already on a business day still gets
// its clock pinned, so every adjusted schedule fires exactly at window start.
func (b BusinessHours) Adjust(t time.Time) time.Time {
	if len(b.Weekdays) == 0 {
		return t
	}
	loc := b.Location()
	local := t.In(loc)
	for !b.isBusinessDay(local.Weekday()) {
		local = local.AddDate(0, 0, 1)
	}
	h, m := b.startClock()
	return time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
}

func (b BusinessHours) Validate() error {
	for _, s := range []string{b.Start, b.End} {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("%w: business hours %q not in HH:MM form", ErrValidation, s)
		}
		h, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			return fmt.Errorf("%w: business hours %q not a valid clock time", ErrValidation, s)
		}
	}
	if _, err := time.LoadLocation(b.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrValidation, b.Timezone)
	}
	return nil
}

type SenderIdentity struct {
	FromEmail string `json:"fromEmail"`
	FromName  string `json:"fromName"`
	ReplyTo   string `json:"replyTo,omitempty"`
}

type RateLimit struct {
	MaxPerHour  int           `json:"maxPerHour"`
	MaxPerDay   int           `json:"maxPerDay"`
	MinInterval time.Duration `json:"minInterval"` // delay between consecutive sends
}

type NotificationPrefs struct {
	OnSent   bool `json:"onSent"`
	OnFailed bool `json:"onFailed"`
}

// ReminderSettings is process-wide engine configuration. Loaded once at
// construction, replaced wholesale by an explicit update, stored as a single
// JSON document.
type ReminderSettings struct {
	Enabled             bool              `json:"enabled"`
	DefaultTriggerDays  int               `json:"defaultTriggerDays"`
	MaxPerInvoice       int               `json:"maxPerInvoice"`
	BusinessHours       BusinessHours     `json:"businessHours"`
	Sender              SenderIdentity    `json:"sender"`
	RateLimit           RateLimit         `json:"rateLimit"`
	Notifications       NotificationPrefs `json:"notifications"`
}

func DefaultSettings() ReminderSettings {
	return ReminderSettings{
		Enabled:            true,
		DefaultTriggerDays: 3,
		MaxPerInvoice:      5,
		BusinessHours: BusinessHours{
			Start:    "09:00",
			End:      "18:00",
			Timezone: "UTC",
			Weekdays: []time.Weekday{
				time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
			},
		},
		Sender: SenderIdentity{
			FromName: "Accounts Receivable",
		},
		RateLimit: RateLimit{
			MaxPerHour:  100,
			MaxPerDay:   500,
			MinInterval: 2 * time.Second,
		},
		Notifications: NotificationPrefs{OnFailed: true},
	}
}

func (s ReminderSettings) Validate() error {
	if err := s.BusinessHours.Validate(); err != nil {
		return err
	}
	if s.RateLimit.MaxPerHour < 0 || s.RateLimit.MaxPerDay < 0 || s.RateLimit.MinInterval < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrValidation)
	}
	if s.MaxPerInvoice < 0 {
		return fmt.Errorf("%w: maxPerInvoice must not be negative", ErrValidation)
	}
	return nil
}
