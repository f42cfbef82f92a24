package domain

import (
	"errors"
	"testing"
	"time"
)

func TestBusinessHoursAdjust(t *testing.T) {
	bh := DefaultSettings().BusinessHours

	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			"weekday gets clock pinned",
			time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), // Tuesday midnight
			time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			"saturday advances to monday",
			time.Date(2025, 9, 6, 14, 30, 0, 0, time.UTC),
			time.Date(2025, 9, 8, 9, 0, 0, 0, time.UTC),
		},
		{
			"sunday advances to monday",
			time.Date(2025, 9, 7, 23, 59, 0, 0, time.UTC),
			time.Date(2025, 9, 8, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := bh.Adjust(tc.in)
			if !got.Equal(tc.want) {
				t.Fatalf("Adjust(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestBusinessHoursAdjustNoWeekdays(t *testing.T) {
	bh := BusinessHours{Start: "09:00", End: "18:00", Timezone: "UTC"}
	in := time.Date(2025, 9, 6, 14, 30, 0, 0, time.UTC)
	if got := bh.Adjust(in); !got.Equal(in) {
		t.Fatalf("no configured weekdays must leave the time untouched, got %v", got)
	}
}

func TestBusinessHoursAdjustTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	bh := BusinessHours{
		Start: "09:00", End: "18:00", Timezone: "Europe/Berlin",
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
	// Tuesday 01:00 UTC is Tuesday 03:00 in Berlin; pinned to 09:00 Berlin.
	in := time.Date(2025, 9, 2, 1, 0, 0, 0, time.UTC)
	want := time.Date(2025, 9, 2, 9, 0, 0, 0, loc)
	if got := bh.Adjust(in); !got.Equal(want) {
		t.Fatalf("Adjust(%v) = %v, want %v", in, got, want)
	}
}

func TestSettingsValidate(t *testing.T) {
	good := DefaultSettings()
	if err := good.Validate(); err != nil {
		t.Fatalf("default settings must validate: %v", err)
	}

	bad := DefaultSettings()
	bad.BusinessHours.Start = "25:99"
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad clock time: want ErrValidation, got %v", err)
	}

	bad = DefaultSettings()
	bad.BusinessHours.Timezone = "Mars/Olympus"
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown timezone: want ErrValidation, got %v", err)
	}

	bad = DefaultSettings()
	bad.RateLimit.MaxPerHour = -1
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative rate limit: want ErrValidation, got %v", err)
	}
}

func TestOverdueDays(t *testing.T) {
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	inv := Invoice{DueDate: now.AddDate(0, 0, -10)}
	if d := OverdueDays(inv, now); d != 10 {
		t.Fatalf("want 10, got %d", d)
	}
	inv.DueDate = now.AddDate(0, 0, 5)
	if d := OverdueDays(inv, now); d != 0 {
		t.Fatalf("future due date must clamp to 0, got %d", d)
	}
}
