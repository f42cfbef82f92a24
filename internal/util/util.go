package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULID ids, prefixed per entity so a bare id is self-describing in logs.

func NewRuleID() string     { return newID("rule_") }
func NewTemplateID() string { return newID("tmpl_") }
func NewScheduleID() string { return newID("sch_") }
func NewLogID() string      { return newID("log_") }

func newID(prefix string) string {
	t := time.Now().UTC()
	return prefix + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
