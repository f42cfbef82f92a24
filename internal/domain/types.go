package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

type ReminderType string

const (
	TypeGentle     ReminderType = "gentle"
	TypePaymentDue ReminderType = "payment_due"
	TypeOverdue    ReminderType = "overdue"
	TypeFinal      ReminderType = "final"
	TypeThankYou   ReminderType = "thank_you"
	TypeCustom     ReminderType = "custom"
)

type TriggerType string

const (
	TriggerBefore TriggerType = "before"
	TriggerAfter  TriggerType = "after"
)

type ConditionField string

const (
	FieldInvoiceAmount ConditionField = "invoice_amount"
	FieldInvoiceStatus ConditionField = "invoice_status"
	FieldOverdueDays   ConditionField = "overdue_days"
)

type ConditionOperator string

const (
	OpEquals       ConditionOperator = "equals"
	OpNotEquals    ConditionOperator = "not_equals"
	OpGreaterThan  ConditionOperator = "greater_than"
	OpLessThan     ConditionOperator = "less_than"
	OpGreaterEqual ConditionOperator = "greater_equal"
	OpLessEqual    ConditionOperator = "less_equal"
	OpContains     ConditionOperator = "contains"
	OpNotContains  ConditionOperator = "not_contains"
)

// Condition is one clause of a rule's filter. All conditions on a rule
// must hold (AND); there is no OR or grouping.
type Condition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
}

// RuleTemplate is the subject/body pair a rule renders when it fires.
type RuleTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ReminderRule is a declarative policy: when to fire (trigger offset relative
// to the invoice due date, repeat cap) and what to send (template), gated by
// conditions over the invoice.
type ReminderRule struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	ReminderType   ReminderType `json:"reminderType"`
	TriggerType    TriggerType  `json:"triggerType"`
	TriggerDays    int          `json:"triggerDays"`
	RepeatInterval int          `json:"repeatInterval"` // days, 0 = no repetition
	MaxReminders   int          `json:"maxReminders"`
	Conditions     []Condition  `json:"conditions"`
	Template       RuleTemplate `json:"template"`
	IsEnabled      bool         `json:"isEnabled"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

func (r ReminderRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule name is required", ErrValidation)
	}
	if r.TriggerType != TriggerBefore && r.TriggerType != TriggerAfter {
		return fmt.Errorf("%w: unknown trigger type %q", ErrValidation, r.TriggerType)
	}
	if r.TriggerDays < 0 {
		return fmt.Errorf("%w: triggerDays must be >= 0", ErrValidation)
	}
	if r.RepeatInterval > 0 && r.MaxReminders < 1 {
		return fmt.Errorf("%w: maxReminders must be >= 1 when repeatInterval > 0", ErrValidation)
	}
	return nil
}

// ReminderTemplate is a reusable subject/body pair in the template library.
type ReminderTemplate struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ReminderType ReminderType `json:"reminderType"`
	Subject      string       `json:"subject"`
	Body         string       `json:"body"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (t ReminderTemplate) Validate() error {
	if t.Name == "" || t.Subject == "" || t.Body == "" {
		return fmt.Errorf("%w: template name, subject and body are required", ErrValidation)
	}
	return nil
}
