package service

import "remind/internal/domain"

// DefaultRules is the rule set seeded into an empty store: a pre-due nudge,
// a due-date notice, a repeating overdue chase and a final demand.
func DefaultRules() []domain.ReminderRule {
	return []domain.ReminderRule{
		{
			Name:         "Upcoming payment",
			Description:  "Friendly nudge three days before the due date",
			ReminderType: domain.TypeGentle,
			TriggerType:  domain.TriggerBefore,
			TriggerDays:  3,
			Template: domain.RuleTemplate{
				Subject: "Invoice {{invoice.number}} is due soon",
				Body: "Dear {{client.name}},\n\n" +
					"a quick reminder that invoice {{invoice.number}} over " +
					"{{invoice.amount | currency}} {{invoice.currency}} is due on " +
					"{{invoice.dueDate | date}}.\n\nKind regards\n{{user.name}}",
			},
			IsEnabled: true,
		},
		{
			Name:         "Payment due today",
			ReminderType: domain.TypePaymentDue,
			TriggerType:  domain.TriggerBefore,
			TriggerDays:  0,
			Template: domain.RuleTemplate{
				Subject: "Invoice {{invoice.number}} is due today",
				Body: "Dear {{client.name}},\n\n" +
					"invoice {{invoice.number}} over {{invoice.amount | currency}} " +
					"{{invoice.currency}} is due today.\n\nKind regards\n{{user.name}}",
			},
			IsEnabled: true,
		},
		{
			Name:           "Overdue follow-up",
			Description:    "Chases unpaid invoices weekly, starting three days after due",
			ReminderType:   domain.TypeOverdue,
			TriggerType:    domain.TriggerAfter,
			TriggerDays:    3,
			RepeatInterval: 7,
			MaxReminders:   3,
			Conditions: []domain.Condition{
				{Field: domain.FieldInvoiceStatus, Operator: domain.OpNotEquals, Value: "paid"},
			},
			Template: domain.RuleTemplate{
				Subject: "Payment overdue: invoice {{invoice.number}}",
				Body: "Dear {{client.name}},\n\n" +
					"invoice {{invoice.number}} is " +
					"{{#if invoice.overdueDays}}{{invoice.overdueDays}} days overdue{{else}}overdue{{/if}}. " +
					"The open amount is {{invoice.amount | currency}} {{invoice.currency}}.\n\n" +
					"Please settle it at your earliest convenience.\n\nKind regards\n{{user.name}}",
			},
			IsEnabled: true,
		},
		{
			Name:         "Final notice",
			ReminderType: domain.TypeFinal,
			TriggerType:  domain.TriggerAfter,
			TriggerDays:  30,
			Conditions: []domain.Condition{
				{Field: domain.FieldOverdueDays, Operator: domain.OpGreaterEqual, Value: "30"},
			},
			Template: domain.RuleTemplate{
				Subject: "Final notice for invoice {{invoice.number}}",
				Body: "Dear {{client.name}},\n\n" +
					"despite previous reminders, invoice {{invoice.number}} over " +
					"{{invoice.amount | currency}} {{invoice.currency}} remains unpaid " +
					"{{invoice.overdueDays}} days past its due date. This is our final " +
					"notice before we hand the matter over for collection.\n\n" +
					"Kind regards\n{{user.name}}",
			},
			IsEnabled: false,
		},
	}
}

// DefaultTemplates is the reusable template library seeded on first use.
func DefaultTemplates() []domain.ReminderTemplate {
	return []domain.ReminderTemplate{
		{
			Name:         "Gentle reminder",
			ReminderType: domain.TypeGentle,
			Subject:      "Invoice {{invoice.number}} is due soon",
			Body: "Dear {{client.name}},\n\n" +
				"invoice {{invoice.number}} over {{invoice.amount | currency}} " +
				"{{invoice.currency}} is due on {{invoice.dueDate | date}}.\n\n" +
				"Kind regards\n{{user.name}}",
		},
		{
			Name:         "Overdue notice",
			ReminderType: domain.TypeOverdue,
			Subject:      "Payment overdue: invoice {{invoice.number}}",
			Body: "Dear {{client.name}},\n\n" +
				"invoice {{invoice.number}} is {{invoice.overdueDays}} days overdue. " +
				"Please settle the open amount of {{invoice.amount | currency}} " +
				"{{invoice.currency}}.\n\nKind regards\n{{user.name}}",
		},
		{
			Name:         "Thank you",
			ReminderType: domain.TypeThankYou,
			Subject:      "Thank you for your payment",
			Body: "Dear {{client.name}},\n\n" +
				"we received your payment for invoice {{invoice.number}}. " +
				"Thank you for your business.\n\nKind regards\n{{user.name}}",
		},
	}
}
