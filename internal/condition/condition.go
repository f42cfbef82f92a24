// Package condition evaluates rule conditions against invoices.
package condition

import (
	"strconv"
	"strings"
	"time"

	"remind/internal/domain"
)

// Evaluate reports whether every condition holds for the invoice (AND
// semantics). An empty list always matches. Unknown fields pass, keeping
// rule evaluation permissive when a rule was written against a field this
// engine does not compute.
func Evaluate(conds []domain.Condition, inv domain.Invoice, now time.Time) bool {
	for _, c := range conds {
		if !evaluateOne(c, inv, now) {
			return false
		}
	}
	return true
}

func evaluateOne(c domain.Condition, inv domain.Invoice, now time.Time) bool {
	switch c.Field {
	case domain.FieldInvoiceAmount:
		return compareNumeric(inv.Total, c.Operator, c.Value)
	case domain.FieldOverdueDays:
		return compareNumeric(float64(domain.OverdueDays(inv, now)), c.Operator, c.Value)
	case domain.FieldInvoiceStatus:
		return compareString(inv.Status, c.Operator, c.Value)
	default:
		return true
	}
}

func compareNumeric(actual float64, op domain.ConditionOperator, raw string) bool {
	want, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false
	}
	switch op {
	case domain.OpEquals:
		return actual == want
	case domain.OpNotEquals:
		return actual != want
	case domain.OpGreaterThan:
		return actual > want
	case domain.OpLessThan:
		return actual < want
	case domain.OpGreaterEqual:
		return actual >= want
	case domain.OpLessEqual:
		return actual <= want
	}
	return false
}

func compareString(actual string, op domain.ConditionOperator, want string) bool {
	a := strings.ToLower(actual)
	w := strings.ToLower(want)
	switch op {
	case domain.OpEquals:
		return a == w
	case domain.OpNotEquals:
		return a != w
	case domain.OpContains:
		return strings.Contains(a, w)
	case domain.OpNotContains:
		return !strings.Contains(a, w)
	}
	return false
}
