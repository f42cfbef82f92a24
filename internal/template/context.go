package template

import (
	"time"

	"remind/internal/domain"
)

// Context carries the entity groups available to a template. Groups are
// typed so a rendering context is either present and complete or absent,
// instead of an any-bag assembled at call sites.
type Context struct {
	Client  *ClientData
	Invoice *InvoiceData
	User    *UserData
	System  SystemData
}

type ClientData struct {
	Name  string
	Email string
}

type InvoiceData struct {
	Number      string
	Amount      float64
	Currency    string
	Status      string
	IssuedAt    time.Time
	DueDate     time.Time
	OverdueDays int
}

type UserData struct {
	Name  string
	Email string
}

type SystemData struct {
	Date        time.Time
	CompanyName string
}

// NewContext builds a rendering context from the engine's collaborator
// records. now anchors overdue computation and {{system.date}}.
func NewContext(inv domain.Invoice, client domain.Client, sender domain.SenderIdentity, now time.Time) Context {
	return Context{
		Client: &ClientData{Name: client.Name, Email: client.Email},
		Invoice: &InvoiceData{
			Number:      inv.Number,
			Amount:      inv.Total,
			Currency:    inv.Currency,
			Status:      inv.Status,
			IssuedAt:    inv.IssuedAt,
			DueDate:     inv.DueDate,
			OverdueDays: domain.OverdueDays(inv, now),
		},
		User:   &UserData{Name: sender.FromName, Email: sender.FromEmail},
		System: SystemData{Date: now, CompanyName: sender.FromName},
	}
}

// tree flattens the context into the lookup structure the renderer walks.
func (c Context) tree() map[string]any {
	t := map[string]any{
		"system": map[string]any{
			"date":        c.System.Date,
			"companyName": c.System.CompanyName,
		},
	}
	if c.Client != nil {
		t["client"] = map[string]any{
			"name":  c.Client.Name,
			"email": c.Client.Email,
		}
	}
	if c.Invoice != nil {
		t["invoice"] = map[string]any{
			"number":      c.Invoice.Number,
			"amount":      c.Invoice.Amount,
			"currency":    c.Invoice.Currency,
			"status":      c.Invoice.Status,
			"issuedAt":    c.Invoice.IssuedAt,
			"dueDate":     c.Invoice.DueDate,
			"overdueDays": c.Invoice.OverdueDays,
		}
	}
	if c.User != nil {
		t["user"] = map[string]any{
			"name":  c.User.Name,
			"email": c.User.Email,
		}
	}
	return t
}
