package domain

import "time"

// Invoice is the read-only input record owned by the surrounding
// application. Only the fields the engine needs are mapped.
type Invoice struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	ClientID string    `json:"clientId"`
	UserID   string    `json:"userId,omitempty"`
	Status   string    `json:"status"` // draft, issued, paid, ...
	Total    float64   `json:"total"`
	Currency string    `json:"currency"`
	IssuedAt time.Time `json:"issuedAt"`
	DueDate  time.Time `json:"dueDate"`
}

func (i Invoice) IsPaid() bool { return i.Status == "paid" }

// Client is the read-only recipient record owned by the surrounding
// application.
type Client struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OverdueDays returns whole days past the due date, never negative.
func OverdueDays(inv Invoice, now time.Time) int {
	d := int(now.Sub(inv.DueDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
