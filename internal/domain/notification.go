package domain

import "time"

// Notification is a personal action notification row ("your request was
// approved", "review submitted for your unit"). The live channel prepends new
// ones; MarkRead flips the persisted row.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (n Notification) Key() string  { return n.ID }
func (n Notification) Unit() string { return "" }
