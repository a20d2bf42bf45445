package domain

import (
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Announcement is an executive broadcast visible to every unit, so its owning
// unit is empty. Bodies may contain markup typed by an admin and are
// sanitized at the decode boundary before anything renders them.
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (a Announcement) Key() string  { return a.ID }
func (a Announcement) Unit() string { return "" }

// AnnouncementReceipt marks one announcement read by one user. Receipts are
// what the unread counter is a set-difference against.
type AnnouncementReceipt struct {
	ID             string    `json:"id"`
	AnnouncementID string    `json:"announcement_id"`
	UserID         string    `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

func (r AnnouncementReceipt) Key() string  { return r.ID }
func (r AnnouncementReceipt) Unit() string { return "" }

// bodyPolicy allows the usual user-generated-content tags and strips
// everything executable. Policies are safe for concurrent use once built.
var bodyPolicy = bluemonday.UGCPolicy()

// SanitizeBody strips unsafe markup from an announcement body.
func SanitizeBody(s string) string {
	return bodyPolicy.Sanitize(s)
}
