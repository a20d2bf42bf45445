package domain

import "time"

type Member struct {
	ID        string    `json:"id"`
	UnitID    string    `json:"unit_id"`
	SubunitID string    `json:"subunit_id,omitempty"`
	FullName  string    `json:"full_name"`
	Gender    string    `json:"gender,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	BirthDate string    `json:"birth_date,omitempty"` // YYYY-MM-DD, year optional in practice
	JoinedAt  time.Time `json:"joined_at"`
	PhotoURL  string    `json:"photo_url,omitempty"`
}

func (m Member) Key() string  { return m.ID }
func (m Member) Unit() string { return m.UnitID }

// UnknownMemberName is what readers display when a log references a member
// that no longer exists in the mirror. The mirror enforces no referential
// integrity, so the miss has to be handled at the point of display.
const UnknownMemberName = "(unknown member)"
