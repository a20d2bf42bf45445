package domain

import "time"

// Profile is the authenticated identity. UnitID is empty for executive roles
// not assigned to a unit.
type Profile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	UnitID    string    `json:"unit_id,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is what a successful sign-in returns: a bearer token plus the
// profile it authenticates.
type Session struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}
