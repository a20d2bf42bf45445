package domain

// Unit is the tenant boundary. Every mirrored record belongs to exactly one
// unit; queries are scoped to it unless the caller holds an executive role.
type Unit struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PastorID string `json:"pastor_id,omitempty"`
	HeadID   string `json:"head_id,omitempty"`
}

func (u Unit) Key() string  { return u.ID }
func (u Unit) Unit() string { return u.ID }

type Subunit struct {
	ID       string `json:"id"`
	UnitID   string `json:"unit_id"`
	Name     string `json:"name"`
	LeaderID string `json:"leader_id,omitempty"`
}

func (s Subunit) Key() string  { return s.ID }
func (s Subunit) Unit() string { return s.UnitID }
