package domain

import "time"

// SoulsRecord is one evangelism contact ("soul won") logged by an evangelist.
type SoulsRecord struct {
	ID             string    `json:"id"`
	UnitID         string    `json:"unit_id"`
	EvangelistID   string    `json:"evangelist_id"`
	ConvertName    string    `json:"convert_name"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	WonAt          time.Time `json:"won_at"`
	FollowUpStatus string    `json:"follow_up_status,omitempty"`
}

func (s SoulsRecord) Key() string  { return s.ID }
func (s SoulsRecord) Unit() string { return s.UnitID }
