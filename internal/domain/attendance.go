package domain

// AttendanceLog marks one member present or absent at one service. Logs for a
// service are replaced wholesale (delete old rows, insert new ones) rather
// than edited row by row.
type AttendanceLog struct {
	ID          string `json:"id"`
	UnitID      string `json:"unit_id"`
	MemberID    string `json:"member_id"`
	ServiceDate string `json:"service_date"` // YYYY-MM-DD
	ServiceName string `json:"service_name"`
	Present     bool   `json:"present"`
	RecordedBy  string `json:"recorded_by,omitempty"`
}

func (a AttendanceLog) Key() string  { return a.ID }
func (a AttendanceLog) Unit() string { return a.UnitID }
