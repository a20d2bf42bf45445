package domain

import "time"

// PerformanceReview grades a unit leader for a reporting period.
type PerformanceReview struct {
	ID         string    `json:"id"`
	UnitID     string    `json:"unit_id"`
	SubjectID  string    `json:"subject_id"`
	ReviewerID string    `json:"reviewer_id"`
	Period     string    `json:"period"` // YYYY-MM
	Score      int       `json:"score"`  // 0..100
	Remarks    string    `json:"remarks,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r PerformanceReview) Key() string  { return r.ID }
func (r PerformanceReview) Unit() string { return r.UnitID }
