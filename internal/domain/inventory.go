package domain

import "time"

type InventoryItem struct {
	ID        string    `json:"id"`
	UnitID    string    `json:"unit_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Quantity  int       `json:"quantity"`
	Condition string    `json:"condition,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i InventoryItem) Key() string  { return i.ID }
func (i InventoryItem) Unit() string { return i.UnitID }
