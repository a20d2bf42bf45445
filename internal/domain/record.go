package domain

// Record is anything the mirror can hold: it has a stable primary key and an
// owning unit. Broadcast records (announcements) return an empty unit.
type Record interface {
	Key() string
	Unit() string
}
