package domain

import (
	"encoding/json"
	"fmt"
)

// The backend hands back untyped JSON rows. Everything is coerced into the
// tagged types here, at the remote client boundary, so nothing downstream has
// to trust row shapes. A row without a primary key is rejected outright.

func decodeRows[T Record](what Collection, rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, raw := range rows {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s row %d: %w", what, i, err)
		}
		if rec.Key() == "" {
			return nil, fmt.Errorf("decode %s row %d: missing id", what, i)
		}
		out = append(out, rec)
	}
	return out, nil
}

func DecodeMembers(rows []json.RawMessage) ([]Member, error) {
	return decodeRows[Member](CollectionMembers, rows)
}

func DecodeAttendance(rows []json.RawMessage) ([]AttendanceLog, error) {
	return decodeRows[AttendanceLog](CollectionAttendance, rows)
}

func DecodeInventory(rows []json.RawMessage) ([]InventoryItem, error) {
	return decodeRows[InventoryItem](CollectionInventory, rows)
}

func DecodeReviews(rows []json.RawMessage) ([]PerformanceReview, error) {
	return decodeRows[PerformanceReview](CollectionReviews, rows)
}

func DecodeSouls(rows []json.RawMessage) ([]SoulsRecord, error) {
	return decodeRows[SoulsRecord](CollectionSouls, rows)
}

func DecodeUnits(rows []json.RawMessage) ([]Unit, error) {
	return decodeRows[Unit](CollectionUnits, rows)
}

func DecodeSubunits(rows []json.RawMessage) ([]Subunit, error) {
	return decodeRows[Subunit](CollectionSubunits, rows)
}

func DecodeFinanceRequests(rows []json.RawMessage) ([]FinanceRequest, error) {
	return decodeRows[FinanceRequest](CollectionFinanceRequests, rows)
}

// DecodeAnnouncements sanitizes bodies on the way in; raw backend markup
// never reaches a renderer.
func DecodeAnnouncements(rows []json.RawMessage) ([]Announcement, error) {
	anns, err := decodeRows[Announcement](CollectionAnnouncements, rows)
	if err != nil {
		return nil, err
	}
	for i := range anns {
		anns[i].Body = SanitizeBody(anns[i].Body)
	}
	return anns, nil
}

func DecodeReceipts(rows []json.RawMessage) ([]AnnouncementReceipt, error) {
	return decodeRows[AnnouncementReceipt](CollectionReceipts, rows)
}

func DecodeNotifications(rows []json.RawMessage) ([]Notification, error) {
	return decodeRows[Notification](CollectionNotifications, rows)
}
