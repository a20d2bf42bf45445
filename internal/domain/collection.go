package domain

// Collection names a remote table mirrored on the device. The same names are
// used as mirror keys and as realtime event table names.
type Collection string

const (
	CollectionMembers         Collection = "members"
	CollectionAttendance      Collection = "attendance_logs"
	CollectionInventory       Collection = "inventory_items"
	CollectionReviews         Collection = "performance_reviews"
	CollectionSouls           Collection = "souls_records"
	CollectionUnits           Collection = "units"
	CollectionSubunits        Collection = "subunits"
	CollectionFinanceRequests Collection = "finance_requests"
	CollectionAnnouncements   Collection = "announcements"
	CollectionReceipts        Collection = "announcement_receipts"
	CollectionNotifications   Collection = "notifications"
)

func (c Collection) String() string { return string(c) }

// SyncedCollections lists the collections a full resync covers, in the order
// they are pulled. Receipts and notifications are not mirrored; the
// notification channel reads them live.
func SyncedCollections() []Collection {
	return []Collection{
		CollectionUnits,
		CollectionSubunits,
		CollectionMembers,
		CollectionAttendance,
		CollectionInventory,
		CollectionReviews,
		CollectionSouls,
		CollectionFinanceRequests,
		CollectionAnnouncements,
	}
}
