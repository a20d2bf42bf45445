// Package syncer owns the control flow every screen repeats: fetch a remote
// snapshot through the store client, then clear+bulkPut it into the mirror so
// subsequent reads are served locally.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"flocksync/internal/domain"
	"flocksync/internal/mirror"
	"flocksync/internal/remote"
)

// Remote is the slice of the store client the syncer needs.
type Remote interface {
	Fetch(ctx context.Context, collection domain.Collection, filter remote.Filter) ([]json.RawMessage, error)
	Mutate(ctx context.Context, collection domain.Collection, m remote.Mutation) (json.RawMessage, error)
}

type Syncer struct {
	remote  Remote
	store   *mirror.Store
	profile domain.Profile
	log     *zap.Logger
}

func New(r Remote, store *mirror.Store, profile domain.Profile, log *zap.Logger) *Syncer {
	return &Syncer{remote: r, store: store, profile: profile, log: log}
}

// scope forces the caller's unit onto every fetch unless the session holds an
// executive role. This is a UX filter; the backend's row-level security is
// what actually fences tenants.
func (s *Syncer) scope(collection domain.Collection, filter remote.Filter) remote.Filter {
	if s.profile.Role.Executive() || s.profile.UnitID == "" {
		return filter
	}
	switch collection {
	case domain.CollectionAnnouncements:
		// Broadcasts have no owning unit.
		return filter
	case domain.CollectionUnits:
		return filter.And("id", remote.OpEq, s.profile.UnitID)
	default:
		return filter.And("unit_id", remote.OpEq, s.profile.UnitID)
	}
}

// resync replaces the mirror's copy of one collection with a fresh remote
// snapshot. Clear before BulkPut is what drops rows deleted remotely. A
// result that lands after ctx is cancelled is not committed.
func resync[T domain.Record](ctx context.Context, s *Syncer, collection domain.Collection, decode func([]json.RawMessage) ([]T, error)) error {
	rows, err := s.remote.Fetch(ctx, collection, s.scope(collection, nil))
	if err != nil {
		return err
	}
	typed, err := decode(rows)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.Clear(ctx, collection); err != nil {
		return err
	}
	records := make([]domain.Record, len(typed))
	for i, rec := range typed {
		records[i] = rec
	}
	if err := s.store.BulkPut(ctx, collection, records); err != nil {
		return err
	}

	s.log.Debug("collection resynced",
		zap.String("collection", collection.String()), zap.Int("rows", len(records)))
	return nil
}

func (s *Syncer) SyncMembers(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionMembers, domain.DecodeMembers)
}

func (s *Syncer) SyncAttendance(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionAttendance, domain.DecodeAttendance)
}

func (s *Syncer) SyncInventory(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionInventory, domain.DecodeInventory)
}

func (s *Syncer) SyncReviews(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionReviews, domain.DecodeReviews)
}

func (s *Syncer) SyncSouls(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionSouls, domain.DecodeSouls)
}

func (s *Syncer) SyncUnits(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionUnits, domain.DecodeUnits)
}

func (s *Syncer) SyncSubunits(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionSubunits, domain.DecodeSubunits)
}

func (s *Syncer) SyncFinanceRequests(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionFinanceRequests, domain.DecodeFinanceRequests)
}

func (s *Syncer) SyncAnnouncements(ctx context.Context) error {
	return resync(ctx, s, domain.CollectionAnnouncements, domain.DecodeAnnouncements)
}

// Sync resyncs one collection by name.
func (s *Syncer) Sync(ctx context.Context, collection domain.Collection) error {
	switch collection {
	case domain.CollectionMembers:
		return s.SyncMembers(ctx)
	case domain.CollectionAttendance:
		return s.SyncAttendance(ctx)
	case domain.CollectionInventory:
		return s.SyncInventory(ctx)
	case domain.CollectionReviews:
		return s.SyncReviews(ctx)
	case domain.CollectionSouls:
		return s.SyncSouls(ctx)
	case domain.CollectionUnits:
		return s.SyncUnits(ctx)
	case domain.CollectionSubunits:
		return s.SyncSubunits(ctx)
	case domain.CollectionFinanceRequests:
		return s.SyncFinanceRequests(ctx)
	case domain.CollectionAnnouncements:
		return s.SyncAnnouncements(ctx)
	default:
		return fmt.Errorf("unknown collection %q", collection)
	}
}

// SyncAll refreshes every mirrored collection, stopping at the first error so
// the mirror keeps its last-known-good snapshot of whatever failed.
func (s *Syncer) SyncAll(ctx context.Context) error {
	for _, collection := range domain.SyncedCollections() {
		if err := s.Sync(ctx, collection); err != nil {
			return fmt.Errorf("sync %s: %w", collection, err)
		}
	}
	return nil
}
