package syncer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"flocksync/internal/domain"
	"flocksync/internal/remote"
)

// Writes go remote-first, mirror-second. An optimistic local row is staged
// with PutPending and discarded when the remote write fails, so a failure
// leaves prior local state untouched.

// CreateMember stages the member locally, inserts it remotely, then marks
// the local row synced.
func (s *Syncer) CreateMember(ctx context.Context, m domain.Member) error {
	if m.ID == "" {
		return fmt.Errorf("create member: missing id")
	}

	if err := s.store.PutPending(ctx, domain.CollectionMembers, m); err != nil {
		return err
	}
	if _, err := s.remote.Mutate(ctx, domain.CollectionMembers, remote.Mutation{Op: remote.MutateInsert, Record: m}); err != nil {
		// Don't commit the optimistic update.
		if derr := s.store.Delete(ctx, domain.CollectionMembers, m.ID); derr != nil {
			s.log.Warn("failed to roll back optimistic member", zap.String("id", m.ID), zap.Error(derr))
		}
		return err
	}
	return s.store.MarkSynced(ctx, domain.CollectionMembers, m.ID)
}

// UpdateMember writes the remote row first and mirrors it on success only.
func (s *Syncer) UpdateMember(ctx context.Context, m domain.Member) error {
	if _, err := s.remote.Mutate(ctx, domain.CollectionMembers, remote.Mutation{Op: remote.MutateUpdate, ID: m.ID, Record: m}); err != nil {
		return err
	}
	return s.store.BulkPut(ctx, domain.CollectionMembers, []domain.Record{m})
}

// DeleteMember removes the row in both stores synchronously within the one
// operation; the mirror keeps no tombstones and there is no lazy deletion
// propagation.
func (s *Syncer) DeleteMember(ctx context.Context, id string) error {
	if _, err := s.remote.Mutate(ctx, domain.CollectionMembers, remote.Mutation{Op: remote.MutateDelete, ID: id}); err != nil {
		return err
	}
	return s.store.Delete(ctx, domain.CollectionMembers, id)
}

// ReplaceAttendance swaps out every log for one service: delete the old
// remote rows, insert the new ones, then mirror the result.
//
// The sequence is not transactional. If the delete succeeds and an insert
// fails, the remote collection is left with the deletion applied and no
// replacement — a known, accepted gap (a server-side procedure or
// compensating action would close it).
func (s *Syncer) ReplaceAttendance(ctx context.Context, serviceDate, serviceName string, logs []domain.AttendanceLog) error {
	unitID := s.profile.UnitID
	if unitID == "" {
		return fmt.Errorf("replace attendance: session has no unit")
	}

	target := remote.Where("unit_id", remote.OpEq, unitID).
		And("service_date", remote.OpEq, serviceDate).
		And("service_name", remote.OpEq, serviceName)

	if _, err := s.remote.Mutate(ctx, domain.CollectionAttendance, remote.Mutation{Op: remote.MutateDelete, Filter: target}); err != nil {
		return fmt.Errorf("delete old attendance: %w", err)
	}
	for _, l := range logs {
		if _, err := s.remote.Mutate(ctx, domain.CollectionAttendance, remote.Mutation{Op: remote.MutateInsert, Record: l}); err != nil {
			return fmt.Errorf("insert attendance for %s: %w", l.MemberID, err)
		}
	}

	return s.SyncAttendance(ctx)
}
