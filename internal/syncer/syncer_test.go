package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flocksync/internal/domain"
	"flocksync/internal/mirror"
	"flocksync/internal/remote"
)

type fetchCall struct {
	collection domain.Collection
	filter     remote.Filter
}

type mutateCall struct {
	collection domain.Collection
	mutation   remote.Mutation
}

// fakeRemote serves canned rows and records every call. failMutate fails the
// n-th Mutate call (1-based) when set.
type fakeRemote struct {
	mu      sync.Mutex
	rows    map[domain.Collection][]any
	fetches []fetchCall
	mutates []mutateCall

	failMutate int
	mutateErr  error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: make(map[domain.Collection][]any)}
}

func (r *fakeRemote) Fetch(_ context.Context, collection domain.Collection, filter remote.Filter) ([]json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, fetchCall{collection, filter})

	var out []json.RawMessage
	for _, row := range r.rows[collection] {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (r *fakeRemote) Mutate(_ context.Context, collection domain.Collection, m remote.Mutation) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutates = append(r.mutates, mutateCall{collection, m})
	if r.failMutate != 0 && len(r.mutates) == r.failMutate {
		return nil, r.mutateErr
	}
	return json.RawMessage(`{}`), nil
}

func setupSyncer(t *testing.T, profile domain.Profile) (*Syncer, *fakeRemote, *mirror.Store) {
	t.Helper()
	store, err := mirror.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := newFakeRemote()
	return New(r, store, profile, zap.NewNop()), r, store
}

func headProfile() domain.Profile {
	return domain.Profile{UserID: "u1", Role: domain.RoleUnitHead, UnitID: "unit1"}
}

func TestSyncMembersScopesToUnit(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	r.rows[domain.CollectionMembers] = []any{
		domain.Member{ID: "m1", UnitID: "unit1", FullName: "Grace"},
	}

	require.NoError(t, s.SyncMembers(context.Background()))

	require.Len(t, r.fetches, 1)
	assert.Equal(t, remote.Where("unit_id", remote.OpEq, "unit1"), r.fetches[0].filter)

	members, err := mirror.List[domain.Member](context.Background(), store, domain.CollectionMembers, nil)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Grace", members[0].FullName)
}

func TestExecutiveFetchesUnscoped(t *testing.T) {
	s, r, _ := setupSyncer(t, domain.Profile{UserID: "x1", Role: domain.RoleSMR})

	require.NoError(t, s.SyncMembers(context.Background()))
	require.Len(t, r.fetches, 1)
	assert.Empty(t, r.fetches[0].filter)
}

func TestUnitsScopeUsesIDColumn(t *testing.T) {
	s, r, _ := setupSyncer(t, headProfile())

	require.NoError(t, s.SyncUnits(context.Background()))
	require.Len(t, r.fetches, 1)
	assert.Equal(t, remote.Where("id", remote.OpEq, "unit1"), r.fetches[0].filter)
}

func TestAnnouncementsAreNeverScoped(t *testing.T) {
	s, r, _ := setupSyncer(t, headProfile())

	require.NoError(t, s.SyncAnnouncements(context.Background()))
	require.Len(t, r.fetches, 1)
	assert.Empty(t, r.fetches[0].filter)
}

func TestResyncDropsStaleRows(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	r.rows[domain.CollectionMembers] = []any{
		domain.Member{ID: "m1", UnitID: "unit1", FullName: "Grace"},
		domain.Member{ID: "m2", UnitID: "unit1", FullName: "Samuel"},
	}
	require.NoError(t, s.SyncMembers(ctx))

	// m2 disappears remotely; the next resync must drop it locally too.
	r.rows[domain.CollectionMembers] = []any{
		domain.Member{ID: "m1", UnitID: "unit1", FullName: "Grace"},
	}
	require.NoError(t, s.SyncMembers(ctx))

	n, err := store.Count(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResyncIsIdempotent(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	r.rows[domain.CollectionMembers] = []any{
		domain.Member{ID: "m1", UnitID: "unit1", FullName: "Grace"},
	}
	require.NoError(t, s.SyncMembers(ctx))
	require.NoError(t, s.SyncMembers(ctx))

	n, err := store.Count(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResyncRejectsRowsWithoutID(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	r.rows[domain.CollectionMembers] = []any{
		domain.Member{ID: "m1", UnitID: "unit1", FullName: "Keep me"},
	}
	require.NoError(t, s.SyncMembers(ctx))

	// A malformed snapshot must not replace the last good one.
	r.rows[domain.CollectionMembers] = []any{
		map[string]any{"full_name": "no id"},
	}
	require.Error(t, s.SyncMembers(ctx))

	n, err := store.Count(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCancelledContextDoesNotCommit(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())

	r.rows[domain.CollectionMembers] = []any{
		domain.Member{ID: "m1", UnitID: "unit1", FullName: "Grace"},
	}
	require.NoError(t, s.SyncMembers(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.rows[domain.CollectionMembers] = nil
	err := s.SyncMembers(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The pre-cancellation snapshot survives.
	n, err := store.Count(context.Background(), domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSyncAllStopsAtFirstError(t *testing.T) {
	s, r, _ := setupSyncer(t, headProfile())
	r.rows[domain.CollectionAttendance] = []any{
		map[string]any{"member_id": "no id here"},
	}

	err := s.SyncAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attendance_logs")
}

func TestCreateMemberMarksSynced(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	m := domain.Member{ID: "m1", UnitID: "unit1", FullName: "Grace"}
	require.NoError(t, s.CreateMember(ctx, m))

	require.Len(t, r.mutates, 1)
	assert.Equal(t, remote.MutateInsert, r.mutates[0].mutation.Op)

	ids, err := store.UnsyncedIDs(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Empty(t, ids)

	got, err := mirror.Get[domain.Member](ctx, store, domain.CollectionMembers, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.FullName)
}

func TestCreateMemberRollsBackOnRemoteFailure(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	r.failMutate = 1
	r.mutateErr = &remote.Error{Kind: remote.KindNetwork, Op: "mutate", Err: errors.New("dial tcp: timeout")}

	err := s.CreateMember(ctx, domain.Member{ID: "m1", UnitID: "unit1", FullName: "Grace"})
	require.Error(t, err)
	assert.True(t, remote.IsNetwork(err))

	// The optimistic row must not survive the failed remote write.
	_, err = mirror.Get[domain.Member](ctx, store, domain.CollectionMembers, "m1")
	assert.ErrorIs(t, err, mirror.ErrNotFound)
}

func TestUpdateMemberIsRemoteFirst(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	require.NoError(t, s.CreateMember(ctx, domain.Member{ID: "m1", UnitID: "unit1", FullName: "Before"}))

	r.failMutate = 2
	r.mutateErr = &remote.Error{Kind: remote.KindQuery, Op: "mutate", Status: 422, Message: "invalid phone"}

	err := s.UpdateMember(ctx, domain.Member{ID: "m1", UnitID: "unit1", FullName: "After"})
	require.Error(t, err)

	got, err := mirror.Get[domain.Member](ctx, store, domain.CollectionMembers, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Before", got.FullName)
}

func TestDeleteMemberRemovesBothStores(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	require.NoError(t, s.CreateMember(ctx, domain.Member{ID: "m1", UnitID: "unit1", FullName: "Grace"}))
	require.NoError(t, s.DeleteMember(ctx, "m1"))

	require.Len(t, r.mutates, 2)
	assert.Equal(t, remote.MutateDelete, r.mutates[1].mutation.Op)
	assert.Equal(t, "m1", r.mutates[1].mutation.ID)

	_, err := mirror.Get[domain.Member](ctx, store, domain.CollectionMembers, "m1")
	assert.ErrorIs(t, err, mirror.ErrNotFound)
}

func TestReplaceAttendanceDeletesThenInserts(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	logs := []domain.AttendanceLog{
		{ID: "l1", UnitID: "unit1", MemberID: "m1", ServiceDate: "2026-08-30", ServiceName: "Sunday Service", Present: true},
		{ID: "l2", UnitID: "unit1", MemberID: "m2", ServiceDate: "2026-08-30", ServiceName: "Sunday Service", Present: false},
	}
	r.rows[domain.CollectionAttendance] = []any{logs[0], logs[1]}

	require.NoError(t, s.ReplaceAttendance(ctx, "2026-08-30", "Sunday Service", logs))

	require.Len(t, r.mutates, 3)
	assert.Equal(t, remote.MutateDelete, r.mutates[0].mutation.Op)
	assert.Equal(t,
		remote.Where("unit_id", remote.OpEq, "unit1").
			And("service_date", remote.OpEq, "2026-08-30").
			And("service_name", remote.OpEq, "Sunday Service"),
		r.mutates[0].mutation.Filter)
	assert.Equal(t, remote.MutateInsert, r.mutates[1].mutation.Op)
	assert.Equal(t, remote.MutateInsert, r.mutates[2].mutation.Op)

	n, err := store.Count(ctx, domain.CollectionAttendance)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReplaceAttendancePartialFailureLeavesServiceEmpty(t *testing.T) {
	s, r, store := setupSyncer(t, headProfile())
	ctx := context.Background()

	// Delete succeeds, second insert fails. The remote store now has the
	// delete applied and one of two rows; the mirror follows whatever the
	// remote reports afterwards.
	r.failMutate = 3
	r.mutateErr = &remote.Error{Kind: remote.KindNetwork, Op: "mutate", Err: errors.New("connection reset")}

	logs := []domain.AttendanceLog{
		{ID: "l1", UnitID: "unit1", MemberID: "m1", ServiceDate: "2026-08-30", ServiceName: "Sunday Service"},
		{ID: "l2", UnitID: "unit1", MemberID: "m2", ServiceDate: "2026-08-30", ServiceName: "Sunday Service"},
	}
	err := s.ReplaceAttendance(ctx, "2026-08-30", "Sunday Service", logs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m2")

	// A follow-up resync converges the mirror on the remote's mixed state.
	r.rows[domain.CollectionAttendance] = []any{logs[0]}
	require.NoError(t, s.SyncAttendance(ctx))
	n, err := store.Count(ctx, domain.CollectionAttendance)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplaceAttendanceRequiresUnit(t *testing.T) {
	s, _, _ := setupSyncer(t, domain.Profile{UserID: "x1", Role: domain.RoleSMR})
	err := s.ReplaceAttendance(context.Background(), "2026-08-30", "Sunday Service", nil)
	require.Error(t, err)
}
