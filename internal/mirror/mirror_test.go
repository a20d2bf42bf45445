package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flocksync/internal/domain"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func member(id, unit, name string) domain.Member {
	return domain.Member{ID: id, UnitID: unit, FullName: name}
}

func putMembers(t *testing.T, s *Store, members ...domain.Member) {
	t.Helper()
	recs := make([]domain.Record, len(members))
	for i, m := range members {
		recs[i] = m
	}
	require.NoError(t, s.BulkPut(context.Background(), domain.CollectionMembers, recs))
}

func TestGetAndList(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	putMembers(t, s,
		member("m1", "unit1", "Grace Adeola"),
		member("m2", "unit1", "Samuel Nwosu"),
		member("m3", "unit2", "Esther Uche"),
	)

	got, err := Get[domain.Member](ctx, s, domain.CollectionMembers, "m2")
	require.NoError(t, err)
	assert.Equal(t, "Samuel Nwosu", got.FullName)

	_, err = Get[domain.Member](ctx, s, domain.CollectionMembers, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := List[domain.Member](ctx, s, domain.CollectionMembers, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	unit1, err := List[domain.Member](ctx, s, domain.CollectionMembers, func(m domain.Member) bool {
		return m.UnitID == "unit1"
	})
	require.NoError(t, err)
	assert.Len(t, unit1, 2)
}

func TestUpsertOverwritesWholeRecord(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first := member("m1", "unit1", "Grace Adeola")
	first.Phone = "0800-000-0000"
	putMembers(t, s, first)

	// Same key, phone absent: the stale field must not survive the upsert.
	putMembers(t, s, member("m1", "unit1", "Grace Adeola-Smith"))

	got, err := Get[domain.Member](ctx, s, domain.CollectionMembers, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Grace Adeola-Smith", got.FullName)
	assert.Empty(t, got.Phone)

	n, err := s.Count(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDuplicateKeysInOneBatchLastWins(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	putMembers(t, s,
		member("m1", "unit1", "First"),
		member("m1", "unit1", "Second"),
	)

	got, err := Get[domain.Member](ctx, s, domain.CollectionMembers, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.FullName)

	n, err := s.Count(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClearThenBulkPutDropsRemotelyDeletedRows(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	putMembers(t, s,
		member("m1", "unit1", "Keep"),
		member("m2", "unit1", "Gone remotely"),
	)

	// Full-resync pattern: the fresh snapshot no longer contains m2.
	require.NoError(t, s.Clear(ctx, domain.CollectionMembers))
	putMembers(t, s, member("m1", "unit1", "Keep"))

	_, err := Get[domain.Member](ctx, s, domain.CollectionMembers, "m2")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.Count(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollectionsAreIsolated(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	putMembers(t, s, member("shared-id", "unit1", "A member"))
	require.NoError(t, s.BulkPut(ctx, domain.CollectionUnits,
		[]domain.Record{domain.Unit{ID: "shared-id", Name: "A unit"}}))

	require.NoError(t, s.Clear(ctx, domain.CollectionMembers))

	u, err := Get[domain.Unit](ctx, s, domain.CollectionUnits, "shared-id")
	require.NoError(t, err)
	assert.Equal(t, "A unit", u.Name)
}

func TestPendingLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPending(ctx, domain.CollectionMembers, member("m1", "unit1", "Optimistic")))

	// Pending rows read exactly like synced ones.
	got, err := Get[domain.Member](ctx, s, domain.CollectionMembers, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Optimistic", got.FullName)

	ids, err := s.UnsyncedIDs(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)

	require.NoError(t, s.MarkSynced(ctx, domain.CollectionMembers, "m1"))
	ids, err = s.UnsyncedIDs(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	putMembers(t, s, member("m1", "unit1", "One"), member("m2", "unit1", "Two"))
	require.NoError(t, s.Delete(ctx, domain.CollectionMembers, "m1"))

	_, err := Get[domain.Member](ctx, s, domain.CollectionMembers, "m1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing id is a no-op, not an error.
	require.NoError(t, s.Delete(ctx, domain.CollectionMembers, "m1"))

	n, err := s.Count(ctx, domain.CollectionMembers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReopenKeepsData(t *testing.T) {
	path := t.TempDir() + "/mirror.db"

	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	putMembers(t, s, member("m1", "unit1", "Persisted"))
	require.NoError(t, s.Close())

	// Reads keep working from the last observed state, network or not.
	s2, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer s2.Close()

	got, err := Get[domain.Member](context.Background(), s2, domain.CollectionMembers, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.FullName)
}
