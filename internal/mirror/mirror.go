// Package mirror is the on-device cache: a keyed, per-collection copy of
// remote rows used for offline-tolerant reads. It holds whatever the client
// last observed remotely — no tombstones, no merge logic, last write wins.
package mirror

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"flocksync/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by Get when no row exists for the id. Readers are
// expected to handle the miss with an "unknown" placeholder, since the
// mirror enforces no referential integrity.
var ErrNotFound = errors.New("mirror: record not found")

// Store is the process-wide mirror instance. Its lifecycle is explicit: Open
// on session start, Close on logout. Tests open a fresh in-memory store.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	mu       sync.Mutex
	watchers map[domain.Collection]map[int]chan struct{}
	nextID   int
	closed   bool
}

// Open opens (and if needed creates) the store at path and applies schema
// migrations. Pass ":memory:" for an ephemeral store.
func Open(path string, log *zap.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_foreign_keys=on&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mirror db: %w", err)
	}
	if path == ":memory:" {
		// One connection, or every pooled conn gets its own empty db.
		db.SetMaxOpenConns(1)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		log:      log,
		watchers: make(map[domain.Collection]map[int]chan struct{}),
	}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load mirror migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply mirror migrations: %w", err)
	}
	return nil
}

// Close tears the store down and wakes every standing query so it can end.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, byID := range s.watchers {
		for _, ch := range byID {
			close(ch)
		}
	}
	s.watchers = make(map[domain.Collection]map[int]chan struct{})
	s.mu.Unlock()

	return s.db.Close()
}

// BulkPut upserts records by primary key. Records absent from the batch are
// left alone — callers wanting the mirror to exactly match a remote snapshot
// Clear first. Duplicate keys within one batch: last one wins.
func (s *Store) BulkPut(ctx context.Context, collection domain.Collection, records []domain.Record) error {
	return s.put(ctx, collection, records, true)
}

// PutPending stores an optimistic local write not yet confirmed remotely
// (synced=0). The flag never gates reads; it only marks the row for the next
// reconciliation pass.
func (s *Store) PutPending(ctx context.Context, collection domain.Collection, record domain.Record) error {
	return s.put(ctx, collection, []domain.Record{record}, false)
}

func (s *Store) put(ctx context.Context, collection domain.Collection, records []domain.Record, synced bool) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mirror_records (collection, id, unit_id, synced, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			unit_id    = excluded.unit_id,
			synced     = excluded.synced,
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare mirror upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		if rec.Key() == "" {
			return fmt.Errorf("mirror: %s record with empty key", collection)
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal %s record %s: %w", collection, rec.Key(), err)
		}
		if _, err := stmt.ExecContext(ctx, collection.String(), rec.Key(), rec.Unit(), synced, payload, now); err != nil {
			return fmt.Errorf("upsert %s record %s: %w", collection, rec.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mirror write: %w", err)
	}

	s.notify(collection)
	return nil
}

// MarkSynced flips the synced flag once a pending local write is confirmed.
func (s *Store) MarkSynced(ctx context.Context, collection domain.Collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE mirror_records SET synced = 1 WHERE collection = ? AND id = ?`,
		collection.String(), id)
	if err != nil {
		return fmt.Errorf("mark %s record %s synced: %w", collection, id, err)
	}
	return nil
}

// UnsyncedIDs lists rows still carrying pending local writes, so a
// reconciliation pass can skip everything else.
func (s *Store) UnsyncedIDs(ctx context.Context, collection domain.Collection) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM mirror_records WHERE collection = ? AND synced = 0`,
		collection.String())
	if err != nil {
		return nil, fmt.Errorf("list unsynced %s: %w", collection, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear drops every row of a collection. Clear followed by BulkPut is the
// full-resync pattern; it is what removes rows deleted remotely behind the
// client's back.
func (s *Store) Clear(ctx context.Context, collection domain.Collection) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM mirror_records WHERE collection = ?`, collection.String())
	if err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	s.notify(collection)
	return nil
}

// Delete removes one row. The caller deletes the matching remote row first,
// or accepts divergence until the next full resync.
func (s *Store) Delete(ctx context.Context, collection domain.Collection, id string) error {
	return s.BulkDelete(ctx, collection, []string{id})
}

func (s *Store) BulkDelete(ctx context.Context, collection domain.Collection, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror delete: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM mirror_records WHERE collection = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("prepare mirror delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, collection.String(), id); err != nil {
			return fmt.Errorf("delete %s record %s: %w", collection, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mirror delete: %w", err)
	}

	s.notify(collection)
	return nil
}

// Count reports how many rows a collection holds locally.
func (s *Store) Count(ctx context.Context, collection domain.Collection) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mirror_records WHERE collection = ?`, collection.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) getPayload(ctx context.Context, collection domain.Collection, id string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM mirror_records WHERE collection = ? AND id = ?`,
		collection.String(), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s record %s: %w", collection, id, err)
	}
	return payload, nil
}

func (s *Store) listPayloads(ctx context.Context, collection domain.Collection) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM mirror_records WHERE collection = ? ORDER BY id`,
		collection.String())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var p []byte
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}
	return payloads, rows.Err()
}

// Get reads one record, decoded into its tagged type.
func Get[T domain.Record](ctx context.Context, s *Store, collection domain.Collection, id string) (T, error) {
	var rec T
	payload, err := s.getPayload(ctx, collection, id)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, fmt.Errorf("decode %s record %s: %w", collection, id, err)
	}
	return rec, nil
}

// List reads a collection, optionally filtered by pred. It is synchronous
// against the on-device store and never touches the network.
func List[T domain.Record](ctx context.Context, s *Store, collection domain.Collection, pred func(T) bool) ([]T, error) {
	payloads, err := s.listPayloads(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(payloads))
	for _, p := range payloads {
		var rec T
		if err := json.Unmarshal(p, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}
