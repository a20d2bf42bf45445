package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"flocksync/internal/remote"
)

// Storage is the emulator's SQLite persistence: a users table plus one
// generic rows table keyed by (collection, id), mirroring how the managed
// backend looks to the client. Filtering happens in Go over decoded rows —
// this is a dev/test double, not a query engine.
type Storage struct {
	db *sql.DB
}

var ErrNoSuchRow = errors.New("devserver: row not found")

func OpenStorage(path string) (*Storage, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_foreign_keys=on&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open devserver db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name     TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL,
			unit_id       TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS rows (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			payload    BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);

		CREATE TABLE IF NOT EXISTS objects (
			bucket     TEXT NOT NULL,
			path       TEXT NOT NULL,
			data       BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (bucket, path)
		);

		CREATE TABLE IF NOT EXISTS tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init devserver schema: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error { return s.db.Close() }

type userRow struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	UnitID       string
	CreatedAt    time.Time
}

func (s *Storage) CreateUser(ctx context.Context, u userRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, unit_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.UnitID, u.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*userRow, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, role, unit_id, created_at
		FROM users WHERE email = ?`, email))
}

func (s *Storage) UserByID(ctx context.Context, id string) (*userRow, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, role, unit_id, created_at
		FROM users WHERE id = ?`, id))
}

func (s *Storage) scanUser(row *sql.Row) (*userRow, error) {
	var u userRow
	var created string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.UnitID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSuchRow
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

func (s *Storage) SaveToken(ctx context.Context, token, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (token, user_id, created_at) VALUES (?, ?, ?)`,
		token, userID, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Storage) UserIDForToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM tokens WHERE token = ?`, token).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSuchRow
	}
	return userID, err
}

func (s *Storage) DeleteToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, token)
	return err
}

// InsertRow stores one collection row. The payload must carry an "id" field;
// ids are minted client-side.
func (s *Storage) InsertRow(ctx context.Context, collection string, payload []byte) (map[string]any, error) {
	row, id, err := decodeRow(payload)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rows (collection, id, payload, created_at) VALUES (?, ?, ?, ?)`,
		collection, id, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return row, nil
}

// UpdateRow merges a partial payload into the stored row.
func (s *Storage) UpdateRow(ctx context.Context, collection, id string, patch []byte) (map[string]any, error) {
	var stored []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM rows WHERE collection = ? AND id = ?`, collection, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSuchRow
	}
	if err != nil {
		return nil, err
	}

	var row map[string]any
	if err := json.Unmarshal(stored, &row); err != nil {
		return nil, fmt.Errorf("decode stored row: %w", err)
	}
	var changes map[string]any
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	for k, v := range changes {
		row[k] = v
	}
	row["id"] = id

	merged, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE rows SET payload = ? WHERE collection = ? AND id = ?`, merged, collection, id); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return row, nil
}

// QueryRows returns decoded rows matching every predicate.
func (s *Storage) QueryRows(ctx context.Context, collection string, filter []remote.Predicate) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM rows WHERE collection = ? ORDER BY created_at, id`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var row map[string]any
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		if matchesAll(row, filter) {
			out = append(out, row)
		}
	}
	return out, rows.Err()
}

// DeleteRows removes matching rows and returns the ids it removed.
func (s *Storage) DeleteRows(ctx context.Context, collection string, filter []remote.Predicate) ([]string, error) {
	matched, err := s.QueryRows(ctx, collection, filter)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, row := range matched {
		id, _ := row["id"].(string)
		if id == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM rows WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Storage) PutObject(ctx context.Context, bucket, path string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (bucket, path, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(bucket, path) DO UPDATE SET data = excluded.data`,
		bucket, path, data, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Storage) GetObject(ctx context.Context, bucket, path string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM objects WHERE bucket = ? AND path = ?`, bucket, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSuchRow
	}
	return data, err
}

func decodeRow(payload []byte) (map[string]any, string, error) {
	var row map[string]any
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, "", fmt.Errorf("decode row payload: %w", err)
	}
	id, _ := row["id"].(string)
	if id == "" {
		return nil, "", errors.New("row payload missing id")
	}
	return row, id, nil
}

func matchesAll(row map[string]any, filter []remote.Predicate) bool {
	for _, p := range filter {
		if !matches(row, p) {
			return false
		}
	}
	return true
}

// matches compares loosely: numbers numerically when both sides parse,
// everything else as strings. Good enough for an emulator.
func matches(row map[string]any, p remote.Predicate) bool {
	val, ok := row[p.Field]
	got := ""
	if ok && val != nil {
		got = fmt.Sprint(val)
	}

	switch p.Op {
	case remote.OpEq:
		return got == p.Value
	case remote.OpNeq:
		return got != p.Value
	case remote.OpIn:
		for _, want := range strings.Split(p.Value, ",") {
			if got == want {
				return true
			}
		}
		return false
	case remote.OpGt, remote.OpGte, remote.OpLt, remote.OpLte:
		cmp := compareValues(got, p.Value)
		switch p.Op {
		case remote.OpGt:
			return cmp > 0
		case remote.OpGte:
			return cmp >= 0
		case remote.OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	}
	return false
}

func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
