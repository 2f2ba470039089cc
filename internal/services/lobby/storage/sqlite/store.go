// Package sqlite provides the SQLite-backed lobby store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/ensemble.live/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/room"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/user"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/storage"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed lobby persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a lobby SQLite store and applies migrations. Transactions are
// opened with an immediate write lock so every coordination transaction is
// serialized against the others from its first statement.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows one writer at a time; a single pooled connection queues
	// coordination transactions instead of surfacing busy errors.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateUserWithCredential inserts the profile and its token atomically.
func (s *Store) CreateUserWithCredential(ctx context.Context, u user.User, credential user.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO users (id, name, leader_card_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`,
		u.ID,
		u.Name,
		u.LeaderCardID,
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO credentials (token, user_id, created_at)
VALUES (?, ?, ?)
`,
		credential.Token,
		credential.UserID,
		toMillis(credential.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetUser loads a profile by id.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, leader_card_id, created_at, updated_at
FROM users
WHERE id = ?
`, userID)
	return scanUser(row)
}

// GetUserByToken resolves a bearer token to its profile.
func (s *Store) GetUserByToken(ctx context.Context, token string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT u.id, u.name, u.leader_card_id, u.created_at, u.updated_at
FROM credentials c
INNER JOIN users u ON u.id = c.user_id
WHERE c.token = ?
`, token)
	return scanUser(row)
}

// UpdateUser persists profile changes by id.
func (s *Store) UpdateUser(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE users
SET name = ?, leader_card_id = ?, updated_at = ?
WHERE id = ?
`,
		u.Name,
		u.LeaderCardID,
		toMillis(u.UpdatedAt),
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Begin opens one coordination transaction.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &roomTx{tx: tx}, nil
}

// Room reads a room without taking the write lock.
func (s *Store) Room(ctx context.Context, roomID string) (room.Room, error) {
	if err := ctx.Err(); err != nil {
		return room.Room{}, err
	}
	if s == nil || s.sqlDB == nil {
		return room.Room{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, live_id, joined_count, max_count, status, created_at, updated_at
FROM rooms
WHERE id = ?
`, roomID)
	record, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return room.Room{}, storage.ErrNotFound
		}
		return room.Room{}, fmt.Errorf("read room: %w", err)
	}
	return record, nil
}

// OpenRooms lists waiting rooms with free seats, newest first.
func (s *Store) OpenRooms(ctx context.Context, liveID int64) ([]room.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
SELECT id, live_id, joined_count, max_count, status, created_at, updated_at
FROM rooms
WHERE status = ? AND joined_count < max_count`
	args := []any{int(room.StatusWaiting)}
	if liveID != 0 {
		query += ` AND live_id = ?`
		args = append(args, liveID)
	}
	query += `
ORDER BY created_at DESC, id DESC
`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open rooms: %w", err)
	}
	defer rows.Close()

	var records []room.Room
	for rows.Next() {
		record, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return records, nil
}

// RoomUsers lists seats joined with profiles for the wait view, in join order.
func (s *Store) RoomUsers(ctx context.Context, roomID string) ([]storage.RoomUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT m.user_id, u.name, u.leader_card_id, m.difficulty, m.is_host
FROM room_members m
INNER JOIN users u ON u.id = m.user_id
WHERE m.room_id = ?
ORDER BY m.joined_at ASC, m.id ASC
`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room users: %w", err)
	}
	defer rows.Close()

	var records []storage.RoomUser
	for rows.Next() {
		var record storage.RoomUser
		var difficulty, isHost int
		if err := rows.Scan(
			&record.UserID,
			&record.Name,
			&record.LeaderCardID,
			&difficulty,
			&isHost,
		); err != nil {
			return nil, fmt.Errorf("scan room user: %w", err)
		}
		record.Difficulty = room.Difficulty(difficulty)
		record.IsHost = isHost == 1
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate room users: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Name, &u.LeaderCardID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func scanRoom(row rowScanner) (room.Room, error) {
	var r room.Room
	var status int
	var createdAt, updatedAt int64
	err := row.Scan(&r.ID, &r.LiveID, &r.JoinedCount, &r.MaxCount, &status, &createdAt, &updatedAt)
	if err != nil {
		return room.Room{}, err
	}
	r.Status = room.Status(status)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}

func encodeJudgeCounts(counts []int64) (string, error) {
	if counts == nil {
		counts = []int64{}
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return "", fmt.Errorf("encode judge counts: %w", err)
	}
	return string(data), nil
}

func decodeJudgeCounts(raw string) ([]int64, error) {
	var counts []int64
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		return nil, fmt.Errorf("decode judge counts: %w", err)
	}
	return counts, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

var (
	_ storage.UserStore = (*Store)(nil)
	_ storage.RoomStore = (*Store)(nil)
)
