package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/room"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/storage"
)

// roomTx is one coordination transaction. The connection took the database
// write lock at BEGIN, so reads through this transaction are already
// serialized against every other coordination transaction.
type roomTx struct {
	tx *sql.Tx
}

// RoomForUpdate reads a room row under the transaction's write lock.
func (t *roomTx) RoomForUpdate(ctx context.Context, roomID string) (room.Room, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT id, live_id, joined_count, max_count, status, created_at, updated_at
FROM rooms
WHERE id = ?
`, roomID)

	record, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return room.Room{}, storage.ErrNotFound
		}
		return room.Room{}, fmt.Errorf("get room: %w", err)
	}
	return record, nil
}

// InsertRoom persists a freshly created room.
func (t *roomTx) InsertRoom(ctx context.Context, r room.Room) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO rooms (id, live_id, joined_count, max_count, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		r.ID,
		r.LiveID,
		r.JoinedCount,
		r.MaxCount,
		int(r.Status),
		toMillis(r.CreatedAt),
		toMillis(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// UpdateRoom persists a room's joined count, status, and update time.
func (t *roomTx) UpdateRoom(ctx context.Context, r room.Room) error {
	result, err := t.tx.ExecContext(ctx, `
UPDATE rooms
SET joined_count = ?, status = ?, updated_at = ?
WHERE id = ?
`,
		r.JoinedCount,
		int(r.Status),
		toMillis(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update room rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateRoomStatusIf transitions status only when the current value matches.
func (t *roomTx) UpdateRoomStatusIf(ctx context.Context, roomID string, from, to room.Status, updatedAt time.Time) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
UPDATE rooms
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
`,
		int(to),
		toMillis(updatedAt),
		roomID,
		int(from),
	)
	if err != nil {
		return false, fmt.Errorf("update room status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update room status rows: %w", err)
	}
	return affected > 0, nil
}

// Membership loads one member's seat in a room.
func (t *roomTx) Membership(ctx context.Context, userID, roomID string) (room.Member, error) {
	var m room.Member
	var difficulty, isHost int
	var joinedAt, leaseExpiresAt int64
	err := t.tx.QueryRowContext(ctx, `
SELECT room_id, user_id, difficulty, is_host, joined_at, lease_expires_at
FROM room_members
WHERE room_id = ? AND user_id = ?
`, roomID, userID).Scan(
		&m.RoomID,
		&m.UserID,
		&difficulty,
		&isHost,
		&joinedAt,
		&leaseExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return room.Member{}, storage.ErrNotFound
		}
		return room.Member{}, fmt.Errorf("get membership: %w", err)
	}
	m.Difficulty = room.Difficulty(difficulty)
	m.IsHost = isHost == 1
	m.JoinedAt = fromMillis(joinedAt)
	m.LeaseExpiresAt = fromMillis(leaseExpiresAt)
	return m, nil
}

// MemberRoomsExcept lists other rooms the user currently occupies.
func (t *roomTx) MemberRoomsExcept(ctx context.Context, userID, excludeRoomID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT room_id
FROM room_members
WHERE user_id = ? AND room_id != ?
ORDER BY joined_at ASC, id ASC
`, userID, excludeRoomID)
	if err != nil {
		return nil, fmt.Errorf("list member rooms: %w", err)
	}
	defer rows.Close()

	var roomIDs []string
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, fmt.Errorf("scan member room: %w", err)
		}
		roomIDs = append(roomIDs, roomID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member rooms: %w", err)
	}
	return roomIDs, nil
}

// InsertMember seats a user in a room.
func (t *roomTx) InsertMember(ctx context.Context, m room.Member) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO room_members (room_id, user_id, difficulty, is_host, joined_at, lease_expires_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		m.RoomID,
		m.UserID,
		int(m.Difficulty),
		boolToInt(m.IsHost),
		toMillis(m.JoinedAt),
		toMillis(m.LeaseExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// DeleteMember removes one seat.
func (t *roomTx) DeleteMember(ctx context.Context, userID, roomID string) error {
	_, err := t.tx.ExecContext(ctx, `
DELETE FROM room_members
WHERE room_id = ? AND user_id = ?
`, roomID, userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// DeleteRoomMembers removes every seat in a room.
func (t *roomTx) DeleteRoomMembers(ctx context.Context, roomID string) error {
	_, err := t.tx.ExecContext(ctx, `
DELETE FROM room_members
WHERE room_id = ?
`, roomID)
	if err != nil {
		return fmt.Errorf("delete room members: %w", err)
	}
	return nil
}

// RefreshLease extends a member's liveness deadline. A vanished membership
// is not an error; the seat may have been swept or dissolved concurrently.
func (t *roomTx) RefreshLease(ctx context.Context, userID, roomID string, until time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
UPDATE room_members
SET lease_expires_at = ?
WHERE room_id = ? AND user_id = ?
`,
		toMillis(until),
		roomID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("refresh lease: %w", err)
	}
	return nil
}

// RefreshRoomLeases extends every member's liveness deadline in a room.
func (t *roomTx) RefreshRoomLeases(ctx context.Context, roomID string, until time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
UPDATE room_members
SET lease_expires_at = ?
WHERE room_id = ?
`,
		toMillis(until),
		roomID,
	)
	if err != nil {
		return fmt.Errorf("refresh room leases: %w", err)
	}
	return nil
}

// RecordResult writes a member's outcome, reporting whether a row changed.
func (t *roomTx) RecordResult(ctx context.Context, userID, roomID string, judgeCounts []int64, score int64) (bool, error) {
	encoded, err := encodeJudgeCounts(judgeCounts)
	if err != nil {
		return false, err
	}

	result, err := t.tx.ExecContext(ctx, `
UPDATE room_members
SET judge_counts = ?, score = ?
WHERE room_id = ? AND user_id = ?
`,
		encoded,
		score,
		roomID,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("record result: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record result rows: %w", err)
	}
	return affected > 0, nil
}

// MemberResults lists outcomes for members who submitted both judge counts
// and score, in join order.
func (t *roomTx) MemberResults(ctx context.Context, roomID string) ([]room.Result, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT user_id, judge_counts, score
FROM room_members
WHERE room_id = ? AND judge_counts IS NOT NULL AND score IS NOT NULL
ORDER BY joined_at ASC, id ASC
`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list member results: %w", err)
	}
	defer rows.Close()

	var results []room.Result
	for rows.Next() {
		var record room.Result
		var encoded string
		if err := rows.Scan(&record.UserID, &encoded, &record.Score); err != nil {
			return nil, fmt.Errorf("scan member result: %w", err)
		}
		counts, err := decodeJudgeCounts(encoded)
		if err != nil {
			return nil, err
		}
		record.JudgeCounts = counts
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member results: %w", err)
	}
	return results, nil
}

// PromoteOldestMember grants host to the earliest joined remaining member.
func (t *roomTx) PromoteOldestMember(ctx context.Context, roomID string) error {
	_, err := t.tx.ExecContext(ctx, `
UPDATE room_members
SET is_host = 1
WHERE id = (
    SELECT id
    FROM room_members
    WHERE room_id = ?
    ORDER BY joined_at ASC, id ASC
    LIMIT 1
)
`, roomID)
	if err != nil {
		return fmt.Errorf("promote member: %w", err)
	}
	return nil
}

// ExpiredLeases lists memberships whose deadline passed.
func (t *roomTx) ExpiredLeases(ctx context.Context, now time.Time) ([]storage.MemberKey, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT user_id, room_id
FROM room_members
WHERE lease_expires_at < ?
ORDER BY lease_expires_at ASC, id ASC
`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list expired leases: %w", err)
	}
	defer rows.Close()

	var keys []storage.MemberKey
	for rows.Next() {
		var key storage.MemberKey
		if err := rows.Scan(&key.UserID, &key.RoomID); err != nil {
			return nil, fmt.Errorf("scan expired lease: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired leases: %w", err)
	}
	return keys, nil
}

// Commit finishes the transaction and releases the write lock.
func (t *roomTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback abandons the transaction. Safe to defer after Commit.
func (t *roomTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

var _ storage.Tx = (*roomTx)(nil)
