// Package storage defines the persistence contracts for the lobby service.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/ensemble.live/internal/platform/errors"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/room"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/user"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// MemberKey identifies one membership row.
type MemberKey struct {
	UserID string
	RoomID string
}

// RoomUser is a seat joined with its owner's public profile.
type RoomUser struct {
	UserID       string
	Name         string
	LeaderCardID int64
	Difficulty   room.Difficulty
	IsHost       bool
}

// UserStore persists player profiles and their credential tokens.
type UserStore interface {
	// CreateUserWithCredential inserts the profile and its token atomically.
	CreateUserWithCredential(ctx context.Context, u user.User, credential user.Credential) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	// GetUserByToken resolves a bearer token to its profile.
	GetUserByToken(ctx context.Context, token string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) error
}

// RoomStore opens coordination transactions and serves read-only views.
type RoomStore interface {
	// Begin opens one coordination transaction. Every read-modify-write
	// sequence against room state runs inside exactly one Tx.
	Begin(ctx context.Context) (Tx, error)
	// Room reads a room without taking the write lock. Advisory views
	// only; mutations go through a Tx.
	Room(ctx context.Context, roomID string) (room.Room, error)
	// OpenRooms lists waiting rooms with free seats, newest first.
	// A zero liveID means no live filter.
	OpenRooms(ctx context.Context, liveID int64) ([]room.Room, error)
	// RoomUsers lists seats joined with profiles for the wait view.
	RoomUsers(ctx context.Context, roomID string) ([]RoomUser, error)
}

// Tx is one coordination transaction. The transaction holds the write lock
// from RoomForUpdate until Commit or Rollback, which serializes every count
// and status mutation against a room.
type Tx interface {
	// RoomForUpdate reads a room inside the transaction's write lock.
	RoomForUpdate(ctx context.Context, roomID string) (room.Room, error)
	InsertRoom(ctx context.Context, r room.Room) error
	// UpdateRoom persists a room's joined count, status, and update time.
	UpdateRoom(ctx context.Context, r room.Room) error
	// UpdateRoomStatusIf transitions a room's status only when the current
	// value matches from, reporting whether a row changed.
	UpdateRoomStatusIf(ctx context.Context, roomID string, from, to room.Status, updatedAt time.Time) (bool, error)
	Membership(ctx context.Context, userID, roomID string) (room.Member, error)
	// MemberRoomsExcept lists other rooms the user currently occupies.
	MemberRoomsExcept(ctx context.Context, userID, excludeRoomID string) ([]string, error)
	InsertMember(ctx context.Context, m room.Member) error
	DeleteMember(ctx context.Context, userID, roomID string) error
	DeleteRoomMembers(ctx context.Context, roomID string) error
	// RefreshLease extends a member's liveness deadline.
	RefreshLease(ctx context.Context, userID, roomID string, until time.Time) error
	// RefreshRoomLeases extends every member's liveness deadline in a room.
	RefreshRoomLeases(ctx context.Context, roomID string, until time.Time) error
	// RecordResult writes a member's outcome, reporting whether a row changed.
	RecordResult(ctx context.Context, userID, roomID string, judgeCounts []int64, score int64) (bool, error)
	// MemberResults lists outcomes for members who submitted both judge
	// counts and score, in join order.
	MemberResults(ctx context.Context, roomID string) ([]room.Result, error)
	// PromoteOldestMember grants host to the earliest joined remaining member.
	PromoteOldestMember(ctx context.Context, roomID string) error
	// ExpiredLeases lists memberships whose deadline passed.
	ExpiredLeases(ctx context.Context, now time.Time) ([]MemberKey, error)
	Commit() error
	Rollback() error
}
