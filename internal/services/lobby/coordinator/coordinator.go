// Package coordinator implements the room membership algorithms: join,
// leave, lifecycle transitions, the result barrier, and lease sweeping.
// Every read-modify-write sequence runs inside one store transaction, and
// the transaction's write lock is the only concurrency mechanism.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/ensemble.live/internal/platform/errors"
	"github.com/louisbranch/ensemble.live/internal/platform/id"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/room"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/storage"
)

const (
	// DefaultWaitTTL keeps a seat alive between wait-view polls.
	DefaultWaitTTL = 30 * time.Second
	// DefaultLiveTTL keeps a seat alive across a full live session, when
	// the client stops polling until results come in.
	DefaultLiveTTL = 5 * time.Minute
)

// Notifier receives room change signals after a mutation commits.
type Notifier interface {
	RoomChanged(roomID string)
}

// Config tunes seat capacity and lease durations.
type Config struct {
	WaitTTL    time.Duration
	LiveTTL    time.Duration
	MaxMembers int
}

// Service coordinates room membership against the room store.
type Service struct {
	rooms       storage.RoomStore
	logger      *zap.Logger
	clock       func() time.Time
	idGenerator func() (string, error)
	waitTTL     time.Duration
	liveTTL     time.Duration
	maxMembers  int
	notifier    Notifier
}

// NewService builds a coordinator with production defaults.
func NewService(rooms storage.RoomStore, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WaitTTL <= 0 {
		cfg.WaitTTL = DefaultWaitTTL
	}
	if cfg.LiveTTL <= 0 {
		cfg.LiveTTL = DefaultLiveTTL
	}
	if cfg.MaxMembers <= 0 {
		cfg.MaxMembers = room.DefaultMaxMembers
	}
	return &Service{
		rooms:       rooms,
		logger:      logger,
		clock:       time.Now,
		idGenerator: id.NewID,
		waitTTL:     cfg.WaitTTL,
		liveTTL:     cfg.LiveTTL,
		maxMembers:  cfg.MaxMembers,
	}
}

// SetNotifier registers the watch hub. Must be called before serving.
func (s *Service) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

// ListOpenRooms lists waiting rooms with free seats. A zero liveID means no
// live filter. Listing has no side effects.
func (s *Service) ListOpenRooms(ctx context.Context, liveID int64) ([]room.Summary, error) {
	records, err := s.rooms.OpenRooms(ctx, liveID)
	if err != nil {
		return nil, fmt.Errorf("list open rooms: %w", err)
	}

	summaries := make([]room.Summary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, room.Summary{
			RoomID:      record.ID,
			LiveID:      record.LiveID,
			JoinedCount: record.JoinedCount,
			MaxCount:    record.MaxCount,
		})
	}
	return summaries, nil
}

// CreateRoom opens a waiting room and seats the creator as host, atomically.
// If the creator cannot take the seat the room is never created.
func (s *Service) CreateRoom(ctx context.Context, userID string, liveID int64, difficulty room.Difficulty) (string, error) {
	created, err := room.CreateRoom(room.CreateRoomInput{
		LiveID:     liveID,
		MaxMembers: s.maxMembers,
	}, s.clock, s.idGenerator)
	if err != nil {
		return "", err
	}

	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.InsertRoom(ctx, created); err != nil {
		return "", err
	}

	result, err := s.joinLocked(ctx, tx, userID, created.ID, difficulty, true)
	if err != nil {
		return "", err
	}
	if result != room.JoinResultOK {
		return "", apperrors.WithMetadata(
			apperrors.CodeInvalidState,
			"creator could not join fresh room",
			map[string]string{"JoinResult": room.JoinResultLabel(result)},
		)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	s.logger.Info("room created",
		zap.String("room_id", created.ID),
		zap.Int64("live_id", liveID),
		zap.String("host_id", userID),
	)
	s.roomChanged(created.ID)
	return created.ID, nil
}

// JoinRoom seats a user in a room. Full and disbanded rooms are reported as
// outcomes, not errors. A room that never existed reports OTHER_ERROR, and
// the attempt leaves no trace.
func (s *Service) JoinRoom(ctx context.Context, userID, roomID string, difficulty room.Difficulty) (room.JoinResult, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return room.JoinResultUnspecified, room.ErrEmptyID
	}

	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return room.JoinResultUnspecified, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := s.joinLocked(ctx, tx, userID, roomID, difficulty, false)
	if err != nil {
		return room.JoinResultUnspecified, err
	}
	if result == room.JoinResultOtherError {
		// Deferred rollback also discards any eviction done on the way in.
		return result, nil
	}

	if err := tx.Commit(); err != nil {
		return room.JoinResultUnspecified, err
	}

	s.logger.Debug("join decided",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.String("result", room.JoinResultLabel(result)),
	)
	if result == room.JoinResultOK {
		s.roomChanged(roomID)
	}
	return result, nil
}

// joinLocked runs the join algorithm inside an open transaction: evict the
// user's stale seats elsewhere, return OK for an existing seat, then check
// status and capacity under the lock before seating.
func (s *Service) joinLocked(ctx context.Context, tx storage.Tx, userID, roomID string, difficulty room.Difficulty, asHost bool) (room.JoinResult, error) {
	staleRooms, err := tx.MemberRoomsExcept(ctx, userID, roomID)
	if err != nil {
		return room.JoinResultUnspecified, err
	}
	for _, staleRoom := range staleRooms {
		if err := s.leaveLocked(ctx, tx, userID, staleRoom); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return room.JoinResultUnspecified, err
		}
		s.logger.Debug("stale membership evicted",
			zap.String("room_id", staleRoom),
			zap.String("user_id", userID),
		)
	}

	// Rejoin-safe: an existing seat in the target room is kept as-is.
	if _, err := tx.Membership(ctx, userID, roomID); err == nil {
		return room.JoinResultOK, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return room.JoinResultUnspecified, err
	}

	target, err := tx.RoomForUpdate(ctx, roomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return room.JoinResultOtherError, nil
		}
		return room.JoinResultUnspecified, err
	}

	if decision := room.DecideJoin(target); decision != room.JoinResultOK {
		return decision, nil
	}

	target.JoinedCount++
	target.UpdatedAt = s.clock().UTC()
	if err := tx.UpdateRoom(ctx, target); err != nil {
		return room.JoinResultUnspecified, err
	}
	if err := tx.InsertMember(ctx, room.NewMember(roomID, userID, difficulty, asHost, s.waitTTL, s.clock)); err != nil {
		return room.JoinResultUnspecified, err
	}
	return room.JoinResultOK, nil
}

// LeaveRoom removes the caller's seat. Leaving a room without holding a
// seat is a not-found failure.
func (s *Service) LeaveRoom(ctx context.Context, userID, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return room.ErrEmptyID
	}

	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.leaveLocked(ctx, tx, userID, roomID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("member left",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
	)
	s.roomChanged(roomID)
	return nil
}

// leaveLocked runs the leave algorithm inside an open transaction. It is
// the single codepath shared by voluntary leave, duplicate-seat eviction,
// and the expiry sweeper: delete the seat, decrement the count, dissolve an
// emptied room, and hand the host role to the earliest remaining joiner.
func (s *Service) leaveLocked(ctx context.Context, tx storage.Tx, userID, roomID string) error {
	member, err := tx.Membership(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if err := tx.DeleteMember(ctx, userID, roomID); err != nil {
		return err
	}

	target, err := tx.RoomForUpdate(ctx, roomID)
	if err != nil {
		return err
	}

	target.JoinedCount--
	target.UpdatedAt = s.clock().UTC()
	if target.JoinedCount < 1 {
		target.JoinedCount = 0
		target.Status = room.StatusDissolved
		if err := tx.UpdateRoom(ctx, target); err != nil {
			return err
		}
		s.logger.Info("room dissolved", zap.String("room_id", roomID))
		return nil
	}

	if err := tx.UpdateRoom(ctx, target); err != nil {
		return err
	}
	if member.IsHost {
		if err := tx.PromoteOldestMember(ctx, roomID); err != nil {
			return err
		}
	}
	return nil
}

// WaitRoom reports the room status and seats for a polling member. The poll
// refreshes the caller's lease only while the room still waits; once the
// room goes live the longer live lease from StartRoom takes over.
func (s *Service) WaitRoom(ctx context.Context, userID, roomID string) (room.Status, []room.WaitUser, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return room.StatusUnspecified, nil, room.ErrEmptyID
	}

	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return room.StatusUnspecified, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Membership(ctx, userID, roomID); err != nil {
		return room.StatusUnspecified, nil, err
	}
	target, err := tx.RoomForUpdate(ctx, roomID)
	if err != nil {
		return room.StatusUnspecified, nil, err
	}
	if target.Status == room.StatusWaiting {
		if err := tx.RefreshLease(ctx, userID, roomID, s.clock().UTC().Add(s.waitTTL)); err != nil {
			return room.StatusUnspecified, nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return room.StatusUnspecified, nil, err
	}

	seats, err := s.rooms.RoomUsers(ctx, roomID)
	if err != nil {
		return room.StatusUnspecified, nil, err
	}
	return target.Status, waitUsers(seats, userID), nil
}

// RoomView reports a room's status and seats without touching any lease or
// lock. The watch feed builds its push snapshots from it; polling through
// WaitRoom remains the authoritative liveness signal.
func (s *Service) RoomView(ctx context.Context, roomID string) (room.Status, []room.WaitUser, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return room.StatusUnspecified, nil, room.ErrEmptyID
	}

	target, err := s.rooms.Room(ctx, roomID)
	if err != nil {
		return room.StatusUnspecified, nil, err
	}
	seats, err := s.rooms.RoomUsers(ctx, roomID)
	if err != nil {
		return room.StatusUnspecified, nil, err
	}
	return target.Status, waitUsers(seats, ""), nil
}

func waitUsers(seats []storage.RoomUser, viewerID string) []room.WaitUser {
	users := make([]room.WaitUser, 0, len(seats))
	for _, seat := range seats {
		users = append(users, room.WaitUser{
			UserID:       seat.UserID,
			Name:         seat.Name,
			LeaderCardID: seat.LeaderCardID,
			Difficulty:   seat.Difficulty,
			IsMe:         viewerID != "" && seat.UserID == viewerID,
			IsHost:       seat.IsHost,
		})
	}
	return users
}

// StartRoom transitions a waiting room to live. Any member may start; the
// conditional update fails with an invalid-state error when the room
// already left the waiting state. Every seat gets the longer live lease,
// since nobody polls while the session plays out.
func (s *Service) StartRoom(ctx context.Context, userID, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return room.ErrEmptyID
	}

	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Membership(ctx, userID, roomID); err != nil {
		return err
	}
	if err := tx.RefreshRoomLeases(ctx, roomID, s.clock().UTC().Add(s.liveTTL)); err != nil {
		return err
	}

	changed, err := tx.UpdateRoomStatusIf(ctx, roomID, room.StatusWaiting, room.StatusLive, s.clock().UTC())
	if err != nil {
		return err
	}
	if !changed {
		return apperrors.WithMetadata(
			apperrors.CodeInvalidState,
			"room is not waiting",
			map[string]string{"RoomID": roomID},
		)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("room started",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
	)
	s.roomChanged(roomID)
	return nil
}

// EndRoom records the caller's play outcome. Submitting without holding a
// seat is a not-found failure.
func (s *Service) EndRoom(ctx context.Context, userID, roomID string, judgeCounts []int64, score int64) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return room.ErrEmptyID
	}
	if err := room.ValidateJudgeCounts(judgeCounts); err != nil {
		return err
	}

	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.RefreshLease(ctx, userID, roomID, s.clock().UTC().Add(s.waitTTL)); err != nil {
		return err
	}
	changed, err := tx.RecordResult(ctx, userID, roomID, judgeCounts, score)
	if err != nil {
		return err
	}
	if !changed {
		return storage.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("result recorded",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
	)
	s.roomChanged(roomID)
	return nil
}

// RoomResult reports the collected outcomes once every member has
// submitted. Until then, and for rooms that are not live, it reports "not
// ready" as an empty list. The first caller to observe full submission
// consumes the barrier: the room dissolves and the list is handed out for
// this one request.
func (s *Service) RoomResult(ctx context.Context, userID, roomID string) ([]room.Result, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, room.ErrEmptyID
	}

	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.clock().UTC()
	if err := tx.RefreshLease(ctx, userID, roomID, now.Add(s.waitTTL)); err != nil {
		return nil, err
	}

	target, err := tx.RoomForUpdate(ctx, roomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, tx.Commit()
		}
		return nil, err
	}
	if target.Status != room.StatusLive {
		return nil, tx.Commit()
	}

	results, err := tx.MemberResults(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(results) < target.JoinedCount {
		return nil, tx.Commit()
	}
	callerSubmitted := false
	for _, result := range results {
		if result.UserID == userID {
			callerSubmitted = true
			break
		}
	}
	if !callerSubmitted {
		return nil, tx.Commit()
	}

	if err := tx.DeleteRoomMembers(ctx, roomID); err != nil {
		return nil, err
	}
	target.JoinedCount = 0
	target.Status = room.StatusDissolved
	target.UpdatedAt = now
	if err := tx.UpdateRoom(ctx, target); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("results collected",
		zap.String("room_id", roomID),
		zap.Int("results", len(results)),
	)
	s.roomChanged(roomID)
	return results, nil
}

// SweepExpired removes seats whose lease lapsed, routing each through the
// leave algorithm. A seat that vanished or refreshed since the scan is
// skipped. Returns the number of seats removed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	now := s.clock().UTC()
	expired, err := tx.ExpiredLeases(ctx, now)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Rollback(); err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range expired {
		swept, err := s.sweepOne(ctx, key, now)
		if err != nil {
			s.logger.Warn("sweep failed",
				zap.String("room_id", key.RoomID),
				zap.String("user_id", key.UserID),
				zap.Error(err),
			)
			continue
		}
		if swept {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("expired members swept", zap.Int("removed", removed))
	}
	return removed, nil
}

// sweepOne expires a single seat in its own transaction, re-checking the
// lease under the lock so a concurrent refresh wins over the sweep.
func (s *Service) sweepOne(ctx context.Context, key storage.MemberKey, now time.Time) (bool, error) {
	tx, err := s.rooms.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	member, err := tx.Membership(ctx, key.UserID, key.RoomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if member.LeaseExpiresAt.After(now) {
		return false, nil
	}

	if err := s.leaveLocked(ctx, tx, key.UserID, key.RoomID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	s.roomChanged(key.RoomID)
	return true, nil
}

func (s *Service) roomChanged(roomID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.RoomChanged(roomID)
}
