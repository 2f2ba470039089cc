// Package room holds the wait-room model: lifecycle, seats, and results.
package room

import (
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/ensemble.live/internal/platform/errors"
	"github.com/louisbranch/ensemble.live/internal/platform/id"
)

// DefaultMaxMembers is the seat capacity of a freshly created room.
const DefaultMaxMembers = 4

var (
	// ErrEmptyID indicates a missing room identifier.
	ErrEmptyID = apperrors.New(apperrors.CodeRoomEmptyID, "room id is required")
	// ErrInvalidLiveID indicates a missing or invalid live reference.
	ErrInvalidLiveID = apperrors.New(apperrors.CodeRoomInvalidLive, "live id is required")
)

// Room represents the coordination state of one wait room.
type Room struct {
	ID     string
	LiveID int64
	// JoinedCount is the number of seated members. It only moves under the
	// room row lock, together with Status.
	JoinedCount int
	MaxCount    int
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member is one user's seat in a room.
type Member struct {
	RoomID     string
	UserID     string
	Difficulty Difficulty
	IsHost     bool
	JoinedAt   time.Time
	// LeaseExpiresAt marks when the seat becomes eligible for the sweeper.
	LeaseExpiresAt time.Time
}

// Summary is a lobby listing entry for a joinable room.
type Summary struct {
	RoomID      string
	LiveID      int64
	JoinedCount int
	MaxCount    int
}

// WaitUser is one wait-view row: a seat joined with its public profile.
type WaitUser struct {
	UserID       string
	Name         string
	LeaderCardID int64
	Difficulty   Difficulty
	IsMe         bool
	IsHost       bool
}

// Result is one member's submitted play outcome.
type Result struct {
	UserID      string
	JudgeCounts []int64
	Score       int64
}

// CreateRoomInput describes what is needed to open a room.
type CreateRoomInput struct {
	LiveID int64
	// MaxMembers overrides the seat capacity; zero means DefaultMaxMembers.
	MaxMembers int
}

// CreateRoom builds a new waiting room with a generated ID and timestamps.
func CreateRoom(input CreateRoomInput, now func() time.Time, idGenerator func() (string, error)) (Room, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if input.LiveID <= 0 {
		return Room{}, ErrInvalidLiveID
	}
	maxMembers := input.MaxMembers
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}

	roomID, err := idGenerator()
	if err != nil {
		return Room{}, fmt.Errorf("generate room id: %w", err)
	}

	createdAt := now().UTC()
	return Room{
		ID:          roomID,
		LiveID:      input.LiveID,
		JoinedCount: 0,
		MaxCount:    maxMembers,
		Status:      StatusWaiting,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// NewMember seats a user in a room with a fresh lease.
func NewMember(roomID, userID string, difficulty Difficulty, isHost bool, leaseTTL time.Duration, now func() time.Time) Member {
	if now == nil {
		now = time.Now
	}
	joinedAt := now().UTC()
	return Member{
		RoomID:         roomID,
		UserID:         userID,
		Difficulty:     difficulty,
		IsHost:         isHost,
		JoinedAt:       joinedAt,
		LeaseExpiresAt: joinedAt.Add(leaseTTL),
	}
}

// ValidateJudgeCounts rejects result payloads with negative judgment tallies.
// Length is caller-defined; only the sign of each entry is checked.
func ValidateJudgeCounts(counts []int64) error {
	for i, count := range counts {
		if count < 0 {
			return apperrors.WithMetadata(
				apperrors.CodeRoomInvalidResult,
				"judge counts must not be negative",
				map[string]string{
					"Index": strconv.Itoa(i),
					"Count": strconv.FormatInt(count, 10),
				},
			)
		}
	}
	return nil
}
