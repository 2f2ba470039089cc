package room

import (
	"strconv"

	apperrors "github.com/louisbranch/ensemble.live/internal/platform/errors"
)

// Difficulty selects which chart a member plays during the live.
type Difficulty int

const (
	// DifficultyUnspecified represents an invalid difficulty value.
	DifficultyUnspecified Difficulty = iota
	// DifficultyNormal is the standard chart.
	DifficultyNormal
	// DifficultyHard is the advanced chart.
	DifficultyHard
)

// ParseDifficulty validates a wire difficulty value.
func ParseDifficulty(value int) (Difficulty, error) {
	switch Difficulty(value) {
	case DifficultyNormal:
		return DifficultyNormal, nil
	case DifficultyHard:
		return DifficultyHard, nil
	default:
		return DifficultyUnspecified, apperrors.WithMetadata(
			apperrors.CodeRoomInvalidDifficulty,
			"difficulty is not supported",
			map[string]string{"Difficulty": strconv.Itoa(value)},
		)
	}
}

// DifficultyLabel returns a stable label for a difficulty.
func DifficultyLabel(difficulty Difficulty) string {
	switch difficulty {
	case DifficultyNormal:
		return "NORMAL"
	case DifficultyHard:
		return "HARD"
	default:
		return "UNSPECIFIED"
	}
}
