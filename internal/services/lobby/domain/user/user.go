// Package user models the player profile attached to a credential token.
package user

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	apperrors "github.com/louisbranch/ensemble.live/internal/platform/errors"
	"github.com/louisbranch/ensemble.live/internal/platform/id"
)

// namePolicy strips every HTML element from display names. Names are
// rendered verbatim in other players' wait views, so markup never survives.
var namePolicy = bluemonday.StrictPolicy()

// ErrEmptyName indicates a missing display name.
var ErrEmptyName = apperrors.New(apperrors.CodeUserEmptyName, "user name is required")

// User is a player profile.
type User struct {
	ID   string
	Name string
	// LeaderCardID is the card shown next to the name in wait views. The
	// value is an opaque client reference.
	LeaderCardID int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credential links an opaque bearer token to a user.
type Credential struct {
	Token     string
	UserID    string
	CreatedAt time.Time
}

// CreateUserInput describes what is needed to register a player.
type CreateUserInput struct {
	Name         string
	LeaderCardID int64
}

// CreateUser builds a new profile with a generated ID and timestamps.
func CreateUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	name, err := NormalizeName(input.Name)
	if err != nil {
		return User{}, err
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:           userID,
		Name:         name,
		LeaderCardID: input.LeaderCardID,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// SanitizeName strips markup from a display name and trims whitespace.
func SanitizeName(name string) string {
	stripped := namePolicy.Sanitize(name)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// NormalizeName sanitizes a display name and rejects empty results.
func NormalizeName(name string) (string, error) {
	sanitized := SanitizeName(name)
	if sanitized == "" {
		return "", ErrEmptyName
	}
	return sanitized, nil
}
