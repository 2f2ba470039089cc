// Package identity issues credential tokens and resolves them to players.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/ensemble.live/internal/platform/errors"
	"github.com/louisbranch/ensemble.live/internal/platform/id"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/user"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/storage"
)

// tokenAttempts bounds the retry loop for fresh token generation.
const tokenAttempts = 5

// ErrInvalidCredential indicates a token that resolves to no user.
var ErrInvalidCredential = apperrors.New(apperrors.CodeInvalidCredential, "credential is invalid")

// Service registers players and resolves bearer tokens.
type Service struct {
	store          storage.UserStore
	logger         *zap.Logger
	clock          func() time.Time
	idGenerator    func() (string, error)
	tokenGenerator func() (string, error)
}

// NewService builds an identity service with production defaults.
func NewService(store storage.UserStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          store,
		logger:         logger,
		clock:          time.Now,
		idGenerator:    id.NewID,
		tokenGenerator: newToken,
	}
}

// Register creates a profile and returns its fresh credential token.
func (s *Service) Register(ctx context.Context, name string, leaderCardID int64) (user.User, string, error) {
	created, err := user.CreateUser(user.CreateUserInput{
		Name:         name,
		LeaderCardID: leaderCardID,
	}, s.clock, s.idGenerator)
	if err != nil {
		return user.User{}, "", err
	}

	token, err := s.freshToken(ctx)
	if err != nil {
		return user.User{}, "", err
	}

	credential := user.Credential{
		Token:     token,
		UserID:    created.ID,
		CreatedAt: created.CreatedAt,
	}
	if err := s.store.CreateUserWithCredential(ctx, created, credential); err != nil {
		return user.User{}, "", fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", created.ID))
	return created, token, nil
}

// Resolve maps a bearer token to its user. Unknown tokens surface as an
// invalid credential, never as not-found.
func (s *Service) Resolve(ctx context.Context, token string) (user.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.User{}, ErrInvalidCredential
	}

	resolved, err := s.store.GetUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, ErrInvalidCredential
		}
		return user.User{}, fmt.Errorf("resolve credential: %w", err)
	}
	return resolved, nil
}

// Get loads a profile by id.
func (s *Service) Get(ctx context.Context, userID string) (user.User, error) {
	found, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, err
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return found, nil
}

// Update renames a profile and changes its leader card.
func (s *Service) Update(ctx context.Context, userID, name string, leaderCardID int64) (user.User, error) {
	normalized, err := user.NormalizeName(name)
	if err != nil {
		return user.User{}, err
	}

	current, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, err
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}

	current.Name = normalized
	current.LeaderCardID = leaderCardID
	current.UpdatedAt = s.clock().UTC()
	if err := s.store.UpdateUser(ctx, current); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, err
		}
		return user.User{}, fmt.Errorf("update user: %w", err)
	}
	return current, nil
}

// freshToken generates a token that no existing credential uses. Collisions
// are astronomically rare but cheap to rule out before the insert.
func (s *Service) freshToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := s.tokenGenerator()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}

		_, err = s.store.GetUserByToken(ctx, token)
		if errors.Is(err, storage.ErrNotFound) {
			return token, nil
		}
		if err != nil {
			return "", fmt.Errorf("check token: %w", err)
		}
	}
	return "", fmt.Errorf("exhausted token generation attempts")
}

func newToken() (string, error) {
	token, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return token.String(), nil
}
