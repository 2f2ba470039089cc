// Package httpapi exposes the lobby over JSON HTTP plus a websocket watch
// feed. Handlers stay thin: decode, call the service, encode. Every error
// leaves as a localized {code, message} body with the status mapped from
// the domain code.
package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/room"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/user"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/watch"
)

// IdentityService registers players and resolves bearer tokens.
type IdentityService interface {
	Register(ctx context.Context, name string, leaderCardID int64) (user.User, string, error)
	Resolve(ctx context.Context, token string) (user.User, error)
	Get(ctx context.Context, userID string) (user.User, error)
	Update(ctx context.Context, userID, name string, leaderCardID int64) (user.User, error)
}

// RoomService runs the room coordination operations.
type RoomService interface {
	ListOpenRooms(ctx context.Context, liveID int64) ([]room.Summary, error)
	CreateRoom(ctx context.Context, userID string, liveID int64, difficulty room.Difficulty) (string, error)
	JoinRoom(ctx context.Context, userID, roomID string, difficulty room.Difficulty) (room.JoinResult, error)
	WaitRoom(ctx context.Context, userID, roomID string) (room.Status, []room.WaitUser, error)
	StartRoom(ctx context.Context, userID, roomID string) error
	EndRoom(ctx context.Context, userID, roomID string, judgeCounts []int64, score int64) error
	RoomResult(ctx context.Context, userID, roomID string) ([]room.Result, error)
	LeaveRoom(ctx context.Context, userID, roomID string) error
	RoomView(ctx context.Context, roomID string) (room.Status, []room.WaitUser, error)
}

// Server hosts the lobby HTTP endpoints.
type Server struct {
	identity IdentityService
	rooms    RoomService
	hub      *watch.Hub
	logger   *zap.Logger
}

// NewServer builds a server over the identity and room services. The hub may
// be nil; the watch endpoint then rejects connections.
func NewServer(identity IdentityService, rooms RoomService, hub *watch.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		identity: identity,
		rooms:    rooms,
		hub:      hub,
		logger:   logger,
	}
}

// RegisterRoutes registers the lobby endpoints on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}

	mux.Handle("/user/create", Chain(
		http.HandlerFunc(s.handleUserCreate),
		RequireMethod(http.MethodPost),
	))
	mux.Handle("/user/me", Chain(
		http.HandlerFunc(s.handleUserMe),
		RequireMethod(http.MethodGet),
		s.requireUser(),
	))
	mux.Handle("/user/update", Chain(
		http.HandlerFunc(s.handleUserUpdate),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))

	mux.Handle("/room/create", Chain(
		http.HandlerFunc(s.handleRoomCreate),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))
	mux.Handle("/room/list", Chain(
		http.HandlerFunc(s.handleRoomList),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))
	mux.Handle("/room/join", Chain(
		http.HandlerFunc(s.handleRoomJoin),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))
	mux.Handle("/room/wait", Chain(
		http.HandlerFunc(s.handleRoomWait),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))
	mux.Handle("/room/start", Chain(
		http.HandlerFunc(s.handleRoomStart),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))
	mux.Handle("/room/end", Chain(
		http.HandlerFunc(s.handleRoomEnd),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))
	mux.Handle("/room/result", Chain(
		http.HandlerFunc(s.handleRoomResult),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))
	mux.Handle("/room/leave", Chain(
		http.HandlerFunc(s.handleRoomLeave),
		RequireMethod(http.MethodPost),
		s.requireUser(),
	))
	mux.Handle("/room/watch", Chain(
		s.watchHandler(),
		RequireMethod(http.MethodGet),
	))

	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// Handler returns the full lobby handler with the shared middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return Chain(mux,
		RecoverPanic(s.logger),
		RequestID(),
		s.logRequests(),
		s.withLocale(),
	)
}
