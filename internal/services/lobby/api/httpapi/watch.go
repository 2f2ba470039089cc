package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/louisbranch/ensemble.live/internal/platform/requestctx"
	"github.com/louisbranch/ensemble.live/internal/platform/timeouts"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/room"
)

// watchHandler authenticates the watcher before upgrading, so rejections
// travel as plain HTTP statuses instead of failed websocket handshakes.
// Browsers cannot set headers on websocket dials, so the credential may
// arrive as a token query parameter instead of the Authorization header.
func (s *Server) watchHandler() http.Handler {
	wsHandler := websocket.Handler(s.serveWatch)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.hub == nil {
			http.Error(w, "watch feed is not configured", http.StatusServiceUnavailable)
			return
		}

		token := bearerToken(r)
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		viewer, err := s.identity.Resolve(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if strings.TrimSpace(r.URL.Query().Get("room_id")) == "" {
			s.writeError(w, r, room.ErrEmptyID)
			return
		}

		wsHandler.ServeHTTP(w, r.WithContext(requestctx.WithUserID(r.Context(), viewer.ID)))
	})
}

// serveWatch streams wait-room snapshots until the room dissolves or the
// client goes away. The first frame is the current state; later frames are
// pushed by the hub after committed changes.
func (s *Server) serveWatch(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	r := conn.Request()
	viewerID := requestctx.UserIDFromContext(r.Context())
	roomID := strings.TrimSpace(r.URL.Query().Get("room_id"))

	status, users, err := s.rooms.RoomView(r.Context(), roomID)
	if err != nil {
		s.logger.Debug("watch rejected",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return
	}

	sub := s.hub.Subscribe(roomID)
	defer sub.Close()

	if err := writeWatchFrame(conn, status, users, viewerID); err != nil {
		return
	}

	// Watchers never send data; the read pump only notices the client
	// going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(io.Discard, conn)
	}()

	for {
		select {
		case <-done:
			return
		case snapshot, ok := <-sub.Updates():
			if !ok {
				return
			}
			if err := writeWatchFrame(conn, snapshot.Status, snapshot.Users, viewerID); err != nil {
				return
			}
			if snapshot.Status == room.StatusDissolved {
				return
			}
		}
	}
}

func writeWatchFrame(conn *websocket.Conn, status room.Status, users []room.WaitUser, viewerID string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeouts.WatchWrite))

	frame := waitRoomResponse{
		Status:       int(status),
		RoomUserList: make([]roomUser, 0, len(users)),
	}
	for _, u := range users {
		frame.RoomUserList = append(frame.RoomUserList, roomUser{
			UserID:           u.UserID,
			Name:             u.Name,
			LeaderCardID:     u.LeaderCardID,
			SelectDifficulty: int(u.Difficulty),
			IsMe:             u.UserID == viewerID,
			IsHost:           u.IsHost,
		})
	}
	return websocket.JSON.Send(conn, frame)
}
