// Package watch fans room snapshots out to websocket watchers. The feed is
// advisory: it mirrors committed room state on a best-effort channel, while
// the polling wait view stays the authoritative path and the only one that
// refreshes seat leases.
package watch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/ensemble.live/internal/platform/timeouts"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/room"
)

// Snapshot is one pushed view of a room: its status and seats.
type Snapshot struct {
	Status room.Status
	Users  []room.WaitUser
}

// Source reads the current room view for a push. Implemented by the
// membership coordinator.
type Source interface {
	RoomView(ctx context.Context, roomID string) (room.Status, []room.WaitUser, error)
}

// Hub tracks which rooms are being watched and pushes fresh snapshots to
// their subscribers after every committed change.
type Hub struct {
	source  Source
	logger  *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	rooms map[string]map[*Subscription]struct{}
}

// NewHub builds a hub reading snapshots from source.
func NewHub(source Source, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		source:  source,
		logger:  logger,
		timeout: timeouts.WatchWrite,
		rooms:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a watcher for a room. The caller must Close the
// subscription when done.
func (h *Hub) Subscribe(roomID string) *Subscription {
	sub := &Subscription{
		hub:     h,
		roomID:  roomID,
		updates: make(chan Snapshot, 1),
	}
	h.mu.Lock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if subs, ok := h.rooms[sub.roomID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.rooms, sub.roomID)
		}
	}
	h.mu.Unlock()
}

// RoomChanged receives the coordinator's post-commit signal. Rooms nobody
// watches cost nothing; otherwise the snapshot is fetched and fanned out off
// the mutation path, bounded by the push timeout.
func (h *Hub) RoomChanged(roomID string) {
	h.mu.Lock()
	watched := len(h.rooms[roomID]) > 0
	h.mu.Unlock()
	if !watched {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		h.broadcast(ctx, roomID)
	}()
}

func (h *Hub) broadcast(ctx context.Context, roomID string) {
	status, users, err := h.source.RoomView(ctx, roomID)
	if err != nil {
		h.logger.Debug("room snapshot failed",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return
	}
	snapshot := Snapshot{Status: status, Users: users}

	h.mu.Lock()
	subscribers := make([]*Subscription, 0, len(h.rooms[roomID]))
	for sub := range h.rooms[roomID] {
		subscribers = append(subscribers, sub)
	}
	h.mu.Unlock()

	for _, sub := range subscribers {
		sub.offer(snapshot)
	}
}

// Subscription is one watcher's feed of room snapshots.
type Subscription struct {
	hub    *Hub
	roomID string

	mu      sync.Mutex
	closed  bool
	updates chan Snapshot
}

// Updates delivers snapshots, newest state only. The channel closes when
// the subscription does.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// offer replaces any pending snapshot instead of blocking, so a slow
// watcher skips straight to the latest state.
func (s *Subscription) offer(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.updates <- snapshot:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// Close detaches the watcher and closes its update channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
}
