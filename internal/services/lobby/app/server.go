// Package server wires the lobby runtime: storage, services, the HTTP
// surface, and the lease sweeper lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/ensemble.live/internal/platform/timeouts"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/api/httpapi"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/coordinator"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/identity"
	lobbysqlite "github.com/louisbranch/ensemble.live/internal/services/lobby/storage/sqlite"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/watch"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// DefaultSweepInterval is how often lapsed leases are cleared when the
// config leaves the interval unset.
const DefaultSweepInterval = 10 * time.Second

// Config defines the inputs for the lobby process.
type Config struct {
	HTTPAddr      string
	DBPath        string
	WaitTTL       time.Duration
	LiveTTL       time.Duration
	SweepInterval time.Duration
	RoomCapacity  int
	Logger        *zap.Logger
}

// Server hosts the lobby HTTP process and storage lifecycle.
type Server struct {
	listener      net.Listener
	httpServer    *http.Server
	store         *lobbysqlite.Store
	rooms         *coordinator.Service
	logger        *zap.Logger
	sweepInterval time.Duration
}

// New creates a configured lobby server listening on cfg.HTTPAddr.
func New(cfg Config) (*Server, error) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		return nil, errors.New("http address is required")
	}
	dbPath := strings.TrimSpace(cfg.DBPath)
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := openStore(dbPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	users := identity.NewService(store, logger)
	rooms := coordinator.NewService(store, coordinator.Config{
		WaitTTL:    cfg.WaitTTL,
		LiveTTL:    cfg.LiveTTL,
		MaxMembers: cfg.RoomCapacity,
	}, logger)
	hub := watch.NewHub(rooms, logger)
	rooms.SetNotifier(hub)

	api := httpapi.NewServer(users, rooms, hub, logger)
	httpServer := &http.Server{
		Handler:           otelhttp.NewHandler(api.Handler(), "lobby"),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		listener:      listener,
		httpServer:    httpServer,
		store:         store,
		rooms:         rooms,
		logger:        logger,
		sweepInterval: cfg.SweepInterval,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a lobby server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return fmt.Errorf("init lobby server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve lobby: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server and the lease sweeper until the
// context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("lobby server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeperDone := s.startSweeper(sweepCtx)
	defer func() {
		stopSweeper()
		<-sweeperDone
	}()

	serveErr := make(chan error, 1)
	s.logger.Info("lobby server listening", zap.String("addr", s.Addr()))
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// startSweeper clears lapsed leases on a ticker until ctx ends. The
// returned channel closes once the loop has exited.
func (s *Server) startSweeper(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.rooms.SweepExpired(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Warn("lease sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					s.logger.Info("lease sweep cleared seats", zap.Int("removed", removed))
				}
			}
		}
	}()
	return done
}

// Close releases lobby server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close lobby store", zap.Error(err))
		}
	}
}

func openStore(path string) (*lobbysqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := lobbysqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lobby sqlite store: %w", err)
	}
	return store, nil
}
