// Package lobby parses lobby service flags and launches the service.
package lobby

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/ensemble.live/internal/platform/cmd"
	"github.com/louisbranch/ensemble.live/internal/platform/logging"
	server "github.com/louisbranch/ensemble.live/internal/services/lobby/app"
)

// Config holds lobby command configuration.
type Config struct {
	HTTPAddr      string        `env:"ENSEMBLE_LIVE_LOBBY_HTTP_ADDR" envDefault:":8080"`
	DBPath        string        `env:"ENSEMBLE_LIVE_LOBBY_DB_PATH" envDefault:"data/lobby.db"`
	WaitTTL       time.Duration `env:"ENSEMBLE_LIVE_LOBBY_WAIT_TTL" envDefault:"30s"`
	LiveTTL       time.Duration `env:"ENSEMBLE_LIVE_LOBBY_LIVE_TTL" envDefault:"5m"`
	SweepInterval time.Duration `env:"ENSEMBLE_LIVE_LOBBY_SWEEP_INTERVAL" envDefault:"10s"`
	RoomCapacity  int           `env:"ENSEMBLE_LIVE_LOBBY_ROOM_CAPACITY" envDefault:"4"`
	LogLevel      string        `env:"ENSEMBLE_LIVE_LOBBY_LOG_LEVEL" envDefault:"info"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The lobby HTTP server address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The lobby SQLite database path")
	fs.DurationVar(&cfg.WaitTTL, "wait-ttl", cfg.WaitTTL, "Seat lease duration while a room is waiting")
	fs.DurationVar(&cfg.LiveTTL, "live-ttl", cfg.LiveTTL, "Seat lease duration while a room is live")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "How often lapsed seat leases are cleared")
	fs.IntVar(&cfg.RoomCapacity, "room-capacity", cfg.RoomCapacity, "Maximum members per room")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Minimum log level (debug, info, warn, error)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the lobby HTTP service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(entrypoint.ServiceLobby, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLobby, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:      cfg.HTTPAddr,
			DBPath:        cfg.DBPath,
			WaitTTL:       cfg.WaitTTL,
			LiveTTL:       cfg.LiveTTL,
			SweepInterval: cfg.SweepInterval,
			RoomCapacity:  cfg.RoomCapacity,
			Logger:        logger,
		})
	})
}
