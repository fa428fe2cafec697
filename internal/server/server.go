package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clickrace/internal/analytics"
	"clickrace/internal/broadcast"
	"clickrace/internal/config"
	"clickrace/internal/connections"
	"clickrace/internal/db"
	"clickrace/internal/events"
	"clickrace/internal/game"
	"clickrace/internal/leaderboard"
	"clickrace/internal/metrics"
	"clickrace/internal/rooms"
	"clickrace/internal/wshub"
)

const (
	connectionSweepInterval = time.Minute
	shutdownTimeout         = 10 * time.Second
)

type staleSweeper interface {
	SweepStale(ctx context.Context, interval time.Duration)
}

type Server struct {
	Config    config.Config
	Log       *zap.Logger
	Engine    *game.Engine
	Rooms     rooms.Store
	Hub       *wshub.Hub
	Out       *broadcast.Coordinator
	Metrics   *metrics.Recorder
	Registry  *prometheus.Registry
	Events    *events.Bus
	DB        *db.DB             // nil if no database configured
	History   *db.History        // nil if no database configured
	Analytics *analytics.Queries // nil if no database configured

	connections staleSweeper
}

// New wires the stores, transport and engine. A nil database selects the
// in-memory stores.
func New(cfg config.Config, log *zap.Logger, database *db.DB) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		Config:   cfg,
		Log:      log,
		Hub:      wshub.NewHub(),
		Metrics:  metrics.New(reg),
		Registry: reg,
		Events:   events.NewBus(0),
		DB:       database,
	}

	var (
		dir   connections.Directory
		board leaderboard.Index
	)
	if database != nil {
		conns := db.NewConnectionStore(database, cfg.ConnectionTTL)
		s.Rooms = db.NewRoomStore(database)
		dir, s.connections = conns, conns
		board = db.NewLeaderboard(database)
		s.History = db.NewHistory(database, log.Named("history"))
		s.Analytics = analytics.NewQueries(database)
	} else {
		conns := connections.NewStore(cfg.ConnectionTTL)
		s.Rooms = rooms.NewMemoryStore()
		dir, s.connections = conns, conns
		board = leaderboard.NewMemoryIndex()
	}

	s.Out = broadcast.NewCoordinator(dir, s.Hub, log.Named("broadcast"), s.Metrics, cfg.BroadcastConcurrency)
	s.Engine = game.NewEngine(game.Config{
		Duration:      cfg.GameDuration,
		SweepInterval: cfg.SweepInterval,
	}, game.Deps{
		Rooms:       s.Rooms,
		Directory:   dir,
		Leaderboard: board,
		Out:         s.Out,
		Log:         log.Named("engine"),
		Metrics:     s.Metrics,
		Events:      s.Events,
	})
	return s
}

func Run() error {
	cfg := config.Load()

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional database connection
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Connect(ctx, cfg.DatabaseURL, log.Named("db"))
		if err != nil {
			log.Warn("database unavailable, running with in-memory stores", zap.Error(err))
			database = nil
		} else {
			defer database.Close()
			if err := database.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
		}
	} else {
		log.Info("DATABASE_URL not set, running with in-memory stores")
	}

	s := New(cfg, log, database)
	return s.Serve(ctx)
}

// Serve runs the HTTP server and the background loops until ctx is done or one
// of them fails.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:              ":" + s.Config.Port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		s.Engine.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.connections.SweepStale(ctx, connectionSweepInterval)
		return nil
	})
	g.Go(func() error {
		if s.History != nil {
			s.History.Run(ctx, s.Events)
		} else {
			logEvents(ctx, s.Events, s.Log.Named("events"))
		}
		return nil
	})
	g.Go(func() error {
		s.Log.Info("server listening", zap.String("addr", httpServer.Addr), zap.String("url", s.Config.PublicURL))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.Log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// logEvents drains the game event bus when no history store is configured.
func logEvents(ctx context.Context, bus *events.Bus, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bus.Games:
			switch ev := ev.(type) {
			case events.GameStarted:
				log.Debug("game started", zap.String("room", ev.RoomID), zap.Time("endsAt", ev.EndsAt))
			case events.GameEnded:
				log.Debug("game ended", zap.String("room", ev.RoomID), zap.Int("players", len(ev.FinalScores)))
			}
		}
	}
}
