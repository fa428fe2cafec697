package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clickrace/internal/apperr"
	"clickrace/internal/connections"
	"clickrace/internal/events"
	"clickrace/internal/leaderboard"
	"clickrace/internal/metrics"
	"clickrace/internal/protocol"
	"clickrace/internal/rooms"
)

var (
	errRoomNotFound   = apperr.NotFound("Room not found")
	errPlayerNotFound = apperr.NotFound("Player not found in room")
	errInactive       = apperr.InactiveGame("Game is not active")

	// internal signals from inside a mutation
	errOverdue    = errors.New("room is past its end time")
	errNotPlaying = errors.New("room is not playing")
)

type Config struct {
	Duration      time.Duration // game length
	SweepInterval time.Duration // how often overdue rooms are finalized
	MaxAttempts   int           // conditional write retries per mutation
}

func DefaultConfig() Config {
	return Config{
		Duration:      rooms.DefaultDuration,
		SweepInterval: 5 * time.Second,
		MaxAttempts:   16,
	}
}

// Outbox delivers messages to one connection or to a whole room.
type Outbox interface {
	Send(ctx context.Context, connID string, msg any) error
	BroadcastToRoom(ctx context.Context, roomID string, msg any, exclude string)
}

type Deps struct {
	Rooms       rooms.Store
	Directory   connections.Directory
	Leaderboard leaderboard.Index
	Out         Outbox
	Log         *zap.Logger
	Metrics     *metrics.Recorder // optional
	Events      *events.Bus       // optional
	Now         func() time.Time  // optional, defaults to time.Now
}

// Engine runs the room lifecycle. It keeps no room state between calls: every
// action loads the room, mutates it and writes it back conditionally.
type Engine struct {
	rooms   rooms.Store
	dir     connections.Directory
	board   leaderboard.Index
	out     Outbox
	log     *zap.Logger
	metrics *metrics.Recorder
	bus     *events.Bus
	now     func() time.Time
	cfg     Config
	timers  *scheduler
}

func NewEngine(cfg Config, d Deps) *Engine {
	def := DefaultConfig()
	if cfg.Duration <= 0 {
		cfg.Duration = def.Duration
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Engine{
		rooms:   d.Rooms,
		dir:     d.Directory,
		board:   d.Leaderboard,
		out:     d.Out,
		log:     d.Log,
		metrics: d.Metrics,
		bus:     d.Events,
		now:     d.Now,
		cfg:     cfg,
		timers:  newScheduler(),
	}
}

// Connect records a new transport connection.
func (e *Engine) Connect(ctx context.Context, connID string) error {
	now := e.now()
	if err := e.dir.Put(ctx, &connections.Connection{ID: connID, ConnectedAt: now, LastSeen: now}); err != nil {
		return apperr.Storage("registering connection", err)
	}
	return nil
}

// Disconnect forgets a connection. The player stays in the room.
func (e *Engine) Disconnect(ctx context.Context, connID string) error {
	if err := e.dir.Delete(ctx, connID); err != nil {
		return apperr.Storage("removing connection", err)
	}
	return nil
}

// Join adds playerName to roomID, creating the room on first use, and binds
// connID to them.
func (e *Engine) Join(ctx context.Context, connID, playerName, roomID string) error {
	if playerName == "" || roomID == "" {
		return apperr.Validation("playerName and roomId are required")
	}
	now := e.now()

	if err := e.bind(ctx, connID, playerName, roomID, now); err != nil {
		return err
	}
	if _, err := e.rooms.Create(ctx, rooms.New(roomID, e.cfg.Duration, now)); err != nil {
		return apperr.Storage("creating room", err)
	}

	room, err := e.mutate(ctx, roomID, func(r *rooms.Room) error {
		r.Join(playerName, connID, now)
		return nil
	})
	if err != nil {
		return err
	}

	player := room.Player(playerName)
	if err := e.board.Upsert(ctx, roomID, playerName, player.Clicks); err != nil {
		return apperr.Storage("updating leaderboard", err)
	}

	names := room.PlayerNames()
	e.log.Debug("player joined", zap.String("room", roomID), zap.String("player", playerName), zap.Int("players", len(names)))

	e.out.BroadcastToRoom(ctx, roomID, protocol.PlayerJoined{
		Type:       protocol.TypePlayerJoined,
		PlayerName: playerName,
		Players:    names,
		GameState:  room.State,
	}, connID)
	e.reply(ctx, connID, protocol.Joined{
		Type:       protocol.TypeJoined,
		RoomID:     roomID,
		PlayerName: playerName,
		Players:    names,
		GameState:  room.State,
	})
	return nil
}

// Click counts one click. The first click in a waiting room starts the game and
// is counted too.
func (e *Engine) Click(ctx context.Context, connID, roomID, playerName string) error {
	if roomID == "" || playerName == "" {
		return apperr.Validation("roomId and playerName are required")
	}
	now := e.now()

	var started bool
	room, err := e.mutate(ctx, roomID, func(r *rooms.Room) error {
		started = false
		if r.Overdue(now) {
			return errOverdue
		}
		if r.State == rooms.StateEnded {
			return errInactive
		}
		p := r.Player(playerName)
		if p == nil {
			return errPlayerNotFound
		}
		if r.State == rooms.StateWaiting {
			if err := r.Start(now); err != nil {
				return err
			}
			started = true
		}
		p.Clicks++
		return nil
	})
	if errors.Is(err, errOverdue) {
		if err := e.EndGame(ctx, roomID); err != nil {
			e.log.Error("end overdue game", zap.String("room", roomID), zap.Error(err))
		}
		return errInactive
	}
	if err != nil {
		return err
	}

	if started {
		e.gameStarted(room)
	}
	e.metrics.Click()

	clicks := room.Player(playerName).Clicks
	if err := e.board.Upsert(ctx, roomID, playerName, clicks); err != nil {
		return apperr.Storage("updating leaderboard", err)
	}

	e.out.BroadcastToRoom(ctx, roomID, protocol.ScoreUpdate{
		Type:          protocol.TypeScoreUpdate,
		Scores:        room.Ranked(),
		TimeRemaining: room.TimeRemaining(now),
	}, "")
	e.reply(ctx, connID, protocol.ClickRegistered{
		Type:   protocol.TypeClickRegistered,
		Clicks: clicks,
	})
	return nil
}

// EndGame finalizes a playing room and announces the result. Rooms that are
// missing or not playing are left alone.
func (e *Engine) EndGame(ctx context.Context, roomID string) error {
	room, err := e.mutate(ctx, roomID, func(r *rooms.Room) error {
		if r.State != rooms.StatePlaying {
			return errNotPlaying
		}
		return r.End()
	})
	if errors.Is(err, errNotPlaying) || errors.Is(err, errRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	e.timers.cancel(roomID)

	scores := room.Ranked()
	for _, sc := range scores {
		if err := e.board.Upsert(ctx, roomID, sc.Name, sc.Clicks); err != nil {
			e.log.Warn("sync final score", zap.String("room", roomID), zap.String("player", sc.Name), zap.Error(err))
		}
	}

	// a late finalization still records the scheduled end
	endedAt := room.EndsAt
	if now := e.now(); now.Before(endedAt) {
		endedAt = now
	}

	var winner *rooms.Score
	if len(scores) > 0 {
		w := scores[0]
		winner = &w
	}

	e.metrics.GameEnded()
	e.bus.Publish(events.GameEnded{
		RoomID:      roomID,
		StartedAt:   room.StartedAt,
		EndedAt:     endedAt,
		Duration:    room.Duration,
		FinalScores: scores,
	})
	e.log.Info("game ended", zap.String("room", roomID), zap.Int("players", len(scores)))

	e.out.BroadcastToRoom(ctx, roomID, protocol.GameEnded{
		Type:        protocol.TypeGameEnded,
		FinalScores: scores,
		Winner:      winner,
	}, "")
	return nil
}

// Leaderboard reads the top entries from the leaderboard index. The index trails
// the room record, so it can briefly disagree with RoomState.
func (e *Engine) Leaderboard(ctx context.Context, roomID string) ([]leaderboard.Entry, error) {
	if roomID == "" {
		return nil, apperr.Validation("roomId is required")
	}
	entries, err := e.board.Top(ctx, roomID, leaderboard.DefaultLimit)
	if err != nil {
		return nil, apperr.Storage("reading leaderboard", err)
	}
	return entries, nil
}

// GetLeaderboard sends the room's top entries to connID.
func (e *Engine) GetLeaderboard(ctx context.Context, connID, roomID string) error {
	entries, err := e.Leaderboard(ctx, roomID)
	if err != nil {
		return err
	}
	e.reply(ctx, connID, protocol.Leaderboard{
		Type:        protocol.TypeLeaderboard,
		RoomID:      roomID,
		Leaderboard: entries,
	})
	return nil
}

// RoomState reports a room as it is now, finalizing it first if its time is up.
func (e *Engine) RoomState(ctx context.Context, roomID string) (protocol.RoomState, error) {
	if roomID == "" {
		return protocol.RoomState{}, apperr.Validation("roomId is required")
	}
	room, err := e.load(ctx, roomID)
	if err != nil {
		return protocol.RoomState{}, err
	}
	now := e.now()
	if room.Overdue(now) {
		if err := e.EndGame(ctx, roomID); err != nil {
			return protocol.RoomState{}, err
		}
		if room, err = e.load(ctx, roomID); err != nil {
			return protocol.RoomState{}, err
		}
	}
	return protocol.RoomState{
		Type:          protocol.TypeRoomState,
		RoomID:        roomID,
		GameState:     room.State,
		Players:       room.PlayerNames(),
		Scores:        room.Ranked(),
		TimeRemaining: room.TimeRemaining(now),
	}, nil
}

// GetRoomState sends the room's current state to connID.
func (e *Engine) GetRoomState(ctx context.Context, connID, roomID string) error {
	state, err := e.RoomState(ctx, roomID)
	if err != nil {
		return err
	}
	e.reply(ctx, connID, state)
	return nil
}

// Ping refreshes the connection's liveness and answers with pong.
func (e *Engine) Ping(ctx context.Context, connID string) error {
	now := e.now()
	c, err := e.dir.Get(ctx, connID)
	switch {
	case errors.Is(err, connections.ErrNotFound):
		c = &connections.Connection{ID: connID, ConnectedAt: now}
	case err != nil:
		return apperr.Storage("loading connection", err)
	}
	c.LastSeen = now
	if err := e.dir.Put(ctx, c); err != nil {
		return apperr.Storage("saving connection", err)
	}
	e.reply(ctx, connID, protocol.Pong{Type: protocol.TypePong})
	return nil
}

// Run finalizes overdue rooms every sweep interval until ctx is done, then
// stops any pending timers.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	defer e.timers.stopAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep ends every room still playing past its end time. It is what makes a
// game end even when the process that armed its timer is gone.
func (e *Engine) Sweep(ctx context.Context) int {
	ids, err := e.rooms.Overdue(ctx, e.now())
	if err != nil {
		e.log.Error("list overdue rooms", zap.Error(err))
		return 0
	}
	for _, id := range ids {
		if err := e.EndGame(ctx, id); err != nil {
			e.log.Error("end overdue game", zap.String("room", id), zap.Error(err))
		}
	}
	return len(ids)
}

func (e *Engine) gameStarted(room *rooms.Room) {
	roomID := room.ID
	e.timers.arm(roomID, room.EndsAt.Sub(e.now()), func() {
		if err := e.EndGame(context.Background(), roomID); err != nil {
			e.log.Error("end game on timer", zap.String("room", roomID), zap.Error(err))
		}
	})
	e.metrics.GameStarted()
	e.bus.Publish(events.GameStarted{RoomID: roomID, StartedAt: room.StartedAt, EndsAt: room.EndsAt})
	e.log.Info("game started", zap.String("room", roomID), zap.Time("endsAt", room.EndsAt))
}

func (e *Engine) bind(ctx context.Context, connID, playerName, roomID string, now time.Time) error {
	c, err := e.dir.Get(ctx, connID)
	switch {
	case errors.Is(err, connections.ErrNotFound):
		c = &connections.Connection{ID: connID, ConnectedAt: now}
	case err != nil:
		return apperr.Storage("loading connection", err)
	}
	c.PlayerName = playerName
	c.RoomID = roomID
	c.LastSeen = now
	if err := e.dir.Put(ctx, c); err != nil {
		return apperr.Storage("binding connection", err)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, roomID string) (*rooms.Room, error) {
	room, err := e.rooms.Get(ctx, roomID)
	if errors.Is(err, rooms.ErrNotFound) {
		return nil, errRoomNotFound
	}
	if err != nil {
		return nil, apperr.Storage("loading room", err)
	}
	return room, nil
}

// mutate applies fn to a fresh copy of the room and writes it back, retrying
// when another writer got there first. fn must be safe to run more than once.
func (e *Engine) mutate(ctx context.Context, roomID string, fn func(*rooms.Room) error) (*rooms.Room, error) {
	for range e.cfg.MaxAttempts {
		room, err := e.load(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if err := fn(room); err != nil {
			return nil, err
		}
		err = e.rooms.Replace(ctx, room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, rooms.ErrConflict) {
			return nil, apperr.Storage("saving room", err)
		}
	}
	return nil, apperr.Storage("saving room", fmt.Errorf("after %d attempts: %w", e.cfg.MaxAttempts, rooms.ErrConflict))
}

func (e *Engine) reply(ctx context.Context, connID string, msg any) {
	if err := e.out.Send(ctx, connID, msg); err != nil {
		e.log.Debug("reply not delivered", zap.String("conn", connID), zap.Error(err))
	}
}
