package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"clickrace/internal/connections"
	"clickrace/internal/events"
	"clickrace/internal/rooms"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	ctx := context.Background()
	database, err := Connect(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := database.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() {
		// Clean up test data
		database.conn.Exec("DELETE FROM game_players")
		database.conn.Exec("DELETE FROM games")
		database.conn.Exec("DELETE FROM scores")
		database.conn.Exec("DELETE FROM connections")
		database.conn.Exec("DELETE FROM rooms")
		database.Close()
	})
	return database
}

func TestConnect(t *testing.T) {
	database := getTestDB(t)
	if err := database.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	database := getTestDB(t)

	tables := []string{"rooms", "connections", "scores", "games", "game_players"}
	for _, table := range tables {
		var exists bool
		err := database.conn.QueryRow(`
			SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)
		`, table).Scan(&exists)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s does not exist", table)
		}
	}

	// migrations must be re-runnable
	if err := database.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error: %v", err)
	}
}

func TestRoomStore(t *testing.T) {
	database := getTestDB(t)
	store := NewRoomStore(database)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if _, err := store.Get(ctx, "ROOM1"); !errors.Is(err, rooms.ErrNotFound) {
		t.Fatalf("Get() on missing room error = %v, want ErrNotFound", err)
	}

	created, err := store.Create(ctx, rooms.New("ROOM1", 30*time.Second, now))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.Version != 1 || created.State != rooms.StateWaiting {
		t.Errorf("created = %+v, want version 1 waiting", created)
	}
	if created.Duration != 30*time.Second {
		t.Errorf("duration = %v, want 30s", created.Duration)
	}

	// create-if-absent keeps the first room
	again, err := store.Create(ctx, rooms.New("ROOM1", time.Minute, now))
	if err != nil {
		t.Fatalf("second Create() error: %v", err)
	}
	if again.Duration != 30*time.Second {
		t.Errorf("second Create() replaced the room: duration = %v", again.Duration)
	}

	created.Join("alice", "c1", now)
	if err := created.Start(now); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	created.Players[0].Clicks = 1
	if err := store.Replace(ctx, created); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	if created.Version != 2 {
		t.Errorf("version after Replace = %d, want 2", created.Version)
	}

	stale := again
	stale.Join("bob", "c2", now)
	if err := store.Replace(ctx, stale); !errors.Is(err, rooms.ErrConflict) {
		t.Errorf("stale Replace() error = %v, want ErrConflict", err)
	}

	got, err := store.Get(ctx, "ROOM1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State != rooms.StatePlaying {
		t.Errorf("state = %q, want playing", got.State)
	}
	if len(got.Players) != 1 || got.Players[0].Name != "alice" || got.Players[0].Clicks != 1 {
		t.Errorf("players = %+v, want alice with 1 click", got.Players)
	}
	if !got.EndsAt.Equal(now.Add(30 * time.Second)) {
		t.Errorf("endsAt = %v, want %v", got.EndsAt, now.Add(30*time.Second))
	}

	ids, err := store.Overdue(ctx, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Overdue() error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Overdue() before end = %v, want none", ids)
	}
	ids, err = store.Overdue(ctx, now.Add(31*time.Second))
	if err != nil {
		t.Fatalf("Overdue() error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "ROOM1" {
		t.Errorf("Overdue() = %v, want [ROOM1]", ids)
	}
}

func TestConnectionStore(t *testing.T) {
	database := getTestDB(t)
	store := NewConnectionStore(database, time.Hour)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for _, c := range []*connections.Connection{
		{ID: "c1", PlayerName: "alice", RoomID: "R1", ConnectedAt: now, LastSeen: now},
		{ID: "c2", PlayerName: "bob", RoomID: "R1", ConnectedAt: now, LastSeen: now.Add(-2 * time.Hour)},
		{ID: "c3", ConnectedAt: now, LastSeen: now},
	} {
		if err := store.Put(ctx, c); err != nil {
			t.Fatalf("Put(%s) error: %v", c.ID, err)
		}
	}

	ids, err := store.ListByRoom(ctx, "R1")
	if err != nil {
		t.Fatalf("ListByRoom() error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ListByRoom() = %v, want 2 ids", ids)
	}

	n, err := store.Expire(ctx, now)
	if err != nil {
		t.Fatalf("Expire() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Expire() = %d, want 1", n)
	}
	if _, err := store.Get(ctx, "c2"); !errors.Is(err, connections.ErrNotFound) {
		t.Errorf("Get(c2) error = %v, want ErrNotFound", err)
	}

	if err := store.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	c3, err := store.Get(ctx, "c3")
	if err != nil {
		t.Fatalf("Get(c3) error: %v", err)
	}
	if c3.RoomID != "" {
		t.Errorf("c3 room = %q, want unbound", c3.RoomID)
	}
}

func TestLeaderboard(t *testing.T) {
	database := getTestDB(t)
	board := NewLeaderboard(database)
	ctx := context.Background()

	scores := map[string]int{"alice": 3, "bob": 5, "carol": 3, "dave": 1}
	for name, clicks := range scores {
		if err := board.Upsert(ctx, "R1", name, clicks); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
	}
	if err := board.Upsert(ctx, "R1", "dave", 2); err != nil {
		t.Fatalf("Upsert() update error: %v", err)
	}
	// a late, lower count must not win
	if err := board.Upsert(ctx, "R1", "bob", 4); err != nil {
		t.Fatalf("Upsert() stale error: %v", err)
	}

	top, err := board.Top(ctx, "R1", 3)
	if err != nil {
		t.Fatalf("Top() error: %v", err)
	}
	want := []string{"bob", "alice", "carol"}
	if len(top) != len(want) {
		t.Fatalf("Top() returned %d entries, want %d", len(top), len(want))
	}
	for i, name := range want {
		if top[i].Name != name {
			t.Errorf("Top()[%d] = %q, want %q", i, top[i].Name, name)
		}
	}
	if top[0].Clicks != 5 {
		t.Errorf("bob clicks = %d, want 5", top[0].Clicks)
	}

	empty, err := board.Top(ctx, "nobody", 10)
	if err != nil {
		t.Fatalf("Top() error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Top() on empty room = %v, want empty slice", empty)
	}
}

func TestRecordGame(t *testing.T) {
	database := getTestDB(t)
	history := NewHistory(database, zap.NewNop())
	ctx := context.Background()
	start := time.Now().Add(-30 * time.Second)

	id, err := history.RecordGame(ctx, events.GameEnded{
		RoomID:    "R1",
		StartedAt: start,
		EndedAt:   start.Add(30 * time.Second),
		Duration:  30 * time.Second,
		FinalScores: []rooms.Score{
			{Name: "bob", Clicks: 9},
			{Name: "alice", Clicks: 9},
			{Name: "carol", Clicks: 4},
		},
	})
	if err != nil {
		t.Fatalf("RecordGame() error: %v", err)
	}

	rows, err := database.conn.Query(`
		SELECT player_name, rank FROM game_players WHERE game_id = $1 ORDER BY rank, player_name
	`, id)
	if err != nil {
		t.Fatalf("query game players: %v", err)
	}
	defer rows.Close()

	got := map[string]int{}
	for rows.Next() {
		var name string
		var rank int
		if err := rows.Scan(&name, &rank); err != nil {
			t.Fatal(err)
		}
		got[name] = rank
	}
	want := map[string]int{"bob": 1, "alice": 1, "carol": 3}
	for name, rank := range want {
		if got[name] != rank {
			t.Errorf("rank of %s = %d, want %d", name, got[name], rank)
		}
	}
}
