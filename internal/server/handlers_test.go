package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clickrace/internal/config"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Config{
		Port:                 "0",
		GameDuration:         300 * time.Millisecond,
		LogLevel:             "debug",
		ConnectionTTL:        time.Hour,
		SweepInterval:        time.Second,
		BroadcastConcurrency: 4,
		PublicURL:            "http://race.test",
	}
	srv := New(cfg, zap.NewNop(), nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

// expect reads until a message of the given type arrives.
func expect(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var msg map[string]any
		require.NoError(t, wsjson.Read(ctx, conn, &msg), "waiting for %s", typ)
		if msg["type"] == typ {
			return msg
		}
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHandleCreateRoom(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var body struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	if len(body.RoomID) != 5 {
		t.Errorf("room code length = %d, want 5", len(body.RoomID))
	}
}

func TestHandleRoomState_NotFound(t *testing.T) {
	_, ts := newTestServer(t)

	var body map[string]string
	status := getJSON(t, ts.URL+"/rooms/NOPE1", &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Room not found", body["error"])
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t)

	var body map[string]string
	status := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestHandleMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "clickrace_connections")
	assert.Contains(t, string(data), "go_goroutines")
}

func TestHandleRoomQR(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/rooms/ABCDE/qr.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "body is not a PNG")
}

func TestAnalytics_RequiresDatabase(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/players/alice/stats", "/stats/leaderboard", "/rooms/ABCDE/games"} {
		var body map[string]string
		status := getJSON(t, ts.URL+path, &body)
		assert.Equal(t, http.StatusServiceUnavailable, status, path)
	}
}

func TestWebSocket_GameFlow(t *testing.T) {
	srv, ts := newTestServer(t)

	alice := dial(t, ts)
	send(t, alice, map[string]string{"action": "join", "playerName": "alice", "roomId": "room1"})
	joined := expect(t, alice, "joined")
	assert.Equal(t, []any{"alice"}, joined["players"])
	assert.Equal(t, "waiting", joined["gameState"])

	bob := dial(t, ts)
	send(t, bob, map[string]string{"action": "join", "playerName": "bob", "roomId": "room1"})
	joined = expect(t, bob, "joined")
	assert.Equal(t, []any{"alice", "bob"}, joined["players"])

	pj := expect(t, alice, "playerJoined")
	assert.Equal(t, "bob", pj["playerName"])

	send(t, alice, map[string]string{"action": "click", "playerName": "alice", "roomId": "room1"})
	update := expect(t, bob, "scoreUpdate")
	assert.Equal(t, []any{
		map[string]any{"name": "alice", "clicks": float64(1)},
		map[string]any{"name": "bob", "clicks": float64(0)},
	}, update["scores"])
	reg := expect(t, alice, "clickRegistered")
	assert.Equal(t, float64(1), reg["clicks"])

	ended := expect(t, bob, "gameEnded")
	winner, ok := ended["winner"].(map[string]any)
	require.True(t, ok, "winner should be an object")
	assert.Equal(t, "alice", winner["name"])

	send(t, bob, map[string]string{"action": "click", "playerName": "bob", "roomId": "room1"})
	errMsg := expect(t, bob, "error")
	assert.Equal(t, "Game is not active", errMsg["message"])

	var state map[string]any
	status := getJSON(t, ts.URL+"/rooms/room1", &state)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ended", state["gameState"])
	assert.Equal(t, float64(0), state["timeRemaining"])

	var lb struct {
		Leaderboard []struct {
			Name   string `json:"name"`
			Clicks int    `json:"clicks"`
		} `json:"leaderboard"`
	}
	status = getJSON(t, ts.URL+"/rooms/room1/leaderboard", &lb)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, lb.Leaderboard, 2)
	assert.Equal(t, "alice", lb.Leaderboard[0].Name)

	assert.Equal(t, 2, srv.Hub.Count())
}

func TestWebSocket_Errors(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))
	assert.Equal(t, "Invalid message", expect(t, conn, "error")["message"])

	send(t, conn, map[string]string{"action": "dance"})
	assert.Equal(t, "Unknown action", expect(t, conn, "error")["message"])

	send(t, conn, map[string]string{"action": "join", "roomId": "room1"})
	assert.Equal(t, "playerName and roomId are required", expect(t, conn, "error")["message"])

	send(t, conn, map[string]string{"action": "click", "playerName": "ghost", "roomId": "room1"})
	assert.Equal(t, "Room not found", expect(t, conn, "error")["message"])

	send(t, conn, map[string]string{"action": "getRoomState", "roomId": "room1"})
	assert.Equal(t, "Room not found", expect(t, conn, "error")["message"])

	send(t, conn, map[string]string{"action": "ping"})
	expect(t, conn, "pong")

	send(t, conn, map[string]string{"action": "getLeaderboard", "roomId": "room1"})
	lb := expect(t, conn, "leaderboard")
	assert.Equal(t, []any{}, lb["leaderboard"])
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, map[string]string{"action": "join", "playerName": "alice", "roomId": "room2"})
	expect(t, conn, "joined")
	require.Equal(t, 1, srv.Hub.Count())

	conn.Close(websocket.StatusNormalClosure, "bye")

	require.Eventually(t, func() bool { return srv.Hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	var state map[string]any
	status := getJSON(t, ts.URL+"/rooms/room2", &state)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"alice"}, state["players"], "player stays in the room after disconnect")
}
