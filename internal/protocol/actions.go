package protocol

import (
	"encoding/json"
	"fmt"
)

// Action is one client request. The set of implementations is closed: Decode
// only ever returns the types below.
type Action interface {
	isAction()
	Name() string
}

type Join struct {
	PlayerName string
	RoomID     string
}

type Click struct {
	RoomID     string
	PlayerName string
}

type GetLeaderboard struct {
	RoomID string
}

type GetRoomState struct {
	RoomID string
}

type Ping struct{}

// Unknown carries an action name the server does not recognise.
type Unknown struct {
	Action string
}

func (Join) isAction()           {}
func (Click) isAction()          {}
func (GetLeaderboard) isAction() {}
func (GetRoomState) isAction()   {}
func (Ping) isAction()           {}
func (Unknown) isAction()        {}

func (Join) Name() string           { return "join" }
func (Click) Name() string          { return "click" }
func (GetLeaderboard) Name() string { return "getLeaderboard" }
func (GetRoomState) Name() string   { return "getRoomState" }
func (Ping) Name() string           { return "ping" }
func (Unknown) Name() string        { return "unknown" }

// ClientMessage is the JSON frame received from clients.
type ClientMessage struct {
	Action     string `json:"action"`
	PlayerName string `json:"playerName,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
}

// Decode parses a frame. Malformed JSON is an error; an unrecognised action
// name is not, it decodes to Unknown.
func Decode(data []byte) (Action, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding client message: %w", err)
	}
	switch m.Action {
	case "join":
		return Join{PlayerName: m.PlayerName, RoomID: m.RoomID}, nil
	case "click":
		return Click{RoomID: m.RoomID, PlayerName: m.PlayerName}, nil
	case "getLeaderboard":
		return GetLeaderboard{RoomID: m.RoomID}, nil
	case "getRoomState":
		return GetRoomState{RoomID: m.RoomID}, nil
	case "ping":
		return Ping{}, nil
	default:
		return Unknown{Action: m.Action}, nil
	}
}
