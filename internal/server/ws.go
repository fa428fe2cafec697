package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"clickrace/internal/apperr"
	"clickrace/internal/protocol"
	"clickrace/internal/wshub"
)

const maxFrameBytes = 4096

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.Config.AllowedOrigins,
	})
	if err != nil {
		s.Log.Debug("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxFrameBytes)

	ctx := r.Context()
	connID := uuid.NewString()
	log := s.Log.Named("ws").With(zap.String("conn", connID))

	client := wshub.NewClient(connID, conn)
	s.Hub.Register(client)
	if err := s.Engine.Connect(ctx, connID); err != nil {
		log.Error("register connection", zap.Error(err))
		s.Hub.Unregister(connID)
		conn.Close(websocket.StatusInternalError, "Internal error")
		return
	}
	s.Metrics.ConnectionOpened()
	log.Debug("connected")

	writeCtx, cancelWrite := context.WithCancel(ctx)
	go client.WritePump(writeCtx, s.Hub)

	defer func() {
		cancelWrite()
		s.Hub.Unregister(connID)
		if err := s.Engine.Disconnect(context.WithoutCancel(ctx), connID); err != nil {
			log.Error("remove connection", zap.Error(err))
		}
		s.Metrics.ConnectionClosed()
		log.Debug("disconnected")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					log.Debug("read", zap.Error(err))
				}
			}
			return
		}
		s.dispatch(ctx, log, connID, data)
	}
}

// dispatch runs one inbound frame. Failures are answered with an error message
// to the sending connection only.
func (s *Server) dispatch(ctx context.Context, log *zap.Logger, connID string, data []byte) {
	action, err := protocol.Decode(data)
	if err != nil {
		s.Metrics.Action("invalid", apperr.KindValidation.String())
		s.replyError(ctx, log, connID, "Invalid message")
		return
	}

	switch a := action.(type) {
	case protocol.Join:
		err = s.Engine.Join(ctx, connID, a.PlayerName, a.RoomID)
	case protocol.Click:
		err = s.Engine.Click(ctx, connID, a.RoomID, a.PlayerName)
	case protocol.GetLeaderboard:
		err = s.Engine.GetLeaderboard(ctx, connID, a.RoomID)
	case protocol.GetRoomState:
		err = s.Engine.GetRoomState(ctx, connID, a.RoomID)
	case protocol.Ping:
		err = s.Engine.Ping(ctx, connID)
	case protocol.Unknown:
		err = apperr.Validation("Unknown action")
	}

	if err == nil {
		s.Metrics.Action(action.Name(), "ok")
		return
	}

	kind := apperr.KindOf(err)
	s.Metrics.Action(action.Name(), kind.String())
	switch kind {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindInactiveGame:
		log.Debug("action rejected", zap.String("action", action.Name()), zap.Error(err))
	default:
		log.Error("action failed", zap.String("action", action.Name()), zap.Error(err))
	}
	s.replyError(ctx, log, connID, apperr.PublicMessage(err))
}

func (s *Server) replyError(ctx context.Context, log *zap.Logger, connID, msg string) {
	if err := s.Out.Send(ctx, connID, protocol.NewError(msg)); err != nil && !errors.Is(err, context.Canceled) {
		log.Debug("error reply not delivered", zap.Error(err))
	}
}
