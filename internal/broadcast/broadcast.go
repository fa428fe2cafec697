package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clickrace/internal/apperr"
	"clickrace/internal/connections"
	"clickrace/internal/metrics"
	"clickrace/internal/wshub"
)

const DefaultConcurrency = 16

// Sender delivers one payload to one connection.
type Sender interface {
	Send(ctx context.Context, connID string, payload []byte) error
}

// Coordinator fans messages out to the connections bound to a room.
type Coordinator struct {
	dir     connections.Directory
	sender  Sender
	log     *zap.Logger
	metrics *metrics.Recorder
	limit   int
}

func NewCoordinator(dir connections.Directory, sender Sender, log *zap.Logger, rec *metrics.Recorder, limit int) *Coordinator {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Coordinator{
		dir:     dir,
		sender:  sender,
		log:     log,
		metrics: rec,
		limit:   limit,
	}
}

// Send delivers msg to a single connection.
func (c *Coordinator) Send(ctx context.Context, connID string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling %T: %w", msg, err)
	}
	return c.deliver(ctx, connID, payload)
}

// BroadcastToRoom delivers msg to every connection bound to roomID except
// exclude. Each recipient is independent: failures are logged and counted, and
// never reach the caller.
func (c *Coordinator) BroadcastToRoom(ctx context.Context, roomID string, msg any, exclude string) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal broadcast", zap.String("room", roomID), zap.Error(err))
		return
	}

	ids, err := c.dir.ListByRoom(ctx, roomID)
	if err != nil {
		c.log.Error("list room connections", zap.String("room", roomID), zap.Error(err))
		return
	}

	// Deliveries outlive the triggering request.
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.limit)
	for _, id := range ids {
		if id == exclude {
			continue
		}
		g.Go(func() error {
			_ = c.deliver(ctx, id, payload)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) deliver(ctx context.Context, connID string, payload []byte) error {
	if err := c.sender.Send(ctx, connID, payload); err != nil {
		c.metrics.Delivery(false)
		c.log.Warn("delivery failed", zap.String("conn", connID), zap.Error(err))
		if errors.Is(err, wshub.ErrConnectionGone) {
			if derr := c.dir.Delete(ctx, connID); derr != nil {
				c.log.Warn("drop stale connection", zap.String("conn", connID), zap.Error(derr))
			}
		}
		return apperr.Delivery(connID, err)
	}
	c.metrics.Delivery(true)
	return nil
}
