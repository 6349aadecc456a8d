package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campushq/campus-backend/internal/config"
	"github.com/campushq/campus-backend/internal/model"
)

// Dispatcher accepts outbound notifications. Implementations are
// fire-and-forget: a failed dispatch is logged, never surfaced to the
// mutation that produced the event.
type Dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification)
}

// QueueDispatcher pushes notifications onto a Redis list consumed by
// the notification worker, which persists them in batches.
type QueueDispatcher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewQueueDispatcher creates a Redis-backed dispatcher.
func NewQueueDispatcher(rdb *redis.Client, log zerolog.Logger) *QueueDispatcher {
	return &QueueDispatcher{
		rdb: rdb,
		log: log.With().Str("component", "notifier").Logger(),
	}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, n model.Notification) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		d.log.Error().Err(err).Msg("Marshal notification failed")
		return
	}
	if err := d.rdb.RPush(ctx, config.WorkerKey.PersistNotificationsQueue, payload).Err(); err != nil {
		d.log.Error().Err(err).Int("recipient_id", n.RecipientID).Msg("Enqueue notification failed")
	}
}

// Nop discards every notification. Used in tests and tooling that do
// not care about delivery.
type Nop struct{}

func (Nop) Dispatch(context.Context, model.Notification) {}
