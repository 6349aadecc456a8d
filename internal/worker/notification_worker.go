package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campushq/campus-backend/internal/config"
	"github.com/campushq/campus-backend/internal/model"
)

// NotificationWorker drains the notification queue and persists
// messages in batches. Delivery is fire-and-forget from the services'
// point of view; this worker is the durable half.
type NotificationWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewNotificationWorker creates a new NotificationWorker.
func NewNotificationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *NotificationWorker {
	return &NotificationWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "notification_worker").Logger(),
	}
}

// Start runs the drain loop until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("NotificationWorker started")

	buffer := make([]*model.Notification, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistNotificationsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(result[1]), &n); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, &n)
	}
}

func (w *NotificationWorker) flushSafe(ctx context.Context, batch []*model.Notification) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *NotificationWorker) bulkInsert(ctx context.Context, batch []*model.Notification) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, n := range batch {
		rows = append(rows, []interface{}{
			n.ID, n.RecipientID, n.Type, n.Title, n.Message,
			n.EntityType, n.EntityID, n.CreatedAt,
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"notifications"},
		[]string{"id", "recipient_id", "type", "title", "message",
			"entity_type", "entity_id", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *NotificationWorker) fallbackInsert(ctx context.Context, batch []*model.Notification) {
	requeueList := make([]*model.Notification, 0)

	for _, n := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO notifications (id, recipient_id, type, title, message,
				entity_type, entity_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			n.ID, n.RecipientID, n.Type, n.Title, n.Message,
			n.EntityType, n.EntityID, n.CreatedAt,
		)
		if err != nil {
			w.log.Error().Err(err).Int("recipient_id", n.RecipientID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, n)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *NotificationWorker) requeue(ctx context.Context, items []*model.Notification) {
	pipe := w.rdb.Pipeline()
	for _, n := range items {
		data, _ := json.Marshal(n)
		pipe.RPush(ctx, config.WorkerKey.PersistNotificationsQueue, data)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		time.Sleep(2 * time.Second)
	}
}

func (w *NotificationWorker) shutdown(buffer []*model.Notification) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
