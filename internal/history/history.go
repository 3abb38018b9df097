// internal/history/history.go
//
// Package history pushes confirmed action records onto a Redis queue for an
// out-of-process historian. It is optional: with no Redis configured the
// recorder is nil-safe and records are dropped. Game-state correctness never
// depends on it.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "liarspoker_actions"

// ActionRecord holds the minimal info the historian needs to reconstruct a
// confirmed submission.
type ActionRecord struct {
	ID        uuid.UUID `json:"id"`
	Account   string    `json:"account"`
	RoomID    uint64    `json:"room_id"`
	Kind      string    `json:"kind"`
	TxID      string    `json:"tx_id"`
	Timestamp int64     `json:"timestamp"`
}

// Recorder wraps the Redis client and queue name.
type Recorder struct {
	rdb   *redis.Client
	queue string
	log   *logrus.Logger
}

// Connect initializes a recorder against addr, verifying the connection with
// a short ping. queue falls back to DefaultQueueName when empty.
func Connect(addr string, db int, queue string, log *logrus.Logger) (*Recorder, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Recorder{rdb: rdb, queue: queue, log: log}, nil
}

// Record serializes the record and pushes it onto the queue. A nil recorder
// drops the record silently; a push failure is logged, never propagated.
func (r *Recorder) Record(ctx context.Context, rec ActionRecord) {
	if r == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		r.log.WithField("error", err).Warn("history: marshal failed")
		return
	}
	if err := r.rdb.RPush(ctx, r.queue, data).Err(); err != nil {
		r.log.WithFields(logrus.Fields{
			"queue": r.queue,
			"error": err,
		}).Warn("history: push failed")
	}
}

// Close releases the Redis connection.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.rdb.Close()
}
