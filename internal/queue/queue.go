// Package queue implements the asynchronous job channel between the upload
// path and the background workers, backed by Redis lists.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/maneesh/filevault/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filevault-queue")

// Topics consumed by cmd/worker.
const (
	TopicThumbnails = "thumbnails"
	TopicWelcome    = "welcome"
)

// ThumbnailJob asks the worker to generate resized derivatives for an
// uploaded image.
type ThumbnailJob struct {
	FileID string `json:"fileId"`
	UserID string `json:"userId"`
}

// WelcomeJob asks the worker to greet a newly registered user.
type WelcomeJob struct {
	UserID string `json:"userId"`
}

// popTimeout bounds each blocking pop so the consumer loop can observe
// context cancellation between jobs.
const popTimeout = 5 * time.Second

// RedisQueue is a producer/consumer pair over Redis lists, one list per
// topic. Producers fire and forget; consumers pull one job at a time.
type RedisQueue struct {
	redis *storage.RedisClient
}

// NewRedisQueue creates a queue over an existing Redis client.
func NewRedisQueue(redis *storage.RedisClient) *RedisQueue {
	return &RedisQueue{redis: redis}
}

func listKey(topic string) string {
	return "queue_" + topic
}

// Enqueue serializes the payload and pushes it onto the topic's list.
func (q *RedisQueue) Enqueue(ctx context.Context, topic string, payload any) error {
	ctx, span := tracer.Start(ctx, "queue.enqueue",
		trace.WithAttributes(
			attribute.String("topic", topic),
		),
	)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.redis.LPush(ctx, listKey(topic), data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Handler processes one delivered job. A returned error marks the job as
// failed; it is logged and the job is not retried.
type Handler func(ctx context.Context, payload []byte) error

// Consume pulls jobs from the topic's list and dispatches them to the
// handler one at a time until ctx is cancelled. A job failure or panic is
// contained at the job boundary and never stops the loop.
func (q *RedisQueue) Consume(ctx context.Context, topic string, handler Handler) error {
	key := listKey(topic)
	log.Printf("Consuming topic %q", topic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, ok, err := q.redis.BRPop(ctx, key, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Queue %q: pop failed: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		q.dispatch(ctx, topic, payload, handler)
	}
}

func (q *RedisQueue) dispatch(ctx context.Context, topic string, payload []byte, handler Handler) {
	ctx, span := tracer.Start(ctx, "queue.dispatch",
		trace.WithAttributes(
			attribute.String("topic", topic),
			attribute.Int("size_bytes", len(payload)),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Queue %q: job panicked: %v", topic, r)
		}
	}()

	if err := handler(ctx, payload); err != nil {
		span.RecordError(err)
		log.Printf("Queue %q: job failed: %v", topic, err)
	}
}
