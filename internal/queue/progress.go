/**
 * Job progress publisher
 *
 * Publishes per-stage progress events to a Redis channel so the submitting
 * front end can surface live batch progress. Publishing is best-effort:
 * a failed publish is logged, never fatal for the job.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creditscan/screening-worker/internal/logging"
)

// ProgressEvent is one stage-progress notification.
type ProgressEvent struct {
	JobID     string    `json:"jobId"`
	Stage     string    `json:"stage"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressPublisher publishes screening progress over Redis pub/sub.
type ProgressPublisher struct {
	client *redis.Client
	logger *logging.Logger
}

// NewProgressPublisher connects a publisher to the given Redis URL.
func NewProgressPublisher(redisURL string) (*ProgressPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &ProgressPublisher{
		client: redis.NewClient(opts),
		logger: logging.NewLogger("progress"),
	}, nil
}

// Publish emits one progress event on the job's channel.
func (p *ProgressPublisher) Publish(ctx context.Context, jobID, stage string, done, total int) {
	event := ProgressEvent{
		JobID:     jobID,
		Stage:     stage,
		Done:      done,
		Total:     total,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to marshal progress event", "job", jobID, "error", err)
		return
	}
	channel := fmt.Sprintf("screening:progress:%s", jobID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("Failed to publish progress event", "job", jobID, "stage", stage, "error", err)
	}
}

// Close releases the Redis connection.
func (p *ProgressPublisher) Close() error {
	return p.client.Close()
}
