/**
 * Queue consumer for the Screening Worker
 *
 * Consumes screening jobs from the Redis-backed queue via Asynq. Each job is
 * one batch: the consumer runs the pipeline, packages the result archive,
 * uploads it to the artifact service, and persists job status to PostgreSQL.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/creditscan/screening-worker/internal/archive"
	"github.com/creditscan/screening-worker/internal/clients"
	apperrors "github.com/creditscan/screening-worker/internal/errors"
	"github.com/creditscan/screening-worker/internal/pipeline"
	"github.com/creditscan/screening-worker/internal/storage"
)

// TaskTypeScreening is the Asynq task type for screening jobs.
const TaskTypeScreening = "screening:process"

// Consumer handles job consumption from the Redis queue
type Consumer struct {
	client       *asynq.Client
	server       *asynq.Server
	mux          *asynq.ServeMux
	orchestrator *pipeline.Orchestrator
	store        *storage.PostgresClient
	artifacts    *clients.ArtifactClient
	progress     *ProgressPublisher
	config       *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Orchestrator      *pipeline.Orchestrator
	Store             *storage.PostgresClient
	Artifacts         *clients.ArtifactClient
	Progress          *ProgressPublisher
	ProcessingTimeout int64 // milliseconds, default 300000 (5 minutes)
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("Orchestrator is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:       client,
		server:       server,
		mux:          mux,
		orchestrator: cfg.Orchestrator,
		store:        cfg.Store,
		artifacts:    cfg.Artifacts,
		progress:     cfg.Progress,
		config:       cfg,
	}

	mux.HandleFunc(TaskTypeScreening, consumer.handleScreeningJob)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// handleScreeningJob processes one screening batch
func (c *Consumer) handleScreeningJob(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var jobData JobData
	if err := json.Unmarshal(task.Payload(), &jobData); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}
	if jobData.JobID == "" {
		// Legacy submitters enqueue without an ID; assign one so status rows
		// and progress channels stay addressable.
		jobData.JobID = uuid.New().String()
		log.Printf("[Job %s] Payload had no job ID, assigned one", jobData.JobID)
	}
	if err := jobData.Validate(); err != nil {
		log.Printf("[Job %s] Rejecting job with invalid payload: %v", jobData.JobID, err)
		return fmt.Errorf("invalid job payload: %w", err)
	}

	log.Printf("[Job %s] Screening batch: images=%d, target=%q, user=%s",
		jobData.JobID, len(jobData.Images), jobData.TargetName, jobData.UserID)

	c.updateStatus(ctx, &jobData, "processing", nil, 0)

	timeout := 300000 * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := uniqueFilenames(jobData.Images)
	uploads := make([]pipeline.ImageUpload, len(jobData.Images))
	for i, img := range jobData.Images {
		uploads[i] = pipeline.ImageUpload{
			ID:       fmt.Sprintf("%s-%d", jobData.JobID, i+1),
			Filename: names[i],
			Data:     img.Data,
		}
	}

	result, err := c.orchestrator.ProcessBatch(processCtx, &pipeline.Request{
		JobID:               jobData.JobID,
		UserID:              jobData.UserID,
		TargetName:          jobData.TargetName,
		SimilarityThreshold: jobData.SimilarityThreshold,
		NameMatchThreshold:  jobData.NameMatchThreshold,
		Images:              uploads,
	})

	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Printf("[Job %s] Processing timed out after %v (timeout: %v)", jobData.JobID, duration, timeout)
			timeoutErr := apperrors.NewProcessingTimeoutError(jobData.JobID, timeout, err)
			c.updateStatusFailed(ctx, &jobData, timeoutErr, duration)
			c.publishTerminal(ctx, jobData.JobID, "failed", len(jobData.Images))
			return fmt.Errorf("processing timeout: %w", timeoutErr)
		}

		log.Printf("[Job %s] Screening failed after %v: %v", jobData.JobID, duration, err)
		c.updateStatusFailed(ctx, &jobData, err, duration)
		c.publishTerminal(ctx, jobData.JobID, "failed", len(jobData.Images))
		return fmt.Errorf("screening failed: %w", err)
	}

	archiveData, err := archive.Build(jobData.JobID, result)
	if err != nil {
		log.Printf("[Job %s] Archive packaging failed: %v", jobData.JobID, err)
		c.updateStatusFailed(ctx, &jobData, err, duration)
		c.publishTerminal(ctx, jobData.JobID, "failed", len(jobData.Images))
		return fmt.Errorf("archive packaging failed: %w", err)
	}

	artifactID := ""
	if c.artifacts != nil {
		uploadResp, err := c.artifacts.UploadArchive(ctx, jobData.JobID, archiveData)
		if err != nil {
			// The screening result itself succeeded; surface the upload
			// failure but keep the counts.
			log.Printf("[Job %s] Warning: artifact upload failed: %v", jobData.JobID, err)
		} else {
			artifactID = uploadResp.Artifact.ID
		}
	}

	log.Printf("[Job %s] Screening completed in %v: matched=%d, unmatched=%d, duplicates=%d, failures=%d",
		jobData.JobID, duration, result.Stats.Matched, result.Stats.Unmatched,
		result.Stats.Duplicates, result.Stats.Failures)

	c.updateCompleted(ctx, &jobData, result, artifactID, duration)
	c.publishTerminal(ctx, jobData.JobID, "completed", len(jobData.Images))
	return nil
}

// publishTerminal emits the final lifecycle event for a job so subscribers can
// stop listening. Best-effort, like all progress publishing.
func (c *Consumer) publishTerminal(ctx context.Context, jobID, stage string, total int) {
	if c.progress == nil {
		return
	}
	c.progress.Publish(ctx, jobID, stage, total, total)
}

func (c *Consumer) updateStatus(ctx context.Context, job *JobData, status string, stats *pipeline.Stats, processingMs int64) {
	if c.store == nil {
		return
	}
	update := &storage.JobUpdate{
		JobID:            job.JobID,
		UserID:           job.UserID,
		Status:           status,
		TargetName:       job.TargetName,
		ProcessingTimeMs: processingMs,
		Metadata:         job.Metadata,
	}
	if stats != nil {
		update.Submitted = stats.Submitted
		update.Duplicates = stats.Duplicates
		update.Matched = stats.Matched
		update.Unmatched = stats.Unmatched
		update.Failures = stats.Failures
	}
	if err := c.store.UpdateJobStatus(ctx, update); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to %s: %v", job.JobID, status, err)
	}
}

func (c *Consumer) updateStatusFailed(ctx context.Context, job *JobData, cause error, duration time.Duration) {
	if c.store == nil {
		return
	}
	update := &storage.JobUpdate{
		JobID:            job.JobID,
		UserID:           job.UserID,
		Status:           "failed",
		TargetName:       job.TargetName,
		ProcessingTimeMs: duration.Milliseconds(),
		ErrorMessage:     cause.Error(),
		Metadata:         job.Metadata,
	}
	var se *apperrors.ScreeningError
	if stderrors.As(cause, &se) {
		update.ErrorCode = string(se.Code)
	}
	if err := c.store.UpdateJobStatus(ctx, update); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to failed: %v", job.JobID, err)
	}
}

func (c *Consumer) updateCompleted(ctx context.Context, job *JobData, result *pipeline.Result, artifactID string, duration time.Duration) {
	if c.store == nil {
		return
	}
	update := &storage.JobUpdate{
		JobID:            job.JobID,
		UserID:           job.UserID,
		Status:           "completed",
		TargetName:       job.TargetName,
		Submitted:        result.Stats.Submitted,
		Duplicates:       result.Stats.Duplicates,
		Matched:          result.Stats.Matched,
		Unmatched:        result.Stats.Unmatched,
		Failures:         result.Stats.Failures,
		ProcessingTimeMs: duration.Milliseconds(),
		ArtifactID:       artifactID,
		Metadata:         job.Metadata,
	}
	if err := c.store.UpdateJobStatus(ctx, update); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to completed: %v", job.JobID, err)
	}
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"redisURL":    c.config.RedisURL,
	}
}
