/**
 * PostgreSQL client for the Screening Worker
 *
 * Persists screening job status and batch counts. Status updates use UPSERT
 * so the worker can create the job record when the submitting API has not
 * done so yet.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a screening job status update
type JobUpdate struct {
	JobID            string
	UserID           string
	Status           string
	TargetName       string
	Submitted        int
	Duplicates       int
	Matched          int
	Unmatched        int
	Failures         int
	ProcessingTimeMs int64
	ArtifactID       string
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus upserts the job record with current status and counts
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO screening_jobs (
			job_id, user_id, status, target_name,
			submitted_count, duplicate_count, matched_count, unmatched_count, failure_count,
			processing_time_ms, artifact_id, error_code, error_message, metadata, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (job_id) DO UPDATE SET
			status             = EXCLUDED.status,
			target_name        = EXCLUDED.target_name,
			submitted_count    = EXCLUDED.submitted_count,
			duplicate_count    = EXCLUDED.duplicate_count,
			matched_count      = EXCLUDED.matched_count,
			unmatched_count    = EXCLUDED.unmatched_count,
			failure_count      = EXCLUDED.failure_count,
			processing_time_ms = EXCLUDED.processing_time_ms,
			artifact_id        = EXCLUDED.artifact_id,
			error_code         = EXCLUDED.error_code,
			error_message      = EXCLUDED.error_message,
			metadata           = EXCLUDED.metadata,
			updated_at         = NOW()
	`

	_, err = p.db.ExecContext(ctx, query,
		update.JobID,
		update.UserID,
		update.Status,
		update.TargetName,
		update.Submitted,
		update.Duplicates,
		update.Matched,
		update.Unmatched,
		update.Failures,
		update.ProcessingTimeMs,
		nullable(update.ArtifactID),
		nullable(update.ErrorCode),
		nullable(update.ErrorMessage),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", update.JobID, err)
	}

	return nil
}

// GetJobStatus fetches the stored status for a job, mostly used by tests and
// operational tooling.
func (p *PostgresClient) GetJobStatus(ctx context.Context, jobID string) (string, error) {
	var status string
	err := p.db.QueryRowContext(ctx,
		`SELECT status FROM screening_jobs WHERE job_id = $1`, jobID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("job %s not found", jobID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query job %s: %w", jobID, err)
	}
	return status, nil
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	return p.db.Close()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
