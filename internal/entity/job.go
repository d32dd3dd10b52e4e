package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/streetbite/pipeline/constants"
)

// ScrapingJob represents one unit of scrape work for data transfer between layers.
// retry_count only ever increments on a failed attempt that is re-queued.
type ScrapingJob struct {
	ID          uuid.UUID           `json:"id"`
	TargetURL   string              `json:"target_url"`
	JobType     string              `json:"job_type"`
	Status      constants.JobStatus `json:"status"`
	Priority    int                 `json:"priority"`
	RetryCount  int                 `json:"retry_count"`
	MaxRetries  int                 `json:"max_retries"`
	Errors      []string            `json:"errors,omitempty"`
	TruckID     *uuid.UUID          `json:"truck_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// Terminal reports whether no further automatic transition applies. A job in
// failed status is terminal: retryable failures are re-queued as pending at
// transition time, so whatever rests in failed stays there.
func (j *ScrapingJob) Terminal() bool {
	switch j.Status {
	case constants.JobStatusCompleted, constants.JobStatusFailed:
		return true
	default:
		return false
	}
}
