// README: AI job aggregate, status definitions, and transition rules.
package job

import (
	"time"

	"tripgen/internal/types"
)

type Type string

const (
	TypeScheduleGeneration       Type = "SCHEDULE_GENERATION"
	TypeDayScheduleRegeneration  Type = "DAY_SCHEDULE_REGENERATION"
	TypeRecommendationGeneration Type = "RECOMMENDATION_GENERATION"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsFinal reports whether the status is terminal. Terminal jobs are immutable.
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

const DefaultMaxRetry = 3

// Job is one asynchronous generation request and its tracked lifecycle.
// The request payload is opaque to the orchestrator; executors decode it.
type Job struct {
	RequestID     types.ID
	Type          Type
	TripID        types.ID
	Status        Status
	Progress      int
	CurrentStep   string
	ModelID       string
	EstimatedTime *int
	RequestData   string
	ResultData    *string
	ErrorMessage  *string
	Retryable     bool
	RetryCount    int
	MaxRetry      int
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Event is one audit record of a status transition.
type Event struct {
	ID         int64
	RequestID  types.ID
	FromStatus Status
	ToStatus   Status
	Detail     string
	CreatedAt  time.Time
}

// AllowedTransitions represents the job state flow as code. FAILED → queued
// is reachable only through an explicit retry.
var AllowedTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:     {StatusQueued},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// CanRetry reports whether the job may be re-queued for another attempt.
func (j *Job) CanRetry() bool {
	return j.Status == StatusFailed && j.RetryCount < j.MaxRetry
}

// ClampProgress bounds a reported progress value to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// EstimateRemaining projects remaining seconds from elapsed time and progress.
func EstimateRemaining(startedAt time.Time, progress int, now time.Time) *int {
	if progress <= 0 {
		return nil
	}
	elapsed := int(now.Sub(startedAt).Seconds())
	remaining := elapsed * (100 - progress) / progress
	return &remaining
}
