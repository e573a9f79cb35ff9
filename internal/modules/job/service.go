// README: Job orchestrator. Owns submission, the worker loop, retry
// sweeping, and terminal notifications. Executors plug in per job type.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripgen/internal/ai"
	"tripgen/internal/types"
)

var (
	ErrNotFound         = errors.New("job not found")
	ErrDuplicateRequest = errors.New("duplicate request id")
	ErrInvalidState     = errors.New("job is in a state that does not allow this operation")
	ErrNotRetryable     = errors.New("job has no retry budget left")
	ErrUnknownJobType   = errors.New("no executor registered for job type")
	ErrBadRequest       = errors.New("invalid job request")
)

// ProgressFunc lets an executor report progress while it runs. Reports after
// the job leaves processing are silently dropped.
type ProgressFunc func(progress int, step string)

// Executor runs one job type end to end and returns the JSON result payload.
type Executor interface {
	Type() Type
	RequiresHighPerformance() bool
	Execute(ctx context.Context, j *Job, model ai.ModelDescriptor, report ProgressFunc) (string, error)
}

// Store is the persistence surface the orchestrator needs. *PGStore
// implements it.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, requestID types.ID) (*Job, error)
	ListByTrip(ctx context.Context, tripID types.ID) ([]*Job, error)
	Start(ctx context.Context, requestID types.ID, at time.Time) (bool, error)
	BindModel(ctx context.Context, requestID types.ID, modelID string) error
	UpdateProgress(ctx context.Context, requestID types.ID, progress int, step string, estimated *int) error
	Complete(ctx context.Context, requestID types.ID, resultData string, at time.Time) (bool, error)
	Fail(ctx context.Context, requestID types.ID, message string, retryable bool, at time.Time) (bool, error)
	Cancel(ctx context.Context, requestID types.ID, at time.Time) (bool, error)
	Retry(ctx context.Context, requestID types.ID) (bool, error)
	FindQueued(ctx context.Context, limit int) ([]*Job, error)
	FindFailedRetryable(ctx context.Context, before time.Time) ([]*Job, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	AppendEvent(ctx context.Context, e *Event) error
}

// Queue is the work distribution surface. *RedisQueue implements it.
type Queue interface {
	Enqueue(ctx context.Context, requestID types.ID) error
	Dequeue(ctx context.Context, timeout time.Duration) (types.ID, bool, error)
	AcquireLease(ctx context.Context, requestID types.ID) (bool, error)
	ReleaseLease(ctx context.Context, requestID types.ID) error
}

// ModelPicker selects a model for a run. *ai.Selector implements it.
type ModelPicker interface {
	Select(ctx context.Context, requireHighPerformance bool) (ai.ModelDescriptor, error)
}

// Notifier receives terminal state pushes. *notify.Hub implements it.
type Notifier interface {
	Push(requestID string, status string, result *string, errMsg *string)
}

// Rough wall-clock hints returned at submission, before any progress exists.
var submitEstimates = map[Type]string{
	TypeScheduleGeneration:       "3-5 minutes",
	TypeDayScheduleRegeneration:  "about 2 minutes",
	TypeRecommendationGeneration: "1-2 minutes",
}

const (
	dequeueTimeout = 5 * time.Second
	sweepInterval  = time.Minute
	// Failed jobs rest before the sweeper re-queues them, so transient
	// provider outages get time to clear.
	retryCooldown = 30 * time.Minute
)

type Receipt struct {
	RequestID     types.ID `json:"requestId"`
	Status        Status   `json:"status"`
	EstimatedTime string   `json:"estimatedTime"`
}

// StatusView is the polling response shape. Result is set only on completion.
type StatusView struct {
	RequestID     types.ID        `json:"requestId"`
	Type          Type            `json:"jobType"`
	Status        Status          `json:"status"`
	Progress      int             `json:"progress"`
	CurrentStep   string          `json:"currentStep"`
	ModelID       string          `json:"model,omitempty"`
	EstimatedTime *int            `json:"estimatedTime,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         *string         `json:"error,omitempty"`
	RetryCount    int             `json:"retryCount"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

type Orchestrator struct {
	store     Store
	queue     Queue
	picker    ModelPicker
	notifier  Notifier
	executors map[Type]Executor
	now       func() time.Time
}

func NewOrchestrator(store Store, queue Queue, picker ModelPicker, notifier Notifier, executors ...Executor) *Orchestrator {
	byType := make(map[Type]Executor, len(executors))
	for _, e := range executors {
		byType[e.Type()] = e
	}
	return &Orchestrator{
		store:     store,
		queue:     queue,
		picker:    picker,
		notifier:  notifier,
		executors: byType,
		now:       time.Now,
	}
}

// NewRequestID builds a request id a caller can eyeball in logs: type,
// subject, millisecond timestamp, and a short random suffix.
func NewRequestID(jobType Type, subject types.ID) types.ID {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return types.ID(fmt.Sprintf("%s_%s_%d_%s", jobType, subject, time.Now().UnixMilli(), suffix))
}

// Submit validates, persists, and enqueues a new job. The payload is stored
// as-is for the executor to decode.
func (o *Orchestrator) Submit(ctx context.Context, jobType Type, tripID types.ID, payload any) (*Receipt, error) {
	if _, ok := o.executors[jobType]; !ok {
		return nil, ErrUnknownJobType
	}
	if tripID == "" {
		return nil, fmt.Errorf("%w: missing trip id", ErrBadRequest)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	j := &Job{
		RequestID:   NewRequestID(jobType, tripID),
		Type:        jobType,
		TripID:      tripID,
		Status:      StatusQueued,
		CurrentStep: "queued",
		RequestData: string(data),
		Retryable:   true,
		MaxRetry:    DefaultMaxRetry,
		CreatedAt:   o.now(),
	}
	if err := o.store.Create(ctx, j); err != nil {
		return nil, err
	}
	o.appendEvent(ctx, j.RequestID, "", StatusQueued, "submitted")
	if err := o.queue.Enqueue(ctx, j.RequestID); err != nil {
		return nil, err
	}
	return &Receipt{RequestID: j.RequestID, Status: StatusQueued, EstimatedTime: submitEstimates[jobType]}, nil
}

func (o *Orchestrator) Status(ctx context.Context, requestID types.ID) (*StatusView, error) {
	j, err := o.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	v := &StatusView{
		RequestID:     j.RequestID,
		Type:          j.Type,
		Status:        j.Status,
		Progress:      j.Progress,
		CurrentStep:   j.CurrentStep,
		ModelID:       j.ModelID,
		EstimatedTime: j.EstimatedTime,
		Error:         j.ErrorMessage,
		RetryCount:    j.RetryCount,
		CreatedAt:     j.CreatedAt,
		CompletedAt:   j.CompletedAt,
	}
	if j.Status == StatusCompleted && j.ResultData != nil {
		v.Result = json.RawMessage(*j.ResultData)
	}
	return v, nil
}

// Result returns the payload of a completed job, ErrInvalidState otherwise.
func (o *Orchestrator) Result(ctx context.Context, requestID types.ID) (json.RawMessage, error) {
	j, err := o.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusCompleted || j.ResultData == nil {
		return nil, ErrInvalidState
	}
	return json.RawMessage(*j.ResultData), nil
}

func (o *Orchestrator) ListByTrip(ctx context.Context, tripID types.ID) ([]*Job, error) {
	return o.store.ListByTrip(ctx, tripID)
}

func (o *Orchestrator) Events(ctx context.Context, requestID types.ID) ([]*Event, error) {
	type eventLister interface {
		EventsFor(ctx context.Context, requestID types.ID) ([]*Event, error)
	}
	if el, ok := o.store.(eventLister); ok {
		return el.EventsFor(ctx, requestID)
	}
	return nil, nil
}

// Cancel aborts a queued or processing job. An in-flight provider call is not
// interrupted; its result is discarded when the terminal write loses the CAS.
func (o *Orchestrator) Cancel(ctx context.Context, requestID types.ID) error {
	j, err := o.store.Get(ctx, requestID)
	if err != nil {
		return err
	}
	ok, err := o.store.Cancel(ctx, requestID, o.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	o.appendEvent(ctx, requestID, j.Status, StatusCancelled, "cancelled by caller")
	o.notifier.Push(string(requestID), string(StatusCancelled), nil, nil)
	return nil
}

// Retry re-queues a failed job on explicit request, consuming one retry.
func (o *Orchestrator) Retry(ctx context.Context, requestID types.ID) (*Receipt, error) {
	j, err := o.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusFailed {
		return nil, ErrInvalidState
	}
	if !j.CanRetry() {
		return nil, ErrNotRetryable
	}
	ok, err := o.store.Retry(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRetryable
	}
	o.appendEvent(ctx, requestID, StatusFailed, StatusQueued, fmt.Sprintf("manual retry %d/%d", j.RetryCount+1, j.MaxRetry))
	if err := o.queue.Enqueue(ctx, requestID); err != nil {
		return nil, err
	}
	return &Receipt{RequestID: requestID, Status: StatusQueued, EstimatedTime: submitEstimates[j.Type]}, nil
}

// RunOne executes a single queued job under a lease. A false lease or a lost
// start CAS means another worker has it, which is not an error.
func (o *Orchestrator) RunOne(ctx context.Context, requestID types.ID) error {
	got, err := o.queue.AcquireLease(ctx, requestID)
	if err != nil {
		return err
	}
	if !got {
		return nil
	}
	defer func() {
		if err := o.queue.ReleaseLease(context.WithoutCancel(ctx), requestID); err != nil {
			log.Printf("job %s: release lease: %v", requestID, err)
		}
	}()

	j, err := o.store.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if j.Status != StatusQueued {
		return nil
	}

	startedAt := o.now()
	started, err := o.store.Start(ctx, requestID, startedAt)
	if err != nil {
		return err
	}
	if !started {
		return nil
	}
	o.appendEvent(ctx, requestID, StatusQueued, StatusProcessing, "picked up by worker")
	j.Status = StatusProcessing
	j.StartedAt = &startedAt

	exec, ok := o.executors[j.Type]
	if !ok {
		// Nothing can ever run this job; a retry would hit the same wall.
		o.finishFailed(ctx, j, "no executor registered for "+string(j.Type), false)
		return nil
	}

	model, err := o.picker.Select(ctx, exec.RequiresHighPerformance())
	if err != nil {
		// No model reachable. Not retryable automatically; a manual retry
		// after providers recover does not burn budget for this.
		o.finishFailed(ctx, j, "no AI model available: "+err.Error(), false)
		return nil
	}
	if err := o.store.BindModel(ctx, requestID, model.ModelID); err != nil {
		log.Printf("job %s: bind model: %v", requestID, err)
	}
	j.ModelID = model.ModelID
	log.Printf("job %s: running with model %s", requestID, model.ModelID)

	report := func(progress int, step string) {
		est := EstimateRemaining(startedAt, ClampProgress(progress), o.now())
		if err := o.store.UpdateProgress(ctx, requestID, progress, step, est); err != nil {
			log.Printf("job %s: update progress: %v", requestID, err)
		}
	}

	result, execErr := exec.Execute(ctx, j, model, report)
	if execErr != nil {
		o.finishFailed(ctx, j, execErr.Error(), ai.Retryable(execErr))
		return nil
	}

	applied, err := o.store.Complete(ctx, requestID, result, o.now())
	if err != nil {
		return err
	}
	if !applied {
		// Cancelled while the provider call was in flight. Drop the result.
		log.Printf("job %s: finished after leaving processing, result discarded", requestID)
		return nil
	}
	o.appendEvent(ctx, requestID, StatusProcessing, StatusCompleted, "result stored")
	o.notifier.Push(string(requestID), string(StatusCompleted), &result, nil)
	return nil
}

func (o *Orchestrator) finishFailed(ctx context.Context, j *Job, message string, retryable bool) {
	applied, err := o.store.Fail(ctx, j.RequestID, message, retryable, o.now())
	if err != nil {
		log.Printf("job %s: mark failed: %v", j.RequestID, err)
		return
	}
	if !applied {
		return
	}
	o.appendEvent(ctx, j.RequestID, j.Status, StatusFailed, message)
	o.notifier.Push(string(j.RequestID), string(StatusFailed), nil, &message)
}

func (o *Orchestrator) appendEvent(ctx context.Context, requestID types.ID, from, to Status, detail string) {
	e := &Event{RequestID: requestID, FromStatus: from, ToStatus: to, Detail: detail, CreatedAt: o.now()}
	if err := o.store.AppendEvent(ctx, e); err != nil {
		log.Printf("job %s: append event: %v", requestID, err)
	}
}

// RunWorkers blocks, running n dequeue loops until the context is cancelled.
func (o *Orchestrator) RunWorkers(ctx context.Context, n int) {
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func(worker int) {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				requestID, ok, err := o.queue.Dequeue(ctx, dequeueTimeout)
				if err != nil {
					log.Printf("worker %d: dequeue: %v", worker, err)
					continue
				}
				if !ok {
					continue
				}
				if err := o.RunOne(ctx, requestID); err != nil {
					log.Printf("worker %d: job %s: %v", worker, requestID, err)
				}
			}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
}

// RunRetrySweeper periodically re-queues retryable failures older than the
// cooldown. Blocks until the context is cancelled.
func (o *Orchestrator) RunRetrySweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweepOnce(ctx)
		}
	}
}

func (o *Orchestrator) sweepOnce(ctx context.Context) {
	cutoff := o.now().Add(-retryCooldown)
	jobs, err := o.store.FindFailedRetryable(ctx, cutoff)
	if err != nil {
		log.Printf("retry sweep: %v", err)
		return
	}
	for _, j := range jobs {
		ok, err := o.store.Retry(ctx, j.RequestID)
		if err != nil {
			log.Printf("retry sweep: job %s: %v", j.RequestID, err)
			continue
		}
		if !ok {
			continue
		}
		o.appendEvent(ctx, j.RequestID, StatusFailed, StatusQueued, fmt.Sprintf("auto retry %d/%d", j.RetryCount+1, j.MaxRetry))
		if err := o.queue.Enqueue(ctx, j.RequestID); err != nil {
			log.Printf("retry sweep: enqueue %s: %v", j.RequestID, err)
		}
	}
}

// RequeuePending pushes every queued job back onto the queue. Run once at
// startup so jobs submitted before a redis restart are not stranded. Workers
// that see a duplicate entry lose the start CAS and skip it.
func (o *Orchestrator) RequeuePending(ctx context.Context) error {
	jobs, err := o.store.FindQueued(ctx, 1000)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if err := o.queue.Enqueue(ctx, j.RequestID); err != nil {
			return err
		}
	}
	if len(jobs) > 0 {
		log.Printf("requeued %d pending jobs", len(jobs))
	}
	return nil
}

// CleanupOldJobs deletes terminal jobs older than the given age.
func (o *Orchestrator) CleanupOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	return o.store.DeleteTerminalOlderThan(ctx, o.now().Add(-olderThan))
}
