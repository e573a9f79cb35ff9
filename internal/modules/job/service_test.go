package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tripgen/internal/ai"
	"tripgen/internal/types"
)

// memStore mirrors the conditional-update behavior of the SQL store in
// memory, including the applied flags, and counts terminal writes.
type memStore struct {
	mu             sync.Mutex
	jobs           map[types.ID]*Job
	events         []*Event
	terminalWrites int
}

func newMemStore() *memStore {
	return &memStore{jobs: map[types.ID]*Job{}}
}

func (m *memStore) Create(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.RequestID]; ok {
		return ErrDuplicateRequest
	}
	cp := *j
	m.jobs[j.RequestID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) ListByTrip(_ context.Context, tripID types.ID) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Job
	for _, j := range m.jobs {
		if j.TripID == tripID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) Start(_ context.Context, id types.ID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusQueued {
		return false, nil
	}
	j.Status = StatusProcessing
	j.StartedAt = &at
	j.Progress = 0
	j.CurrentStep = "starting"
	return true, nil
}

func (m *memStore) BindModel(_ context.Context, id types.ID, modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.Status == StatusProcessing {
		j.ModelID = modelID
	}
	return nil
}

func (m *memStore) UpdateProgress(_ context.Context, id types.ID, progress int, step string, est *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusProcessing {
		return nil
	}
	if p := ClampProgress(progress); p > j.Progress {
		j.Progress = p
	}
	j.CurrentStep = step
	j.EstimatedTime = est
	return nil
}

func (m *memStore) Complete(_ context.Context, id types.ID, result string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusProcessing {
		return false, nil
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.CurrentStep = "completed"
	j.ResultData = &result
	j.ErrorMessage = nil
	j.CompletedAt = &at
	m.terminalWrites++
	return true, nil
}

func (m *memStore) Fail(_ context.Context, id types.ID, msg string, retryable bool, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusProcessing {
		return false, nil
	}
	j.Status = StatusFailed
	j.ErrorMessage = &msg
	j.Retryable = retryable
	j.CompletedAt = &at
	m.terminalWrites++
	return true, nil
}

func (m *memStore) Cancel(_ context.Context, id types.ID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status.IsFinal() {
		return false, nil
	}
	j.Status = StatusCancelled
	j.CurrentStep = "cancelled"
	j.CompletedAt = &at
	m.terminalWrites++
	return true, nil
}

func (m *memStore) Retry(_ context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusFailed || j.RetryCount >= j.MaxRetry {
		return false, nil
	}
	j.Status = StatusQueued
	j.RetryCount++
	j.Progress = 0
	j.CurrentStep = "retry queued"
	j.ErrorMessage = nil
	j.StartedAt = nil
	j.CompletedAt = nil
	return true, nil
}

func (m *memStore) FindQueued(_ context.Context, limit int) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Job
	for _, j := range m.jobs {
		if j.Status == StatusQueued && len(out) < limit {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) FindFailedRetryable(_ context.Context, before time.Time) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Job
	for _, j := range m.jobs {
		if j.Status == StatusFailed && j.Retryable && j.RetryCount < j.MaxRetry &&
			j.CompletedAt != nil && j.CompletedAt.Before(before) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.jobs {
		if j.Status.IsFinal() && j.CreatedAt.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// memQueue is an unbounded in-memory queue with SetNX-style leases.
type memQueue struct {
	mu     sync.Mutex
	items  []types.ID
	leases map[types.ID]bool
}

func newMemQueue() *memQueue {
	return &memQueue{leases: map[types.ID]bool{}}
}

func (q *memQueue) Enqueue(_ context.Context, id types.ID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, id)
	return nil
}

func (q *memQueue) Dequeue(_ context.Context, _ time.Duration) (types.ID, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false, nil
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true, nil
}

func (q *memQueue) AcquireLease(_ context.Context, id types.ID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.leases[id] {
		return false, nil
	}
	q.leases[id] = true
	return true, nil
}

func (q *memQueue) ReleaseLease(_ context.Context, id types.ID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.leases, id)
	return nil
}

type fixedPicker struct {
	model ai.ModelDescriptor
	err   error
}

func (p fixedPicker) Select(context.Context, bool) (ai.ModelDescriptor, error) {
	return p.model, p.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	pushes []string
}

func (n *recordingNotifier) Push(requestID, status string, _ *string, _ *string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, requestID+":"+status)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.pushes...)
}

// testExecutor runs scripted results for TypeScheduleGeneration.
type testExecutor struct {
	result   string
	err      error
	onRun    func(j *Job, report ProgressFunc)
	highPerf bool
}

func (e *testExecutor) Type() Type                    { return TypeScheduleGeneration }
func (e *testExecutor) RequiresHighPerformance() bool { return e.highPerf }
func (e *testExecutor) Execute(_ context.Context, j *Job, _ ai.ModelDescriptor, report ProgressFunc) (string, error) {
	if e.onRun != nil {
		e.onRun(j, report)
	}
	return e.result, e.err
}

func newTestOrchestrator(exec Executor) (*Orchestrator, *memStore, *memQueue, *recordingNotifier) {
	store := newMemStore()
	queue := newMemQueue()
	notifier := &recordingNotifier{}
	o := NewOrchestrator(store, queue, fixedPicker{model: ai.GPT4}, notifier, exec)
	return o, store, queue, notifier
}

func TestSubmitRunCompleteLifecycle(t *testing.T) {
	ctx := context.Background()
	exec := &testExecutor{
		result: `{"schedules":[{"day":1}]}`,
		onRun: func(_ *Job, report ProgressFunc) {
			report(20, "collecting location data")
			report(60, "generating itinerary")
			report(80, "saving results")
		},
	}
	o, store, queue, notifier := newTestOrchestrator(exec)

	receipt, err := o.Submit(ctx, TypeScheduleGeneration, "trip-1", map[string]any{"destination": "Kyoto"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if receipt.Status != StatusQueued {
		t.Errorf("receipt status = %s, want queued", receipt.Status)
	}
	if receipt.EstimatedTime == "" {
		t.Error("receipt has no time estimate")
	}

	id, ok, _ := queue.Dequeue(ctx, 0)
	if !ok || id != receipt.RequestID {
		t.Fatalf("Dequeue() = %q, %v", id, ok)
	}
	if err := o.RunOne(ctx, id); err != nil {
		t.Fatalf("RunOne() error = %v", err)
	}

	view, err := o.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if view.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", view.Status)
	}
	if view.Progress != 100 {
		t.Errorf("progress = %d, want 100", view.Progress)
	}
	if view.ModelID != ai.GPT4.ModelID {
		t.Errorf("model = %q, want %q", view.ModelID, ai.GPT4.ModelID)
	}
	if string(view.Result) != exec.result {
		t.Errorf("result = %s, want %s", view.Result, exec.result)
	}

	if store.terminalWrites != 1 {
		t.Errorf("terminal writes = %d, want 1", store.terminalWrites)
	}
	pushes := notifier.all()
	if len(pushes) != 1 || pushes[0] != string(id)+":completed" {
		t.Errorf("pushes = %v, want single completed push", pushes)
	}
}

func TestSubmitUnknownJobType(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(&testExecutor{})
	if _, err := o.Submit(context.Background(), Type("NOPE"), "trip-1", nil); !errors.Is(err, ErrUnknownJobType) {
		t.Fatalf("Submit() error = %v, want ErrUnknownJobType", err)
	}
}

func TestNoModelAvailableFailsWithoutBurningRetries(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	queue := newMemQueue()
	notifier := &recordingNotifier{}
	o := NewOrchestrator(store, queue, fixedPicker{err: ai.ErrNoModelAvailable}, notifier, &testExecutor{})

	receipt, err := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := o.RunOne(ctx, receipt.RequestID); err != nil {
		t.Fatalf("RunOne() error = %v", err)
	}

	j, _ := store.Get(ctx, receipt.RequestID)
	if j.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", j.Status)
	}
	if j.RetryCount != 0 {
		t.Errorf("retryCount = %d, want 0", j.RetryCount)
	}
	if j.Retryable {
		t.Error("no-model failure marked retryable, sweeper would burn budget")
	}
	if j.ErrorMessage == nil || !strings.Contains(*j.ErrorMessage, "no AI model available") {
		t.Errorf("error message = %v", j.ErrorMessage)
	}

	// Manual retry is still allowed once providers recover.
	if _, err := o.Retry(ctx, receipt.RequestID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	j, _ = store.Get(ctx, receipt.RequestID)
	if j.Status != StatusQueued || j.RetryCount != 1 {
		t.Errorf("after retry: status = %s retryCount = %d", j.Status, j.RetryCount)
	}
}

func TestExecutorErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRetryable bool
	}{
		{"provider timeout", &ai.TimeoutError{Family: ai.FamilyOpenAI, ModelID: "m"}, true},
		{"server error", &ai.HTTPError{StatusCode: 503}, true},
		{"malformed response", &ai.ParseError{Reason: "no choices"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			o, store, _, _ := newTestOrchestrator(&testExecutor{err: tt.err})
			receipt, err := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if err := o.RunOne(ctx, receipt.RequestID); err != nil {
				t.Fatalf("RunOne() error = %v", err)
			}
			j, _ := store.Get(ctx, receipt.RequestID)
			if j.Status != StatusFailed {
				t.Fatalf("status = %s, want failed", j.Status)
			}
			if j.Retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", j.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestCancelWhileProcessingDiscardsResult(t *testing.T) {
	ctx := context.Background()
	var o *Orchestrator
	var requestID types.ID
	exec := &testExecutor{
		result: `{"schedules":[]}`,
		onRun: func(j *Job, _ ProgressFunc) {
			// Cancel lands mid-flight, before the provider returns.
			if err := o.Cancel(ctx, j.RequestID); err != nil {
				t.Errorf("Cancel() error = %v", err)
			}
		},
	}
	var store *memStore
	var notifier *recordingNotifier
	o, store, _, notifier = newTestOrchestrator(exec)

	receipt, err := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	requestID = receipt.RequestID
	if err := o.RunOne(ctx, requestID); err != nil {
		t.Fatalf("RunOne() error = %v", err)
	}

	j, _ := store.Get(ctx, requestID)
	if j.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", j.Status)
	}
	if j.ResultData != nil {
		t.Error("result stored for a cancelled job")
	}
	if store.terminalWrites != 1 {
		t.Errorf("terminal writes = %d, want 1", store.terminalWrites)
	}
	pushes := notifier.all()
	if len(pushes) != 1 || pushes[0] != string(requestID)+":cancelled" {
		t.Errorf("pushes = %v, want single cancelled push", pushes)
	}
}

func TestCancelFinalJobIsInvalid(t *testing.T) {
	ctx := context.Background()
	o, _, _, _ := newTestOrchestrator(&testExecutor{result: "{}"})
	receipt, _ := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)
	if err := o.RunOne(ctx, receipt.RequestID); err != nil {
		t.Fatalf("RunOne() error = %v", err)
	}
	if err := o.Cancel(ctx, receipt.RequestID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Cancel() error = %v, want ErrInvalidState", err)
	}
}

func TestConcurrentRunOneWritesOneTerminalState(t *testing.T) {
	ctx := context.Background()
	exec := &testExecutor{result: "{}"}
	o, store, _, notifier := newTestOrchestrator(exec)
	receipt, err := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.RunOne(ctx, receipt.RequestID); err != nil {
				t.Errorf("RunOne() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if store.terminalWrites != 1 {
		t.Errorf("terminal writes = %d, want exactly 1", store.terminalWrites)
	}
	if got := len(notifier.all()); got != 1 {
		t.Errorf("pushes = %d, want exactly 1", got)
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	exec := &testExecutor{err: &ai.HTTPError{StatusCode: 503}}
	o, store, queue, _ := newTestOrchestrator(exec)
	receipt, err := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	for i := 0; i < DefaultMaxRetry; i++ {
		id, ok, _ := queue.Dequeue(ctx, 0)
		if !ok {
			t.Fatalf("round %d: queue empty", i)
		}
		if err := o.RunOne(ctx, id); err != nil {
			t.Fatalf("round %d: RunOne() error = %v", i, err)
		}
		if _, err := o.Retry(ctx, id); err != nil {
			t.Fatalf("round %d: Retry() error = %v", i, err)
		}
	}

	id, _, _ := queue.Dequeue(ctx, 0)
	if err := o.RunOne(ctx, id); err != nil {
		t.Fatalf("final RunOne() error = %v", err)
	}
	if _, err := o.Retry(ctx, receipt.RequestID); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("Retry() error = %v, want ErrNotRetryable", err)
	}
	j, _ := store.Get(ctx, receipt.RequestID)
	if j.RetryCount != DefaultMaxRetry {
		t.Errorf("retryCount = %d, want %d", j.RetryCount, DefaultMaxRetry)
	}
}

func TestRetrySweeperRequeuesCooledFailures(t *testing.T) {
	ctx := context.Background()
	exec := &testExecutor{err: &ai.TimeoutError{Family: ai.FamilyOpenAI, ModelID: "m"}}
	o, store, queue, _ := newTestOrchestrator(exec)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	receipt, err := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	queue.Dequeue(ctx, 0)
	if err := o.RunOne(ctx, receipt.RequestID); err != nil {
		t.Fatalf("RunOne() error = %v", err)
	}

	// Too fresh: inside the cooldown window.
	now = now.Add(10 * time.Minute)
	o.sweepOnce(ctx)
	if j, _ := store.Get(ctx, receipt.RequestID); j.Status != StatusFailed {
		t.Fatalf("swept a failure only 10m old, status = %s", j.Status)
	}

	now = now.Add(25 * time.Minute)
	o.sweepOnce(ctx)
	j, _ := store.Get(ctx, receipt.RequestID)
	if j.Status != StatusQueued {
		t.Fatalf("status = %s, want queued after sweep", j.Status)
	}
	if j.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1", j.RetryCount)
	}
	if id, ok, _ := queue.Dequeue(ctx, 0); !ok || id != receipt.RequestID {
		t.Errorf("sweep did not enqueue the job, got %q ok=%v", id, ok)
	}
}

func TestResultOnlyForCompletedJobs(t *testing.T) {
	ctx := context.Background()
	o, _, _, _ := newTestOrchestrator(&testExecutor{result: "{}"})
	receipt, _ := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)

	if _, err := o.Result(ctx, receipt.RequestID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Result() on queued job error = %v, want ErrInvalidState", err)
	}
	if err := o.RunOne(ctx, receipt.RequestID); err != nil {
		t.Fatalf("RunOne() error = %v", err)
	}
	res, err := o.Result(ctx, receipt.RequestID)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if string(res) != "{}" {
		t.Errorf("Result() = %s", res)
	}
	if _, err := o.Result(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Result() missing error = %v, want ErrNotFound", err)
	}
}

func TestCleanupOldJobs(t *testing.T) {
	ctx := context.Background()
	o, store, _, _ := newTestOrchestrator(&testExecutor{result: "{}"})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	receipt, _ := o.Submit(ctx, TypeScheduleGeneration, "trip-1", nil)
	if err := o.RunOne(ctx, receipt.RequestID); err != nil {
		t.Fatalf("RunOne() error = %v", err)
	}

	now = now.Add(40 * 24 * time.Hour)
	n, err := o.CleanupOldJobs(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldJobs() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := store.Get(ctx, receipt.RequestID); !errors.Is(err, ErrNotFound) {
		t.Errorf("job still present after cleanup")
	}
}
