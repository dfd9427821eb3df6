package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aurahealth/screening-core/internal/application"
	analysisdomain "github.com/aurahealth/screening-core/internal/domain/analysis"
	domain "github.com/aurahealth/screening-core/internal/domain/batch"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[domain.JobID]domain.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[domain.JobID]domain.Job)}
}

func (r *fakeJobs) Save(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobs) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return &job, nil
}

func (r *fakeJobs) Latest(ctx context.Context, clinic string, limit int) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, job := range r.jobs {
		if job.ClinicID == clinic {
			c := job
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeJobs) MarkProcessing(ctx context.Context, id domain.JobID, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.jobs[id]
	job.Status = domain.StatusProcessing
	job.StartedAt = &startedAt
	r.jobs[id] = job
	return nil
}

func (r *fakeJobs) UpdateProgress(ctx context.Context, id domain.JobID, processed, success, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.jobs[id]
	job.ProcessedCount = processed
	job.SuccessCount = success
	job.FailedCount = failed
	r.jobs[id] = job
	return nil
}

func (r *fakeJobs) MarkCompleted(ctx context.Context, id domain.JobID, status domain.Status, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.jobs[id]
	job.Status = status
	job.CompletedAt = &completedAt
	r.jobs[id] = job
	return nil
}

type fakeErrors struct {
	mu      sync.Mutex
	entries []domain.JobError
}

func (r *fakeErrors) Save(ctx context.Context, e *domain.JobError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *fakeErrors) ListByJob(ctx context.Context, clinic string, jobID string, limit int) ([]*domain.JobError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.JobError
	for _, e := range r.entries {
		if e.ClinicID == clinic && e.JobID == jobID {
			c := e
			out = append(out, &c)
		}
	}
	return out, nil
}

// fakeAnalyzer fails the images listed in fail and tracks the in-flight high
// water mark to verify the pool bound.
type fakeAnalyzer struct {
	fail     map[string]bool
	delay    time.Duration
	inFlight int64
	peak     int64
}

func (a *fakeAnalyzer) StartAnalysis(ctx context.Context, clinic, imageID string) (*analysisdomain.Record, error) {
	cur := atomic.AddInt64(&a.inFlight, 1)
	defer atomic.AddInt64(&a.inFlight, -1)
	for {
		old := atomic.LoadInt64(&a.peak)
		if cur <= old || atomic.CompareAndSwapInt64(&a.peak, old, cur) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.fail[imageID] {
		return nil, errors.New("synthetic analysis failure")
	}
	return &analysisdomain.Record{
		ID:       analysisdomain.AnalysisID("rec-" + imageID),
		ClinicID: clinic,
		ImageID:  imageID,
		Status:   analysisdomain.StatusCompleted,
	}, nil
}

func waitTerminal(t *testing.T, c *Coordinator, id domain.JobID) *domain.Job {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("job did not reach a terminal status in time")
		default:
		}
		job, err := c.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func imageIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("img-%03d", i)
	}
	return out
}

func TestQueueBatchEmptyRejected(t *testing.T) {
	c := &Coordinator{Jobs: newFakeJobs(), Analyzer: &fakeAnalyzer{}, Clock: application.SystemClock{}}
	if _, err := c.QueueBatch(context.Background(), "clinic-a", nil); !errors.Is(err, domain.ErrEmptyBatch) {
		t.Fatalf("err = %v, want ErrEmptyBatch", err)
	}
}

func TestQueueBatchReturnsImmediately(t *testing.T) {
	jobs := newFakeJobs()
	c := &Coordinator{
		Jobs:     jobs,
		Analyzer: &fakeAnalyzer{delay: 50 * time.Millisecond},
		Clock:    application.SystemClock{},
	}

	start := time.Now()
	id, err := c.QueueBatch(context.Background(), "clinic-a", imageIDs(20))
	if err != nil {
		t.Fatalf("QueueBatch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Fatalf("QueueBatch blocked for %v", elapsed)
	}

	job, err := c.GetStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if job.Status != domain.StatusQueued && job.Status != domain.StatusProcessing {
		t.Fatalf("fresh job status = %v", job.Status)
	}

	waitTerminal(t, c, id)
}

func TestBatchCountersAndPartialFailure(t *testing.T) {
	jobs := newFakeJobs()
	errRepo := &fakeErrors{}
	analyzer := &fakeAnalyzer{
		fail: map[string]bool{
			"img-007": true, "img-023": true, "img-043": true, "img-077": true, "img-099": true,
		},
		delay: time.Millisecond,
	}
	c := &Coordinator{
		Jobs:        jobs,
		Errors:      errRepo,
		Analyzer:    analyzer,
		Clock:       application.SystemClock{},
		Concurrency: 10,
	}

	id, err := c.QueueBatch(context.Background(), "clinic-a", imageIDs(100))
	if err != nil {
		t.Fatalf("QueueBatch: %v", err)
	}
	job := waitTerminal(t, c, id)

	if job.Status != domain.StatusCompleted {
		t.Fatalf("status = %v, want completed (partial failure never fails the batch)", job.Status)
	}
	if job.ProcessedCount != 100 || job.SuccessCount != 95 || job.FailedCount != 5 {
		t.Fatalf("counters = %d/%d/%d, want 100/95/5",
			job.ProcessedCount, job.SuccessCount, job.FailedCount)
	}
	if job.ProcessedCount != job.SuccessCount+job.FailedCount {
		t.Fatal("counter consistency violated")
	}
	if peak := atomic.LoadInt64(&analyzer.peak); peak > 10 {
		t.Fatalf("in-flight peak = %d, want <= 10", peak)
	}

	list, err := c.JobErrors(context.Background(), "clinic-a", id, 50)
	if err != nil {
		t.Fatalf("JobErrors: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("persisted errors = %d, want 5", len(list))
	}
	for _, e := range list {
		if e.Phase != "analyze" || e.Message == "" {
			t.Fatalf("malformed job error: %+v", e)
		}
	}
}

func TestGetStatusFallsBackToStore(t *testing.T) {
	jobs := newFakeJobs()
	stored := domain.Job{
		ID:          domain.JobID("restart-1"),
		ClinicID:    "clinic-a",
		Status:      domain.StatusProcessing,
		TotalImages: 4,
	}
	if err := jobs.Save(context.Background(), &stored); err != nil {
		t.Fatal(err)
	}

	c := &Coordinator{Jobs: jobs, Analyzer: &fakeAnalyzer{}, Clock: application.SystemClock{}}

	// Not in the registry (fresh process), so the store answers.
	job, err := c.GetStatus(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if job.Status != domain.StatusProcessing || job.TotalImages != 4 {
		t.Fatalf("got %+v, want stored snapshot", job)
	}
}

func TestProgressPersistedDuringRun(t *testing.T) {
	jobs := newFakeJobs()
	c := &Coordinator{
		Jobs:        jobs,
		Analyzer:    &fakeAnalyzer{delay: time.Millisecond},
		Clock:       application.SystemClock{},
		Concurrency: 2,
	}

	id, err := c.QueueBatch(context.Background(), "clinic-a", imageIDs(10))
	if err != nil {
		t.Fatalf("QueueBatch: %v", err)
	}
	waitTerminal(t, c, id)

	// The store must have caught up with the in-memory counters.
	persisted, err := jobs.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if persisted.ProcessedCount != 10 || persisted.Status != domain.StatusCompleted {
		t.Fatalf("persisted = %+v, want processed=10 completed", persisted)
	}
	if persisted.CompletedAt == nil {
		t.Fatal("persisted job missing CompletedAt")
	}
}

func TestShutdownStopsNewWork(t *testing.T) {
	jobs := newFakeJobs()
	analyzer := &fakeAnalyzer{delay: 20 * time.Millisecond}
	c := &Coordinator{
		Jobs:        jobs,
		Analyzer:    analyzer,
		Clock:       application.SystemClock{},
		Concurrency: 1,
	}

	id, err := c.QueueBatch(context.Background(), "clinic-a", imageIDs(50))
	if err != nil {
		t.Fatalf("QueueBatch: %v", err)
	}

	time.Sleep(30 * time.Millisecond) // let a few images through

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	job, err := c.GetStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if job.ProcessedCount >= 50 {
		t.Fatalf("processed = %d, expected the drain to cut the batch short", job.ProcessedCount)
	}
	// Drained jobs stay processing for crash recovery to pick up.
	if job.Status != domain.StatusProcessing {
		t.Fatalf("status = %v, want processing after drain", job.Status)
	}
}
