package batch

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/aurahealth/screening-core/internal/application"
	analysisdomain "github.com/aurahealth/screening-core/internal/domain/analysis"
	domain "github.com/aurahealth/screening-core/internal/domain/batch"
)

// defaultConcurrency caps in-flight analyses per job.
const defaultConcurrency = 10

// Analyzer is the per-image pipeline the coordinator fans out to.
type Analyzer interface {
	StartAnalysis(ctx context.Context, clinic, imageID string) (*analysisdomain.Record, error)
}

// Coordinator accepts batch submissions, runs a bounded worker pool over the
// per-image pipeline, and aggregates job status. Safe for concurrent use.
type Coordinator struct {
	Jobs        domain.Repository
	Errors      domain.ErrorRepository
	Analyzer    Analyzer
	Clock       application.Clock
	Concurrency int

	mu       sync.Mutex
	registry map[domain.JobID]*jobState
	jobs     sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
}

// jobState is the resident aggregate; counters are guarded by its own mutex
// because many workers complete concurrently.
type jobState struct {
	mu  sync.Mutex
	job domain.Job
}

func (st *jobState) snapshot() *domain.Job {
	st.mu.Lock()
	defer st.mu.Unlock()
	j := st.job
	j.ImageIDs = append([]string(nil), st.job.ImageIDs...)
	return &j
}

// QueueBatch creates a job in queued state and returns its id immediately.
// The fan-out runs in the background; callers never block on completion.
func (c *Coordinator) QueueBatch(ctx context.Context, clinic string, imageIDs []string) (domain.JobID, error) {
	if len(imageIDs) == 0 {
		return "", domain.ErrEmptyBatch
	}

	job := domain.Job{
		ID:          domain.JobID(uuid.New().String()),
		BatchID:     uuid.New().String(),
		ClinicID:    clinic,
		Status:      domain.StatusQueued,
		TotalImages: len(imageIDs),
		ImageIDs:    append([]string(nil), imageIDs...),
		CreatedAt:   c.Clock.Now(),
	}
	if err := c.Jobs.Save(ctx, &job); err != nil {
		return "", err
	}

	st := &jobState{job: job}
	c.mu.Lock()
	if c.registry == nil {
		c.registry = make(map[domain.JobID]*jobState)
	}
	if c.quit == nil {
		c.quit = make(chan struct{})
	}
	c.registry[job.ID] = st
	c.mu.Unlock()

	c.jobs.Add(1)
	go c.run(st)

	return job.ID, nil
}

// run is the coordinating goroutine for one job: mark processing, fan out
// through the semaphore, then finalize once every image has reported in.
func (c *Coordinator) run(st *jobState) {
	defer c.jobs.Done()

	// Detached from the submit request on purpose; the batch keeps running
	// after the caller's context is gone.
	ctx := context.Background()

	limit := c.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	st.mu.Lock()
	st.job.Status = domain.StatusProcessing
	started := c.Clock.Now()
	st.job.StartedAt = &started
	clinic := st.job.ClinicID
	jobID := st.job.ID
	imageIDs := st.job.ImageIDs
	st.mu.Unlock()

	if err := c.Jobs.MarkProcessing(ctx, jobID, started); err != nil {
		log.Printf("job %s: mark processing: %v", jobID, err)
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	launched := 0
	for _, imageID := range imageIDs {
		if c.draining() {
			// Shutdown drain: stop launching new work. In-flight analyses
			// finish; the job stays processing and is picked up from the
			// store after restart.
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		launched++
		go func(imageID string) {
			defer wg.Done()
			defer func() { <-sem }()
			_, err := c.Analyzer.StartAnalysis(ctx, clinic, imageID)
			c.complete(ctx, st, imageID, err)
		}(imageID)
	}
	wg.Wait()

	if launched < len(imageIDs) {
		log.Printf("job %s: drained after %d/%d images", jobID, launched, len(imageIDs))
		return
	}

	// Barrier reached: all N accounted for. Partial failure never aborts the
	// batch, so the terminal status is completed regardless of failed count.
	st.mu.Lock()
	st.job.Status = domain.StatusCompleted
	completed := c.Clock.Now()
	st.job.CompletedAt = &completed
	st.mu.Unlock()

	if err := c.Jobs.MarkCompleted(ctx, jobID, domain.StatusCompleted, completed); err != nil {
		log.Printf("job %s: mark completed: %v", jobID, err)
	}

	// Terminal and persisted; evict so the registry only ever holds live
	// jobs. GetStatus serves terminal jobs from the store.
	c.mu.Lock()
	delete(c.registry, jobID)
	c.mu.Unlock()
}

// complete records one worker's outcome. Counters are read-modify-write shared
// state, so they only ever change under the job mutex.
func (c *Coordinator) complete(ctx context.Context, st *jobState, imageID string, cause error) {
	st.mu.Lock()
	st.job.ProcessedCount++
	if cause != nil {
		st.job.FailedCount++
	} else {
		st.job.SuccessCount++
	}
	processed, success, failed := st.job.ProcessedCount, st.job.SuccessCount, st.job.FailedCount
	clinic, jobID := st.job.ClinicID, st.job.ID
	st.mu.Unlock()

	if err := c.Jobs.UpdateProgress(ctx, jobID, processed, success, failed); err != nil {
		log.Printf("job %s: persist progress: %v", jobID, err)
	}

	if cause != nil && c.Errors != nil {
		e := &domain.JobError{
			ClinicID:  clinic,
			JobID:     string(jobID),
			ImageID:   imageID,
			Phase:     "analyze",
			Message:   cause.Error(),
			CreatedAt: c.Clock.Now(),
		}
		if err := c.Errors.Save(ctx, e); err != nil {
			log.Printf("job %s: persist job error: %v", jobID, err)
		}
	}
}

// GetStatus returns the resident snapshot when the job is in memory, otherwise
// reconstructs it from the store. That fallback is the crash-recovery
// contract: status stays readable after a process restart.
func (c *Coordinator) GetStatus(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	c.mu.Lock()
	st, ok := c.registry[id]
	c.mu.Unlock()
	if ok {
		return st.snapshot(), nil
	}
	return c.Jobs.Get(ctx, id)
}

// ListJobs returns the clinic's jobs, most recent first.
func (c *Coordinator) ListJobs(ctx context.Context, clinic string, limit int) ([]*domain.Job, error) {
	return c.Jobs.Latest(ctx, clinic, limit)
}

// JobErrors lists persisted per-image failures for one job.
func (c *Coordinator) JobErrors(ctx context.Context, clinic string, id domain.JobID, limit int) ([]*domain.JobError, error) {
	if c.Errors == nil {
		return nil, nil
	}
	return c.Errors.ListByJob(ctx, clinic, string(id), limit)
}

// Shutdown stops launching new per-image work and waits for in-flight
// coordinating goroutines, up to the context deadline. Running inference is
// not cancelled; there is no mechanism for that once a call has started.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.quit == nil {
		c.quit = make(chan struct{})
	}
	c.mu.Unlock()
	c.quitOnce.Do(func() { close(c.quit) })

	done := make(chan struct{})
	go func() {
		c.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) draining() bool {
	c.mu.Lock()
	q := c.quit
	c.mu.Unlock()
	if q == nil {
		return false
	}
	select {
	case <-q:
		return true
	default:
		return false
	}
}
