// Package scheduler owns the research job lifecycle: queueing, worker
// execution with retry and timeout, stall detection, retention sweeps,
// and the result cache.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/prospector/config"
	"github.com/mohammad-safakhou/prospector/internal/agent/core"
)

var (
	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prospector_jobs_active",
		Help: "Research jobs currently executing.",
	})
	completedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_jobs_completed_total",
		Help: "Research jobs finished successfully.",
	})
	failedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_jobs_failed_total",
		Help: "Research jobs that exhausted their attempts or timed out.",
	})
	stalledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_jobs_stalled_total",
		Help: "Research jobs terminated by the stall monitor.",
	})
)

// Status is the lifecycle state of a research job.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStalled   Status = "stalled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStalled
}

// Job is a single research request. Owned by the scheduler; mutated
// only by the executing worker and the sweeps, always under the table
// lock.
type Job struct {
	ID         string       `json:"jobId"`
	Profile    core.Profile `json:"profile"`
	Status     Status       `json:"status"`
	Progress   int          `json:"progress"`
	Note       string       `json:"note,omitempty"`
	Attempts   int          `json:"attempts"`
	Result     *core.Report `json:"result"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	StartedAt  *time.Time   `json:"startedAt"`
	FinishedAt *time.Time   `json:"finishedAt"`

	heartbeat time.Time
}

func (j *Job) snapshot() Job {
	cp := *j
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	return cp
}

// Runner executes one research attempt. It must close every resource
// it opens on all exit paths.
type Runner interface {
	Run(ctx context.Context, profile core.Profile, progress core.ProgressFunc) (core.Report, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, profile core.Profile, progress core.ProgressFunc) (core.Report, error)

func (f RunnerFunc) Run(ctx context.Context, profile core.Profile, progress core.ProgressFunc) (core.Report, error) {
	return f(ctx, profile, progress)
}

// ErrQueueFull is returned when the waiting queue is at capacity.
var ErrQueueFull = errors.New("job queue full")

type memorySweeper interface{ Sweep(now time.Time) }

// Scheduler is the job table, queue and worker pool.
type Scheduler struct {
	cfg    config.SchedulerConfig
	cache  ResultCache
	runner Runner
	logger *log.Logger

	mu   sync.Mutex
	jobs map[string]*Job

	queue chan string
	wg    sync.WaitGroup

	runCtx  context.Context
	stop    context.CancelFunc
	started bool
}

func NewScheduler(cfg config.SchedulerConfig, cache ResultCache, runner Runner, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.Writer(), "[SCHEDULER] ", log.LstdFlags)
	}
	return &Scheduler{
		cfg:    cfg,
		cache:  cache,
		runner: runner,
		logger: logger,
		jobs:   make(map[string]*Job),
		queue:  make(chan string, cfg.QueueSize),
	}
}

// Start launches the workers and the background sweeps.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	sweepExpr, err := cronexpr.Parse(s.cfg.SweepCron)
	if err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", s.cfg.SweepCron, err)
	}
	s.runCtx, s.stop = context.WithCancel(ctx)
	s.started = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.wg.Add(2)
	go s.stallMonitor()
	go s.retentionSweep(sweepExpr)
	s.logger.Printf("started: %d workers, queue %d", s.cfg.Workers, s.cfg.QueueSize)
	return nil
}

// Stop signals shutdown and waits for workers to drain. Active jobs
// run to completion of their current attempt; further attempts are
// abandoned.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.stop()
	s.mu.Unlock()
	s.wg.Wait()
}

// Submit enqueues a research job, or answers from the cache when the
// same profile completed within the cache TTL. The returned report is
// non-nil exactly on a cache hit, in which case no job is created.
func (s *Scheduler) Submit(ctx context.Context, profile core.Profile) (Job, *core.Report, error) {
	key := profile.CacheKey()
	if report, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Printf("cache lookup failed for %q: %v", key, err)
	} else if ok {
		return Job{}, &report, nil
	}

	job := &Job{
		ID:        uuid.NewString(),
		Profile:   profile,
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
		heartbeat: time.Now(),
	}
	snap := job.snapshot()
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	select {
	case s.queue <- job.ID:
	default:
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return Job{}, nil, ErrQueueFull
	}
	return snap, nil, nil
}

// Get returns a point-in-time copy of a job.
func (s *Scheduler) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.snapshot(), true
}

// List returns all known jobs, newest first.
func (s *Scheduler) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Cancel removes a job and its cached artifacts. A waiting job never
// starts; an active job keeps running to its own end, the worker owns
// session teardown.
func (s *Scheduler) Cancel(ctx context.Context, id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	completed := job.Status == StatusCompleted
	profileKey := job.Profile.CacheKey()
	delete(s.jobs, id)
	s.mu.Unlock()

	if err := s.cache.Delete(ctx, jobCacheKey(id)); err != nil {
		s.logger.Printf("purge job cache %s: %v", id, err)
	}
	if completed {
		if err := s.cache.Delete(ctx, profileKey); err != nil {
			s.logger.Printf("purge profile cache %s: %v", id, err)
		}
	}
	return true
}

func jobCacheKey(id string) string { return "job|" + id }

func (s *Scheduler) worker(n int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.runCtx.Done():
			return
		case id := <-s.queue:
			s.execute(n, id)
		}
	}
}

func (s *Scheduler) execute(worker int, id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status != StatusWaiting {
		// canceled while waiting
		s.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = StatusActive
	job.StartedAt = &now
	job.heartbeat = now
	profile := job.Profile
	s.mu.Unlock()

	activeJobs.Inc()
	defer activeJobs.Dec()
	s.logger.Printf("worker %d: job %s for %q", worker, id, profile.Name)

	progress := func(pct int, note string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if j, ok := s.jobs[id]; ok && j.Status == StatusActive {
			j.Progress = pct
			j.Note = note
			j.heartbeat = time.Now()
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if s.runCtx.Err() != nil {
			lastErr = fmt.Errorf("shutdown before attempt %d", attempt)
			break
		}
		// canceled or stalled jobs spend no further attempts
		s.mu.Lock()
		j, ok := s.jobs[id]
		if !ok || j.Status != StatusActive {
			s.mu.Unlock()
			return
		}
		j.Attempts = attempt
		s.mu.Unlock()

		attemptCtx, cancel := context.WithTimeout(s.runCtx, s.cfg.JobTimeout)
		report, err := s.runner.Run(attemptCtx, profile, progress)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			s.finishSuccess(id, profile, report)
			return
		}
		if timedOut {
			err = fmt.Errorf("timed out after %s: %w", s.cfg.JobTimeout, err)
		}
		lastErr = err
		s.logger.Printf("job %s attempt %d/%d failed: %v", id, attempt, s.cfg.MaxAttempts, err)

		if attempt < s.cfg.MaxAttempts {
			if !s.sleepBackoff(attempt) {
				break
			}
		}
	}
	s.finishFailure(id, lastErr)
}

func (s *Scheduler) sleepBackoff(attempt int) bool {
	delay := s.cfg.Backoff
	if s.cfg.ExponentialBackoff {
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
	}
	select {
	case <-time.After(delay):
		return true
	case <-s.runCtx.Done():
		return false
	}
}

func (s *Scheduler) finishSuccess(id string, profile core.Profile, report core.Report) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status != StatusActive {
		// canceled or stalled while the attempt was in flight
		s.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.Progress = 100
	job.Result = &report
	job.FinishedAt = &now
	s.mu.Unlock()
	completedTotal.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, profile.CacheKey(), report); err != nil {
		s.logger.Printf("cache result for %q: %v", profile.Name, err)
	}
	if err := s.cache.Set(ctx, jobCacheKey(id), report); err != nil {
		s.logger.Printf("cache result for job %s: %v", id, err)
	}
	s.logger.Printf("job %s completed", id)
}

func (s *Scheduler) finishFailure(id string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != StatusActive {
		return
	}
	now := time.Now()
	job.Status = StatusFailed
	job.FinishedAt = &now
	if cause != nil {
		job.Error = cause.Error()
	} else {
		job.Error = "unknown failure"
	}
	failedTotal.Inc()
}

// stallMonitor forces jobs without heartbeat progress to a terminal
// state.
func (s *Scheduler) stallMonitor() {
	defer s.wg.Done()
	interval := s.cfg.HeartbeatWindow / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.runCtx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for _, job := range s.jobs {
				if job.Status == StatusActive && now.Sub(job.heartbeat) > s.cfg.HeartbeatWindow {
					finished := now
					job.Status = StatusStalled
					job.Error = fmt.Sprintf("no progress within %s", s.cfg.HeartbeatWindow)
					job.FinishedAt = &finished
					stalledTotal.Inc()
					s.logger.Printf("job %s stalled", job.ID)
				}
			}
			s.mu.Unlock()
		}
	}
}

// retentionSweep removes terminal jobs past the retention window and
// expired memory cache entries, on the configured cron schedule.
func (s *Scheduler) retentionSweep(expr *cronexpr.Expression) {
	defer s.wg.Done()
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return
		}
		select {
		case <-s.runCtx.Done():
			return
		case now := <-time.After(time.Until(next)):
			removed := 0
			s.mu.Lock()
			for id, job := range s.jobs {
				if job.Status.Terminal() && job.FinishedAt != nil && now.Sub(*job.FinishedAt) > s.cfg.Retention {
					delete(s.jobs, id)
					removed++
				}
			}
			s.mu.Unlock()
			if sw, ok := s.cache.(memorySweeper); ok {
				sw.Sweep(now)
			}
			if removed > 0 {
				s.logger.Printf("retention sweep removed %d jobs", removed)
			}
		}
	}
}
