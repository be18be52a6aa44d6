package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/logger"
)

// HeartbeatJobID is the reserved id of the permanent heartbeat job
const HeartbeatJobID = "ping_task"

// Scheduler runs recurring cron jobs and one-shot deferred jobs
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	jobs    map[string]cronEntry
	pending map[string]*Handle
	history map[string]*JobHistory
	mu      sync.RWMutex

	// 모든 작업의 부모 context. Stop 에서 취소된다.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Retry configuration (cron jobs only)
	maxRetries int
	retryDelay time.Duration
}

type cronEntry struct {
	job Job
	id  cron.EntryID
}

// New creates a new scheduler
func New(log *logger.Logger) *Scheduler {
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log.Module("scheduler"),
		jobs:       make(map[string]cronEntry),
		pending:    make(map[string]*Handle),
		history:    map[string]*JobHistory{DeferredHistory: {}},
		base:       base,
		cancel:     cancel,
		maxRetries: 3,
		retryDelay: time.Minute,
	}
}

// WithRetry overrides the cron job retry policy
func (s *Scheduler) WithRetry(maxRetries int, delay time.Duration) *Scheduler {
	s.maxRetries = maxRetries
	s.retryDelay = delay
	return s
}

// AddJob registers a recurring job
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return eris.Errorf("scheduler: job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(job)
	})
	if err != nil {
		return eris.Wrapf(err, "scheduler: schedule job %s", name)
	}

	s.jobs[name] = cronEntry{job: job, id: id}
	s.history[name] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob unregisters a recurring job. heartbeat 는 제거할 수 없다.
func (s *Scheduler) RemoveJob(name string) error {
	if name == HeartbeatJobID {
		return eris.Wrapf(contracts.ErrReservedJobID, "scheduler: %s cannot be removed", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return eris.Wrapf(contracts.ErrNotFound, "scheduler: job %s", name)
	}

	s.cron.Remove(entry.id)
	delete(s.jobs, name)
	s.logger.WithField("job", name).Info("Job removed from scheduler")

	return nil
}

// Start starts the cron loop. one-shot 작업은 Start 없이도 실행된다.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running work and waits for it to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")

	// ScheduleOnce/RunJob 의 wg.Add 와 순서를 맞추기 위해 lock 안에서 취소
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// RunJob runs a recurring job immediately (outside of schedule)
func (s *Scheduler) RunJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return eris.Wrapf(contracts.ErrNotFound, "scheduler: job %s", name)
	}
	if s.base.Err() != nil {
		return eris.New("scheduler: stopped")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(entry.job)
	}()
	return nil
}

// runJob executes a cron job with retry logic
func (s *Scheduler) runJob(job Job) {
	name := job.Name()
	start := time.Now()
	log := s.logger.WithField("job", name)

	log.Debug("Job started")

	var lastErr error
	success := false

	// heartbeat 는 다음 주기가 곧 재시도다
	retries := s.maxRetries
	if name == HeartbeatJobID {
		retries = 0
	}

	for attempt := 0; attempt <= retries; attempt++ {
		err := job.Run(s.base)
		if err == nil {
			success = true
			break
		}

		lastErr = err
		if s.base.Err() != nil {
			break
		}

		log.WithError(err).WithField("attempt", attempt+1).Warn("Job execution failed, retrying")

		if attempt < retries {
			select {
			case <-s.base.Done():
			case <-time.After(s.retryDelay):
			}
		}
	}

	end := time.Now()
	result := JobResult{
		JobName:   name,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Success:   success,
		Cancelled: !success && s.base.Err() != nil,
	}
	if !success && lastErr != nil {
		result.Error = lastErr.Error()
	}
	s.record(name, result)

	if success {
		log.WithField("duration", result.Duration).Debug("Job completed successfully")
	} else {
		log.WithError(lastErr).WithField("duration", result.Duration).Error("Job failed after all retries")
	}
}

func (s *Scheduler) record(bucket string, result JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if history, exists := s.history[bucket]; exists {
		history.AddResult(result)
	}
}

// GetJobHistory returns a snapshot of one history bucket
func (s *Scheduler) GetJobHistory(name string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[name]
	if !exists {
		return nil, eris.Wrapf(contracts.ErrNotFound, "scheduler: job %s", name)
	}
	return &JobHistory{Results: history.GetLatestResults(len(history.Results))}, nil
}

// GetAllJobs returns the names of recurring jobs, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetJobStats returns statistics for every history bucket
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.history))
	for name, history := range s.history {
		st := JobStats{
			JobName:      name,
			TotalRuns:    len(history.Results),
			FailureCount: history.FailureCount(),
			SuccessRate:  history.GetSuccessRate(),
		}
		if entry, ok := s.jobs[name]; ok {
			st.Schedule = entry.job.Schedule()
		}

		for _, r := range history.Results {
			started := r.StartTime
			if r.Success {
				st.SuccessCount++
				st.LastSuccess = &started
			} else if !r.Cancelled {
				st.LastFailure = &started
			}
			st.LastRun = &started
		}

		stats[name] = st
	}
	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule,omitempty"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}
