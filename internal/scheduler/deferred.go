package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
)

// Handle tracks one scheduled one-shot job
type Handle struct {
	ID          string
	ScheduledAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the job has finished or was cancelled
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the job error; valid after Done is closed
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// ScheduleOnce runs fn once off the calling path. 같은 id 가 아직 대기/실행
// 중이면 새로 등록하지 않고 기존 handle 을 돌려준다 (created=false).
// cron job 이름(heartbeat 포함)은 예약되어 있어 ErrReservedJobID.
func (s *Scheduler) ScheduleOnce(id string, fn func(ctx context.Context) error) (*Handle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, reserved := s.jobs[id]; reserved || id == HeartbeatJobID {
		return nil, false, eris.Wrapf(contracts.ErrReservedJobID, "scheduler: %s", id)
	}
	if s.base.Err() != nil {
		return nil, false, eris.New("scheduler: stopped")
	}
	if h, ok := s.pending[id]; ok {
		return h, false, nil
	}

	ctx, cancel := context.WithCancel(s.base)
	h := &Handle{
		ID:          id,
		ScheduledAt: time.Now(),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	s.pending[id] = h

	s.wg.Add(1)
	go s.runOnce(ctx, h, fn)

	return h, true, nil
}

func (s *Scheduler) runOnce(ctx context.Context, h *Handle, fn func(ctx context.Context) error) {
	defer s.wg.Done()
	defer h.cancel()

	start := time.Now()
	err := fn(ctx)
	end := time.Now()

	h.err = err
	cancelled := err != nil && ctx.Err() != nil

	s.mu.Lock()
	// CancelJob 후 같은 id 로 재등록된 handle 은 건드리지 않는다
	if s.pending[h.ID] == h {
		delete(s.pending, h.ID)
	}
	if history, ok := s.history[DeferredHistory]; ok {
		result := JobResult{
			JobName:   h.ID,
			StartTime: start,
			EndTime:   end,
			Duration:  end.Sub(start),
			Success:   err == nil,
			Cancelled: cancelled,
		}
		if err != nil {
			result.Error = err.Error()
		}
		history.AddResult(result)
	}
	s.mu.Unlock()

	close(h.done)

	log := s.logger.WithField("job", h.ID).WithField("duration", end.Sub(start))
	switch {
	case err == nil:
		log.Debug("Deferred job completed")
	case cancelled:
		log.Info("Deferred job cancelled")
	default:
		log.WithError(err).Warn("Deferred job failed")
	}
}

// CancelJob cancels a pending one-shot job and frees its id immediately
func (s *Scheduler) CancelJob(id string) bool {
	s.mu.Lock()
	h, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel()
	s.logger.WithField("job", id).Info("Deferred job cancel requested")
	return true
}

// Pending returns the ids of one-shot jobs not yet finished, sorted
func (s *Scheduler) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsPending reports whether id is scheduled or running
func (s *Scheduler) IsPending(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.pending[id]
	return ok
}
