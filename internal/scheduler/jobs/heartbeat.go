package jobs

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/scheduler"
	"github.com/wonny/finmetric/pkg/logger"
)

// Pinger is a dependency the heartbeat checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// HeartbeatJob is the permanent low-frequency liveness job.
// id "ping_task" 는 예약되어 ScheduleOnce 로 덮어쓸 수 없다.
type HeartbeatJob struct {
	schedule  string
	targets   map[string]Pinger
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
	timeout   time.Duration
}

// NewHeartbeatJob creates the heartbeat job
func NewHeartbeatJob(schedule string, sched *scheduler.Scheduler, targets map[string]Pinger, log *logger.Logger) *HeartbeatJob {
	return &HeartbeatJob{
		schedule:  schedule,
		targets:   targets,
		scheduler: sched,
		logger:    log.Module("heartbeat"),
		timeout:   5 * time.Second,
	}
}

// Name returns the reserved job id
func (j *HeartbeatJob) Name() string {
	return scheduler.HeartbeatJobID
}

// Schedule returns the cron schedule (default every 60s)
func (j *HeartbeatJob) Schedule() string {
	return j.schedule
}

// Run pings every target and logs the deferred queue depth
func (j *HeartbeatJob) Run(ctx context.Context) error {
	names := make([]string, 0, len(j.targets))
	for name := range j.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, j.timeout)
		err := j.targets[name].Ping(pctx)
		cancel()

		if err != nil {
			j.logger.WithError(err).WithField("target", name).Warn("Heartbeat ping failed")
			failed = append(failed, name)
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"pending": len(j.scheduler.Pending()),
		"targets": len(names),
	}).Debug("Heartbeat")

	if len(failed) > 0 {
		return eris.Errorf("heartbeat: unhealthy %v", failed)
	}
	return nil
}
