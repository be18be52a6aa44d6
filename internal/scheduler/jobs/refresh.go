package jobs

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/admin"
	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/logger"
)

// Runner runs a population job synchronously
type Runner interface {
	Run(ctx context.Context, name string, opts admin.StartOptions) error
}

// RefreshJob runs one population job on a cron schedule.
// 수동으로 시작한 실행이 진행 중이면 이번 주기는 건너뛴다.
type RefreshJob struct {
	job      string
	schedule string
	runner   Runner
	logger   *logger.Logger
}

// NewCompanyRefreshJob refreshes company profiles for new tickers
func NewCompanyRefreshJob(schedule string, runner Runner, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		job:      admin.JobCompanies,
		schedule: schedule,
		runner:   runner,
		logger:   log.Module("refresh_job"),
	}
}

// NewStatementRefreshJob fills statements for companies without metrics
func NewStatementRefreshJob(schedule string, runner Runner, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		job:      admin.JobStatements,
		schedule: schedule,
		runner:   runner,
		logger:   log.Module("refresh_job"),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return j.job + "_refresh"
}

// Schedule returns the cron schedule
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the population job
func (j *RefreshJob) Run(ctx context.Context) error {
	err := j.runner.Run(ctx, j.job, admin.StartOptions{})
	if eris.Is(err, contracts.ErrJobRunning) {
		j.logger.WithField("job", j.job).Info("Population job already running, skipping")
		return nil
	}
	return err
}
