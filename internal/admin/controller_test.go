package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/internal/scrape"
	"github.com/wonny/finmetric/pkg/logger"
)

// blockingRefresher reports progress then waits for release or cancellation
type blockingRefresher struct {
	release chan struct{}
	err     error
	classes []contracts.PeriodClass
}

func (b *blockingRefresher) wait(ctx context.Context, progress scrape.Progress) error {
	progress(1, 3)
	select {
	case <-b.release:
		progress(3, 3)
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingRefresher) RefreshCompanies(ctx context.Context, force bool, progress scrape.Progress) error {
	return b.wait(ctx, progress)
}

func (b *blockingRefresher) RefreshStatements(ctx context.Context, classes []contracts.PeriodClass, force bool, progress scrape.Progress) error {
	b.classes = classes
	return b.wait(ctx, progress)
}

func newController(t *testing.T) (*Controller, *blockingRefresher) {
	t.Helper()
	ref := &blockingRefresher{release: make(chan struct{})}
	c := New(ref, logger.NewNop())
	t.Cleanup(c.Shutdown)
	return c, ref
}

func TestStart_RefusesSecondRun(t *testing.T) {
	c, ref := newController(t)

	require.NoError(t, c.Start(JobCompanies, StartOptions{Force: true}))
	err := c.Start(JobCompanies, StartOptions{})
	assert.True(t, eris.Is(err, contracts.ErrJobRunning))

	// 다른 job 은 독립적으로 시작된다
	require.NoError(t, c.Start(JobStatements, StartOptions{}))

	assert.Eventually(t, func() bool {
		st, _ := c.Status(JobCompanies)
		return st.Done == 1 && st.Total == 3
	}, time.Second, 5*time.Millisecond)

	st, err := c.Status(JobCompanies)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.True(t, st.Force)
	assert.NotNil(t, st.StartedAt)

	close(ref.release)
	assert.Eventually(t, func() bool {
		st, _ := c.Status(JobCompanies)
		return !st.Running
	}, time.Second, 5*time.Millisecond)

	st, _ = c.Status(JobCompanies)
	assert.Equal(t, 3, st.Done)
	assert.NotNil(t, st.FinishedAt)
	assert.Empty(t, st.LastError)

	// 끝난 뒤에는 다시 시작할 수 있다
	assert.NoError(t, c.Start(JobCompanies, StartOptions{}))
}

func TestStop_CancelsRun(t *testing.T) {
	c, _ := newController(t)

	stopped, err := c.Stop(JobStatements)
	require.NoError(t, err)
	assert.False(t, stopped)

	require.NoError(t, c.Start(JobStatements, StartOptions{}))
	stopped, err = c.Stop(JobStatements)
	require.NoError(t, err)
	assert.True(t, stopped)

	st, _ := c.Status(JobStatements)
	assert.False(t, st.Running)
	assert.Contains(t, st.LastError, "context canceled")
}

func TestRun_Synchronous(t *testing.T) {
	ref := &blockingRefresher{release: make(chan struct{}), err: errors.New("partial")}
	close(ref.release)
	c := New(ref, logger.NewNop())
	defer c.Shutdown()

	classes := []contracts.PeriodClass{contracts.PeriodTTM}
	err := c.Run(context.Background(), JobStatements, StartOptions{Classes: classes})
	assert.EqualError(t, err, "partial")
	assert.Equal(t, classes, ref.classes)

	st, _ := c.Status(JobStatements)
	assert.Equal(t, "partial", st.LastError)
}

func TestUnknownJob(t *testing.T) {
	c, _ := newController(t)

	assert.True(t, eris.Is(c.Start("everything", StartOptions{}), contracts.ErrMalformedInput))
	_, err := c.Stop("everything")
	assert.True(t, eris.Is(err, contracts.ErrMalformedInput))
	_, err = c.Status("everything")
	assert.Error(t, err)
}

func TestStatuses(t *testing.T) {
	c, _ := newController(t)

	statuses := c.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, JobCompanies, statuses[0].Name)
	assert.False(t, statuses[0].Running)
}

func TestShutdown_StopsRunning(t *testing.T) {
	ref := &blockingRefresher{release: make(chan struct{})}
	c := New(ref, logger.NewNop())

	require.NoError(t, c.Start(JobCompanies, StartOptions{}))
	c.Shutdown()

	st, _ := c.Status(JobCompanies)
	assert.False(t, st.Running)
	assert.Error(t, c.Start(JobCompanies, StartOptions{}))
}
