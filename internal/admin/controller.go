package admin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/internal/scrape"
	"github.com/wonny/finmetric/pkg/logger"
)

// Population job names
const (
	JobCompanies  = "companies"
	JobStatements = "statements"
)

// Refresher is the bulk population work the controller drives
type Refresher interface {
	RefreshCompanies(ctx context.Context, force bool, progress scrape.Progress) error
	RefreshStatements(ctx context.Context, classes []contracts.PeriodClass, force bool, progress scrape.Progress) error
}

// StartOptions configures one population run
type StartOptions struct {
	Force   bool                    `json:"force"`
	Classes []contracts.PeriodClass `json:"classes,omitempty"` // statements 전용, 비어 있으면 전체
}

// Status is the observable state of one population job
type Status struct {
	Name       string     `json:"name"`
	Running    bool       `json:"running"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Done       int        `json:"done"`
	Total      int        `json:"total"`
	Force      bool       `json:"force"`
}

type run struct {
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller starts, stops and reports the long-running population jobs.
// ⭐ SSOT: population job 상태는 이 컨트롤러에서만 관리 (이름당 실행 하나)
type Controller struct {
	refresher Refresher
	logger    *logger.Logger

	mu   sync.Mutex
	runs map[string]*run

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller
func New(refresher Refresher, log *logger.Logger) *Controller {
	base, cancel := context.WithCancel(context.Background())
	return &Controller{
		refresher: refresher,
		logger:    log.Module("admin"),
		runs:      make(map[string]*run),
		base:      base,
		cancel:    cancel,
	}
}

// Jobs returns the known job names
func Jobs() []string {
	return []string{JobCompanies, JobStatements}
}

func validName(name string) error {
	if name != JobCompanies && name != JobStatements {
		return eris.Wrapf(contracts.ErrMalformedInput, "admin: unknown job %q", name)
	}
	return nil
}

// begin registers a new run, refusing while one is active
func (c *Controller) begin(parent context.Context, name string, opts StartOptions) (context.Context, *run, error) {
	if err := validName(name); err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.runs[name]; ok && r.status.Running {
		return nil, nil, eris.Wrapf(contracts.ErrJobRunning, "admin: %s", name)
	}
	if c.base.Err() != nil {
		return nil, nil, eris.New("admin: controller stopped")
	}

	ctx, cancel := context.WithCancel(parent)
	now := time.Now()
	r := &run{
		status: Status{Name: name, Running: true, StartedAt: &now, Force: opts.Force},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.runs[name] = r
	c.wg.Add(1)

	return ctx, r, nil
}

// Start launches a job in the background
func (c *Controller) Start(name string, opts StartOptions) error {
	ctx, r, err := c.begin(c.base, name, opts)
	if err != nil {
		return err
	}

	go c.execute(ctx, r, opts)
	c.logger.WithField("job", name).Info("Population job started")
	return nil
}

// Run executes a job on the calling goroutine (cron, CLI)
func (c *Controller) Run(ctx context.Context, name string, opts StartOptions) error {
	ctx, r, err := c.begin(ctx, name, opts)
	if err != nil {
		return err
	}
	return c.execute(ctx, r, opts)
}

func (c *Controller) execute(ctx context.Context, r *run, opts StartOptions) error {
	defer c.wg.Done()
	defer r.cancel()

	progress := func(done, total int) {
		c.mu.Lock()
		r.status.Done, r.status.Total = done, total
		c.mu.Unlock()
	}

	var err error
	switch r.status.Name {
	case JobCompanies:
		err = c.refresher.RefreshCompanies(ctx, opts.Force, progress)
	case JobStatements:
		err = c.refresher.RefreshStatements(ctx, opts.Classes, opts.Force, progress)
	}

	now := time.Now()
	c.mu.Lock()
	r.status.Running = false
	r.status.FinishedAt = &now
	if err != nil {
		r.status.LastError = err.Error()
	}
	c.mu.Unlock()
	close(r.done)

	log := c.logger.WithField("job", r.status.Name)
	switch {
	case err == nil:
		log.Info("Population job finished")
	case ctx.Err() != nil:
		log.Info("Population job stopped")
	default:
		log.WithError(err).Error("Population job failed")
	}
	return err
}

// Stop cancels a running job. 실행 중이 아니면 false.
func (c *Controller) Stop(name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}

	c.mu.Lock()
	r, ok := c.runs[name]
	running := ok && r.status.Running
	c.mu.Unlock()

	if !running {
		return false, nil
	}

	r.cancel()
	<-r.done
	c.logger.WithField("job", name).Info("Population job stop requested")
	return true, nil
}

// Status returns a snapshot of a job's state
func (c *Controller) Status(name string) (Status, error) {
	if err := validName(name); err != nil {
		return Status{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.runs[name]
	if !ok {
		return Status{Name: name}, nil
	}
	return r.status, nil
}

// Statuses returns every job's state, sorted by name
func (c *Controller) Statuses() []Status {
	out := make([]Status, 0, 2)
	for _, name := range Jobs() {
		st, _ := c.Status(name)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Shutdown cancels every running job and waits for them
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.cancel()
	for _, r := range c.runs {
		r.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
}
