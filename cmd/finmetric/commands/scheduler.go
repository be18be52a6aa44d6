package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/finmetric/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 단독으로 시작하거나 등록 작업을 조회합니다.

등록되는 작업:
- ping_task: SCHEDULER_HEARTBEAT (store/redis health)
- companies_refresh: SCHEDULER_COMPANY_REFRESH (비어 있으면 미등록)
- statements_refresh: SCHEDULER_STATEMENT_REFRESH (비어 있으면 미등록)

Example:
  go run ./cmd/finmetric scheduler start
  go run ./cmd/finmetric scheduler list
  go run ./cmd/finmetric scheduler run companies_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== finmetric Scheduler ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registerJobs(); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	a.scheduler.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	printList(a.scheduler.GetAllJobs())
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registerJobs(); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	fmt.Println("Registered jobs:")
	for name, stat := range a.scheduler.GetJobStats() {
		fmt.Printf("  - %-20s %s\n", name, stat.Schedule)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	fmt.Printf("Running job: %s\n", jobName)

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registerJobs(); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	if err := a.scheduler.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := waitForRun(ctx, a.scheduler, jobName, 500*time.Millisecond)
	if err != nil {
		return err
	}
	if !result.Success {
		printError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	printSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

// waitForRun polls the job history until the manual run is recorded.
// 새 프로세스이므로 첫 기록이 곧 이번 실행의 결과다.
func waitForRun(ctx context.Context, sched *scheduler.Scheduler, name string, every time.Duration) (*scheduler.JobResult, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		history, err := sched.GetJobHistory(name)
		if err != nil {
			return nil, fmt.Errorf("job history: %w", err)
		}
		if latest := history.GetLatestResults(1); len(latest) > 0 {
			return &latest[0], nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
