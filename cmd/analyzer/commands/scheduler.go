package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hansel67/stock-analyzer/internal/scheduler"
	"github.com/hansel67/stock-analyzer/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `가격 갱신 스케줄러를 시작하거나 작업을 실행합니다.

Subcommands:
  start   - 스케줄러 시작 (API 없이)
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

DATABASE_URL 과 WATCHLIST 가 필요합니다.

Example:
  go run ./cmd/analyzer scheduler start
  go run ./cmd/analyzer scheduler list
  go run ./cmd/analyzer scheduler run price_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- price_refresh: REFRESH_SCHEDULE (기본: 평일 22:30) 관심 종목 가격 갱신

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행 (완료까지 대기)",
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
	fmt.Println("=== Stock Analyzer Scheduler ===")

	a, sched, err := initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	PrintList(sched.GetAllJobs())
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	widths := []int{16, 20}
	PrintTableHeader([]string{"Job", "Schedule"}, widths)
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		PrintTableRow([]string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJob(ctx, jobName)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %.2fs (%d attempt(s))",
		jobName, result.Duration.Seconds(), result.Attempts))
	return nil
}

func initScheduler(ctx context.Context) (*app, *scheduler.Scheduler, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	if a.repo == nil {
		a.Close()
		return nil, nil, fmt.Errorf("DATABASE_URL is required for the scheduler")
	}
	if len(a.cfg.Watchlist) == 0 {
		a.Close()
		return nil, nil, fmt.Errorf("WATCHLIST is required for the scheduler")
	}

	sched, err := newScheduler(a, true)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, sched, nil
}

// newScheduler registers price_refresh (needs the store) and, for the
// in-memory cache, cache_cleanup. Returns nil when there is nothing to run.
func newScheduler(a *app, warm bool) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, scheduler.WithObserver(a.metrics))
	registered := 0

	if a.repo != nil && len(a.cfg.Watchlist) > 0 {
		if err := sched.AddJob(newRefreshJob(a, a.cfg.Watchlist, warm)); err != nil {
			return nil, fmt.Errorf("register refresh job: %w", err)
		}
		registered++
	}
	if a.memCache != nil {
		if err := sched.AddJob(jobs.NewCacheCleanupJob(a.memCache, a.log)); err != nil {
			return nil, fmt.Errorf("register cleanup job: %w", err)
		}
		registered++
	}

	if registered == 0 {
		return nil, nil
	}
	return sched, nil
}
