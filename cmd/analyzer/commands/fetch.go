package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hansel67/stock-analyzer/internal/scheduler/jobs"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [symbol...]",
	Short: "가격 이력 수집 → DB 저장",
	Long: `시세 제공자에서 종가 이력을 받아 PostgreSQL에 저장합니다.

이 명령어는:
- 인자로 받은 종목(없으면 WATCHLIST)의 최근 N년 종가 조회
- analysis.daily_closes 에 upsert
- 해당 종목의 캐시된 리포트 무효화 (Redis 사용 시)

DATABASE_URL 이 필요합니다.

Example:
  go run ./cmd/analyzer fetch AAPL MSFT
  go run ./cmd/analyzer fetch --years 3`,
	RunE: runFetch,
}

var fetchYears int

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVar(&fetchYears, "years", 0, "수집 기간(년), 프로필 값 덮어씀")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	yearsOverride = fetchYears
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.repo == nil {
		return fmt.Errorf("DATABASE_URL is required for fetch")
	}

	symbols := args
	if len(symbols) == 0 {
		symbols = a.cfg.Watchlist
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols given and WATCHLIST is empty")
	}

	start := time.Now()
	PrintDoubleSeparator()
	fmt.Println("  Price history fetch")
	PrintSeparator()
	PrintKeyValue("Symbols", strings.Join(symbols, ", "), 10)
	PrintKeyValue("Years", fmt.Sprintf("%d", a.profile.LookbackYears), 10)
	PrintSeparator()

	job := newRefreshJob(a, symbols, false)
	if err := job.Run(ctx); err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("Fetch completed in %.2fs", time.Since(start).Seconds()))
	return nil
}

// newRefreshJob 저장소/캐시 연결 상태에 맞춰 갱신 작업 구성
func newRefreshJob(a *app, symbols []string, warm bool) *jobs.RefreshJob {
	var warmer jobs.Warmer
	if warm {
		warmer = a.analyzer
	}

	return jobs.NewRefreshJob(a.yahoo, a.repo, a.reports, warmer, jobs.RefreshConfig{
		Watchlist:     symbols,
		LookbackYears: a.profile.LookbackYears,
		Schedule:      a.cfg.RefreshSchedule,
	}, a.log)
}
