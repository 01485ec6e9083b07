package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hansel67/stock-analyzer/internal/api"
	"github.com/hansel67/stock-analyzer/internal/api/handlers"
	"github.com/hansel67/stock-analyzer/internal/scheduler"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 분석 리포트 엔드포인트 제공
- DB와 WATCHLIST가 설정되면 가격 갱신 스케줄러 실행

Endpoints:
  GET  /health                 - Health check
  GET  /api/analyze/{symbol}   - 분석 리포트 (?summary=true 요약)
  GET  /api/profile            - 활성 분석 프로필
  GET  /metrics                - Prometheus 지표 (METRICS_ENABLED)

Example:
  go run ./cmd/analyzer serve
  go run ./cmd/analyzer serve --port 9090`,
	RunE: runServe,
}

var (
	servePort        string
	serveNoScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: PORT)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "가격 갱신 스케줄러 비활성화")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Stock Analyzer API Server ===")

	ctx := context.Background()

	// 1. Wire dependencies
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	// 2. Router
	analysisHandler := handlers.NewAnalysisHandler(a.analyzer, a.profile, a.log)
	var observer api.HTTPObserver
	if a.cfg.MetricsEnabled {
		observer = a.metrics
	}
	router := api.NewRouter(analysisHandler, observer, a.log)

	// 3. Server
	server := api.New(a.cfg, a.log, router)

	// 4. Scheduler (가격 갱신: DB + WATCHLIST, 메모리 캐시 정리)
	var sched *scheduler.Scheduler
	if !serveNoScheduler {
		sched, err = newScheduler(a, true)
		if err != nil {
			return err
		}
		if sched != nil {
			sched.Start()
		}
	}

	// 5. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/analyze/{symbol}")
	fmt.Println("  GET  /api/profile")
	if a.cfg.MetricsEnabled {
		fmt.Println("  GET  /metrics")
	}
	if sched != nil {
		fmt.Printf("\nScheduler: %v\n", sched.GetAllJobs())
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
	}

	a.log.Info("Shutting down...")
	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return serveErr
}
