package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hansel67/stock-analyzer/internal/api/handlers"
	"github.com/hansel67/stock-analyzer/internal/contracts"
	"github.com/hansel67/stock-analyzer/internal/external/pricefile"
	"github.com/hansel67/stock-analyzer/internal/pipeline"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol]",
	Short: "종목 분석 실행",
	Long: `가격 이력을 가져와 전체 분석 파이프라인을 실행합니다.

이 명령어는:
- 시세 제공자(또는 DB)에서 최근 N년 종가 조회
- 또는 --file 로 CSV/XLSX 파일에서 종가 로드
- GARCH(1,1) 변동성 추정, 랜덤 포레스트 학습/예측
- 평가 지표(MSE, RMSE, MAE, R²)와 수익률 분포 출력

Example:
  go run ./cmd/analyzer analyze AAPL
  go run ./cmd/analyzer analyze AAPL --years 5 --json
  go run ./cmd/analyzer analyze --file ./data/aapl.xlsx --symbol AAPL`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeFile    string
	analyzeSymbol  string
	analyzeYears   int
	analyzeJSON    bool
	analyzeSummary bool
	analyzeRows    int
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "CSV/XLSX 가격 파일 (네트워크 미사용)")
	analyzeCmd.Flags().StringVar(&analyzeSymbol, "symbol", "", "--file 사용 시 종목명 (기본: 파일명)")
	analyzeCmd.Flags().IntVar(&analyzeYears, "years", 0, "조회 기간(년), 프로필 값 덮어씀")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "리포트를 JSON으로 출력")
	analyzeCmd.Flags().BoolVar(&analyzeSummary, "summary", false, "--json 과 함께: 시계열 제외 요약만 출력")
	analyzeCmd.Flags().IntVar(&analyzeRows, "rows", 10, "표시할 최근 예측 행 수")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFile == "" && len(args) == 0 {
		return fmt.Errorf("symbol argument or --file is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		report *contracts.Report
		err    error
	)
	if analyzeFile != "" {
		report, err = analyzeFromFile()
	} else {
		report, err = analyzeRemote(ctx, args[0])
	}
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if analyzeSummary {
			return enc.Encode(handlers.NewSummary(report))
		}
		return enc.Encode(report)
	}

	printReport(report, analyzeRows)
	return nil
}

func analyzeRemote(ctx context.Context, symbol string) (*contracts.Report, error) {
	yearsOverride = analyzeYears

	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return a.analyzer.Analyze(ctx, symbol)
}

func analyzeFromFile() (*contracts.Report, error) {
	yearsOverride = analyzeYears

	_, log, profile, err := loadBase()
	if err != nil {
		return nil, err
	}

	series, err := pricefile.Load(analyzeFile, analyzeSymbol)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", analyzeFile, err)
	}

	if analyzeYears > 0 && series.Len() > 0 {
		series, err = trimToYears(series, analyzeYears)
		if err != nil {
			return nil, err
		}
	}

	log.WithFields(map[string]interface{}{
		"file":   analyzeFile,
		"symbol": series.Symbol(),
		"prices": series.Len(),
	}).Info("Price file loaded")

	return pipeline.NewRunner(profile, log.Component("pipeline")).Run(series)
}

// trimToYears keeps the points within the last N years of the series
func trimToYears(series contracts.PriceSeries, years int) (contracts.PriceSeries, error) {
	from := series.Last().AddDate(-years, 0, 0)
	points := series.Points()
	i := 0
	for i < len(points) && points[i].Date.Before(from) {
		i++
	}
	return contracts.NewPriceSeries(series.Symbol(), points[i:])
}

// printReport 사람이 읽는 리포트 출력
func printReport(r *contracts.Report, rows int) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s  %s ~ %s\n", r.Symbol, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	PrintSeparator()
	PrintKeyValue("Run ID", r.RunID, 16)
	PrintKeyValue("Config hash", shortHash(r.ConfigHash), 16)
	PrintKeyValue("Prices", strconv.Itoa(r.Prices.Len()), 16)
	PrintKeyValue("Train / Test", fmt.Sprintf("%d / %d", r.Split.TrainRows, r.Split.TestRows), 16)

	fmt.Println()
	fmt.Println("GARCH(1,1)")
	PrintKeyValue("omega", fmt.Sprintf("%.6g", r.Params.Omega), 16)
	PrintKeyValue("alpha", fmt.Sprintf("%.4f", r.Params.Alpha), 16)
	PrintKeyValue("beta", fmt.Sprintf("%.4f", r.Params.Beta), 16)
	PrintKeyValue("alpha+beta", fmt.Sprintf("%.4f", r.Params.Persistence()), 16)
	PrintKeyValue("log-likelihood", fmt.Sprintf("%.2f", r.Params.LogLikelihood), 16)
	if n := len(r.Volatility.Sigma); n > 0 {
		PrintKeyValue("last sigma", fmt.Sprintf("%.4f%%", r.Volatility.Sigma[n-1]*100), 16)
	}

	fmt.Println()
	fmt.Println("Forecast (test)")
	PrintKeyValue("MSE", fmt.Sprintf("%.4f", r.Forecast.MSE), 16)
	PrintKeyValue("RMSE", fmt.Sprintf("%.4f", r.Forecast.RMSE), 16)
	PrintKeyValue("MAE", fmt.Sprintf("%.4f", r.Forecast.MAE), 16)
	PrintKeyValue("R²", fmt.Sprintf("%.4f", r.Forecast.R2), 16)
	if r.Forecast.R2 < 0 {
		PrintWarning("R² < 0: 테스트 구간 평균보다 예측이 나쁨")
	}

	fmt.Println()
	fmt.Println("Log-return distribution")
	d := r.Distribution
	PrintKeyValue("mean", fmt.Sprintf("%.6f", d.Mean), 16)
	PrintKeyValue("std dev", fmt.Sprintf("%.6f", d.StdDev), 16)
	PrintKeyValue("skewness", fmt.Sprintf("%.4f", d.Skewness), 16)
	PrintKeyValue("excess kurtosis", fmt.Sprintf("%.4f", d.ExcessKurtosis), 16)

	f := r.Forecast
	if rows > 0 && len(f.Dates) > 0 {
		start := len(f.Dates) - rows
		if start < 0 {
			start = 0
		}
		fmt.Println()
		widths := []int{12, 12, 12, 10}
		PrintTableHeader([]string{"Date", "Actual", "Predicted", "Error"}, widths)
		for i := start; i < len(f.Dates); i++ {
			PrintTableRow([]string{
				f.Dates[i].Format("2006-01-02"),
				fmt.Sprintf("%.2f", f.Actual[i]),
				fmt.Sprintf("%.2f", f.Predicted[i]),
				fmt.Sprintf("%+.2f", f.Predicted[i]-f.Actual[i]),
			}, widths)
		}
	}
	PrintDoubleSeparator()
	fmt.Printf("Generated at %s\n", r.CreatedAt.Format(time.RFC3339))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
