package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	profilePath string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Stock Analyzer - GARCH 변동성 + 랜덤 포레스트 가격 예측",
	Long: `Stock Analyzer Unified CLI

일별 종가 → 로그 수익률 → GARCH(1,1) 변동성 → 특징 행렬 →
랜덤 포레스트 회귀 → 평가 지표 + 수익률 분포 리포트.

Usage:
  go run ./cmd/analyzer [command]

Examples:
  go run ./cmd/analyzer analyze AAPL
  go run ./cmd/analyzer analyze --file ./data/aapl.csv --json
  go run ./cmd/analyzer fetch AAPL MSFT
  go run ./cmd/analyzer serve
  go run ./cmd/analyzer profile show`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "analysis profile YAML (default: ANALYSIS_PROFILE or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
