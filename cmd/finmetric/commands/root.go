package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "finmetric",
	Short: "finmetric - on-demand 재무 지표 해석 서비스",
	Long: `finmetric Unified CLI

(ticker, category, period) 키를 받아 저장된 값, 수식 계산,
외부 데이터 소스 스크래핑 순으로 재무 지표를 해석합니다.

Usage:
  go run ./cmd/finmetric [command]

Examples:
  go run ./cmd/finmetric api
  go run ./cmd/finmetric resolve "AAPL|revenue|FY 2023" --wait
  go run ./cmd/finmetric refresh statements --class annual
  go run ./cmd/finmetric categories seed configs/categories.yaml
  go run ./cmd/finmetric migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (LOG_LEVEL=debug)")
}
