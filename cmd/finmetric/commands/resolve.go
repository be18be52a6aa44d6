package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/finmetric/internal/resolver"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve KEY [KEY...]",
	Short: "지표 키 해석",
	Long: `"TICKER|category|PERIOD" 형식의 키를 해석합니다.

--wait 없이 실행하면 저장된 값과 수식 계산만 사용하고,
miss 는 deferred scrape 로 넘깁니다 (CLI 종료 전까지만 실행).

Example:
  go run ./cmd/finmetric resolve "AAPL|revenue|FY 2023" --wait
  go run ./cmd/finmetric resolve "AAPL|pe ratio|TTM" "MSFT|revenue|Q2 2024" --wait --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

var (
	resolveWait    bool
	resolveForce   bool
	resolveTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().BoolVar(&resolveWait, "wait", false, "miss 시 인라인으로 스크래핑")
	resolveCmd.Flags().BoolVar(&resolveForce, "force", false, "저장된 값을 무시하고 다시 스크래핑")
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 5*time.Minute, "전체 해석 제한 시간")
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), resolveTimeout)
	defer cancel()

	results, err := a.resolver.ResolveMany(ctx, args, resolver.Options{
		ForceUpdate: resolveForce,
		Wait:        resolveWait,
	})
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := stdoutTable("KEY", "VALUE")
	for _, k := range keys {
		r := results[k]
		switch {
		case r.Error != "":
			t.row(k, "error: "+r.Error)
		case r.Value == nil:
			t.row(k, "-")
		default:
			t.row(k, r.Value.String())
		}
	}
	t.flush()
	return nil
}
