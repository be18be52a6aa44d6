package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/finmetric/internal/admin"
	"github.com/wonny/finmetric/internal/contracts"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "대량 population 실행",
	Long: `회사 목록 또는 재무제표를 일괄 수집합니다.

Subcommands:
  companies   - 전체 ticker 의 회사 프로필 수집
  statements  - 저장된 회사의 재무제표 수집

Example:
  go run ./cmd/finmetric refresh companies
  go run ./cmd/finmetric refresh statements --class annual --class ttm --force`,
}

var (
	refreshCompaniesCmd = &cobra.Command{
		Use:   "companies",
		Short: "회사 프로필 수집",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd, admin.JobCompanies)
		},
	}

	refreshStatementsCmd = &cobra.Command{
		Use:   "statements",
		Short: "재무제표 수집",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd, admin.JobStatements)
		},
	}
)

var (
	refreshForce   bool
	refreshClasses []string
)

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.AddCommand(refreshCompaniesCmd)
	refreshCmd.AddCommand(refreshStatementsCmd)

	refreshCmd.PersistentFlags().BoolVar(&refreshForce, "force", false, "이미 수집된 항목도 다시 수집")
	refreshStatementsCmd.Flags().StringSliceVar(&refreshClasses, "class", nil, "분류 (annual, quarter, ttm, ...), 생략 시 전체")
}

func runRefresh(cmd *cobra.Command, job string) error {
	opts := admin.StartOptions{Force: refreshForce}
	for _, raw := range refreshClasses {
		class, err := contracts.ParsePeriodClass(raw)
		if err != nil {
			return err
		}
		opts.Classes = append(opts.Classes, class)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	banner(fmt.Sprintf("refresh %s (force=%v)", job, opts.Force))

	start := time.Now()
	if err := a.controller.Run(cmd.Context(), job, opts); err != nil {
		printError(err.Error())
		return err
	}

	status, _ := a.controller.Status(job)
	printSuccess(fmt.Sprintf("%s: %d/%d done in %.2fs", job, status.Done, status.Total, time.Since(start).Seconds()))
	return nil
}
