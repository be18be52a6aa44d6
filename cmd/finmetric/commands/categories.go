package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// categoriesCmd represents the categories command
var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "카테고리 레지스트리 관리",
	Long: `지표 정의(api_tag, custom_formula, exact_value)를 조회하거나 등록합니다.

Example:
  go run ./cmd/finmetric categories list
  go run ./cmd/finmetric categories seed configs/categories.yaml`,
}

var (
	categoriesListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 카테고리 목록",
		RunE:  listCategories,
	}

	categoriesSeedCmd = &cobra.Command{
		Use:   "seed FILE",
		Short: "YAML 파일에서 카테고리 등록",
		Args:  cobra.ExactArgs(1),
		RunE:  seedCategories,
	}
)

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.AddCommand(categoriesListCmd)
	categoriesCmd.AddCommand(categoriesSeedCmd)
}

func listCategories(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	categories, err := a.registry.List(cmd.Context())
	if err != nil {
		return err
	}

	t := stdoutTable("LABEL", "TYPE", "DEFINITION", "PRI")
	for _, c := range categories {
		t.row(c.Label, string(c.Type), c.ValueDefinition, strconv.Itoa(c.Priority))
	}
	t.flush()
	fmt.Printf("\n%d categories\n", len(categories))
	return nil
}

func seedCategories(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.registry.Seed(cmd.Context(), args[0])
	if err != nil {
		printError(err.Error())
		return err
	}

	printSuccess(fmt.Sprintf("%d categories registered from %s", len(created), args[0]))
	return nil
}
