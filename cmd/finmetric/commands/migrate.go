package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/finmetric/internal/store"
	"github.com/wonny/finmetric/pkg/config"
	"github.com/wonny/finmetric/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "PostgreSQL 스키마 적용",
	Long: `내장된 schema.sql 을 advisory lock 아래에서 적용합니다.

Example:
  go run ./cmd/finmetric migrate
  go run ./cmd/finmetric migrate --print`,
	RunE: runMigrate,
}

var migratePrint bool

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "적용하지 않고 DDL 만 출력")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migratePrint {
		fmt.Println(store.Schema())
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver != "postgres" {
		printWarning("STORE_DRIVER is not postgres, nothing to migrate")
		return nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	if err := store.Migrate(ctx, db.Pool); err != nil {
		printError(err.Error())
		return err
	}

	printSuccess("Schema applied")
	return nil
}
