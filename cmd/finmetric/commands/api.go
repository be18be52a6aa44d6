package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/finmetric/internal/api"
	"github.com/wonny/finmetric/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버와 스케줄러를 시작합니다.

Endpoints:
  GET    /health                                   - Health check
  GET    /api/metrics/{ticker}/{category}/{period} - 단일 지표 해석
  POST   /api/metrics/bulk                         - 다건 지표 해석
  GET    /api/admin/categories                     - 카테고리 목록
  POST   /api/admin/categories                     - 카테고리 등록
  PATCH  /api/admin/categories/{id}                - priority/description 변경
  DELETE /api/admin/categories/{id}                - 카테고리 삭제
  POST   /api/admin/jobs/{job}/start               - population job 시작
  POST   /api/admin/jobs/{job}/stop                - population job 중지
  GET    /api/admin/jobs/{job}                     - population job 상태
  GET    /api/admin/scheduler                      - 스케줄러 상태

Example:
  go run ./cmd/finmetric api
  go run ./cmd/finmetric api --port 9000`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값 PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== finmetric API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port":   a.cfg.Port,
		"env":    a.cfg.Env,
		"driver": a.cfg.StoreDriver,
	}).Info("Initializing API server")

	if err := a.registerJobs(); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	a.scheduler.Start()

	router := api.NewRouter(
		handlers.NewMetricsHandler(a.resolver, log),
		handlers.NewAdminHandler(a.registry, a.controller, a.scheduler, a.resolver, log),
		a.store,
		log,
	)
	server := api.New(a.cfg, log, router)

	// Ctrl+C / SIGTERM 이면 graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.ListenAndRun(ctx); err != nil {
		return err
	}

	log.Info("Server stopped")
	return nil
}
