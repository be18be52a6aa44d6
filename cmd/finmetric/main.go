package main

import (
	"os"

	"github.com/wonny/finmetric/cmd/finmetric/commands"
)

// main is the entry point for the finmetric CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/finmetric [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
