package main

import (
	"os"

	"github.com/wonny/leadscore/cmd/propensity/commands"
)

// main is the entry point for the lead scoring CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/propensity [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
