package main

import (
	"os"

	"github.com/hansel67/stock-analyzer/cmd/analyzer/commands"
)

// main is the entry point for the stock analyzer CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/analyzer [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
