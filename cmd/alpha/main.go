package main

import (
	"os"

	"github.com/quantumalpha/backend/cmd/alpha/commands"
)

// main is the entry point for the QuantumAlpha CLI
// ⭐ Unified CLI entry point: go run ./cmd/alpha [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
