package main

import (
	"os"

	"github.com/wonny/investscope/cmd/investscope/commands"
)

// ⭐ 통합 CLI 진입점: go run ./cmd/investscope [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
