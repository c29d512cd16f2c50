package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/sqlops-dev/sqlops/internal/cli"
	"github.com/sqlops-dev/sqlops/pkg/printer"
)

func main() {
	// Optional .env for local defaults; absence is fine.
	_ = godotenv.Load()

	if err := cli.Root().Execute(); err != nil {
		printer.PrintError(err.Error())
		os.Exit(1)
	}
}
