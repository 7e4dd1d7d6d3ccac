// Package main provides the CLI for the graphmart deployment engine.
package main

import (
	"os"

	"github.com/graphmart/graphmart/internal/cli"

	// Warehouse executors register themselves with the registry.
	_ "github.com/graphmart/graphmart/pkg/warehouses/duckdb"
	_ "github.com/graphmart/graphmart/pkg/warehouses/postgres"
	_ "github.com/graphmart/graphmart/pkg/warehouses/snowflake"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
