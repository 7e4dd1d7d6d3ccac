// Package duckdb provides a DuckDB warehouse executor for graphmart.
//
// This file registers the DuckDB executor with the warehouse registry.
// Import this package with a blank identifier to register the executor:
//
//	import _ "github.com/graphmart/graphmart/pkg/warehouses/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/graphmart/graphmart/pkg/warehouse"
)

func init() {
	warehouse.Register("duckdb", func(logger *slog.Logger) warehouse.Executor { return New(logger) })
}
