// Package postgres provides a PostgreSQL warehouse executor for graphmart.
//
// This file registers the PostgreSQL executor with the warehouse registry.
// Import this package with a blank identifier to register the executor:
//
//	import _ "github.com/graphmart/graphmart/pkg/warehouses/postgres"
package postgres

import (
	"log/slog"

	"github.com/graphmart/graphmart/pkg/warehouse"
)

func init() {
	warehouse.Register("postgres", func(logger *slog.Logger) warehouse.Executor { return New(logger) })
}
