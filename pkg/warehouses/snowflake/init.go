// Package snowflake provides a Snowflake warehouse executor for graphmart.
//
// This file registers the Snowflake executor with the warehouse registry.
// Import this package with a blank identifier to register the executor:
//
//	import _ "github.com/graphmart/graphmart/pkg/warehouses/snowflake"
package snowflake

import (
	"log/slog"

	"github.com/graphmart/graphmart/pkg/warehouse"
)

func init() {
	warehouse.Register("snowflake", func(logger *slog.Logger) warehouse.Executor { return New(logger) })
}
