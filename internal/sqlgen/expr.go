// Package sqlgen compiles a canonical table model into the ordered set of
// warehouse statements that materialize it: stage view, change stream,
// scheduled task, node/edge/attribute tables, the multi-table insert that
// fans staged rows out into them, and the full-refresh variant.
//
// All derived object names are deterministic functions of the model, so
// recompiling an unchanged model yields identical names and re-deployment is
// safe under create-or-replace semantics.
package sqlgen

import (
	"fmt"
	"strings"
)

// HashExpr renders the null-safe normalization applied to a business key
// before hashing. NULL keys collapse to the sentinel '-1' so they hash to a
// stable ghost-record key instead of NULL.
func HashExpr(expr string) string {
	return fmt.Sprintf("NVL(UPPER(TRIM(TO_VARCHAR(%s))), '-1')", expr)
}

// CompositeExpr renders a single SQL expression for an ordered column list.
// One column stays a plain UPPER; several are joined with '||' so composite
// keys render identically wherever they appear.
func CompositeExpr(cols []string) string {
	if len(cols) == 1 {
		return fmt.Sprintf("UPPER(%s)", strings.ToUpper(cols[0]))
	}
	upper := make([]string, len(cols))
	for i, c := range cols {
		upper[i] = fmt.Sprintf("UPPER(%s)", strings.ToUpper(c))
	}
	return fmt.Sprintf("CONCAT_WS('||', %s)", strings.Join(upper, ", "))
}

// HashKeyExpr renders the hash-key expression for an ordered key column
// list: MD5 over the normalized business key.
func HashKeyExpr(cols []string) string {
	inner := strings.ToUpper(cols[0])
	if len(cols) > 1 {
		inner = CompositeExpr(cols)
	}
	return fmt.Sprintf("MD5(%s)", HashExpr(inner))
}

// UpperClean turns a display value into a safe upper-case identifier.
func UpperClean(value string) string {
	return strings.ToUpper(strings.ReplaceAll(value, " ", "_"))
}

// LowerClean turns a display value into a safe lower-case identifier.
func LowerClean(value string) string {
	return strings.ToLower(strings.ReplaceAll(value, " ", "_"))
}

// QuoteIdentifier quotes and escapes a warehouse identifier.
func QuoteIdentifier(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// QuoteLiteral escapes a string literal by doubling single quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
