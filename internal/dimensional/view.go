package dimensional

import (
	"fmt"
	"strings"

	"github.com/graphmart/graphmart/internal/sqlgen"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

// DimensionInput is a dimension with its blueprint reference resolved: the
// attribute table name and location are already known to exist.
type DimensionInput struct {
	Dimension Dimension

	AttributeTable string
	AttributeLoc   sqlgen.Location
	ModelLoc       sqlgen.Location
}

// FactInput is a fact with its attribute and edge references resolved. Edge
// tables live in the graph target location, not the model location the view
// deploys into.
type FactInput struct {
	Fact Fact

	AttributeTable string
	AttributeLoc   sqlgen.Location
	EdgeLoc        sqlgen.Location
	ModelLoc       sqlgen.Location
}

// DimensionViewStatement builds the dimension view: the latest attribute row
// per node hash key, exposed with the model's column names plus the node key
// and lineage columns.
func DimensionViewStatement(in DimensionInput, replace bool) sqlgen.Statement {
	d := in.Dimension
	node := sqlgen.UpperClean(d.Source.Node)
	name := sqlgen.DimensionView(d.ID)

	var sel []string
	for _, col := range d.Columns {
		sel = append(sel, fmt.Sprintf("    %s AS %s",
			strings.ToUpper(col.SourceColumn()), strings.ToUpper(col.Name)))
	}
	sel = append(sel,
		fmt.Sprintf("    %s_HK AS %s_KEY", node, node),
		"    SOURCE",
		"    INGEST_TIME",
	)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\nAS\nSELECT\n", createViewClause(replace), in.ModelLoc.Qualify(name))
	b.WriteString(strings.Join(sel, ",\n"))
	fmt.Fprintf(&b, "\nFROM %s\n", in.AttributeLoc.Qualify(in.AttributeTable))
	fmt.Fprintf(&b, "QUALIFY ROW_NUMBER() OVER (\n    PARTITION BY %s_HK\n    ORDER BY INGEST_TIME DESC\n) = 1", node)

	return sqlgen.Statement{Object: name, Kind: warehouse.ObjectView, SQL: b.String()}
}

// ViewComment builds the metadata comment attached to a deployed view.
func ViewComment(qualified, description, group string) string {
	return fmt.Sprintf("COMMENT ON VIEW %s IS %s",
		qualified, sqlgen.QuoteLiteral(fmt.Sprintf("%s (Group: %s)", description, group)))
}

// FactViewStatement builds the fact view: the attribute table joined to each
// referenced edge table on the fact's node hash key, exposing the declared
// join keys plus the model's columns. The latest attribute row per node wins,
// unless the fact uses a bridge pattern where every edge row is kept.
func FactViewStatement(in FactInput, replace bool) sqlgen.Statement {
	f := in.Fact
	node := sqlgen.UpperClean(f.Attributes.Node)
	name := sqlgen.FactView(f.ID)

	var sel []string
	sel = append(sel, fmt.Sprintf("    a.%s_HK AS %s_KEY", node, node))
	for i, jk := range f.JoinKeys {
		col := strings.TrimSuffix(strings.ToUpper(jk), "_HK")
		sel = append(sel, fmt.Sprintf("    e%d.%s_HK AS %s_KEY", i, col, col))
	}
	for _, col := range f.Columns {
		sel = append(sel, fmt.Sprintf("    a.%s AS %s",
			strings.ToUpper(col.SourceColumn()), strings.ToUpper(col.Name)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\nAS\nSELECT\n", createViewClause(replace), in.ModelLoc.Qualify(name))
	b.WriteString(strings.Join(sel, ",\n"))
	fmt.Fprintf(&b, "\nFROM %s a", in.AttributeLoc.Qualify(in.AttributeTable))
	for i, edge := range f.Edges {
		fmt.Fprintf(&b, "\nJOIN %s e%d\n    ON a.%s_HK = e%d.%s_HK",
			in.EdgeLoc.Qualify("EDGE_"+sqlgen.UpperClean(edge.Name)), i, node, i, node)
	}
	if !f.BridgePattern {
		fmt.Fprintf(&b, "\nQUALIFY ROW_NUMBER() OVER (\n    PARTITION BY a.%s_HK\n    ORDER BY a.INGEST_TIME DESC\n) = 1", node)
	}

	return sqlgen.Statement{Object: name, Kind: warehouse.ObjectView, SQL: b.String()}
}

func createViewClause(replace bool) string {
	if replace {
		return "CREATE OR REPLACE VIEW"
	}
	return "CREATE VIEW IF NOT EXISTS"
}
