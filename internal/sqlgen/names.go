package sqlgen

import (
	"fmt"

	"github.com/graphmart/graphmart/internal/blueprint"
)

// Location is a database.schema pair an object set deploys into.
type Location struct {
	Database string
	Schema   string
}

// Qualify returns the fully qualified form of an object name.
func (l Location) Qualify(name string) string {
	return fmt.Sprintf("%s.%s.%s", UpperClean(l.Database), UpperClean(l.Schema), name)
}

// Names is the derived object set of one table model: every downstream
// object name, computed once from the model. Node tables list the primary
// node first, then secondaries in declaration order; edge tables follow the
// secondary order.
type Names struct {
	StageView string
	Stream    string
	Task      string
	Attribute string
	Routine   string

	NodeTables []string
	EdgeTables []string
}

// ObjectNames derives the full object set for a model.
func ObjectNames(m blueprint.TableModel) Names {
	table := UpperClean(m.Table)

	nodes := make([]string, 0, 1+len(m.Secondaries))
	nodes = append(nodes, NodeTable(m.Primary.Entity))
	for _, sn := range m.Secondaries {
		nodes = append(nodes, NodeTable(sn.Entity))
	}

	edges := make([]string, 0, len(m.Secondaries))
	for _, sn := range m.Secondaries {
		edges = append(edges, EdgeTable(m.Primary.Entity, sn.Entity))
	}

	return Names{
		StageView:  "VIEW_" + table,
		Stream:     "STREAM_" + table,
		Task:       "TASK_" + table,
		Attribute:  AttributeTable(m.Primary.Entity, m.Table, m.Source),
		Routine:    "MTI_" + table,
		NodeTables: nodes,
		EdgeTables: edges,
	}
}

// NodeTable names the node table for an entity.
func NodeTable(entity string) string {
	return "NODE_" + UpperClean(entity)
}

// EdgeTable names the edge table for a (primary, secondary) entity pair.
func EdgeTable(primary, secondary string) string {
	return fmt.Sprintf("EDGE_%s_%s", UpperClean(primary), UpperClean(secondary))
}

// AttributeTable names the attribute history table, scoped to the primary
// node, the physical source table, and the source system.
func AttributeTable(primaryEntity, table, source string) string {
	return fmt.Sprintf("ATTR_%s_%s_%s", UpperClean(primaryEntity), UpperClean(table), UpperClean(source))
}

// DimensionView names the presentation view for a dimension model.
func DimensionView(id string) string {
	return "V_DIM_" + UpperClean(id)
}

// FactView names the presentation view for a fact model.
func FactView(id string) string {
	return "V_FACT_" + UpperClean(id)
}
