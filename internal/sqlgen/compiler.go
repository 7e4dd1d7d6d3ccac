package sqlgen

import (
	"fmt"
	"strings"

	"github.com/graphmart/graphmart/internal/blueprint"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

// Default task settings when a deployment config leaves them unset.
const (
	DefaultTaskSchedule  = "5 MINUTE"
	DefaultTaskWarehouse = "COMPUTE_WH"
)

// Statement is one compiled SQL statement together with the object it
// touches. Terminal marks statements whose failure cannot be tolerated for
// the owning unit (task creation and resume: an un-resumed task leaves
// staging perpetually unsynced).
type Statement struct {
	Object   string
	Kind     warehouse.ObjectType
	SQL      string
	Terminal bool
}

// FullRefresh is the pre-segmented bulk-load statement set: the truncates
// are safe to run eagerly, the insert is the single all-or-nothing
// multi-table load. Callers never re-parse generated text to separate them.
type FullRefresh struct {
	Truncates []Statement
	Insert    Statement
}

// Statements returns the full refresh in execution order.
func (f FullRefresh) Statements() []Statement {
	return append(append([]Statement{}, f.Truncates...), f.Insert)
}

// Options configures a Compiler for one deployment target.
type Options struct {
	Stage  Location
	Target Location

	TaskWarehouse string
	TaskSchedule  string

	// ReplaceObjects selects drop-and-recreate statements; false preserves
	// existing object state (e.g. an already-running task's schedule).
	ReplaceObjects bool
}

// Compiler generates the statement set for one validated table model. The
// model is read-only; a Compiler may be reused and all methods are
// deterministic.
type Compiler struct {
	model blueprint.TableModel
	names Names
	opts  Options
}

// New creates a Compiler for a validated model.
func New(m blueprint.TableModel, opts Options) *Compiler {
	if opts.TaskSchedule == "" {
		opts.TaskSchedule = DefaultTaskSchedule
	}
	if opts.TaskWarehouse == "" {
		opts.TaskWarehouse = DefaultTaskWarehouse
	}
	return &Compiler{model: m, names: ObjectNames(m), opts: opts}
}

// Names returns the derived object set for the compiler's model.
func (c *Compiler) Names() Names {
	return c.names
}

// StageStatements returns the complete staging-layer set: stage view, change
// stream, task creation, and task resume, in execution order.
func (c *Compiler) StageStatements() []Statement {
	out := []Statement{c.StageViewStatement(), c.StreamStatement()}
	return append(out, c.TaskStatements()...)
}

// StageViewStatement builds the staging view over the physical source table.
// The view projects hash and business keys for every node plus the aliased
// column projections, so everything downstream selects from it by alias.
func (c *Compiler) StageViewStatement() Statement {
	m := c.model
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s AS\nSELECT\n", createClause("VIEW", c.opts.ReplaceObjects), c.stageName(c.names.StageView))

	var sel []string
	sel = append(sel, c.nodeKeySelects(m.Primary)...)
	for _, sn := range m.Secondaries {
		sel = append(sel, c.nodeKeySelects(sn)...)
	}
	for _, col := range m.Columns {
		sel = append(sel, fmt.Sprintf("    %s AS %s", strings.ToUpper(col.Binding), UpperClean(col.Target)))
	}
	if m.DeleteCondition != "" {
		sel = append(sel, fmt.Sprintf("    CASE WHEN %s THEN TRUE ELSE FALSE END AS IS_DELETED", m.DeleteCondition))
	}
	sel = append(sel,
		fmt.Sprintf("    %s AS SOURCE", QuoteLiteral(strings.ToUpper(m.Source))),
		fmt.Sprintf("    %s AS INGEST_TIME", strings.ToUpper(m.IngestTime)),
	)

	b.WriteString(strings.Join(sel, ",\n"))
	fmt.Fprintf(&b, "\nFROM %s.%s.%s", UpperClean(m.Database), UpperClean(m.Schema), UpperClean(m.Table))
	if m.WhereClause != "" {
		fmt.Fprintf(&b, "\nWHERE %s", m.WhereClause)
	}

	return Statement{Object: c.names.StageView, Kind: warehouse.ObjectView, SQL: b.String()}
}

// StreamStatement builds the change-capture stream over the stage view.
func (c *Compiler) StreamStatement() Statement {
	sql := fmt.Sprintf("%s %s ON VIEW %s SHOW_INITIAL_ROWS = TRUE",
		createClause("STREAM", c.opts.ReplaceObjects),
		c.stageName(c.names.Stream),
		c.stageName(c.names.StageView))
	return Statement{Object: c.names.Stream, Kind: warehouse.ObjectStream, SQL: sql}
}

// TaskStatements builds the scheduled task whose body is the multi-table
// insert, plus the resume that activates it. Both are terminal for the unit.
func (c *Compiler) TaskStatements() []Statement {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", createClause("TASK", c.opts.ReplaceObjects), c.stageName(c.names.Task))
	fmt.Fprintf(&b, "    WAREHOUSE = %s\n", UpperClean(c.opts.TaskWarehouse))
	fmt.Fprintf(&b, "    SCHEDULE = '%s'\n", c.opts.TaskSchedule)
	fmt.Fprintf(&b, "    WHEN SYSTEM$STREAM_HAS_DATA('%s')\nAS\n", c.stageName(c.names.Stream))
	b.WriteString(c.multiTableInsert(c.stageName(c.names.Stream), true))

	create := Statement{Object: c.names.Task, Kind: warehouse.ObjectTask, SQL: b.String(), Terminal: true}
	resume := Statement{
		Object:   c.names.Task,
		Kind:     warehouse.ObjectTask,
		SQL:      fmt.Sprintf("ALTER TASK %s RESUME", c.stageName(c.names.Task)),
		Terminal: true,
	}
	return []Statement{create, resume}
}

// KeyStorageStatements builds one node table per node: primary plus every
// secondary regardless of its load flag, since edges may reference a node
// that never receives loaded rows.
func (c *Compiler) KeyStorageStatements() []Statement {
	nodes := append([]blueprint.Node{c.model.Primary}, c.model.Secondaries...)
	out := make([]Statement, 0, len(nodes))
	for _, n := range nodes {
		name := NodeTable(n.Entity)
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s (\n", createClause("TABLE", c.opts.ReplaceObjects), c.targetName(name))
		fmt.Fprintf(&b, "    %s_HK VARCHAR(32) NOT NULL,\n", UpperClean(n.Entity))
		fmt.Fprintf(&b, "    %s_BK VARCHAR NOT NULL,\n", UpperClean(n.Entity))
		b.WriteString("    SOURCE VARCHAR,\n    INGEST_TIME TIMESTAMP_NTZ\n)")
		out = append(out, Statement{Object: name, Kind: warehouse.ObjectTable, SQL: b.String()})
	}
	return out
}

// RelationshipStatements builds one edge table per (primary, secondary)
// pair. A model with no secondary nodes yields none.
func (c *Compiler) RelationshipStatements() []Statement {
	out := make([]Statement, 0, len(c.model.Secondaries))
	p := UpperClean(c.model.Primary.Entity)
	for _, sn := range c.model.Secondaries {
		s := UpperClean(sn.Entity)
		name := EdgeTable(c.model.Primary.Entity, sn.Entity)
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s (\n", createClause("TABLE", c.opts.ReplaceObjects), c.targetName(name))
		fmt.Fprintf(&b, "    %s_HK VARCHAR(32) NOT NULL,\n", p)
		fmt.Fprintf(&b, "    %s_HK VARCHAR(32) NOT NULL,\n", s)
		b.WriteString("    SOURCE VARCHAR,\n    INGEST_TIME TIMESTAMP_NTZ\n)")
		out = append(out, Statement{Object: name, Kind: warehouse.ObjectTable, SQL: b.String()})
	}
	return out
}

// AttributeStatements builds the attribute history table keyed by the
// primary node, followed by one multi-table insert run that drains whatever
// the stream currently holds.
func (c *Compiler) AttributeStatements() []Statement {
	m := c.model
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (\n", createClause("TABLE", c.opts.ReplaceObjects), c.targetName(c.names.Attribute))
	fmt.Fprintf(&b, "    %s_HK VARCHAR(32) NOT NULL,\n", UpperClean(m.Primary.Entity))
	for _, col := range m.Columns {
		typ := col.Type
		if typ == "" {
			typ = "VARCHAR"
		}
		fmt.Fprintf(&b, "    %s %s,\n", UpperClean(col.Target), strings.ToUpper(typ))
	}
	if m.DeleteCondition != "" {
		b.WriteString("    IS_DELETED BOOLEAN,\n")
	}
	b.WriteString("    SOURCE VARCHAR,\n    INGEST_TIME TIMESTAMP_NTZ\n)")

	attr := Statement{Object: c.names.Attribute, Kind: warehouse.ObjectTable, SQL: b.String()}
	mti := Statement{
		Object: c.names.Routine,
		Kind:   warehouse.ObjectRoutine,
		SQL:    c.multiTableInsert(c.stageName(c.names.Stream), true),
	}
	return []Statement{attr, mti}
}

// FullRefreshStatements builds the bulk backfill: truncate every table the
// multi-table insert targets, then one insert selecting the full source
// relation through the stage view instead of the stream.
func (c *Compiler) FullRefreshStatements() FullRefresh {
	targets := c.loadTargets()
	truncates := make([]Statement, 0, len(targets))
	for _, t := range targets {
		truncates = append(truncates, Statement{
			Object: t,
			Kind:   warehouse.ObjectTable,
			SQL:    fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", c.targetName(t)),
		})
	}

	insert := Statement{
		Object: c.names.Routine,
		Kind:   warehouse.ObjectRoutine,
		SQL:    c.multiTableInsert(c.stageName(c.names.StageView), false),
	}
	return FullRefresh{Truncates: truncates, Insert: insert}
}

// loadTargets lists the tables the multi-table insert writes, in insert
// order: loaded nodes, edges, attribute table.
func (c *Compiler) loadTargets() []string {
	var out []string
	if c.model.Primary.Load {
		out = append(out, NodeTable(c.model.Primary.Entity))
	}
	for _, sn := range c.model.Secondaries {
		if sn.Load {
			out = append(out, NodeTable(sn.Entity))
		}
	}
	for _, sn := range c.model.Secondaries {
		out = append(out, EdgeTable(c.model.Primary.Entity, sn.Entity))
	}
	return append(out, c.names.Attribute)
}

// multiTableInsert renders the INSERT ALL that fans one staged row out into
// the node, edge, and attribute tables. Nodes with load=false are created
// but never written. fromStream filters on stream change metadata; the full
// refresh reads the view directly.
func (c *Compiler) multiTableInsert(from string, fromStream bool) string {
	m := c.model
	p := UpperClean(m.Primary.Entity)

	var b strings.Builder
	b.WriteString("INSERT ALL\n")

	writeInto := func(table string, cols []string) {
		fmt.Fprintf(&b, "    INTO %s (%s)\n        VALUES (%s)\n",
			c.targetName(table), strings.Join(cols, ", "), strings.Join(cols, ", "))
	}

	if m.Primary.Load {
		writeInto(NodeTable(m.Primary.Entity), []string{p + "_HK", p + "_BK", "SOURCE", "INGEST_TIME"})
	}
	for _, sn := range m.Secondaries {
		if !sn.Load {
			continue
		}
		s := UpperClean(sn.Entity)
		writeInto(NodeTable(sn.Entity), []string{s + "_HK", s + "_BK", "SOURCE", "INGEST_TIME"})
	}
	for _, sn := range m.Secondaries {
		s := UpperClean(sn.Entity)
		writeInto(EdgeTable(m.Primary.Entity, sn.Entity), []string{p + "_HK", s + "_HK", "SOURCE", "INGEST_TIME"})
	}

	attrCols := []string{p + "_HK"}
	for _, col := range m.Columns {
		attrCols = append(attrCols, UpperClean(col.Target))
	}
	if m.DeleteCondition != "" {
		attrCols = append(attrCols, "IS_DELETED")
	}
	attrCols = append(attrCols, "SOURCE", "INGEST_TIME")
	writeInto(c.names.Attribute, attrCols)

	var sel []string
	sel = append(sel, p+"_HK", p+"_BK")
	for _, sn := range m.Secondaries {
		s := UpperClean(sn.Entity)
		sel = append(sel, s+"_HK", s+"_BK")
	}
	for _, col := range m.Columns {
		sel = append(sel, UpperClean(col.Target))
	}
	if m.DeleteCondition != "" {
		sel = append(sel, "IS_DELETED")
	}
	sel = append(sel, "SOURCE", "INGEST_TIME")

	fmt.Fprintf(&b, "SELECT %s\nFROM %s", strings.Join(sel, ", "), from)
	if fromStream {
		b.WriteString("\nWHERE METADATA$ACTION = 'INSERT'")
	}
	return b.String()
}

// nodeKeySelects renders the hash-key and business-key projections for one
// node. Composite keys use the same ordered column list for both, so node,
// edge, and attribute statements all agree on key shape.
func (c *Compiler) nodeKeySelects(n blueprint.Node) []string {
	entity := UpperClean(n.Entity)
	return []string{
		fmt.Sprintf("    %s AS %s_HK", HashKeyExpr(n.Keys), entity),
		fmt.Sprintf("    %s AS %s_BK", CompositeExpr(n.Keys), entity),
	}
}

func (c *Compiler) stageName(name string) string {
	return c.opts.Stage.Qualify(name)
}

func (c *Compiler) targetName(name string) string {
	return c.opts.Target.Qualify(name)
}

// createClause renders the create prefix for an object kind under the
// replace-objects policy.
func createClause(kind string, replace bool) string {
	if replace {
		return "CREATE OR REPLACE " + kind
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS", kind)
}
