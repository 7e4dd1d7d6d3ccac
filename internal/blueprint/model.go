package blueprint

// Node is the canonical form of a NodeSpec. Keys holds the resolved physical
// binding values of the node's declared key columns, in declaration order.
// One key column means a scalar business key; more than one means a composite
// key and downstream expressions must use the same ordered list everywhere.
type Node struct {
	Entity   string
	Keys     []string
	Bindings []Binding
	Load     bool
}

// Composite reports whether the node is keyed by more than one column.
func (n Node) Composite() bool {
	return len(n.Keys) > 1
}

// Column is the canonical form of a ColumnSpec. Target is the output alias,
// falling back to the logical name when no alias is declared.
type Column struct {
	Name        string
	Binding     string
	Target      string
	Type        string
	Description string
}

// TableModel is the canonical entity-relationship model of one blueprint.
// It is constructed once by Normalize, checked by Validate, and never mutated
// afterwards; everything downstream (naming, statement generation,
// deployment) reads from it.
type TableModel struct {
	ID     string
	Source string

	// Physical source location. Table always comes from the binding object
	// name, never the display name.
	Database string
	Schema   string
	Table    string

	WhereClause     string
	DeleteCondition string
	IngestTime      string

	Primary     Node
	Secondaries []Node
	Columns     []Column
}

// DefaultIngestTime is used when a blueprint declares no ingest-time binding.
const DefaultIngestTime = "INGEST_TIME"

// Normalize transforms a raw blueprint record into its canonical table model.
// Pure transformation, no I/O and no errors; incomplete bindings surface in
// Validate.
func Normalize(rec Record, source string) TableModel {
	table := rec.BindingObject
	if table == "" {
		table = rec.Name
	}

	ingest := rec.IngestTimeBinding
	if ingest == "" {
		ingest = DefaultIngestTime
	}

	cols := make([]Column, 0, len(rec.Columns))
	for _, c := range rec.Columns {
		target := c.Alias
		if target == "" {
			target = c.Name
		}
		cols = append(cols, Column{
			Name:        c.Name,
			Binding:     c.Binding,
			Target:      target,
			Type:        c.DataType,
			Description: c.Description,
		})
	}

	secondaries := make([]Node, 0, len(rec.SecondaryNodes))
	for _, sn := range rec.SecondaryNodes {
		secondaries = append(secondaries, normalizeNode(sn))
	}

	return TableModel{
		ID:              rec.ID,
		Source:          source,
		Database:        rec.BindingDB,
		Schema:          rec.BindingSchema,
		Table:           table,
		WhereClause:     rec.WhereClause,
		DeleteCondition: rec.DeleteCondition,
		IngestTime:      ingest,
		Primary:         normalizeNode(rec.PrimaryNode),
		Secondaries:     secondaries,
		Columns:         cols,
	}
}

// normalizeNode resolves a node's key to the physical binding values of its
// declared key columns, keeping declaration order. Empty bindings are kept
// out of Keys; Validate reports them by path.
func normalizeNode(spec NodeSpec) Node {
	keys := make([]string, 0, len(spec.Bindings))
	for _, b := range spec.Bindings {
		if b.Binding != "" {
			keys = append(keys, b.Binding)
		}
	}
	return Node{
		Entity:   spec.Node,
		Keys:     keys,
		Bindings: spec.Bindings,
		Load:     spec.Load,
	}
}
