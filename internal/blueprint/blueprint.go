// Package blueprint defines the declarative table-to-graph binding records
// and their canonical, validated form.
//
// A blueprint maps one physical source table onto a primary entity node, zero
// or more secondary nodes, and a list of column projections. Raw records come
// from the configuration store; Normalize turns them into an immutable
// TableModel and Validate checks referential completeness before any SQL is
// generated.
package blueprint

// Binding ties a logical field name to a physical source column.
type Binding struct {
	Name    string `json:"name"`
	Binding string `json:"binding"`
}

// NodeSpec declares a graph entity keyed by one or more bound columns.
// Load controls whether rows are loaded into the node table; the table itself
// is always created so edges can reference it.
type NodeSpec struct {
	Node     string    `json:"node"`
	Bindings []Binding `json:"bindings"`
	Load     bool      `json:"load"`
}

// ColumnSpec is one projected column of the blueprint.
type ColumnSpec struct {
	Name        string `json:"name"`
	Binding     string `json:"binding"`
	Alias       string `json:"alias"`
	DataType    string `json:"data_type"`
	Description string `json:"description"`
}

// Record is a raw blueprint as stored in the configuration tables.
type Record struct {
	ID      string `json:"blueprint_id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id"`

	BindingDB     string `json:"binding_db"`
	BindingSchema string `json:"binding_schema"`
	BindingObject string `json:"binding_object"`

	WhereClause       string `json:"where_clause"`
	DeleteCondition   string `json:"delete_condition"`
	IngestTimeBinding string `json:"ingest_time_binding"`

	PrimaryNode    NodeSpec   `json:"primary_node"`
	SecondaryNodes []NodeSpec `json:"secondary_nodes"`
	Columns        []ColumnSpec `json:"columns"`
}
