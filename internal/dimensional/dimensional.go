// Package dimensional composes deployed blueprints into the presentation
// layer: dimension views over attribute history tables and fact views over
// edge tables. References between a model and the blueprints it reads from
// are resolved against the configuration store before any SQL is generated.
package dimensional

// ColumnRef maps a presentation column to its source via a
// "source.blueprint.field" blueprint mapping. An empty mapping means the
// column name is already the source column.
type ColumnRef struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Description      string `json:"description"`
	BlueprintMapping string `json:"blueprint_mapping"`
}

// AttributeRef points a model at one deployed blueprint's attribute table:
// the blueprint id, the source system, and the primary node entity. Database
// and schema override the blueprint target location when set.
type AttributeRef struct {
	Blueprint string `json:"name"`
	Source    string `json:"source"`
	Node      string `json:"node"`
	Database  string `json:"database"`
	Schema    string `json:"schema"`
}

// EdgeRef names one edge table a fact reads, without the EDGE_ prefix.
type EdgeRef struct {
	Name string `json:"name"`
}

// Dimension is a presentation view over the latest attribute row per node.
type Dimension struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	BelongsTo   string   `json:"belongs_to"`
	PII         *bool    `json:"pii"`
	Roles       []string `json:"roles"`

	Source  AttributeRef `json:"source"`
	Columns []ColumnRef  `json:"columns"`

	// Deployed holds the fully qualified view name after a successful run;
	// DeploymentError the failure reason otherwise. Written once per run.
	Deployed        string `json:"deployed"`
	DeploymentError string `json:"deployment_error"`
}

// Fact is a presentation view joining an attribute table with one or more
// edge tables on hash-key join columns.
type Fact struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	BelongsTo   string   `json:"belongs_to"`
	PII         *bool    `json:"pii"`
	Roles       []string `json:"roles"`

	Attributes    AttributeRef `json:"attributes"`
	Edges         []EdgeRef    `json:"edges"`
	JoinKeys      []string     `json:"join_keys"`
	Columns       []ColumnRef  `json:"columns"`
	BridgePattern bool         `json:"bridge_pattern"`

	Deployed        string `json:"deployed"`
	DeploymentError string `json:"deployment_error"`
}

// SourceColumn resolves the physical column a ColumnRef reads: the last
// segment of the blueprint mapping, or the column name itself.
func (c ColumnRef) SourceColumn() string {
	if c.BlueprintMapping == "" {
		return c.Name
	}
	mapping := c.BlueprintMapping
	for i := len(mapping) - 1; i >= 0; i-- {
		if mapping[i] == '.' {
			return mapping[i+1:]
		}
	}
	return mapping
}
