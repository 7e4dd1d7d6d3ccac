package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/graphmart/graphmart/internal/blueprint"
	"github.com/graphmart/graphmart/internal/dimensional"
	"github.com/graphmart/graphmart/internal/sqlgen"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

// Tables names the configuration tables inside the config location.
type Tables struct {
	Blueprints       string `koanf:"blueprints"`
	BlueprintColumns string `koanf:"blueprint_columns"`
	Dimensions       string `koanf:"dimensions"`
	DimensionColumns string `koanf:"dimension_columns"`
	Facts            string `koanf:"facts"`
	FactColumns      string `koanf:"fact_columns"`
	Groups           string `koanf:"groups"`
}

// DefaultTables returns the standard configuration table names.
func DefaultTables() Tables {
	return Tables{
		Blueprints:       "CONFIG_BLUEPRINTS",
		BlueprintColumns: "CONFIG_BLUEPRINT_COLUMNS",
		Dimensions:       "CONFIG_DIMENSIONS",
		DimensionColumns: "CONFIG_DIMENSION_COLUMNS",
		Facts:            "CONFIG_FACTS",
		FactColumns:      "CONFIG_FACT_COLUMNS",
		Groups:           "CONFIG_GROUPS",
	}
}

// WarehouseStore implements Store against configuration tables living in the
// target warehouse itself. Node specs, role lists, and model references are
// stored as JSON variants and decoded on read.
type WarehouseStore struct {
	exec   warehouse.Executor
	loc    sqlgen.Location
	tables Tables
	logger *slog.Logger
}

// NewWarehouseStore creates a store reading from the given config location.
// If logger is nil, a discard logger is used.
func NewWarehouseStore(exec warehouse.Executor, loc sqlgen.Location, tables Tables, logger *slog.Logger) *WarehouseStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if tables == (Tables{}) {
		tables = DefaultTables()
	}
	return &WarehouseStore{exec: exec, loc: loc, tables: tables, logger: logger}
}

// Blueprint loads one blueprint and its ordered column list.
func (s *WarehouseStore) Blueprint(ctx context.Context, source, id string) (*blueprint.Record, error) {
	query := fmt.Sprintf(`SELECT
    blueprint_id,
    group_id,
    name,
    binding_object,
    binding_db,
    binding_schema,
    ingest_time_binding,
    primary_node,
    secondary_nodes,
    delete_condition,
    where_clause
FROM %s
WHERE blueprint_id = %s AND source = %s
LIMIT 1`, s.loc.Qualify(s.tables.Blueprints), sqlgen.QuoteLiteral(id), sqlgen.QuoteLiteral(source))

	rows, err := s.exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load blueprint %s.%s: %w", source, id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var rec blueprint.Record
	var name, bindingObject, bindingDB, bindingSchema sql.NullString
	var ingestTime, primaryNode, secondaryNodes, deleteCondition, whereClause sql.NullString
	if err := rows.Scan(&rec.ID, &rec.GroupID, &name, &bindingObject, &bindingDB, &bindingSchema,
		&ingestTime, &primaryNode, &secondaryNodes, &deleteCondition, &whereClause); err != nil {
		return nil, fmt.Errorf("failed to scan blueprint %s: %w", id, err)
	}

	rec.Name = name.String
	rec.BindingObject = bindingObject.String
	rec.BindingDB = bindingDB.String
	rec.BindingSchema = bindingSchema.String
	rec.IngestTimeBinding = ingestTime.String
	rec.DeleteCondition = deleteCondition.String
	rec.WhereClause = whereClause.String

	if err := decodeVariant(primaryNode, &rec.PrimaryNode); err != nil {
		return nil, fmt.Errorf("blueprint %s has malformed primary_node: %w", id, err)
	}
	if err := decodeVariant(secondaryNodes, &rec.SecondaryNodes); err != nil {
		return nil, fmt.Errorf("blueprint %s has malformed secondary_nodes: %w", id, err)
	}

	cols, err := s.blueprintColumns(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Columns = cols

	return &rec, nil
}

func (s *WarehouseStore) blueprintColumns(ctx context.Context, id string) ([]blueprint.ColumnSpec, error) {
	query := fmt.Sprintf(`SELECT column_name, binding, alias, data_type, description
FROM %s
WHERE blueprint_id = %s AND NOT COALESCE(excluded, FALSE)
ORDER BY column_order`, s.loc.Qualify(s.tables.BlueprintColumns), sqlgen.QuoteLiteral(id))

	rows, err := s.exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load columns for blueprint %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []blueprint.ColumnSpec
	for rows.Next() {
		var name, binding, alias, dataType, description sql.NullString
		if err := rows.Scan(&name, &binding, &alias, &dataType, &description); err != nil {
			return nil, fmt.Errorf("failed to scan column for blueprint %s: %w", id, err)
		}
		cols = append(cols, blueprint.ColumnSpec{
			Name:        name.String,
			Binding:     binding.String,
			Alias:       alias.String,
			DataType:    dataType.String,
			Description: description.String,
		})
	}
	return cols, rows.Err()
}

// Dimension loads one dimension and its column mappings.
func (s *WarehouseStore) Dimension(ctx context.Context, id string) (*dimensional.Dimension, error) {
	query := fmt.Sprintf(`SELECT
    dimension_id, name, description, belongs_to, pii, roles, source_attribute, deployed, deployment_error
FROM %s
WHERE LOWER(dimension_id) = LOWER(%s)
LIMIT 1`, s.loc.Qualify(s.tables.Dimensions), sqlgen.QuoteLiteral(id))

	rows, err := s.exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load dimension %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var d dimensional.Dimension
	var name, description, belongsTo, roles, sourceAttr, deployed, deployErr sql.NullString
	var pii sql.NullBool
	if err := rows.Scan(&d.ID, &name, &description, &belongsTo, &pii, &roles, &sourceAttr, &deployed, &deployErr); err != nil {
		return nil, fmt.Errorf("failed to scan dimension %s: %w", id, err)
	}

	d.Name = name.String
	d.Description = description.String
	d.BelongsTo = belongsTo.String
	d.Deployed = deployed.String
	d.DeploymentError = deployErr.String
	if pii.Valid {
		v := pii.Bool
		d.PII = &v
	}
	if err := decodeVariant(roles, &d.Roles); err != nil {
		return nil, fmt.Errorf("dimension %s has malformed roles: %w", id, err)
	}
	if err := decodeVariant(sourceAttr, &d.Source); err != nil {
		return nil, fmt.Errorf("dimension %s has malformed source_attribute: %w", id, err)
	}

	cols, err := s.modelColumns(ctx, s.tables.DimensionColumns, "dimension_id", d.ID)
	if err != nil {
		return nil, err
	}
	d.Columns = cols

	return &d, nil
}

// Fact loads one fact with its edge references and column mappings.
func (s *WarehouseStore) Fact(ctx context.Context, id string) (*dimensional.Fact, error) {
	query := fmt.Sprintf(`SELECT
    fact_id, name, description, belongs_to, pii, roles, source_attribute, edges, join_keys, bridge_pattern, deployed, deployment_error
FROM %s
WHERE LOWER(fact_id) = LOWER(%s)
LIMIT 1`, s.loc.Qualify(s.tables.Facts), sqlgen.QuoteLiteral(id))

	rows, err := s.exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load fact %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var f dimensional.Fact
	var name, description, belongsTo, roles, sourceAttr, edges, joinKeys, deployed, deployErr sql.NullString
	var pii, bridge sql.NullBool
	if err := rows.Scan(&f.ID, &name, &description, &belongsTo, &pii, &roles, &sourceAttr,
		&edges, &joinKeys, &bridge, &deployed, &deployErr); err != nil {
		return nil, fmt.Errorf("failed to scan fact %s: %w", id, err)
	}

	f.Name = name.String
	f.Description = description.String
	f.BelongsTo = belongsTo.String
	f.BridgePattern = bridge.Valid && bridge.Bool
	f.Deployed = deployed.String
	f.DeploymentError = deployErr.String
	if pii.Valid {
		v := pii.Bool
		f.PII = &v
	}
	if err := decodeVariant(roles, &f.Roles); err != nil {
		return nil, fmt.Errorf("fact %s has malformed roles: %w", id, err)
	}
	if err := decodeVariant(sourceAttr, &f.Attributes); err != nil {
		return nil, fmt.Errorf("fact %s has malformed source_attribute: %w", id, err)
	}
	if err := decodeVariant(edges, &f.Edges); err != nil {
		return nil, fmt.Errorf("fact %s has malformed edges: %w", id, err)
	}
	if err := decodeVariant(joinKeys, &f.JoinKeys); err != nil {
		return nil, fmt.Errorf("fact %s has malformed join_keys: %w", id, err)
	}

	cols, err := s.modelColumns(ctx, s.tables.FactColumns, "fact_id", f.ID)
	if err != nil {
		return nil, err
	}
	f.Columns = cols

	return &f, nil
}

func (s *WarehouseStore) modelColumns(ctx context.Context, table, keyCol, id string) ([]dimensional.ColumnRef, error) {
	query := fmt.Sprintf(`SELECT column_name, type, description, blueprint_mapping
FROM %s
WHERE %s = %s
ORDER BY column_order`, s.loc.Qualify(table), keyCol, sqlgen.QuoteLiteral(id))

	rows, err := s.exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load columns from %s for %s: %w", table, id, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []dimensional.ColumnRef
	for rows.Next() {
		var name, typ, description, mapping sql.NullString
		if err := rows.Scan(&name, &typ, &description, &mapping); err != nil {
			return nil, fmt.Errorf("failed to scan column from %s: %w", table, err)
		}
		cols = append(cols, dimensional.ColumnRef{
			Name:             name.String,
			Type:             typ.String,
			Description:      description.String,
			BlueprintMapping: mapping.String,
		})
	}
	return cols, rows.Err()
}

// Group loads a classification group by id.
func (s *WarehouseStore) Group(ctx context.Context, id string) (*Group, error) {
	query := fmt.Sprintf(`SELECT group_id, name, domain, process
FROM %s
WHERE group_id = %s
LIMIT 1`, s.loc.Qualify(s.tables.Groups), sqlgen.QuoteLiteral(id))

	rows, err := s.exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var g Group
	var name, domain, process sql.NullString
	if err := rows.Scan(&g.ID, &name, &domain, &process); err != nil {
		return nil, fmt.Errorf("failed to scan group %s: %w", id, err)
	}
	g.Name = name.String
	g.Domain = domain.String
	g.Process = process.String
	return &g, nil
}

// ListBlueprints lists the blueprints configured for a source system.
func (s *WarehouseStore) ListBlueprints(ctx context.Context, source string) ([]Entry, error) {
	query := fmt.Sprintf(`SELECT blueprint_id, name, deployed_objects, deployment_error
FROM %s
WHERE source = %s
ORDER BY blueprint_id`, s.loc.Qualify(s.tables.Blueprints), sqlgen.QuoteLiteral(source))
	return s.listEntries(ctx, query, "blueprints")
}

// ListDimensions lists the configured dimensions.
func (s *WarehouseStore) ListDimensions(ctx context.Context) ([]Entry, error) {
	query := fmt.Sprintf(`SELECT dimension_id, name, deployed, deployment_error
FROM %s
ORDER BY dimension_id`, s.loc.Qualify(s.tables.Dimensions))
	return s.listEntries(ctx, query, "dimensions")
}

// ListFacts lists the configured facts.
func (s *WarehouseStore) ListFacts(ctx context.Context) ([]Entry, error) {
	query := fmt.Sprintf(`SELECT fact_id, name, deployed, deployment_error
FROM %s
ORDER BY fact_id`, s.loc.Qualify(s.tables.Facts))
	return s.listEntries(ctx, query, "facts")
}

func (s *WarehouseStore) listEntries(ctx context.Context, query, what string) ([]Entry, error) {
	rows, err := s.exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var name, deployed, deployErr sql.NullString
		if err := rows.Scan(&e.ID, &name, &deployed, &deployErr); err != nil {
			return nil, fmt.Errorf("failed to scan %s listing: %w", what, err)
		}
		e.Name = name.String
		e.Deployed = deployed.String
		e.Error = deployErr.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateBlueprintDeployed records a blueprint's deployment outcome: the JSON
// list of created object names, or the failure reason.
func (s *WarehouseStore) UpdateBlueprintDeployed(ctx context.Context, source, id string, objects []string, deployErr string) error {
	deployed := "NULL"
	if len(objects) > 0 {
		encoded, err := json.Marshal(objects)
		if err != nil {
			return fmt.Errorf("failed to encode deployed objects for %s: %w", id, err)
		}
		deployed = sqlgen.QuoteLiteral(string(encoded))
	}
	errValue := "NULL"
	if deployErr != "" {
		errValue = sqlgen.QuoteLiteral(deployErr)
	}

	stmt := fmt.Sprintf("UPDATE %s SET deployed_objects = %s, deployment_error = %s WHERE blueprint_id = %s AND source = %s",
		s.loc.Qualify(s.tables.Blueprints), deployed, errValue, sqlgen.QuoteLiteral(id), sqlgen.QuoteLiteral(source))
	if err := s.exec.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to update deployed status for %s: %w", id, err)
	}
	return nil
}

// UpdateDimensionDeployed records a dimension's deployment outcome.
func (s *WarehouseStore) UpdateDimensionDeployed(ctx context.Context, id, viewName, deployErr string) error {
	return s.updateDeployed(ctx, s.tables.Dimensions, "dimension_id", id, viewName, deployErr)
}

// UpdateFactDeployed records a fact's deployment outcome.
func (s *WarehouseStore) UpdateFactDeployed(ctx context.Context, id, viewName, deployErr string) error {
	return s.updateDeployed(ctx, s.tables.Facts, "fact_id", id, viewName, deployErr)
}

func (s *WarehouseStore) updateDeployed(ctx context.Context, table, keyCol, id, viewName, deployErr string) error {
	deployed := "NULL"
	if viewName != "" {
		deployed = sqlgen.QuoteLiteral(viewName)
	}
	errValue := "NULL"
	if deployErr != "" {
		errValue = sqlgen.QuoteLiteral(deployErr)
	}

	stmt := fmt.Sprintf("UPDATE %s SET deployed = %s, deployment_error = %s WHERE LOWER(%s) = LOWER(%s)",
		s.loc.Qualify(table), deployed, errValue, keyCol, sqlgen.QuoteLiteral(id))
	if err := s.exec.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to update deployed status for %s: %w", id, err)
	}
	return nil
}

// decodeVariant unmarshals a JSON variant column into out, treating NULL and
// empty strings as absent.
func decodeVariant(value sql.NullString, out any) error {
	if !value.Valid || value.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(value.String), out)
}

// Ensure WarehouseStore implements the Store interface
var _ Store = (*WarehouseStore)(nil)
