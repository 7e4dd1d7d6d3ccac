package configstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmart/graphmart/internal/sqlgen"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

// mockExecutor runs the base executor against a sqlmock-backed *sql.DB so
// the store's scanning and decoding paths run over real driver rows.
type mockExecutor struct {
	warehouse.BaseSQLExecutor
}

func (m *mockExecutor) Connect(_ context.Context, _ warehouse.Config) error { return nil }

func (m *mockExecutor) ObjectExists(ctx context.Context, kind warehouse.ObjectType, database, schema, name string) (bool, error) {
	return m.ObjectExistsCommon(ctx, kind, database, schema, name)
}

func (m *mockExecutor) DialectName() string { return "mock" }

var _ warehouse.Executor = (*mockExecutor)(nil)

func newMockStore(t *testing.T) (*WarehouseStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exec := &mockExecutor{}
	exec.DB = db
	loc := sqlgen.Location{Database: "DEV_DB", Schema: "CONFIG"}
	return NewWarehouseStore(exec, loc, Tables{}, nil), mock
}

func blueprintColumnsResult() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"column_name", "binding", "alias", "data_type", "description"}).
		AddRow("EquipmentNumber", "EQUNR", "EQUIPMENT_NUMBER", "TEXT", "Equipment master key").
		AddRow("Description", "EQKTX", nil, "TEXT", nil)
}

func TestWarehouseStoreBlueprint(t *testing.T) {
	t.Run("loads record with nodes and ordered columns", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_BLUEPRINTS\nWHERE blueprint_id = 'bp_asset' AND source = 'SAP'").
			WillReturnRows(sqlmock.NewRows([]string{
				"blueprint_id", "group_id", "name", "binding_object", "binding_db", "binding_schema",
				"ingest_time_binding", "primary_node", "secondary_nodes", "delete_condition", "where_clause",
			}).AddRow(
				"bp_asset", "grp_maint", "Asset Register", "BP_ASSET_REGISTER", "RAW_DB", "SAP_RAW",
				"LOAD_TS",
				`{"node":"Equipment","bindings":[{"name":"EquipmentNumber","binding":"EQUNR"}],"load":true}`,
				`[{"node":"Asset","bindings":[{"name":"AssetNumber","binding":"ANLNR"}],"load":false}]`,
				"DELETE_FLAG = 'X'", "CLIENT = '100'",
			))
		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_BLUEPRINT_COLUMNS\nWHERE blueprint_id = 'bp_asset' AND NOT COALESCE").
			WillReturnRows(blueprintColumnsResult())

		rec, err := store.Blueprint(context.Background(), "SAP", "bp_asset")
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, "bp_asset", rec.ID)
		assert.Equal(t, "grp_maint", rec.GroupID)
		assert.Equal(t, "BP_ASSET_REGISTER", rec.BindingObject)
		assert.Equal(t, "RAW_DB", rec.BindingDB)
		assert.Equal(t, "LOAD_TS", rec.IngestTimeBinding)
		assert.Equal(t, "CLIENT = '100'", rec.WhereClause)

		assert.Equal(t, "Equipment", rec.PrimaryNode.Node)
		require.Len(t, rec.PrimaryNode.Bindings, 1)
		assert.Equal(t, "EQUNR", rec.PrimaryNode.Bindings[0].Binding)
		assert.True(t, rec.PrimaryNode.Load)
		require.Len(t, rec.SecondaryNodes, 1)
		assert.Equal(t, "Asset", rec.SecondaryNodes[0].Node)
		assert.False(t, rec.SecondaryNodes[0].Load)

		require.Len(t, rec.Columns, 2)
		assert.Equal(t, "EQUIPMENT_NUMBER", rec.Columns[0].Alias)
		assert.Equal(t, "Description", rec.Columns[1].Name)
		assert.Empty(t, rec.Columns[1].Alias)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for unknown blueprint", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_BLUEPRINTS").
			WillReturnRows(sqlmock.NewRows([]string{
				"blueprint_id", "group_id", "name", "binding_object", "binding_db", "binding_schema",
				"ingest_time_binding", "primary_node", "secondary_nodes", "delete_condition", "where_clause",
			}))

		rec, err := store.Blueprint(context.Background(), "SAP", "missing")
		require.NoError(t, err)
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("surfaces malformed node variants", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_BLUEPRINTS").
			WillReturnRows(sqlmock.NewRows([]string{
				"blueprint_id", "group_id", "name", "binding_object", "binding_db", "binding_schema",
				"ingest_time_binding", "primary_node", "secondary_nodes", "delete_condition", "where_clause",
			}).AddRow("bp_asset", "grp_maint", nil, nil, nil, nil, nil, "{not json", nil, nil, nil))

		_, err := store.Blueprint(context.Background(), "SAP", "bp_asset")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed primary_node")
	})
}

func TestWarehouseStoreDimension(t *testing.T) {
	t.Run("decodes roles and source attribute", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`FROM DEV_DB.CONFIG.CONFIG_DIMENSIONS
WHERE LOWER\(dimension_id\) = LOWER\('equipment'\)`).
			WillReturnRows(sqlmock.NewRows([]string{
				"dimension_id", "name", "description", "belongs_to", "pii", "roles",
				"source_attribute", "deployed", "deployment_error",
			}).AddRow(
				"equipment", "Equipment", "Equipment master", "grp_maint", true,
				`["ANALYST","ENGINEER"]`,
				`{"name":"bp_asset","source":"SAP","node":"Equipment"}`,
				nil, nil,
			))
		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_DIMENSION_COLUMNS").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "type", "description", "blueprint_mapping"}).
				AddRow("EQUIPMENT_NUMBER", "TEXT", nil, "SAP.bp_asset.EquipmentNumber"))

		dim, err := store.Dimension(context.Background(), "equipment")
		require.NoError(t, err)
		require.NotNil(t, dim)

		assert.Equal(t, "equipment", dim.ID)
		assert.Equal(t, "grp_maint", dim.BelongsTo)
		require.NotNil(t, dim.PII)
		assert.True(t, *dim.PII)
		assert.Equal(t, []string{"ANALYST", "ENGINEER"}, dim.Roles)
		assert.Equal(t, "bp_asset", dim.Source.Blueprint)
		assert.Equal(t, "SAP", dim.Source.Source)
		require.Len(t, dim.Columns, 1)
		assert.Equal(t, "SAP.bp_asset.EquipmentNumber", dim.Columns[0].BlueprintMapping)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for unknown dimension", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_DIMENSIONS").
			WillReturnRows(sqlmock.NewRows([]string{
				"dimension_id", "name", "description", "belongs_to", "pii", "roles",
				"source_attribute", "deployed", "deployment_error",
			}))

		dim, err := store.Dimension(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, dim)
	})
}

func TestWarehouseStoreFact(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM DEV_DB.CONFIG.CONFIG_FACTS
WHERE LOWER\(fact_id\) = LOWER\('maintenance'\)`).
		WillReturnRows(sqlmock.NewRows([]string{
			"fact_id", "name", "description", "belongs_to", "pii", "roles",
			"source_attribute", "edges", "join_keys", "bridge_pattern", "deployed", "deployment_error",
		}).AddRow(
			"maintenance", "Maintenance Orders", nil, "grp_maint", nil, nil,
			`{"name":"bp_orders","source":"SAP","node":"Order"}`,
			`[{"name":"ORDER_EQUIPMENT"}]`,
			`["HK_ORDER"]`,
			false, nil, "view missing",
		))
	mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_FACT_COLUMNS").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "type", "description", "blueprint_mapping"}))

	fact, err := store.Fact(context.Background(), "maintenance")
	require.NoError(t, err)
	require.NotNil(t, fact)

	assert.Equal(t, "maintenance", fact.ID)
	assert.Nil(t, fact.PII)
	assert.Equal(t, "bp_orders", fact.Attributes.Blueprint)
	require.Len(t, fact.Edges, 1)
	assert.Equal(t, "ORDER_EQUIPMENT", fact.Edges[0].Name)
	assert.Equal(t, []string{"HK_ORDER"}, fact.JoinKeys)
	assert.False(t, fact.BridgePattern)
	assert.Equal(t, "view missing", fact.DeploymentError)
	assert.Empty(t, fact.Columns)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWarehouseStoreGroup(t *testing.T) {
	t.Run("loads domain and process", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`FROM DEV_DB.CONFIG.CONFIG_GROUPS
WHERE group_id = 'grp_maint'`).
			WillReturnRows(sqlmock.NewRows([]string{"group_id", "name", "domain", "process"}).
				AddRow("grp_maint", "Maintenance", "Asset Management", "Plant Maintenance"))

		grp, err := store.Group(context.Background(), "grp_maint")
		require.NoError(t, err)
		require.NotNil(t, grp)
		assert.Equal(t, "Maintenance", grp.Name)
		assert.Equal(t, "Asset Management", grp.Domain)
		assert.Equal(t, "Plant Maintenance", grp.Process)
	})

	t.Run("returns nil for unknown group", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_GROUPS").
			WillReturnRows(sqlmock.NewRows([]string{"group_id", "name", "domain", "process"}))

		grp, err := store.Group(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, grp)
	})
}

func TestWarehouseStoreListings(t *testing.T) {
	t.Run("lists blueprints for a source", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`FROM DEV_DB.CONFIG.CONFIG_BLUEPRINTS
WHERE source = 'SAP'
ORDER BY blueprint_id`).
			WillReturnRows(sqlmock.NewRows([]string{"blueprint_id", "name", "deployed_objects", "deployment_error"}).
				AddRow("bp_asset", "Asset Register", `["DEV_DB.STAGE.VIEW_BP_ASSET_REGISTER"]`, nil).
				AddRow("bp_orders", "Maintenance Orders", nil, "insufficient privileges"))

		entries, err := store.ListBlueprints(context.Background(), "SAP")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "bp_asset", entries[0].ID)
		assert.Contains(t, entries[0].Deployed, "VIEW_BP_ASSET_REGISTER")
		assert.Empty(t, entries[0].Error)
		assert.Equal(t, "insufficient privileges", entries[1].Error)
	})

	t.Run("lists dimensions and facts", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_DIMENSIONS\nORDER BY dimension_id").
			WillReturnRows(sqlmock.NewRows([]string{"dimension_id", "name", "deployed", "deployment_error"}).
				AddRow("equipment", "Equipment", "DEV_DB.MART.V_DIM_EQUIPMENT", nil))
		mock.ExpectQuery("FROM DEV_DB.CONFIG.CONFIG_FACTS\nORDER BY fact_id").
			WillReturnRows(sqlmock.NewRows([]string{"fact_id", "name", "deployed", "deployment_error"}))

		dims, err := store.ListDimensions(context.Background())
		require.NoError(t, err)
		require.Len(t, dims, 1)
		assert.Equal(t, "DEV_DB.MART.V_DIM_EQUIPMENT", dims[0].Deployed)

		facts, err := store.ListFacts(context.Background())
		require.NoError(t, err)
		assert.Empty(t, facts)
	})
}

func TestWarehouseStoreUpdateBlueprintDeployed(t *testing.T) {
	t.Run("writes object list as JSON", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE DEV_DB.CONFIG.CONFIG_BLUEPRINTS SET deployed_objects = '\["DEV_DB.STAGE.VIEW_BP_ASSET_REGISTER","DEV_DB.GRAPH.NODE_EQUIPMENT"\]', deployment_error = NULL WHERE blueprint_id = 'bp_asset' AND source = 'SAP'`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateBlueprintDeployed(context.Background(), "SAP", "bp_asset",
			[]string{"DEV_DB.STAGE.VIEW_BP_ASSET_REGISTER", "DEV_DB.GRAPH.NODE_EQUIPMENT"}, "")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure clears objects and records error", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE DEV_DB.CONFIG.CONFIG_BLUEPRINTS SET deployed_objects = NULL, deployment_error = 'key_storage: insufficient privileges'`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateBlueprintDeployed(context.Background(), "SAP", "bp_asset", nil, "key_storage: insufficient privileges")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWarehouseStoreDeployedUpdates(t *testing.T) {
	t.Run("successful deployment records view name", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE DEV_DB.CONFIG.CONFIG_DIMENSIONS SET deployed = 'DEV_DB.MART.V_DIM_EQUIPMENT', deployment_error = NULL`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateDimensionDeployed(context.Background(), "equipment", "DEV_DB.MART.V_DIM_EQUIPMENT", "")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed deployment clears view and records error", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE DEV_DB.CONFIG.CONFIG_FACTS SET deployed = NULL, deployment_error = 'missing edge table'`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateFactDeployed(context.Background(), "maintenance", "", "missing edge table")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("executor failure is wrapped", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec("UPDATE DEV_DB.CONFIG.CONFIG_DIMENSIONS").
			WillReturnError(assert.AnError)

		err := store.UpdateDimensionDeployed(context.Background(), "equipment", "V", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update deployed status for equipment")
	})
}
