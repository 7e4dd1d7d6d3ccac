package deploy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmart/graphmart/internal/blueprint"
	"github.com/graphmart/graphmart/internal/configstore"
	"github.com/graphmart/graphmart/internal/dimensional"
	"github.com/graphmart/graphmart/internal/sqlgen"
	"github.com/graphmart/graphmart/internal/testutil"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

type fakeExecutor struct {
	statements []string
	failOn     func(sql string) error
	exists     map[string]bool
	existsErr  error
}

func (f *fakeExecutor) Connect(ctx context.Context, cfg warehouse.Config) error { return nil }
func (f *fakeExecutor) Close() error                                            { return nil }
func (f *fakeExecutor) DialectName() string                                     { return "fake" }

func (f *fakeExecutor) Exec(ctx context.Context, sql string) error {
	if f.failOn != nil {
		if err := f.failOn(sql); err != nil {
			return err
		}
	}
	f.statements = append(f.statements, sql)
	return nil
}

func (f *fakeExecutor) ExecScript(ctx context.Context, script string) error {
	return f.Exec(ctx, script)
}

func (f *fakeExecutor) Query(ctx context.Context, sql string) (*warehouse.Rows, error) {
	return nil, errors.New("queries not supported")
}

func (f *fakeExecutor) ObjectExists(ctx context.Context, kind warehouse.ObjectType, database, schema, name string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.exists[name], nil
}

type deployedUpdate struct {
	id, view, err string
}

type fakeConfigStore struct {
	blueprints map[string]*blueprint.Record
	dims       map[string]*dimensional.Dimension
	facts      map[string]*dimensional.Fact
	groups     map[string]*configstore.Group

	bpUpdates   []blueprintUpdate
	dimUpdates  []deployedUpdate
	factUpdates []deployedUpdate
}

type blueprintUpdate struct {
	source  string
	id      string
	objects []string
	err     string
}

func (f *fakeConfigStore) Blueprint(ctx context.Context, source, id string) (*blueprint.Record, error) {
	return f.blueprints[id], nil
}

func (f *fakeConfigStore) Dimension(ctx context.Context, id string) (*dimensional.Dimension, error) {
	return f.dims[id], nil
}

func (f *fakeConfigStore) Fact(ctx context.Context, id string) (*dimensional.Fact, error) {
	return f.facts[id], nil
}

func (f *fakeConfigStore) Group(ctx context.Context, id string) (*configstore.Group, error) {
	return f.groups[id], nil
}

func (f *fakeConfigStore) ListBlueprints(ctx context.Context, source string) ([]configstore.Entry, error) {
	return nil, nil
}

func (f *fakeConfigStore) ListDimensions(ctx context.Context) ([]configstore.Entry, error) {
	return nil, nil
}

func (f *fakeConfigStore) ListFacts(ctx context.Context) ([]configstore.Entry, error) {
	return nil, nil
}

func (f *fakeConfigStore) UpdateBlueprintDeployed(ctx context.Context, source, id string, objects []string, deployErr string) error {
	f.bpUpdates = append(f.bpUpdates, blueprintUpdate{source, id, objects, deployErr})
	return nil
}

func (f *fakeConfigStore) UpdateDimensionDeployed(ctx context.Context, id, viewName, deployErr string) error {
	f.dimUpdates = append(f.dimUpdates, deployedUpdate{id, viewName, deployErr})
	return nil
}

func (f *fakeConfigStore) UpdateFactDeployed(ctx context.Context, id, viewName, deployErr string) error {
	f.factUpdates = append(f.factUpdates, deployedUpdate{id, viewName, deployErr})
	return nil
}

type fakeRecorder struct {
	runs []RunRecord
}

func (f *fakeRecorder) AppendRun(ctx context.Context, run RunRecord) error {
	f.runs = append(f.runs, run)
	return nil
}

func testTargets() Targets {
	return Targets{
		Stage:  sqlgen.Location{Database: "DEV_DB", Schema: "STAGE"},
		Target: sqlgen.Location{Database: "DEV_DB", Schema: "GRAPH"},
		Model:  sqlgen.Location{Database: "DEV_DB", Schema: "MART"},
	}
}

func testRecord(id, primary, secondary string) *blueprint.Record {
	rec := &blueprint.Record{
		ID:            id,
		Name:          id,
		GroupID:       "grp-maintenance",
		BindingDB:     "raw_db",
		BindingSchema: "raw_schema",
		BindingObject: strings.ToUpper(strings.ReplaceAll(id, "-", "_")),
		PrimaryNode: blueprint.NodeSpec{
			Node: primary,
			Bindings: []blueprint.Binding{
				{Name: primary + "_id", Binding: strings.ToUpper(primary) + "_ID"},
			},
			Load: true,
		},
		Columns: []blueprint.ColumnSpec{
			{Name: "description", Binding: "DESCRIPTION"},
			{Name: "status", Binding: "STATUS"},
		},
	}
	if secondary != "" {
		rec.SecondaryNodes = []blueprint.NodeSpec{{
			Node: secondary,
			Bindings: []blueprint.Binding{
				{Name: secondary + "_id", Binding: strings.ToUpper(secondary) + "_ID"},
			},
			Load: true,
		}}
	}
	return rec
}

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func eventsOfType(events []Event, typ string) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func unitCompletes(events []Event) []UnitComplete {
	var out []UnitComplete
	for _, ev := range events {
		if uc, ok := ev.Data.(UnitComplete); ok {
			out = append(out, uc)
		}
	}
	return out
}

func finalSummary(t *testing.T, events []Event) Summary {
	t.Helper()
	completes := eventsOfType(events, EventComplete)
	require.Len(t, completes, 1)
	return completes[0].Data.(Summary)
}

func stepsCompleted(t *testing.T, events []Event, modelID string) map[Stage]*bool {
	t.Helper()
	for _, ev := range eventsOfType(events, EventLog) {
		entry := ev.Data.(LogEntry)
		if entry.ModelID == modelID && entry.StepsCompleted != nil {
			return entry.StepsCompleted
		}
	}
	t.Fatalf("no completion entry for %s", modelID)
	return nil
}

func TestDeployBlueprints(t *testing.T) {
	t.Run("deploys the full object set for one blueprint", func(t *testing.T) {
		exec := &fakeExecutor{}
		store := &fakeConfigStore{
			blueprints: map[string]*blueprint.Record{
				"bp-asset-register": testRecord("bp-asset-register", "equipment", "asset"),
			},
		}
		rec := &fakeRecorder{}
		seq := NewSequencer(store, exec, rec, testTargets(), testutil.NewTestLogger(t))

		events := collect(seq.DeployBlueprints(context.Background(), Request{
			Source:   "sap",
			ModelIDs: []string{"bp-asset-register"},
		}))

		summary := finalSummary(t, events)
		assert.Len(t, summary.Successful, 1)
		assert.Empty(t, summary.Failed)

		require.Len(t, eventsOfType(events, EventBlueprintStart), 1)
		require.Len(t, eventsOfType(events, EventBlueprintComplete), 1)
		assert.Empty(t, eventsOfType(events, EventModelStart))

		all := strings.Join(exec.statements, "\n---\n")
		assert.Contains(t, all, "VIEW_BP_ASSET_REGISTER")
		assert.Contains(t, all, "STREAM_BP_ASSET_REGISTER")
		assert.Contains(t, all, "TASK_BP_ASSET_REGISTER")
		assert.Contains(t, all, "NODE_EQUIPMENT")
		assert.Contains(t, all, "NODE_ASSET")
		assert.Contains(t, all, "EDGE_EQUIPMENT_ASSET")
		assert.Contains(t, all, "ATTR_EQUIPMENT_BP_ASSET_REGISTER_SAP")

		require.Len(t, rec.runs, 1)
		assert.Equal(t, RunSuccess, rec.runs[0].Status)

		require.Len(t, store.bpUpdates, 1)
		update := store.bpUpdates[0]
		assert.Equal(t, "sap", update.source)
		assert.Equal(t, "bp-asset-register", update.id)
		assert.Empty(t, update.err)
		assert.Contains(t, update.objects, "DEV_DB.STAGE.VIEW_BP_ASSET_REGISTER")
		assert.Contains(t, update.objects, "DEV_DB.GRAPH.EDGE_EQUIPMENT_ASSET")
		assert.Contains(t, update.objects, "DEV_DB.GRAPH.ATTR_EQUIPMENT_BP_ASSET_REGISTER_SAP")
	})

	t.Run("stage events appear in pipeline order", func(t *testing.T) {
		exec := &fakeExecutor{}
		store := &fakeConfigStore{
			blueprints: map[string]*blueprint.Record{
				"bp-one": testRecord("bp-one", "equipment", "asset"),
			},
		}
		seq := NewSequencer(store, exec, nil, testTargets(), nil)

		events := collect(seq.DeployBlueprints(context.Background(), Request{
			Source:   "sap",
			ModelIDs: []string{"bp-one"},
		}))

		var seen []Stage
		started := make(map[Stage]bool)
		for _, ev := range eventsOfType(events, EventLog) {
			entry := ev.Data.(LogEntry)
			if entry.Status == StatusStarting {
				started[entry.Step] = true
			}
			if entry.Step == "" || entry.Step == StageComplete {
				continue
			}
			if len(seen) == 0 || seen[len(seen)-1] != entry.Step {
				seen = append(seen, entry.Step)
			}
		}
		assert.Equal(t, StageOrder, seen)

		// Every stage announces itself before doing any work.
		for _, stage := range StageOrder {
			assert.True(t, started[stage], "no starting event for %s", stage)
		}
	})

	t.Run("isolates one unit's stage failure", func(t *testing.T) {
		exec := &fakeExecutor{
			failOn: func(sql string) error {
				if strings.Contains(sql, "CREATE TABLE") && strings.Contains(sql, "NODE_VENDOR") {
					return errors.New("insufficient privileges")
				}
				return nil
			},
		}
		store := &fakeConfigStore{
			blueprints: map[string]*blueprint.Record{
				"bp-one":   testRecord("bp-one", "equipment", ""),
				"bp-two":   testRecord("bp-two", "vendor", ""),
				"bp-three": testRecord("bp-three", "material", ""),
			},
		}
		rec := &fakeRecorder{}
		seq := NewSequencer(store, exec, rec, testTargets(), nil)

		events := collect(seq.DeployBlueprints(context.Background(), Request{
			Source:   "sap",
			ModelIDs: []string{"bp-one", "bp-two", "bp-three"},
		}))

		summary := finalSummary(t, events)
		require.Len(t, summary.Failed, 1)
		assert.Equal(t, "bp-two", summary.Failed[0].ID)
		assert.Len(t, summary.Successful, 2)

		completes := unitCompletes(events)
		require.Len(t, completes, 3)
		assert.Equal(t, "success", completes[0].Status)
		assert.Equal(t, "failed", completes[1].Status)
		assert.Equal(t, "success", completes[2].Status)

		steps := stepsCompleted(t, events, "bp-two")
		require.NotNil(t, steps[StageKeyStorage])
		assert.False(t, *steps[StageKeyStorage])
		require.NotNil(t, steps[StageBuildRelationships])
		assert.True(t, *steps[StageBuildRelationships])

		require.Len(t, rec.runs, 1)
		assert.Equal(t, RunPartial, rec.runs[0].Status)
		assert.Equal(t, 2, rec.runs[0].SuccessCount)
		assert.Equal(t, 1, rec.runs[0].ErrorCount)

		require.Len(t, store.bpUpdates, 3)
		assert.Empty(t, store.bpUpdates[0].err)
		assert.Empty(t, store.bpUpdates[1].objects)
		assert.Contains(t, store.bpUpdates[1].err, "key_storage")
		assert.Empty(t, store.bpUpdates[2].err)
	})

	t.Run("task creation failure is terminal for data_processing", func(t *testing.T) {
		exec := &fakeExecutor{
			failOn: func(sql string) error {
				if strings.Contains(sql, "CREATE TASK") {
					return errors.New("cannot create task")
				}
				return nil
			},
		}
		store := &fakeConfigStore{
			blueprints: map[string]*blueprint.Record{
				"bp-one": testRecord("bp-one", "equipment", ""),
			},
		}
		seq := NewSequencer(store, exec, nil, testTargets(), nil)

		events := collect(seq.DeployBlueprints(context.Background(), Request{
			Source:   "sap",
			ModelIDs: []string{"bp-one"},
		}))

		steps := stepsCompleted(t, events, "bp-one")
		require.NotNil(t, steps[StageDataProcessing])
		assert.False(t, *steps[StageDataProcessing])

		// The resume never runs once task creation fails.
		for _, sql := range exec.statements {
			assert.NotContains(t, sql, "RESUME")
		}

		// Later stages still execute against the objects that exist.
		require.NotNil(t, steps[StageKeyStorage])
		assert.True(t, *steps[StageKeyStorage])
	})

	t.Run("seed_load is tri-state", func(t *testing.T) {
		store := &fakeConfigStore{
			blueprints: map[string]*blueprint.Record{
				"bp-one": testRecord("bp-one", "equipment", ""),
			},
		}

		t.Run("not requested", func(t *testing.T) {
			exec := &fakeExecutor{}
			seq := NewSequencer(store, exec, nil, testTargets(), nil)
			events := collect(seq.DeployBlueprints(context.Background(), Request{
				Source:   "sap",
				ModelIDs: []string{"bp-one"},
			}))

			steps := stepsCompleted(t, events, "bp-one")
			val, present := steps[StageSeedLoad]
			assert.True(t, present)
			assert.Nil(t, val)

			for _, sql := range exec.statements {
				assert.NotContains(t, sql, "TRUNCATE")
			}
		})

		t.Run("requested", func(t *testing.T) {
			exec := &fakeExecutor{}
			seq := NewSequencer(store, exec, nil, testTargets(), nil)
			events := collect(seq.DeployBlueprints(context.Background(), Request{
				Source:      "sap",
				ModelIDs:    []string{"bp-one"},
				FullRefresh: true,
			}))

			steps := stepsCompleted(t, events, "bp-one")
			require.NotNil(t, steps[StageSeedLoad])
			assert.True(t, *steps[StageSeedLoad])

			all := strings.Join(exec.statements, "\n")
			assert.Contains(t, all, "TRUNCATE TABLE IF EXISTS DEV_DB.GRAPH.NODE_EQUIPMENT")
		})
	})

	t.Run("unknown blueprint aborts before any stage and still records the run", func(t *testing.T) {
		exec := &fakeExecutor{}
		store := &fakeConfigStore{}
		rec := &fakeRecorder{}
		seq := NewSequencer(store, exec, rec, testTargets(), nil)

		events := collect(seq.DeployBlueprints(context.Background(), Request{
			Source:   "sap",
			ModelIDs: []string{"bp-missing"},
		}))

		require.Len(t, eventsOfType(events, EventError), 1)
		require.Len(t, eventsOfType(events, EventClose), 1)
		assert.Equal(t, EventClose, events[len(events)-1].Type)

		// No statements ran besides tag bootstrap, which never happened
		// either because resolution failed first.
		assert.Empty(t, eventsOfType(events, EventBlueprintStart))

		require.Len(t, rec.runs, 1)
		assert.Equal(t, RunFailed, rec.runs[0].Status)
		assert.NotEmpty(t, rec.runs[0].Events)
	})

	t.Run("validation failure aborts the whole run", func(t *testing.T) {
		bad := testRecord("bp-bad", "equipment", "")
		bad.PrimaryNode.Bindings[0].Binding = ""
		store := &fakeConfigStore{
			blueprints: map[string]*blueprint.Record{"bp-bad": bad},
		}
		rec := &fakeRecorder{}
		seq := NewSequencer(store, &fakeExecutor{}, rec, testTargets(), nil)

		events := collect(seq.DeployBlueprints(context.Background(), Request{
			Source:   "sap",
			ModelIDs: []string{"bp-bad"},
		}))

		errs := eventsOfType(events, EventError)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Data.(StreamError).Message, "primary_node")

		require.Len(t, rec.runs, 1)
		assert.Equal(t, RunFailed, rec.runs[0].Status)
	})
}

func TestDeployModels(t *testing.T) {
	pii := true
	dim := &dimensional.Dimension{
		ID:          "equipment",
		Name:        "Equipment",
		Description: "Equipment master data",
		BelongsTo:   "grp-maintenance",
		PII:         &pii,
		Roles:       []string{"AR_MAINTENANCE"},
		Source: dimensional.AttributeRef{
			Blueprint: "bp-asset-register",
			Source:    "sap",
			Node:      "equipment",
		},
		Columns: []dimensional.ColumnRef{
			{Name: "description", BlueprintMapping: "sap.bp-asset-register.description"},
		},
	}

	newStore := func() *fakeConfigStore {
		return &fakeConfigStore{
			blueprints: map[string]*blueprint.Record{
				"bp-asset-register": testRecord("bp-asset-register", "equipment", "asset"),
			},
			dims: map[string]*dimensional.Dimension{"equipment": dim},
			groups: map[string]*configstore.Group{
				"grp-maintenance": {
					ID:      "grp-maintenance",
					Name:    "Maintenance",
					Domain:  "Maintenance",
					Process: "Asset Management",
				},
			},
		}
	}

	t.Run("deploys the dimension view and records the deployed name", func(t *testing.T) {
		exec := &fakeExecutor{
			exists: map[string]bool{"ATTR_EQUIPMENT_BP_ASSET_REGISTER_SAP": true},
		}
		store := newStore()
		rec := &fakeRecorder{}
		seq := NewSequencer(store, exec, rec, testTargets(), nil)

		events := collect(seq.DeployModels(context.Background(), Request{
			ModelIDs: []string{"equipment"},
		}))

		summary := finalSummary(t, events)
		require.Len(t, summary.Successful, 1)
		assert.Equal(t, "dimension", summary.Successful[0].Type)

		require.Len(t, eventsOfType(events, EventModelStart), 1)
		require.Len(t, eventsOfType(events, EventModelComplete), 1)
		assert.Empty(t, eventsOfType(events, EventBlueprintStart))

		all := strings.Join(exec.statements, "\n---\n")
		assert.Contains(t, all, "V_DIM_EQUIPMENT")
		assert.Contains(t, all, "SET TAG DOMAIN = 'Maintenance'")
		assert.Contains(t, all, "SET TAG PII = 'TRUE'")
		assert.Contains(t, all, `TO ROLE "AR_MAINTENANCE"`)

		require.Len(t, store.dimUpdates, 1)
		assert.Equal(t, "equipment", store.dimUpdates[0].id)
		assert.Equal(t, "DEV_DB.MART.V_DIM_EQUIPMENT", store.dimUpdates[0].view)
		assert.Empty(t, store.dimUpdates[0].err)
	})

	t.Run("missing attribute table fails model_deployment only", func(t *testing.T) {
		exec := &fakeExecutor{} // nothing exists
		store := newStore()
		seq := NewSequencer(store, exec, nil, testTargets(), nil)

		events := collect(seq.DeployModels(context.Background(), Request{
			ModelIDs: []string{"equipment"},
		}))

		steps := stepsCompleted(t, events, "equipment")
		require.NotNil(t, steps[StageModelDeployment])
		assert.False(t, *steps[StageModelDeployment])
		require.NotNil(t, steps[StageKeyStorage])
		assert.True(t, *steps[StageKeyStorage])

		// Objects created before the failing stage keep their governance
		// metadata.
		all := strings.Join(exec.statements, "\n---\n")
		assert.Contains(t, all, "ALTER TABLE DEV_DB.GRAPH.NODE_EQUIPMENT SET TAG DOMAIN = 'Maintenance'")
		assert.Contains(t, all, "ALTER VIEW DEV_DB.STAGE.VIEW_BP_ASSET_REGISTER SET TAG DOMAIN = 'Maintenance'")
		assert.Contains(t, all, "ALTER TABLE DEV_DB.GRAPH.ATTR_EQUIPMENT_BP_ASSET_REGISTER_SAP SET TAG DOMAIN = 'Maintenance'")

		require.Len(t, store.dimUpdates, 1)
		assert.Empty(t, store.dimUpdates[0].view)
		assert.Contains(t, store.dimUpdates[0].err, "does not exist")
	})

	t.Run("failed existence check is recorded as the deployment error", func(t *testing.T) {
		exec := &fakeExecutor{existsErr: errors.New("metadata query timeout")}
		store := newStore()
		seq := NewSequencer(store, exec, nil, testTargets(), nil)

		collect(seq.DeployModels(context.Background(), Request{
			ModelIDs: []string{"equipment"},
		}))

		require.Len(t, store.dimUpdates, 1)
		assert.Empty(t, store.dimUpdates[0].view)
		assert.Contains(t, store.dimUpdates[0].err, "metadata query timeout")
	})

	t.Run("fact deployment validates edge tables", func(t *testing.T) {
		fact := &dimensional.Fact{
			ID:        "maintenance",
			Name:      "Maintenance Orders",
			BelongsTo: "grp-maintenance",
			Attributes: dimensional.AttributeRef{
				Blueprint: "bp-asset-register",
				Source:    "sap",
				Node:      "equipment",
			},
			Edges:    []dimensional.EdgeRef{{Name: "equipment_asset"}},
			JoinKeys: []string{"asset"},
		}
		store := newStore()
		store.facts = map[string]*dimensional.Fact{"maintenance": fact}

		t.Run("missing edge table", func(t *testing.T) {
			exec := &fakeExecutor{
				exists: map[string]bool{"ATTR_EQUIPMENT_BP_ASSET_REGISTER_SAP": true},
			}
			seq := NewSequencer(store, exec, nil, testTargets(), nil)

			events := collect(seq.DeployModels(context.Background(), Request{
				ModelIDs: []string{"maintenance"},
			}))

			steps := stepsCompleted(t, events, "maintenance")
			require.NotNil(t, steps[StageModelDeployment])
			assert.False(t, *steps[StageModelDeployment])

			require.Len(t, store.factUpdates, 1)
			assert.Contains(t, store.factUpdates[0].err, "EDGE_EQUIPMENT_ASSET")
		})

		t.Run("all references resolve", func(t *testing.T) {
			store.factUpdates = nil
			exec := &fakeExecutor{
				exists: map[string]bool{
					"ATTR_EQUIPMENT_BP_ASSET_REGISTER_SAP": true,
					"EDGE_EQUIPMENT_ASSET":                 true,
				},
			}
			seq := NewSequencer(store, exec, nil, testTargets(), nil)

			events := collect(seq.DeployModels(context.Background(), Request{
				ModelIDs: []string{"maintenance"},
			}))

			summary := finalSummary(t, events)
			require.Len(t, summary.Successful, 1)

			all := strings.Join(exec.statements, "\n---\n")
			assert.Contains(t, all, "V_FACT_MAINTENANCE")

			// The view joins the edge table in the graph location it was
			// created and checked in, not the presentation location.
			var viewSQL string
			for _, stmt := range exec.statements {
				if strings.Contains(stmt, "CREATE VIEW IF NOT EXISTS DEV_DB.MART.V_FACT_MAINTENANCE") {
					viewSQL = stmt
				}
			}
			require.NotEmpty(t, viewSQL)
			assert.Contains(t, viewSQL, "JOIN DEV_DB.GRAPH.EDGE_EQUIPMENT_ASSET")
			assert.NotContains(t, viewSQL, "MART.EDGE_EQUIPMENT_ASSET")

			require.Len(t, store.factUpdates, 1)
			assert.Equal(t, "DEV_DB.MART.V_FACT_MAINTENANCE", store.factUpdates[0].view)
		})
	})

	t.Run("unknown model id fails the run", func(t *testing.T) {
		store := newStore()
		rec := &fakeRecorder{}
		seq := NewSequencer(store, &fakeExecutor{}, rec, testTargets(), nil)

		events := collect(seq.DeployModels(context.Background(), Request{
			ModelIDs: []string{"dim-unknown"},
		}))

		errs := eventsOfType(events, EventError)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Data.(StreamError).Message, "dim-unknown")
		require.Len(t, rec.runs, 1)
		assert.Equal(t, RunFailed, rec.runs[0].Status)
	})
}
