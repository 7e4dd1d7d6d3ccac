package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/graphmart/graphmart/internal/blueprint"
	"github.com/graphmart/graphmart/internal/configstore"
	"github.com/graphmart/graphmart/internal/dimensional"
	"github.com/graphmart/graphmart/internal/sqlgen"
	"github.com/graphmart/graphmart/pkg/warehouse"
)

// Unit kinds on the event stream and in run summaries.
const (
	UnitBlueprint = "blueprint"
	UnitDimension = "dimension"
	UnitFact      = "fact"
)

// Targets fixes the warehouse locations of one run: where staging objects
// (view, stream, task) go, where graph tables go, and where presentation
// views go.
type Targets struct {
	Stage  sqlgen.Location
	Target sqlgen.Location
	Model  sqlgen.Location

	TaskWarehouse string
	TaskSchedule  string
}

// Recorder persists one record per deployment run. Persistence failures are
// logged, never propagated; a run's outcome does not depend on its audit
// trail being writable.
type Recorder interface {
	AppendRun(ctx context.Context, run RunRecord) error
}

// RunRecord is everything the audit trail keeps about one run.
type RunRecord struct {
	DeploymentType string    `json:"deployment_type"`
	ModelIDs       []string  `json:"model_ids"`
	Events         []Event   `json:"events"`
	Summary        Summary   `json:"summary"`
	Status         RunStatus `json:"status"`
	SuccessCount   int       `json:"success_count"`
	ErrorCount     int       `json:"error_count"`
	TotalCount     int       `json:"total_count"`
}

// Request describes one deployment run.
type Request struct {
	// Source is the source system blueprints are resolved under.
	Source string

	// ModelIDs are the requested units, deployed strictly in order.
	ModelIDs []string

	// ReplaceObjects selects drop-and-recreate statements.
	ReplaceObjects bool

	// FullRefresh requests the seed_load stage; without it the stage is
	// recorded as not requested.
	FullRefresh bool
}

// Sequencer drives deployment runs: it resolves each requested unit to a
// validated table model, executes the compiled statements stage by stage over
// one shared warehouse connection, applies governance metadata, streams
// progress events, and hands the full event log to the Recorder when the run
// ends. A Sequencer runs one deployment at a time; the shared connection is
// not safe for concurrent runs.
type Sequencer struct {
	store    configstore.Store
	exec     warehouse.Executor
	governor *Governor
	recorder Recorder
	targets  Targets
	logger   *slog.Logger
}

// NewSequencer creates a Sequencer. recorder may be nil to skip audit
// persistence; if logger is nil, a discard logger is used.
func NewSequencer(store configstore.Store, exec warehouse.Executor, recorder Recorder, targets Targets, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if targets.TaskWarehouse == "" {
		targets.TaskWarehouse = sqlgen.DefaultTaskWarehouse
	}
	if targets.TaskSchedule == "" {
		targets.TaskSchedule = sqlgen.DefaultTaskSchedule
	}
	return &Sequencer{
		store:    store,
		exec:     exec,
		governor: NewGovernor(exec, logger),
		recorder: recorder,
		targets:  targets,
		logger:   logger,
	}
}

// DeployModels deploys dimensional models (dimensions or facts) through the
// staged pipeline: each unit's underlying blueprint runs every stage, then
// model_deployment publishes the presentation view. The returned channel
// carries the ordered event stream and closes after the final close event;
// the caller must drain it.
func (s *Sequencer) DeployModels(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, 64)
	go s.run(ctx, req, ch, "models", s.resolveModel)
	return ch
}

// DeployBlueprints deploys blueprints directly, without a presentation view.
// Same staged pipeline and event stream as DeployModels.
func (s *Sequencer) DeployBlueprints(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, 64)
	go s.run(ctx, req, ch, "blueprints", s.resolveBlueprint)
	return ch
}

type resolveFunc func(ctx context.Context, req Request, id string) (*unit, error)

// unit is one requested blueprint or dimensional model, resolved and
// compiled before any stage starts.
type unit struct {
	id        string
	kind      string
	dim       *dimensional.Dimension
	fact      *dimensional.Fact
	model     blueprint.TableModel
	comp      *sqlgen.Compiler
	gov       Governance
	groupName string

	steps    map[Stage]*bool
	failures []string
	summary  map[string]int64
}

func (u *unit) failed() bool { return len(u.failures) > 0 }

// run executes one deployment end to end. The event log is handed to the
// recorder after the close event, whatever happened before; nothing in here
// panics past this frame.
func (s *Sequencer) run(ctx context.Context, req Request, ch chan<- Event, kind string, resolve resolveFunc) {
	defer close(ch)
	em := &emitter{ch: ch}

	summary, runErr := s.deploy(ctx, req, em, resolve)
	status := AggregateStatus(len(summary.Successful), len(summary.Failed), runErr != nil)

	if runErr != nil {
		s.logger.Error("deployment run aborted", slog.Any("error", runErr))
		em.send(Event{Type: EventError, Data: StreamError{
			Timestamp: time.Now().UTC(),
			Message:   runErr.Error(),
			Level:     SeverityError,
		}})
	}

	summary.Timestamp = time.Now().UTC()
	em.send(Event{Type: EventComplete, Data: summary})
	em.send(Event{Type: EventClose, Data: StreamClose{
		Timestamp: time.Now().UTC(),
		Message:   "Stream complete",
	}})

	if s.recorder == nil {
		return
	}
	// Detached context: the record is written even when the caller is gone.
	rec := RunRecord{
		DeploymentType: kind,
		ModelIDs:       req.ModelIDs,
		Events:         em.events,
		Summary:        summary,
		Status:         status,
		SuccessCount:   len(summary.Successful),
		ErrorCount:     len(summary.Failed),
		TotalCount:     len(req.ModelIDs),
	}
	if err := s.recorder.AppendRun(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("could not persist deployment run record", slog.Any("error", err))
	}
}

// deploy resolves every unit up front, then runs each through the pipeline.
// A resolution or validation failure aborts the whole run before any stage
// starts; per-stage failures are isolated to their unit.
func (s *Sequencer) deploy(ctx context.Context, req Request, em *emitter, resolve resolveFunc) (Summary, error) {
	summary := Summary{
		Message: "Deployment complete",
		Total:   len(req.ModelIDs),
	}

	if len(req.ModelIDs) == 0 {
		return summary, errors.New("no units requested")
	}

	units := make([]*unit, 0, len(req.ModelIDs))
	for _, id := range req.ModelIDs {
		u, err := resolve(ctx, req, id)
		if err != nil {
			return summary, fmt.Errorf("could not resolve %s: %w", id, err)
		}
		units = append(units, u)
	}

	s.governor.EnsureTags(ctx)

	for i, u := range units {
		em.send(Event{Type: startEvent(u.kind), Data: UnitStart{
			Timestamp: time.Now().UTC(),
			ModelID:   u.id,
			ModelType: u.kind,
			Index:     i + 1,
			Total:     len(units),
		}})

		s.deployUnit(ctx, req, u, em)
		if u.kind == UnitBlueprint {
			s.recordBlueprintDeployed(ctx, u)
		}

		status := "success"
		level := SeveritySuccess
		message := fmt.Sprintf("Deployment of %s complete", u.id)
		var errMsg string
		if u.failed() {
			status = "failed"
			level = SeverityError
			errMsg = strings.Join(u.failures, "; ")
			message = fmt.Sprintf("Deployment of %s failed: %s", u.id, errMsg)
		}

		em.log(LogEntry{
			Level:          level,
			Step:           StageComplete,
			ModelID:        u.id,
			Status:         Status(status),
			Message:        message,
			StepsCompleted: u.steps,
		})
		em.send(Event{Type: completeEvent(u.kind), Data: UnitComplete{
			Timestamp:   time.Now().UTC(),
			ModelID:     u.id,
			Status:      status,
			Error:       errMsg,
			DataSummary: u.summary,
		}})

		if u.failed() {
			summary.Failed = append(summary.Failed, UnitResult{Type: u.kind, ID: u.id, Error: errMsg})
		} else {
			summary.Successful = append(summary.Successful, UnitResult{Type: u.kind, ID: u.id})
		}
	}

	return summary, nil
}

// deployUnit runs every stage for one unit, in order. A stage failure marks
// that stage false and moves on; later stages may still succeed against the
// objects that were created.
func (s *Sequencer) deployUnit(ctx context.Context, req Request, u *unit, em *emitter) {
	for _, stage := range StageOrder {
		em.log(LogEntry{
			Level:   SeverityInfo,
			Step:    stage,
			ModelID: u.id,
			Status:  StatusStarting,
			Message: fmt.Sprintf("Starting stage %s", stage),
		})

		if stage == StageSeedLoad && !req.FullRefresh {
			u.steps[StageSeedLoad] = nil
			em.log(LogEntry{
				Level:   SeverityInfo,
				Step:    StageSeedLoad,
				ModelID: u.id,
				Status:  StatusComplete,
				Message: "Seed load not requested",
			})
			continue
		}

		err := s.runStage(ctx, req, u, stage, em)
		ok := err == nil
		u.steps[stage] = &ok
		if err != nil {
			u.failures = append(u.failures, fmt.Sprintf("%s: %v", stage, err))
			em.log(LogEntry{
				Level:   SeverityError,
				Step:    stage,
				ModelID: u.id,
				Status:  StatusFailed,
				Message: err.Error(),
			})
			continue
		}

		s.governStage(ctx, u, stage)
		em.log(LogEntry{
			Level:   SeveritySuccess,
			Step:    stage,
			ModelID: u.id,
			Status:  StatusComplete,
			Message: fmt.Sprintf("Stage %s complete", stage),
		})
	}
}

func (s *Sequencer) runStage(ctx context.Context, req Request, u *unit, stage Stage, em *emitter) error {
	switch stage {
	case StageStaging:
		return s.execStatements(ctx, u, stage, []sqlgen.Statement{u.comp.StageViewStatement()}, em)

	case StageDataProcessing:
		stmts := append([]sqlgen.Statement{u.comp.StreamStatement()}, u.comp.TaskStatements()...)
		return s.execStatements(ctx, u, stage, stmts, em)

	case StageKeyStorage:
		return s.execStatements(ctx, u, stage, u.comp.KeyStorageStatements(), em)

	case StageBuildRelationships:
		return s.execStatements(ctx, u, stage, u.comp.RelationshipStatements(), em)

	case StageDataStorage:
		return s.execStatements(ctx, u, stage, u.comp.AttributeStatements(), em)

	case StageSupportingArtefacts:
		// The routine and its stream wiring were created with the attribute
		// load; this stage only confirms them.
		em.log(LogEntry{
			Level:      SeverityInfo,
			Step:       stage,
			ModelID:    u.id,
			ObjectName: u.comp.Names().Routine,
			Status:     StatusComplete,
			Message:    "Supporting artefacts in place",
		})
		return nil

	case StageModelDeployment:
		return s.deployModelView(ctx, req, u, em)

	case StageSeedLoad:
		if err := s.execStatements(ctx, u, stage, u.comp.FullRefreshStatements().Statements(), em); err != nil {
			return err
		}
		u.summary = s.dataSummary(ctx, u)
		return nil
	}
	return nil
}

// execStatements runs a stage's statements in order. Non-terminal failures
// are collected and the stage keeps going; a terminal failure stops the
// stage immediately.
func (s *Sequencer) execStatements(ctx context.Context, u *unit, stage Stage, stmts []sqlgen.Statement, em *emitter) error {
	var errs []error
	for _, stmt := range stmts {
		kind := strings.ToLower(string(stmt.Kind))
		em.log(LogEntry{
			Level:      SeverityInfo,
			Step:       stage,
			ModelID:    u.id,
			ObjectName: stmt.Object,
			Status:     StatusInProgress,
			Message:    fmt.Sprintf("Deploying %s %s", kind, stmt.Object),
		})

		if err := s.exec.Exec(ctx, stmt.SQL); err != nil {
			err = fmt.Errorf("%s %s: %w", kind, stmt.Object, err)
			errs = append(errs, err)
			if stmt.Terminal {
				break
			}
			continue
		}

		em.log(LogEntry{
			Level:      SeveritySuccess,
			Step:       stage,
			ModelID:    u.id,
			ObjectName: stmt.Object,
			Status:     StatusComplete,
			Message:    fmt.Sprintf("Deployed %s %s", kind, stmt.Object),
		})
	}
	return errors.Join(errs...)
}

// deployModelView publishes the unit's presentation view. Blueprint units
// have no view; their objects were already governed stage by stage, so this
// stage only confirms that.
func (s *Sequencer) deployModelView(ctx context.Context, req Request, u *unit, em *emitter) error {
	switch u.kind {
	case UnitDimension:
		return s.deployDimension(ctx, req, u, em)
	case UnitFact:
		return s.deployFact(ctx, req, u, em)
	default:
		em.log(LogEntry{
			Level:   SeverityInfo,
			Step:    StageModelDeployment,
			ModelID: u.id,
			Status:  StatusComplete,
			Message: "Governance metadata applied",
		})
		return nil
	}
}

func (s *Sequencer) deployDimension(ctx context.Context, req Request, u *unit, em *emitter) error {
	d := u.dim
	attrLoc := s.attributeLocation(d.Source)
	attr := u.comp.Names().Attribute

	exists, err := s.exec.ObjectExists(ctx, warehouse.ObjectTable, attrLoc.Database, attrLoc.Schema, attr)
	if err != nil {
		err = fmt.Errorf("could not check attribute table %s: %w", attrLoc.Qualify(attr), err)
		s.recordDeployed(ctx, u, "", err.Error())
		return err
	}
	if !exists {
		err := fmt.Errorf("attribute table %s does not exist", attrLoc.Qualify(attr))
		s.recordDeployed(ctx, u, "", err.Error())
		return err
	}

	stmt := dimensional.DimensionViewStatement(dimensional.DimensionInput{
		Dimension:      *d,
		AttributeTable: attr,
		AttributeLoc:   attrLoc,
		ModelLoc:       s.targets.Model,
	}, req.ReplaceObjects)

	return s.publishView(ctx, u, stmt, d.Description, em)
}

func (s *Sequencer) deployFact(ctx context.Context, req Request, u *unit, em *emitter) error {
	f := u.fact
	attrLoc := s.attributeLocation(f.Attributes)
	attr := u.comp.Names().Attribute

	exists, err := s.exec.ObjectExists(ctx, warehouse.ObjectTable, attrLoc.Database, attrLoc.Schema, attr)
	if err != nil {
		err = fmt.Errorf("could not check attribute table %s: %w", attrLoc.Qualify(attr), err)
		s.recordDeployed(ctx, u, "", err.Error())
		return err
	}
	if !exists {
		err := fmt.Errorf("attribute table %s does not exist", attrLoc.Qualify(attr))
		s.recordDeployed(ctx, u, "", err.Error())
		return err
	}

	var missing []string
	for _, edge := range f.Edges {
		table := "EDGE_" + sqlgen.UpperClean(edge.Name)
		exists, err := s.exec.ObjectExists(ctx, warehouse.ObjectTable, s.targets.Target.Database, s.targets.Target.Schema, table)
		if err != nil {
			err = fmt.Errorf("could not check edge table %s: %w", table, err)
			s.recordDeployed(ctx, u, "", err.Error())
			return err
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		err := fmt.Errorf("edge tables do not exist: %s", strings.Join(missing, ", "))
		s.recordDeployed(ctx, u, "", err.Error())
		return err
	}

	stmt := dimensional.FactViewStatement(dimensional.FactInput{
		Fact:           *f,
		AttributeTable: attr,
		AttributeLoc:   attrLoc,
		EdgeLoc:        s.targets.Target,
		ModelLoc:       s.targets.Model,
	}, req.ReplaceObjects)

	return s.publishView(ctx, u, stmt, f.Description, em)
}

// publishView creates the presentation view, attaches its comment, applies
// governance, and records the deployed state. The deployed-state write
// happens exactly once per run, success or failure.
func (s *Sequencer) publishView(ctx context.Context, u *unit, stmt sqlgen.Statement, description string, em *emitter) error {
	em.log(LogEntry{
		Level:      SeverityInfo,
		Step:       StageModelDeployment,
		ModelID:    u.id,
		ObjectName: stmt.Object,
		Status:     StatusInProgress,
		Message:    fmt.Sprintf("Deploying view %s", stmt.Object),
	})

	qualified := s.targets.Model.Qualify(stmt.Object)

	if err := s.exec.Exec(ctx, stmt.SQL); err != nil {
		err = fmt.Errorf("view %s: %w", stmt.Object, err)
		s.recordDeployed(ctx, u, "", err.Error())
		return err
	}

	if description != "" {
		comment := dimensional.ViewComment(qualified, description, u.groupName)
		if err := s.exec.Exec(ctx, comment); err != nil {
			s.logger.Warn("could not attach view comment",
				slog.String("view", qualified), slog.Any("error", err))
		}
	}

	s.governor.ApplyTags(ctx, warehouse.ObjectView, s.targets.Model.Database, s.targets.Model.Schema, stmt.Object, u.gov)
	s.governor.GrantAccess(ctx, warehouse.ObjectView, s.targets.Model.Database, s.targets.Model.Schema, stmt.Object, u.gov.Roles)

	s.recordDeployed(ctx, u, qualified, "")

	em.log(LogEntry{
		Level:      SeveritySuccess,
		Step:       StageModelDeployment,
		ModelID:    u.id,
		ObjectName: stmt.Object,
		Status:     StatusComplete,
		Message:    fmt.Sprintf("Deployed view %s", qualified),
	})
	return nil
}

// governStage tags and grants the objects a stage just created, so an
// aborted unit never leaves earlier-stage objects unclassified. Best-effort
// throughout; the presentation view is governed by publishView.
func (s *Sequencer) governStage(ctx context.Context, u *unit, stage Stage) {
	if u.gov.Empty() {
		return
	}

	names := u.comp.Names()
	type object struct {
		kind warehouse.ObjectType
		loc  sqlgen.Location
		name string
	}

	var objects []object
	switch stage {
	case StageStaging:
		objects = []object{{warehouse.ObjectView, s.targets.Stage, names.StageView}}
	case StageDataProcessing:
		objects = []object{
			{warehouse.ObjectStream, s.targets.Stage, names.Stream},
			{warehouse.ObjectTask, s.targets.Stage, names.Task},
		}
	case StageKeyStorage:
		for _, n := range names.NodeTables {
			objects = append(objects, object{warehouse.ObjectTable, s.targets.Target, n})
		}
	case StageBuildRelationships:
		for _, n := range names.EdgeTables {
			objects = append(objects, object{warehouse.ObjectTable, s.targets.Target, n})
		}
	case StageDataStorage:
		objects = []object{{warehouse.ObjectTable, s.targets.Target, names.Attribute}}
	default:
		return
	}

	for _, o := range objects {
		s.governor.ApplyTags(ctx, o.kind, o.loc.Database, o.loc.Schema, o.name, u.gov)
		s.governor.GrantAccess(ctx, o.kind, o.loc.Database, o.loc.Schema, o.name, u.gov.Roles)
	}
}

// recordDeployed writes the unit's deployed state back to the configuration
// store. Failures are logged only.
func (s *Sequencer) recordDeployed(ctx context.Context, u *unit, viewName, deployErr string) {
	var err error
	switch u.kind {
	case UnitDimension:
		err = s.store.UpdateDimensionDeployed(ctx, u.id, viewName, deployErr)
	case UnitFact:
		err = s.store.UpdateFactDeployed(ctx, u.id, viewName, deployErr)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("could not record deployed status",
			slog.String("model", u.id), slog.Any("error", err))
	}
}

// recordBlueprintDeployed writes the created object list (or the failure
// reason) back to the blueprint's configuration row. Failures are logged only.
func (s *Sequencer) recordBlueprintDeployed(ctx context.Context, u *unit) {
	var objects []string
	var deployErr string
	if u.failed() {
		deployErr = strings.Join(u.failures, "; ")
	} else {
		names := u.comp.Names()
		for _, n := range []string{names.StageView, names.Stream, names.Task} {
			objects = append(objects, s.targets.Stage.Qualify(n))
		}
		for _, n := range names.NodeTables {
			objects = append(objects, s.targets.Target.Qualify(n))
		}
		for _, n := range names.EdgeTables {
			objects = append(objects, s.targets.Target.Qualify(n))
		}
		objects = append(objects, s.targets.Target.Qualify(names.Attribute))
	}

	if err := s.store.UpdateBlueprintDeployed(ctx, u.model.Source, u.id, objects, deployErr); err != nil {
		s.logger.Warn("could not record deployed status",
			slog.String("blueprint", u.id), slog.Any("error", err))
	}
}

// dataSummary counts rows in the attribute table and every loaded node table
// after a seed load. Count failures leave the table out of the summary.
func (s *Sequencer) dataSummary(ctx context.Context, u *unit) map[string]int64 {
	names := u.comp.Names()

	tables := []string{names.Attribute}
	if u.model.Primary.Load {
		tables = append(tables, sqlgen.NodeTable(u.model.Primary.Entity))
	}
	for _, sn := range u.model.Secondaries {
		if sn.Load {
			tables = append(tables, sqlgen.NodeTable(sn.Entity))
		}
	}

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		n, err := s.rowCount(ctx, s.targets.Target.Qualify(table))
		if err != nil {
			s.logger.Warn("could not count rows",
				slog.String("table", table), slog.Any("error", err))
			continue
		}
		counts[table] = n
	}
	return counts
}

func (s *Sequencer) rowCount(ctx context.Context, qualified string) (int64, error) {
	rows, err := s.exec.Query(ctx, "SELECT COUNT(*) FROM "+qualified)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("count query returned no rows")
	}
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// resolveModel resolves one requested id as a dimension or fact, then loads
// and validates its underlying blueprint.
func (s *Sequencer) resolveModel(ctx context.Context, req Request, id string) (*unit, error) {
	d, err := s.store.Dimension(ctx, id)
	if err != nil {
		return nil, err
	}
	if d != nil {
		u, err := s.buildUnit(ctx, req, UnitDimension, id, d.Source, d.BelongsTo, d.PII, d.Roles)
		if err != nil {
			return nil, err
		}
		u.dim = d
		return u, nil
	}

	f, err := s.store.Fact(ctx, id)
	if err != nil {
		return nil, err
	}
	if f != nil {
		u, err := s.buildUnit(ctx, req, UnitFact, id, f.Attributes, f.BelongsTo, f.PII, f.Roles)
		if err != nil {
			return nil, err
		}
		u.fact = f
		return u, nil
	}

	return nil, fmt.Errorf("no dimension or fact named %s", id)
}

// resolveBlueprint resolves one requested id directly as a blueprint.
func (s *Sequencer) resolveBlueprint(ctx context.Context, req Request, id string) (*unit, error) {
	ref := dimensional.AttributeRef{Blueprint: id, Source: req.Source}
	return s.buildUnit(ctx, req, UnitBlueprint, id, ref, "", nil, nil)
}

// buildUnit loads the referenced blueprint, normalizes and validates it, and
// prepares the unit's compiler and governance metadata.
func (s *Sequencer) buildUnit(ctx context.Context, req Request, kind, id string, ref dimensional.AttributeRef, groupID string, pii *bool, roles []string) (*unit, error) {
	rec, err := s.store.Blueprint(ctx, ref.Source, ref.Blueprint)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no blueprint named %s for source %s", ref.Blueprint, ref.Source)
	}

	model := blueprint.Normalize(*rec, ref.Source)
	if err := blueprint.Validate(model); err != nil {
		return nil, err
	}

	comp := sqlgen.New(model, sqlgen.Options{
		Stage:          s.targets.Stage,
		Target:         s.targets.Target,
		TaskWarehouse:  s.targets.TaskWarehouse,
		TaskSchedule:   s.targets.TaskSchedule,
		ReplaceObjects: req.ReplaceObjects,
	})

	if groupID == "" {
		groupID = rec.GroupID
	}
	gov := Governance{PII: pii, Roles: roles}
	var groupName string
	if groupID != "" {
		group, err := s.store.Group(ctx, groupID)
		if err != nil {
			s.logger.Warn("could not load model group",
				slog.String("group", groupID), slog.Any("error", err))
		} else if group != nil {
			gov.Domain = group.Domain
			gov.Process = group.Process
			groupName = group.Name
		}
	}

	return &unit{
		id:        id,
		kind:      kind,
		model:     model,
		comp:      comp,
		gov:       gov,
		groupName: groupName,
		steps:     make(map[Stage]*bool, len(StageOrder)),
	}, nil
}

func (s *Sequencer) attributeLocation(ref dimensional.AttributeRef) sqlgen.Location {
	loc := s.targets.Target
	if ref.Database != "" {
		loc.Database = ref.Database
	}
	if ref.Schema != "" {
		loc.Schema = ref.Schema
	}
	return loc
}

// emitter appends every event to the run's log and forwards it to the
// caller's channel.
type emitter struct {
	ch     chan<- Event
	events []Event
}

func (e *emitter) send(ev Event) {
	e.events = append(e.events, ev)
	e.ch <- ev
}

func (e *emitter) log(entry LogEntry) {
	entry.Timestamp = time.Now().UTC()
	e.send(Event{Type: EventLog, Data: entry})
}
