// Package deploy drives the staged deployment pipeline: it resolves each
// requested unit's canonical model, executes the compiled statements stage by
// stage against a shared warehouse connection, applies governance metadata to
// created objects, streams structured progress events to the caller, and
// persists one audit record per run no matter how the run ends.
package deploy

import (
	"time"
)

// Severity of a progress event.
type Severity string

// Severity levels.
const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Status of a unit of work within a stage.
type Status string

// Work statuses.
const (
	StatusStarting   Status = "starting"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Stage is one phase of the fixed deployment pipeline.
type Stage string

// Pipeline stages, in execution order. StageComplete and StageError are the
// terminal pseudo-stages used in event payloads.
const (
	StageStaging             Stage = "staging"
	StageDataProcessing      Stage = "data_processing"
	StageKeyStorage          Stage = "key_storage"
	StageBuildRelationships  Stage = "build_relationships"
	StageDataStorage         Stage = "data_storage"
	StageSupportingArtefacts Stage = "supporting_artefacts"
	StageModelDeployment     Stage = "model_deployment"
	StageSeedLoad            Stage = "seed_load"

	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// StageOrder is the pipeline in its fixed execution order. There are no
// back-edges; seed_load only runs when a full refresh was requested.
var StageOrder = []Stage{
	StageStaging,
	StageDataProcessing,
	StageKeyStorage,
	StageBuildRelationships,
	StageDataStorage,
	StageSupportingArtefacts,
	StageModelDeployment,
	StageSeedLoad,
}

// RunStatus is the aggregate outcome of a whole run: success when no unit
// failed, failed when none succeeded, partial otherwise. Never ambiguous.
type RunStatus string

// Aggregate run statuses.
const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// AggregateStatus computes the run status from unit outcomes. An errored run
// with zero successes is failed even when no unit-level failure was counted.
func AggregateStatus(successes, failures int, runErr bool) RunStatus {
	if failures > 0 || runErr {
		if successes == 0 {
			return RunFailed
		}
		return RunPartial
	}
	return RunSuccess
}

// Event types on the progress stream. Unit events carry the unit's kind:
// blueprint runs announce blueprint_start/blueprint_complete, dimensional
// model runs model_start/model_complete.
const (
	EventLog               = "log"
	EventModelStart        = "model_start"
	EventModelComplete     = "model_complete"
	EventBlueprintStart    = "blueprint_start"
	EventBlueprintComplete = "blueprint_complete"
	EventComplete          = "complete"
	EventError             = "error"
	EventClose             = "close"
)

// startEvent and completeEvent name the stream events for one unit kind.
func startEvent(kind string) string {
	if kind == UnitBlueprint {
		return EventBlueprintStart
	}
	return EventModelStart
}

func completeEvent(kind string) string {
	if kind == UnitBlueprint {
		return EventBlueprintComplete
	}
	return EventModelComplete
}

// Event is one entry on a run's progress stream: an event type plus its
// JSON-serializable payload.
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

// LogEntry is the payload of a log event: one unit of work observed in one
// stage. StepsCompleted appears only on the per-unit completion entry; a nil
// map value means the stage was not requested (seed_load without full
// refresh), which is distinct from false.
type LogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Level       Severity  `json:"level,omitempty"`
	Step        Stage     `json:"step,omitempty"`
	ModelID     string    `json:"model_id,omitempty"`
	BlueprintID string    `json:"blueprint_id,omitempty"`
	ObjectName  string    `json:"object_name,omitempty"`
	Status      Status    `json:"status,omitempty"`
	Message     string    `json:"message"`

	StepsCompleted map[Stage]*bool `json:"steps_completed,omitempty"`
}

// UnitStart is the payload announcing one unit's deployment.
type UnitStart struct {
	Timestamp time.Time `json:"timestamp"`
	ModelID   string    `json:"model_id"`
	ModelType string    `json:"model_type"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
}

// UnitComplete is the payload closing one unit's deployment. DataSummary
// carries post-seed-load row counts when a full refresh was requested.
type UnitComplete struct {
	Timestamp   time.Time        `json:"timestamp"`
	ModelID     string           `json:"model_id"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	DataSummary map[string]int64 `json:"data_summary,omitempty"`
}

// UnitResult identifies one unit in the final summary.
type UnitResult struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// Summary is the payload of the final complete event.
type Summary struct {
	Timestamp  time.Time    `json:"timestamp"`
	Message    string       `json:"message"`
	Total      int          `json:"total"`
	Successful []UnitResult `json:"successful"`
	Failed     []UnitResult `json:"failed"`
}

// StreamError is the payload of an error event.
type StreamError struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     Severity  `json:"level"`
}

// StreamClose is the payload of the final close event.
type StreamClose struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
