// Package configstore reads blueprint and dimensional-model definitions from
// the configuration tables and records deployment outcomes back to them.
package configstore

import (
	"context"

	"github.com/graphmart/graphmart/internal/blueprint"
	"github.com/graphmart/graphmart/internal/dimensional"
)

// Group is the domain/process classification a model belongs to.
type Group struct {
	ID      string
	Name    string
	Domain  string
	Process string
}

// Entry is one row of a catalog listing: the record id, display name, and
// last recorded deployment outcome.
type Entry struct {
	ID       string
	Name     string
	Deployed string
	Error    string
}

// Store is the configuration contract the deployment pipeline depends on.
// Lookups return (nil, nil) when the record does not exist; errors are
// reserved for store failures.
type Store interface {
	// Blueprint loads one blueprint by source system and id.
	Blueprint(ctx context.Context, source, id string) (*blueprint.Record, error)

	// Dimension and Fact load one dimensional model by id.
	Dimension(ctx context.Context, id string) (*dimensional.Dimension, error)
	Fact(ctx context.Context, id string) (*dimensional.Fact, error)

	// Group loads the classification group a model belongs to.
	Group(ctx context.Context, id string) (*Group, error)

	// ListBlueprints lists the blueprints configured for a source system.
	// ListDimensions and ListFacts list the configured dimensional models.
	ListBlueprints(ctx context.Context, source string) ([]Entry, error)
	ListDimensions(ctx context.Context) ([]Entry, error)
	ListFacts(ctx context.Context) ([]Entry, error)

	// UpdateBlueprintDeployed records a blueprint's deployment outcome: the
	// fully qualified names of the objects created on success, or the failure
	// reason. Written once per run.
	UpdateBlueprintDeployed(ctx context.Context, source, id string, objects []string, deployErr string) error

	// UpdateDimensionDeployed and UpdateFactDeployed record the deployment
	// outcome for a model: the deployed view name on success (with an empty
	// error), or an empty view name and the failure reason. Written once per
	// run.
	UpdateDimensionDeployed(ctx context.Context, id, viewName, deployErr string) error
	UpdateFactDeployed(ctx context.Context, id, viewName, deployErr string) error
}
