package warehouse

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Executor)
)

// Register adds an executor factory to the registry.
// Called by executor implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Executor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an executor factory by name.
func Get(name string) (func(*slog.Logger) Executor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates a new executor instance based on config type.
// The logger parameter is passed to the executor constructor (nil uses discard logger).
func New(cfg Config, logger *slog.Logger) (Executor, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("warehouse type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownWarehouseError{
			Type:      cfg.Type,
			Available: ListWarehouses(),
		}
	}
	return factory(logger), nil
}

// ListWarehouses returns all registered executor names (sorted).
func ListWarehouses() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a warehouse type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownWarehouseError is returned when an unknown warehouse type is requested.
type UnknownWarehouseError struct {
	Type      string
	Available []string
}

func (e *UnknownWarehouseError) Error() string {
	return fmt.Sprintf("unknown warehouse type %q\nAvailable warehouses: %v\nHint: Check your warehouse.type in graphmart.yaml", e.Type, e.Available)
}
