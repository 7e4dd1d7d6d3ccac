package blueprint

import (
	"fmt"
	"strings"
)

// ValidationError reports every missing binding in a table model at once, so
// operators can fix a blueprint in a single pass.
type ValidationError struct {
	Blueprint string
	Missing   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("blueprint %q has missing field bindings: %s",
		e.Blueprint, strings.Join(e.Missing, ", "))
}

// Validate checks that a canonical table model is referentially complete:
// source database and schema are set, every column projection has a physical
// binding, and every primary and secondary node key has a binding. All
// violations are accumulated into one ValidationError; it never stops at the
// first.
func Validate(m TableModel) error {
	var missing []string

	if m.Database == "" {
		missing = append(missing, "binding_db")
	}
	if m.Schema == "" {
		missing = append(missing, "binding_schema")
	}

	for _, col := range m.Columns {
		if col.Binding == "" {
			name := col.Name
			if name == "" {
				name = "unknown"
			}
			missing = append(missing, name)
		}
	}

	if len(m.Primary.Bindings) == 0 {
		missing = append(missing, "primary_node.<no key columns>")
	}
	for _, b := range m.Primary.Bindings {
		if b.Binding == "" {
			missing = append(missing, "primary_node."+orUnknown(b.Name))
		}
	}

	for _, sn := range m.Secondaries {
		if len(sn.Bindings) == 0 {
			missing = append(missing, fmt.Sprintf("secondary_node.%s.<no key columns>", orUnknown(sn.Entity)))
		}
		for _, b := range sn.Bindings {
			if b.Binding == "" {
				missing = append(missing, fmt.Sprintf("secondary_node.%s.%s", orUnknown(sn.Entity), orUnknown(b.Name)))
			}
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Blueprint: m.ID, Missing: missing}
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
