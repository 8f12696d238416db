package pgmigrate

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry collects migrations registered from Go code, as a static
// substitute for a dynamically-discovered module path: call Register (or
// Registry.Add on a private instance) from an init func next to each
// migration's step functions, then hand a RegistryLoader the registry at
// startup.
type Registry struct {
	mu      sync.Mutex
	entries []Migration
}

// NewRegistry returns an empty, independently-owned Registry. Most
// programs can use the package-level Register function and the default
// registry instead; NewRegistry exists for tests and for programs that
// want more than one independent set of migrations in the same process.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a migration. It does not validate or deduplicate —
// duplicate versions and missing Up funcs are reported as load errors by
// RegistryLoader.Load, preserving the same accumulate-everything contract
// as SQLLoader.
func (r *Registry) Add(m Migration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, m)
}

func (r *Registry) snapshot() []Migration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Migration(nil), r.entries...)
}

var defaultRegistry = NewRegistry()

// Register adds a migration to the package-level default registry. It is
// meant to be called from an init func.
func Register(m Migration) {
	defaultRegistry.Add(m)
}

// RegistryLoader adapts a Registry to the Loader interface. A zero-value
// RegistryLoader loads from the default registry populated by Register.
type RegistryLoader struct {
	Registry *Registry
}

// Load implements Loader.
func (l *RegistryLoader) Load(ctx context.Context) ([]Migration, *LoadReport, error) {
	reg := l.Registry
	if reg == nil {
		reg = defaultRegistry
	}

	report := newLoadReport()
	entries := reg.snapshot()

	seenAt := make(map[int]string)
	var migrations []Migration

	for _, m := range entries {
		name := fmt.Sprintf("m_%d_%s", m.Version, m.Description)
		if m.Up == nil {
			report.addError(name, fmt.Errorf("registered migration %d has no Up step", m.Version))
			continue
		}
		if prev, ok := seenAt[m.Version]; ok {
			report.addError(name, fmt.Errorf("duplicate version %d (already registered as %s)", m.Version, prev))
			continue
		}
		seenAt[m.Version] = name
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	if report.HasErrors() {
		return migrations, report, &LoadError{Report: report}
	}
	return migrations, report, nil
}
