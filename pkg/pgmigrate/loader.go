package pgmigrate

import (
	"context"
	"fmt"
)

// Loader produces the ordered set of migrations available to a Migrator.
// Load must return migrations sorted by Version ascending. If any
// migration failed to load, Load returns a non-nil *LoadError (also
// available via report) alongside whatever migrations did load cleanly.
type Loader interface {
	Load(ctx context.Context) ([]Migration, *LoadReport, error)
}

// LoadReport accumulates errors and warnings keyed by migration name,
// preserving the order names were first encountered — mirroring an
// OrderedDict-style accumulation so a loader can report every problem it
// finds in one pass instead of stopping at the first one.
type LoadReport struct {
	order    []string
	Errors   map[string][]error
	Warnings map[string][]error
}

func newLoadReport() *LoadReport {
	return &LoadReport{
		Errors:   make(map[string][]error),
		Warnings: make(map[string][]error),
	}
}

func (r *LoadReport) touch(name string) {
	if _, ok := r.Errors[name]; ok {
		return
	}
	if _, ok := r.Warnings[name]; ok {
		return
	}
	r.order = append(r.order, name)
}

func (r *LoadReport) addError(name string, err error) {
	r.touch(name)
	r.Errors[name] = append(r.Errors[name], err)
}

func (r *LoadReport) addWarning(name string, err error) {
	r.touch(name)
	r.Warnings[name] = append(r.Warnings[name], err)
}

// HasErrors reports whether any migration failed to load.
func (r *LoadReport) HasErrors() bool {
	return len(r.Errors) > 0
}

// Names returns every migration name the report touched, in the order
// they were first seen.
func (r *LoadReport) Names() []string {
	return append([]string(nil), r.order...)
}

// String renders a human-readable summary of every error and warning, one
// line per entry, in encounter order — useful for CLI output.
func (r *LoadReport) String() string {
	out := ""
	for _, name := range r.order {
		for _, err := range r.Errors[name] {
			out += fmt.Sprintf("error: %s: %s\n", name, err)
		}
		for _, err := range r.Warnings[name] {
			out += fmt.Sprintf("warning: %s: %s\n", name, err)
		}
	}
	return out
}
