package pgmigrate

import (
	"fmt"
	"sort"
)

// Direction is the way a Plan moves the database relative to its current
// version.
type Direction int

const (
	Unchanged Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unchanged"
	}
}

// Plan is the ordered set of migration versions to apply to move the
// database from Current to Target. Steps is always ordered the way it
// must be executed: ascending for Forward, descending for Backward.
type Plan struct {
	Steps     []int
	Direction Direction
	Current   int
	Target    int
}

// ComputePlan implements the six-step planning algorithm: validate that
// every applied version is known and loadable, validate that the applied
// history forms a contiguous prefix of the loaded migrations (no holes),
// validate checksums unless force is set, then compute the ordered steps
// needed to move from the current version (the last applied one, or -1 if
// none) to target.
//
// loaded must already be sorted by Version ascending; state must already
// be sorted by applied order (equivalently, by Version ascending, since
// migrations can only be applied in order).
func ComputePlan(state []Record, loaded []Migration, target int, force bool) (Plan, error) {
	minVersion, maxVersion := -1, -1
	if len(loaded) > 0 {
		minVersion = loaded[0].Version
		maxVersion = loaded[len(loaded)-1].Version
	}

	// Clamp target to [min_version ∪ {-1}, max_version].
	if target > maxVersion {
		target = maxVersion
	}
	if target < -1 {
		target = -1
	}
	if target != -1 && target < minVersion {
		target = minVersion
	}

	byVersion := make(map[int]Migration, len(loaded))
	for _, m := range loaded {
		byVersion[m.Version] = m
	}

	for i, r := range state {
		m, ok := byVersion[r.Version]
		if !ok {
			return Plan{}, &UnknownMigrationError{Version: r.Version}
		}

		if i >= len(loaded) || m.Version != loaded[i].Version {
			expected := -1
			if i < len(loaded) {
				expected = loaded[i].Version
			}
			return Plan{}, &StateHoleError{Expected: expected}
		}

		if !force && r.SHA256 != m.SHA256 {
			return Plan{}, &StateIntegrityError{Version: r.Version}
		}
	}

	current := -1
	if len(state) > 0 {
		current = state[len(state)-1].Version
	}

	if current == target {
		return Plan{Direction: Unchanged, Current: current, Target: target}, nil
	}

	if target > current {
		var steps []int
		for _, m := range loaded {
			if m.Version > current && m.Version <= target {
				steps = append(steps, m.Version)
			}
		}
		return Plan{Steps: steps, Direction: Forward, Current: current, Target: target}, nil
	}

	var steps []int
	for i := len(loaded) - 1; i >= 0; i-- {
		m := loaded[i]
		if m.Version <= target || m.Version > current {
			continue
		}
		if !m.Downable() {
			return Plan{}, &PlanningError{Reason: fmt.Sprintf("migration %d has no down step", m.Version)}
		}
		steps = append(steps, m.Version)
	}
	return Plan{Steps: steps, Direction: Backward, Current: current, Target: target}, nil
}

// sortMigrations returns loaded sorted by Version ascending. Loaders are
// expected to already return sorted output; Migrator calls this
// defensively before planning.
func sortMigrations(loaded []Migration) []Migration {
	out := append([]Migration(nil), loaded...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}
