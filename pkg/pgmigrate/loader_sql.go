package pgmigrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// filenamePattern matches "m_<version>_<slug>.<up|down>.sql". Version may
// contain underscores (e.g. m_2024_01_15_1200_create_users.up.sql) and
// they're stripped before being parsed as an integer, so migrations can be
// named after a timestamp without losing the directory's lexical sort
// order.
var filenamePattern = regexp.MustCompile(`^m_([0-9_]+)_([a-zA-Z_][a-zA-Z0-9_]*)\.(up|down)\.sql$`)

// SQLLoader loads migrations from a directory of plain SQL files in FS.
// Each migration is a pair of files sharing a version and slug, one for
// the forward step and an optional one for the reverse step:
//
//	m_0001_create_users.up.sql
//	m_0001_create_users.down.sql
//
// A migration with no .down.sql file is loaded as non-downable: rolling
// back past it is a PlanningError. Subdirectories and files without a
// .sql extension produce a warning and are ignored; a .sql file whose
// name doesn't match the pattern is a load error.
type SQLLoader struct {
	FS  fs.FS
	Dir string
}

type sqlPair struct {
	slug     string
	upPath   string
	downPath string
	hasUp    bool
	hasDown  bool
}

func (l *SQLLoader) dir() string {
	if l.Dir == "" {
		return "."
	}
	return l.Dir
}

// Load implements Loader.
func (l *SQLLoader) Load(ctx context.Context) ([]Migration, *LoadReport, error) {
	report := newLoadReport()

	entries, err := fs.ReadDir(l.FS, l.dir())
	if err != nil {
		return nil, report, fmt.Errorf("pgmigrate: read migrations directory: %w", err)
	}

	pairs := make(map[int]*sqlPair)
	var versions []int

	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() {
			report.addWarning(name, fmt.Errorf("subdirectory ignored"))
			continue
		}

		if !strings.HasSuffix(name, ".sql") {
			report.addWarning(name, fmt.Errorf("not a SQL file, ignoring"))
			continue
		}

		m := filenamePattern.FindStringSubmatch(name)
		if m == nil {
			report.addError(name, fmt.Errorf("does not match m_<version>_<slug>.(up|down).sql"))
			continue
		}

		rawVersion, slug, kind := m[1], m[2], m[3]
		version, err := strconv.Atoi(strings.ReplaceAll(rawVersion, "_", ""))
		if err != nil {
			report.addError(name, fmt.Errorf("invalid version %q: %w", rawVersion, err))
			continue
		}

		p, ok := pairs[version]
		if !ok {
			p = &sqlPair{slug: slug}
			pairs[version] = p
			versions = append(versions, version)
		} else if p.slug != slug {
			report.addError(name, fmt.Errorf("version %d has mismatched slugs %q and %q", version, p.slug, slug))
			continue
		}

		full := path.Join(l.dir(), name)
		switch kind {
		case "up":
			if p.hasUp {
				report.addError(name, fmt.Errorf("duplicate up file for version %d", version))
				continue
			}
			p.hasUp = true
			p.upPath = full
		case "down":
			if p.hasDown {
				report.addError(name, fmt.Errorf("duplicate down file for version %d", version))
				continue
			}
			p.hasDown = true
			p.downPath = full
		}
	}

	sort.Ints(versions)

	var migrations []Migration
	for _, version := range versions {
		p := pairs[version]
		name := fmt.Sprintf("m_%d_%s", version, p.slug)

		if !p.hasUp {
			report.addError(name, fmt.Errorf("missing up file"))
			continue
		}

		upSQL, err := fs.ReadFile(l.FS, p.upPath)
		if err != nil {
			report.addError(name, fmt.Errorf("read up file: %w", err))
			continue
		}

		mig := Migration{
			Version:     version,
			Description: p.slug,
		}
		mig.Up = sqlStep(upSQL)
		mig.SHA256 = hashStep(upSQL)

		if p.hasDown {
			downSQL, err := fs.ReadFile(l.FS, p.downPath)
			if err != nil {
				report.addError(name, fmt.Errorf("read down file: %w", err))
				continue
			}
			mig.Down = sqlStep(downSQL)
		}

		migrations = append(migrations, mig)
	}

	if report.HasErrors() {
		return migrations, report, &LoadError{Report: report}
	}
	return migrations, report, nil
}

func sqlStep(sql []byte) StepFunc {
	text := string(sql)
	return func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, text)
		return err
	}
}

func hashStep(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
