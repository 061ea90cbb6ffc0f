// Package filter applies the Dump Engine's table-name filtering: include
// globs, system-table exclusion, and exclude globs, in the order spec §4.A
// mandates. Glob matching is done via compiled github.com/dlclark/regexp2
// patterns rather than filepath.Match, since the spec's glob semantics
// ("*" matches any substring, "?" matches one character) are applied to
// bare identifiers, not paths, and regexp2 lets filter precedence and glob
// translation live in one readable place.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/ckr3453/db-backup4j/internal/dialect"
	"github.com/ckr3453/db-backup4j/internal/model"
)

// systemSchemas lists the dialect-specific system/metadata tables excluded
// when ExcludeSystemTables is set, per spec §4.A.
var systemSchemas = map[model.Dialect][]string{
	model.DialectMySQL: {
		"information_schema.*", "mysql.*", "performance_schema.*", "sys.*",
	},
	model.DialectPostgreSQL: {
		"information_schema.*", "pg_*", "pg_catalog.*",
	},
}

// migrationToolTables are excluded regardless of dialect.
var migrationToolTables = []string{"flyway_*", "liquibase*", "__*"}

// globToRegexp compiles a glob ("*" = any substring, "?" = one character)
// into an anchored, case-sensitive regexp2.Regexp matching the whole string.
func globToRegexp(glob string) (*regexp2.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp2.Escape(string(r)))
		}
	}
	b.WriteString("$")
	return regexp2.MustCompile(b.String(), regexp2.None), nil
}

func matchesAny(name string, globs []string) (bool, error) {
	for _, g := range globs {
		re, err := globToRegexp(g)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", g, err)
		}
		ok, err := re.MatchString(name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Apply filters tableNames per spec §4.A step order:
//  1. include patterns (keep only matches, if any are given)
//  2. exclude-system-tables (fixed dialect-specific set)
//  3. exclude patterns
//
// The unqualified table name is matched against include/exclude patterns;
// the schema-qualified name is matched against the system-schema set.
// The result is sorted ascending by name for deterministic dump order.
func Apply(dlct model.Dialect, schema string, tableNames []string, f model.TableFilter) ([]string, error) {
	kept := make([]string, 0, len(tableNames))

	for _, name := range tableNames {
		if len(f.IncludePatterns) > 0 {
			ok, err := matchesAny(name, f.IncludePatterns)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		kept = append(kept, name)
	}

	if f.ExcludeSystemTables {
		qualified := func(name string) string {
			if schema == "" {
				return name
			}
			return schema + "." + name
		}
		// systemSchemas patterns carry their own catalog prefix (e.g.
		// "information_schema.*") and only ever match if ListTables crossed
		// schema boundaries; they're matched against the qualified name.
		// migrationToolTables and PostgresMetadataTables are bare identifiers
		// that live inside the dumped schema itself, so they're matched
		// against the unqualified name.
		bareTables := append([]string{}, migrationToolTables...)
		if dlct == model.DialectPostgreSQL {
			bareTables = append(bareTables, dialect.PostgresMetadataTables...)
		}

		filtered := kept[:0:0]
		for _, name := range kept {
			excluded, err := matchesAny(qualified(name), systemSchemas[dlct])
			if err != nil {
				return nil, err
			}
			if !excluded {
				excluded, err = matchesAny(name, bareTables)
				if err != nil {
					return nil, err
				}
			}
			if !excluded {
				filtered = append(filtered, name)
			}
		}
		kept = filtered
	}

	if len(f.ExcludePatterns) > 0 {
		filtered := kept[:0:0]
		for _, name := range kept {
			excluded, err := matchesAny(name, f.ExcludePatterns)
			if err != nil {
				return nil, err
			}
			if !excluded {
				filtered = append(filtered, name)
			}
		}
		kept = filtered
	}

	sort.Strings(kept)
	return kept, nil
}
