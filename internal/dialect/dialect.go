// Package dialect captures the SQL-vendor-specific rules the Dump Engine
// dispatches on: identifier quoting, catalog queries, literal escaping, and
// the preamble/epilogue wrapped around a dump (spec §4.A).
package dialect

import (
	"strings"

	"github.com/ckr3453/db-backup4j/internal/model"
)

// Dialect is the narrow capability the Dump Engine drives: enough to
// discover tables and columns, quote identifiers, and escape literals for
// one SQL vendor.
type Dialect interface {
	Name() model.Dialect

	// QuoteIdentifier quotes a single identifier per the vendor's rules.
	QuoteIdentifier(name string) string

	// QuoteQualified quotes a schema-qualified name as "schema"."table".
	QuoteQualified(schema, name string) string

	// ListTablesQuery returns the SQL to enumerate table names in schema.
	ListTablesQuery(schema string) string

	// ListColumnsQuery returns the SQL to enumerate column metadata for a table.
	ListColumnsQuery(schema, table string) string

	// PrimaryKeyQuery returns the SQL to enumerate primary-key column names.
	PrimaryKeyQuery(schema, table string) string

	// ColumnDDL renders one column's DDL fragment (type + nullability + default).
	ColumnDDL(col model.ColumnDescriptor) string

	// EscapeString escapes a string literal's body (without surrounding quotes).
	EscapeString(s string) string

	// BinaryLiteral renders b as the vendor's binary-literal syntax.
	BinaryLiteral(b []byte) string

	// Preamble returns the session-flag lines emitted before any table DDL.
	Preamble() []string

	// Epilogue returns the lines restoring any flags toggled in Preamble.
	Epilogue() []string

	// DisplayName is used in the header comment, e.g. "MySQL" / "PostgreSQL".
	DisplayName() string
}

// FromURL infers the dialect from a JDBC-style URL prefix
// ("jdbc:mysql://..." or "jdbc:postgresql://...", with or without the
// leading "jdbc:"). This is the authoritative database-config shape per
// spec §9's second open question.
func FromURL(url string) (Dialect, error) {
	lower := strings.ToLower(url)
	lower = strings.TrimPrefix(lower, "jdbc:")

	switch {
	case strings.HasPrefix(lower, "mysql://"):
		return MySQL{}, nil
	case strings.HasPrefix(lower, "postgresql://"), strings.HasPrefix(lower, "postgres://"):
		return PostgreSQL{}, nil
	default:
		return nil, errUnknownDialect(url)
	}
}

type errUnknownDialect string

func (e errUnknownDialect) Error() string {
	return "dialect: cannot infer dialect from url " + string(e)
}

// SchemaFromURL extracts the schema/database segment and, for PostgreSQL,
// the currentSchema/searchPath query parameter, per spec §9.
func SchemaFromURL(d Dialect, url string) string {
	u := strings.SplitN(url, "://", 2)
	if len(u) != 2 {
		return ""
	}
	rest := u[1]

	if d.Name() == model.DialectPostgreSQL {
		if idx := strings.Index(rest, "?"); idx >= 0 {
			query := rest[idx+1:]
			for _, kv := range strings.Split(query, "&") {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) == 2 && (parts[0] == "currentSchema" || parts[0] == "searchPath") {
					return firstOf(strings.Split(parts[1], ","))
				}
			}
			rest = rest[:idx]
		}
	}

	if idx := strings.Index(rest, "/"); idx >= 0 {
		path := rest[idx+1:]
		if q := strings.Index(path, "?"); q >= 0 {
			path = path[:q]
		}
		return path
	}
	return ""
}

func firstOf(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
