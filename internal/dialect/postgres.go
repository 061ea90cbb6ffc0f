package dialect

import (
	"fmt"
	"strings"

	"github.com/ckr3453/db-backup4j/internal/model"
)

// PostgresMetadataTables lists PostGIS and other common metadata tables
// excluded when system tables are excluded; these are PostgreSQL-specific
// and not covered by the generic pg_* / information_schema.* globs.
var PostgresMetadataTables = []string{"spatial_ref_sys", "geometry_columns", "geography_columns"}

// PostgreSQL implements Dialect for PostgreSQL.
type PostgreSQL struct{}

func (PostgreSQL) Name() model.Dialect { return model.DialectPostgreSQL }
func (PostgreSQL) DisplayName() string { return "PostgreSQL" }

func (PostgreSQL) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d PostgreSQL) QuoteQualified(schema, name string) string {
	if schema == "" {
		return d.QuoteIdentifier(name)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(name)
}

func (PostgreSQL) ListTablesQuery(schema string) string {
	return fmt.Sprintf(
		`SELECT tablename FROM pg_tables WHERE schemaname = '%s'`,
		escapeLiteralPostgres(schema),
	)
}

func (PostgreSQL) ListColumnsQuery(schema, table string) string {
	return fmt.Sprintf(
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = '%s' AND table_name = '%s'
		 ORDER BY ordinal_position`,
		escapeLiteralPostgres(schema), escapeLiteralPostgres(table),
	)
}

func (PostgreSQL) PrimaryKeyQuery(schema, table string) string {
	return fmt.Sprintf(
		`SELECT a.attname
		 FROM pg_index i
		 JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		 WHERE i.indrelid = '%s.%s'::regclass AND i.indisprimary
		 ORDER BY array_position(i.indkey, a.attnum)`,
		schema, table,
	)
}

func (d PostgreSQL) ColumnDDL(col model.ColumnDescriptor) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdentifier(col.Name))
	b.WriteString(" ")
	b.WriteString(col.SQLType)
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.DefaultValue != nil {
		b.WriteString(" DEFAULT '")
		b.WriteString(d.EscapeString(*col.DefaultValue))
		b.WriteString("'")
	}
	return b.String()
}

// EscapeString escapes a PostgreSQL string literal body. Standard-conforming
// strings only double quotes; backslashes are not special.
func (PostgreSQL) EscapeString(s string) string {
	return escapeLiteralPostgres(s)
}

// BinaryLiteral renders b as a PostgreSQL bytea hex-format literal, e.g. '\xdeadbeef'.
func (PostgreSQL) BinaryLiteral(b []byte) string {
	return fmt.Sprintf(`'\x%x'`, b)
}

func escapeLiteralPostgres(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (PostgreSQL) Preamble() []string {
	return []string{
		"BEGIN;",
		"SET CONSTRAINTS ALL DEFERRED;",
	}
}

func (PostgreSQL) Epilogue() []string {
	return []string{"COMMIT;"}
}
