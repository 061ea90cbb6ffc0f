package dialect

import (
	"fmt"
	"strings"

	"github.com/ckr3453/db-backup4j/internal/model"
)

// MySQL implements Dialect for MySQL/MariaDB.
type MySQL struct{}

func (MySQL) Name() model.Dialect { return model.DialectMySQL }
func (MySQL) DisplayName() string { return "MySQL" }

func (MySQL) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d MySQL) QuoteQualified(schema, name string) string {
	if schema == "" {
		return d.QuoteIdentifier(name)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(name)
}

func (MySQL) ListTablesQuery(schema string) string {
	return fmt.Sprintf(
		`SELECT table_name FROM information_schema.tables WHERE table_schema = '%s' AND table_type = 'BASE TABLE'`,
		escapeLiteralMySQL(schema),
	)
}

func (MySQL) ListColumnsQuery(schema, table string) string {
	return fmt.Sprintf(
		`SELECT column_name, column_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = '%s' AND table_name = '%s'
		 ORDER BY ordinal_position`,
		escapeLiteralMySQL(schema), escapeLiteralMySQL(table),
	)
}

func (MySQL) PrimaryKeyQuery(schema, table string) string {
	return fmt.Sprintf(
		`SELECT column_name FROM information_schema.key_column_usage
		 WHERE table_schema = '%s' AND table_name = '%s' AND constraint_name = 'PRIMARY'
		 ORDER BY ordinal_position`,
		escapeLiteralMySQL(schema), escapeLiteralMySQL(table),
	)
}

func (d MySQL) ColumnDDL(col model.ColumnDescriptor) string {
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

// EscapeString escapes a MySQL string literal body. MySQL allows backslash
// escaping in addition to doubled quotes.
func (MySQL) EscapeString(s string) string {
	return escapeLiteralMySQL(s)
}

// BinaryLiteral renders b as MySQL's hex binary-literal syntax, e.g. X'deadbeef'.
func (MySQL) BinaryLiteral(b []byte) string {
	return fmt.Sprintf("X'%x'", b)
}

func escapeLiteralMySQL(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		"\x00", `\0`,
		"\n", `\n`,
		"\r", `\r`,
	)
	return r.Replace(s)
}

func (MySQL) Preamble() []string {
	return []string{
		"SET FOREIGN_KEY_CHECKS=0;",
		"SET UNIQUE_CHECKS=0;",
		"SET AUTOCOMMIT=0;",
	}
}

func (MySQL) Epilogue() []string {
	return []string{
		"SET UNIQUE_CHECKS=1;",
		"SET FOREIGN_KEY_CHECKS=1;",
		"COMMIT;",
	}
}
