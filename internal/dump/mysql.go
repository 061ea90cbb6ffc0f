package dump

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ckr3453/db-backup4j/internal/dialect"
	"github.com/ckr3453/db-backup4j/internal/model"
)

// BuildMySQLDSN converts the JDBC-style database.url (spec §9's resolved
// DatabaseConfig shape, "jdbc:mysql://host:port/schema?params") plus
// separately configured credentials into the DSN go-sql-driver/mysql
// expects: "user:pass@tcp(host:port)/schema?parseTime=true&params".
func BuildMySQLDSN(cfg model.DatabaseConfig) (string, error) {
	rest := strings.TrimPrefix(cfg.URL, "jdbc:")
	rest = strings.TrimPrefix(rest, "mysql://")

	hostAndPath := rest
	query := ""
	if idx := strings.Index(rest, "?"); idx >= 0 {
		hostAndPath = rest[:idx]
		query = rest[idx+1:]
	}

	hostPort := hostAndPath
	schema := ""
	if idx := strings.Index(hostAndPath, "/"); idx >= 0 {
		hostPort = hostAndPath[:idx]
		schema = hostAndPath[idx+1:]
	}
	if hostPort == "" {
		return "", fmt.Errorf("mysql: database.url is missing a host")
	}

	params := "parseTime=true"
	if query != "" {
		params += "&" + query
	}

	var credentials string
	if cfg.Username != "" {
		credentials = cfg.Username
		if cfg.Password != "" {
			credentials += ":" + cfg.Password
		}
		credentials += "@"
	}

	return fmt.Sprintf("%stcp(%s)/%s?%s", credentials, hostPort, schema, params), nil
}

// MySQLSource is a Source backed by a live MySQL connection via
// go-sql-driver/mysql, grounded on the teacher's own choice of MySQL
// driver (internal/db in davexpro-backup, via gorm.io/driver/mysql).
type MySQLSource struct {
	db     *sql.DB
	schema string
}

// OpenMySQL opens a connection string of the form
// "user:password@tcp(host:port)/schema?parseTime=true" and returns a Source.
func OpenMySQL(ctx context.Context, dsn, schema string) (*MySQLSource, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &MySQLSource{db: db, schema: schema}, nil
}

func (s *MySQLSource) Dialect() dialect.Dialect { return dialect.MySQL{} }
func (s *MySQLSource) Schema() string            { return s.schema }
func (s *MySQLSource) Close() error              { return s.db.Close() }

func (s *MySQLSource) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.Dialect().ListTablesQuery(s.schema))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *MySQLSource) Describe(ctx context.Context, table string) (model.TableDescriptor, error) {
	d := s.Dialect()
	td := model.TableDescriptor{Schema: s.schema, Name: table}

	rows, err := s.db.QueryContext(ctx, d.ListColumnsQuery(s.schema, table))
	if err != nil {
		return td, err
	}
	for rows.Next() {
		var name, sqlType, nullable string
		var def sql.NullString
		if err := rows.Scan(&name, &sqlType, &nullable, &def); err != nil {
			rows.Close()
			return td, err
		}
		col := model.ColumnDescriptor{
			Name:     name,
			SQLType:  sqlType,
			Nullable: strings.EqualFold(nullable, "YES"),
		}
		if def.Valid {
			v := def.String
			col.DefaultValue = &v
		}
		td.Columns = append(td.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return td, err
	}

	pkRows, err := s.db.QueryContext(ctx, d.PrimaryKeyQuery(s.schema, table))
	if err != nil {
		return td, err
	}
	defer pkRows.Close()
	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			return td, err
		}
		td.PrimaryKey = append(td.PrimaryKey, col)
	}
	return td, pkRows.Err()
}

func (s *MySQLSource) StreamRows(ctx context.Context, table model.TableDescriptor) (*sql.Rows, []string, error) {
	d := s.Dialect()
	qid := d.QuoteQualified(table.Schema, table.Name)

	query := fmt.Sprintf("SELECT * FROM %s", qid)
	if len(table.PrimaryKey) > 0 {
		orderCols := make([]string, len(table.PrimaryKey))
		for i, c := range table.PrimaryKey {
			orderCols[i] = d.QuoteIdentifier(c)
		}
		query += " ORDER BY " + joinComma(orderCols)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, nil, err
	}
	return rows, cols, nil
}
