// Package dump implements the Dump Engine (spec §4.A): it opens a database
// connection, discovers and filters tables, and streams DDL + DML for each
// kept table to a writer in a single pass.
package dump

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ckr3453/db-backup4j/internal/dialect"
	"github.com/ckr3453/db-backup4j/internal/filter"
	"github.com/ckr3453/db-backup4j/internal/model"
)

// rowBatchBudget bounds the accumulated byte size of a multi-row INSERT
// statement, per spec §4.A, to keep replay memory bounded.
const rowBatchBudget = 256 * 1024

// Source abstracts the live-connection operations the engine needs from a
// dialect-specific database/sql driver: listing tables/columns/PKs and
// streaming rows. internal/dump/mysql.go and postgres.go implement it.
type Source interface {
	Dialect() dialect.Dialect
	Schema() string
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (model.TableDescriptor, error)
	StreamRows(ctx context.Context, table model.TableDescriptor) (*sql.Rows, []string, error)
	Close() error
}

// Engine produces the canonical SQL dump for a single database connection.
type Engine struct {
	source Source
	filter model.TableFilter
}

// New creates a dump Engine bound to an open Source.
func New(source Source, filter model.TableFilter) *Engine {
	return &Engine{source: source, filter: filter}
}

// Dump writes the full dump — header, preamble, one block per table,
// epilogue — to w. It aborts on the first error: per spec §4.A, a
// mid-stream failure means no partial artifact is promoted downstream, so
// the engine never suppresses an error to keep writing.
func (e *Engine) Dump(ctx context.Context, w io.Writer) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	d := e.source.Dialect()

	if err := writeHeader(bw, d); err != nil {
		return fmt.Errorf("dump: write header: %w", err)
	}

	for _, line := range d.Preamble() {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return fmt.Errorf("dump: write preamble: %w", err)
		}
	}

	tableNames, err := e.source.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("dump: list tables: %w", err)
	}

	kept, err := filter.Apply(d.Name(), e.source.Schema(), tableNames, e.filter)
	if err != nil {
		return fmt.Errorf("dump: apply filters: %w", err)
	}
	sort.Strings(kept)

	for _, name := range kept {
		table, err := e.source.Describe(ctx, name)
		if err != nil {
			return fmt.Errorf("dump: describe table %q: %w", name, err)
		}
		if err := e.dumpTable(ctx, bw, d, table); err != nil {
			return fmt.Errorf("dump: table %q: %w", name, err)
		}
	}

	for _, line := range d.Epilogue() {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return fmt.Errorf("dump: write epilogue: %w", err)
		}
	}

	return bw.Flush()
}

func writeHeader(w io.Writer, d dialect.Dialect) error {
	_, err := fmt.Fprintf(w, "-- %s Database Backup by db-backup4j\n-- Generated: %s\n\n",
		d.DisplayName(), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (e *Engine) dumpTable(ctx context.Context, w *bufio.Writer, d dialect.Dialect, table model.TableDescriptor) error {
	qid := d.QuoteQualified(table.Schema, table.Name)

	fmt.Fprintf(w, "--\n-- Table: %s\n--\n", table.QualifiedName())
	fmt.Fprintf(w, "DROP TABLE IF EXISTS %s;\n", qid)
	fmt.Fprintf(w, "CREATE TABLE %s (\n", qid)

	for i, col := range table.Columns {
		sep := ","
		if i == len(table.Columns)-1 && len(table.PrimaryKey) == 0 {
			sep = ""
		}
		fmt.Fprintf(w, "  %s%s\n", d.ColumnDDL(col), sep)
	}
	if len(table.PrimaryKey) > 0 {
		pkCols := make([]string, len(table.PrimaryKey))
		for i, c := range table.PrimaryKey {
			pkCols[i] = d.QuoteIdentifier(c)
		}
		fmt.Fprintf(w, "  PRIMARY KEY (%s)\n", joinComma(pkCols))
	}
	fmt.Fprintln(w, ");")
	fmt.Fprintln(w)

	rows, colNames, err := e.source.StreamRows(ctx, table)
	if err != nil {
		return fmt.Errorf("stream rows: %w", err)
	}
	defer rows.Close()

	if err := emitInserts(w, d, qid, colNames, rows); err != nil {
		return fmt.Errorf("emit inserts: %w", err)
	}
	fmt.Fprintln(w)

	return rows.Err()
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
