package dump

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckr3453/db-backup4j/internal/dialect"
	"github.com/ckr3453/db-backup4j/internal/model"
)

// The engine's only dependency on a real database/sql driver is the
// *sql.Rows value StreamRows hands back. Rather than pull in a mocking
// library, a tiny stdlib database/sql/driver is registered per test and
// used to mint genuine *sql.Rows backed by canned data, the same way
// go-sql-driver/mysql and lib/pq would for a live connection.

type fakeRows struct {
	cols   []string
	data   [][]driver.Value
	cursor int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.cursor >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.cursor])
	r.cursor++
	return nil
}

type fakeStmt struct{ rows *fakeRows }

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, fmt.Errorf("fakeStmt: Exec not supported")
}
func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) {
	s.rows.cursor = 0
	return s.rows, nil
}

// fakeConn hands out the next queued result set on each Prepare call,
// regardless of the query text, in the order the engine issues queries.
type fakeConn struct {
	mu    sync.Mutex
	queue []*fakeRows
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, fmt.Errorf("fakeConn: no more canned result sets")
	}
	rows := c.queue[0]
	c.queue = c.queue[1:]
	return &fakeStmt{rows: rows}, nil
}
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("fakeConn: transactions not supported")
}

type fakeDriverImpl struct{ conn *fakeConn }

func (d *fakeDriverImpl) Open(string) (driver.Conn, error) { return d.conn, nil }

var fakeDriverSeq int64

// newFakeRowsDB opens a *sql.DB whose every Query returns the next entry
// in resultSets, in order.
func newFakeRowsDB(t *testing.T, resultSets ...*fakeRows) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("dump-enginetest-%d", atomic.AddInt64(&fakeDriverSeq, 1))
	sql.Register(name, &fakeDriverImpl{conn: &fakeConn{queue: resultSets}})
	db, err := sql.Open(name, "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// fakeSource implements Source directly (ListTables/Describe need no
// driver at all) and backs StreamRows with a fake *sql.Rows from the
// driver above.
type fakeSource struct {
	dialect dialect.Dialect
	schema  string
	tables  []string
	descs   map[string]model.TableDescriptor
	db      *sql.DB

	listTablesErr error
	streamRowsErr error
}

func (s *fakeSource) Dialect() dialect.Dialect { return s.dialect }
func (s *fakeSource) Schema() string           { return s.schema }
func (s *fakeSource) Close() error             { return nil }

func (s *fakeSource) ListTables(ctx context.Context) ([]string, error) {
	if s.listTablesErr != nil {
		return nil, s.listTablesErr
	}
	return s.tables, nil
}

func (s *fakeSource) Describe(ctx context.Context, table string) (model.TableDescriptor, error) {
	return s.descs[table], nil
}

func (s *fakeSource) StreamRows(ctx context.Context, table model.TableDescriptor) (*sql.Rows, []string, error) {
	if s.streamRowsErr != nil {
		return nil, nil, s.streamRowsErr
	}
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table.Name)
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

func usersTable() model.TableDescriptor {
	return model.TableDescriptor{
		Name: "users",
		Columns: []model.ColumnDescriptor{
			{Name: "id", SQLType: "int", Nullable: false},
			{Name: "name", SQLType: "varchar(255)", Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

func ordersTable() model.TableDescriptor {
	return model.TableDescriptor{
		Name: "orders",
		Columns: []model.ColumnDescriptor{
			{Name: "id", SQLType: "int", Nullable: false},
			{Name: "total", SQLType: "decimal(10,2)", Nullable: false},
		},
		PrimaryKey: []string{"id"},
	}
}

func TestDump_WritesHeaderPreambleAndEpilogue(t *testing.T) {
	db := newFakeRowsDB(t)
	src := &fakeSource{
		dialect: dialect.MySQL{},
		schema:  "app",
		db:      db,
	}
	e := New(src, model.TableFilter{})

	var buf strings.Builder
	require.NoError(t, e.Dump(context.Background(), &buf))
	out := buf.String()

	require.Contains(t, out, "-- MySQL Database Backup by db-backup4j")
	require.Contains(t, out, "SET FOREIGN_KEY_CHECKS=0;")
	require.Contains(t, out, "COMMIT;")
}

func TestDump_EmitsDDLAndInsertsPerTable(t *testing.T) {
	db := newFakeRowsDB(t,
		&fakeRows{
			cols: []string{"id", "total"},
			data: [][]driver.Value{{int64(1), float64(9.99)}},
		},
		&fakeRows{
			cols: []string{"id", "name"},
			data: [][]driver.Value{{int64(1), "alice"}, {int64(2), "bob"}},
		},
	)
	src := &fakeSource{
		dialect: dialect.MySQL{},
		schema:  "app",
		tables:  []string{"orders", "users"},
		descs: map[string]model.TableDescriptor{
			"orders": ordersTable(),
			"users":  usersTable(),
		},
		db: db,
	}
	e := New(src, model.TableFilter{})

	var buf strings.Builder
	require.NoError(t, e.Dump(context.Background(), &buf))
	out := buf.String()

	require.Contains(t, out, "DROP TABLE IF EXISTS `orders`;")
	require.Contains(t, out, "CREATE TABLE `orders`")
	require.Contains(t, out, "INSERT INTO `orders`")
	require.Contains(t, out, "(1, 9.99)")

	require.Contains(t, out, "DROP TABLE IF EXISTS `users`;")
	require.Contains(t, out, "INSERT INTO `users`")
	require.Contains(t, out, "(1, 'alice')")
	require.Contains(t, out, "(2, 'bob')")

	// Tables are processed in sorted order regardless of ListTables' order.
	require.Less(t, strings.Index(out, "Table: orders"), strings.Index(out, "Table: users"))
}

func TestDump_AppliesIncludeFilter(t *testing.T) {
	db := newFakeRowsDB(t, &fakeRows{cols: []string{"id", "name"}})
	src := &fakeSource{
		dialect: dialect.MySQL{},
		schema:  "app",
		tables:  []string{"orders", "users"},
		descs: map[string]model.TableDescriptor{
			"orders": ordersTable(),
			"users":  usersTable(),
		},
		db: db,
	}
	e := New(src, model.TableFilter{IncludePatterns: []string{"users"}})

	var buf strings.Builder
	require.NoError(t, e.Dump(context.Background(), &buf))
	out := buf.String()

	require.Contains(t, out, "Table: users")
	require.NotContains(t, out, "Table: orders")
}

func TestDump_PropagatesListTablesError(t *testing.T) {
	src := &fakeSource{
		dialect:       dialect.MySQL{},
		schema:        "app",
		listTablesErr: fmt.Errorf("connection reset"),
		db:            newFakeRowsDB(t),
	}
	e := New(src, model.TableFilter{})

	err := e.Dump(context.Background(), &strings.Builder{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "list tables")
}

func TestDump_PropagatesStreamRowsError(t *testing.T) {
	src := &fakeSource{
		dialect: dialect.MySQL{},
		schema:  "app",
		tables:  []string{"users"},
		descs:   map[string]model.TableDescriptor{"users": usersTable()},
		db:      newFakeRowsDB(t),

		streamRowsErr: fmt.Errorf("read timeout"),
	}
	e := New(src, model.TableFilter{})

	err := e.Dump(context.Background(), &strings.Builder{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "table \"users\"")
}
