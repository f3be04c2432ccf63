// Package sqlmock provides a scripted database/sql driver for tests. Each
// expected operation is consumed in order and queries are compared after
// whitespace normalisation.
package sqlmock

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
)

type operationType int

const (
	opExec operationType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

func (o operationType) String() string {
	switch o {
	case opExec:
		return "exec"
	case opQuery:
		return "query"
	case opBegin:
		return "begin"
	case opCommit:
		return "commit"
	case opRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// Operation is one scripted driver call.
type Operation struct {
	typ    operationType
	query  string
	result Result
	rows   Rows
	err    error
}

// WithError makes the operation fail with err.
func (o Operation) WithError(err error) Operation {
	o.err = err
	return o
}

// Result is returned from scripted Exec calls.
type Result struct {
	InsertID int64
	Affected int64
}

func (r Result) LastInsertId() (int64, error) { return r.InsertID, nil }
func (r Result) RowsAffected() (int64, error) { return r.Affected, nil }

// Rows is returned from scripted Query calls.
type Rows struct {
	Columns []string
	Values  [][]driver.Value
}

// Exec expects an Exec of query.
func Exec(query string, result Result) Operation {
	return Operation{typ: opExec, query: query, result: result}
}

// AnyExec expects an Exec without checking its text.
func AnyExec() Operation { return Operation{typ: opExec} }

// Query expects a Query of query.
func Query(query string, rows Rows) Operation {
	return Operation{typ: opQuery, query: query, rows: rows}
}

func Begin() Operation    { return Operation{typ: opBegin} }
func Commit() Operation   { return Operation{typ: opCommit} }
func Rollback() Operation { return Operation{typ: opRollback} }

// Driver replays a fixed list of operations.
type Driver struct {
	mu       sync.Mutex
	ops      []Operation
	idx      int32
	executed []string
}

var driverSeq atomic.Int32

// Open registers a fresh driver and returns a single-connection *sql.DB bound to it.
func Open(t *testing.T, ops ...Operation) (*sql.DB, *Driver) {
	t.Helper()

	drv := &Driver{ops: ops}
	name := fmt.Sprintf("sqlmock-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db, drv
}

// AssertConsumed fails the test when scripted operations remain.
func (d *Driver) AssertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

// Executed returns the normalised text of every Exec seen so far.
func (d *Driver) Executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.executed...)
}

func (d *Driver) Open(string) (driver.Conn, error) {
	return &conn{driver: d}, nil
}

func (d *Driver) next(expected operationType, query string) (*Operation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := int(atomic.LoadInt32(&d.idx))
	if idx >= len(d.ops) {
		return nil, fmt.Errorf("unexpected %s: %s", expected, Normalize(query))
	}
	op := &d.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("script expects %s, got %s", op.typ, expected)
	}
	atomic.AddInt32(&d.idx, 1)
	if expected == opExec {
		d.executed = append(d.executed, Normalize(query))
	}
	if op.query != "" {
		want := Normalize(op.query)
		got := Normalize(query)
		if want != got {
			return nil, fmt.Errorf("unexpected query. want %q got %q", want, got)
		}
	}
	return op, nil
}

type conn struct {
	driver *Driver
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	op, err := c.driver.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &tx{driver: c.driver}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.driver.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.driver.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &rows{columns: op.rows.Columns, values: op.rows.Values}, nil
}

func (c *conn) Ping(ctx context.Context) error { return nil }

type tx struct {
	driver *Driver
}

func (t *tx) Commit() error {
	op, err := t.driver.next(opCommit, "")
	if err != nil {
		return err
	}
	return op.err
}

func (t *tx) Rollback() error {
	op, err := t.driver.next(opRollback, "")
	if err != nil {
		return err
	}
	return op.err
}

type rows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *rows) Columns() []string { return r.columns }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

// Normalize collapses runs of whitespace so multi-line SQL compares equal.
func Normalize(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
