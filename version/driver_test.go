package version_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
)

// recordingDriver hands out connections bound to the recorder registered
// under the DSN, so each test observes only its own statements.
type recordingDriver struct{}

var recorders sync.Map

func init() {
	sql.Register("recorder", &recordingDriver{})
}

func (d *recordingDriver) Open(name string) (driver.Conn, error) {
	rec, ok := recorders.Load(name)
	if !ok {
		return nil, fmt.Errorf("no recorder registered as %q", name)
	}
	return &recorderConn{rec: rec.(*recorder)}, nil
}

// recorder captures every statement, parameter, and transaction the
// provider sends through database/sql.
type recorder struct {
	scalar   any
	noRow    bool
	execErr  error
	queryErr error
	beginErr error

	execs     []statement
	queries   []statement
	begins    []driver.TxOptions
	commits   int
	rollbacks int
}

type statement struct {
	query string
	args  []driver.NamedValue
	inTx  bool
}

func openRecorder(t *testing.T) (*sql.DB, *recorder) {
	t.Helper()

	rec := &recorder{}
	recorders.Store(t.Name(), rec)

	db, err := sql.Open("recorder", t.Name())
	if err != nil {
		t.Fatalf("failed to open recorder database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		recorders.Delete(t.Name())
	})

	return db, rec
}

type recorderConn struct {
	rec  *recorder
	inTx bool
}

var (
	_ driver.Conn              = (*recorderConn)(nil)
	_ driver.ConnBeginTx       = (*recorderConn)(nil)
	_ driver.ExecerContext     = (*recorderConn)(nil)
	_ driver.QueryerContext    = (*recorderConn)(nil)
	_ driver.NamedValueChecker = (*recorderConn)(nil)
)

func (c *recorderConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("recorder: prepared statements are not supported")
}

func (c *recorderConn) Close() error { return nil }

func (c *recorderConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *recorderConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.rec.beginErr != nil {
		return nil, c.rec.beginErr
	}
	c.rec.begins = append(c.rec.begins, opts)
	c.inTx = true
	return &recorderTx{conn: c}, nil
}

func (c *recorderConn) CheckNamedValue(*driver.NamedValue) error { return nil }

func (c *recorderConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.rec.execErr != nil {
		return nil, c.rec.execErr
	}
	c.rec.execs = append(c.rec.execs, statement{query: query, args: slices.Clone(args), inTx: c.inTx})
	return driver.RowsAffected(1), nil
}

func (c *recorderConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.rec.queryErr != nil {
		return nil, c.rec.queryErr
	}
	c.rec.queries = append(c.rec.queries, statement{query: query, args: slices.Clone(args), inTx: c.inTx})
	return &recorderRows{rec: c.rec}, nil
}

type recorderTx struct {
	conn *recorderConn
}

func (t *recorderTx) Commit() error {
	t.conn.rec.commits++
	t.conn.inTx = false
	return nil
}

func (t *recorderTx) Rollback() error {
	t.conn.rec.rollbacks++
	t.conn.inTx = false
	return nil
}

type recorderRows struct {
	rec  *recorder
	done bool
}

func (r *recorderRows) Columns() []string { return []string{"version"} }

func (r *recorderRows) Close() error { return nil }

func (r *recorderRows) Next(dest []driver.Value) error {
	if r.done || r.rec.noRow {
		return io.EOF
	}
	dest[0] = r.rec.scalar
	r.done = true
	return nil
}
