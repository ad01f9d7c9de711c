package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"plotledger/pkg/domain"
)

func TestNewStoreCreatesTableAndPersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver || dsn != defaultDSN {
			t.Fatalf("unexpected open(%s, %s)", driverName, dsn)
		}
		return db, nil
	})
	defer restore()

	store, err := NewStore(ctx, "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if !conn.sawExec("CREATE TABLE IF NOT EXISTS STATE") {
		t.Fatalf("expected state table DDL, got %v", conn.execs)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		rec, err := tx.AppendRecord(domain.OwnershipRecord{Rect: domain.Rect{W: 250, H: 250}, Owner: "admin"})
		if err != nil {
			return err
		}
		_, err = tx.SetPrice(rec.ID, 20000)
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := len(conn.rows); got != 6 {
		t.Fatalf("expected one row per bucket, got %d", got)
	}

	// A second store over the same stub rows hydrates the ledger.
	restore2 := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore2()
	reloaded, err := NewStore(ctx, "postgres://stub", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	_ = reloaded.View(ctx, func(v domain.TransactionView) error {
		if v.RecordCount() != 1 || v.Price(0) != 20000 {
			t.Fatalf("snapshot not loaded: count=%d price=%d", v.RecordCount(), v.Price(0))
		}
		return nil
	})
}

func TestNewStorePropagatesPingFailure(t *testing.T) {
	db, conn := newStubDB()
	conn.failPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestNewStorePropagatesOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("no route") })
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestRunInTransactionReportsCommitFailure(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore(ctx, "", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.failCommit = true
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, e := tx.AppendRecord(domain.OwnershipRecord{Rect: domain.Rect{W: 1, H: 1}, Owner: "a"})
		return e
	})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	if got := store.ExportState(); len(got.Records) != 0 {
		t.Fatalf("failed write must not publish state, got %+v", got.Records)
	}
}

// stubConn is a database/sql driver that understands the two statements the
// store issues against the state table.
type stubConn struct {
	mu         sync.Mutex
	execs      []string
	rows       map[string][]byte
	failPing   bool
	failCommit bool
}

var stubSeq atomic.Int64

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{rows: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *stubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) sawExec(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.execs {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q)), prefix) {
			return true
		}
	}
	return false
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return stubTx{conn: c}, nil }

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return errors.New("ping fail")
	}
	return nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		c.rows[bucket] = append([]byte(nil), payload...)
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := &stubRows{}
	for bucket, payload := range c.rows {
		out.rows = append(out.rows, []driver.Value{bucket, append([]byte(nil), payload...)})
	}
	return out, nil
}

type stubTx struct{ conn *stubConn }

func (t stubTx) Commit() error {
	if t.conn.failCommit {
		return errors.New("commit fail")
	}
	return nil
}

func (stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
