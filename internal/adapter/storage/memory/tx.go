// Package memory is a process-local storage backend for local runs and
// tests. Transactions are serialized by a single lock and undone on rollback.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errSQLUnsupported = errors.New("memory store does not execute SQL")

// Transactor implements ports.DBTransactor. Only one transaction is open at
// a time, which gives the same serialization a wallet row lock gives in
// PostgreSQL.
type Transactor struct {
	mu sync.Mutex
}

// NewTransactor creates a Transactor.
func NewTransactor() *Transactor {
	return &Transactor{}
}

// Begin blocks until no other transaction is open or ctx is done.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	acquired := make(chan struct{})
	go func() {
		t.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return &Tx{release: t.mu.Unlock}, nil
	case <-ctx.Done():
		// Hand the lock back once the pending acquire completes.
		go func() {
			<-acquired
			t.mu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// Tx is a pgx.Tx whose writes are applied immediately and reverted on Rollback.
type Tx struct {
	release func()
	once    sync.Once
	mu      sync.Mutex
	undo    []func()
}

func (t *Tx) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

func (t *Tx) finish(rollback bool) error {
	err := pgx.ErrTxClosed
	t.once.Do(func() {
		err = nil
		t.mu.Lock()
		if rollback {
			for i := len(t.undo) - 1; i >= 0; i-- {
				t.undo[i]()
			}
		}
		t.undo = nil
		t.mu.Unlock()
		t.release()
	})
	return err
}

func (t *Tx) Commit(ctx context.Context) error { return t.finish(false) }

// Rollback after Commit returns pgx.ErrTxClosed, like pgx does.
func (t *Tx) Rollback(ctx context.Context) error { return t.finish(true) }

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errSQLUnsupported }
func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errSQLUnsupported
}
func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errSQLUnsupported
}
func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errSQLUnsupported
}
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errSQLUnsupported
}
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *Tx) Conn() *pgx.Conn                                               { return nil }

// onRollback registers fn on tx when tx belongs to this package.
func onRollback(tx pgx.Tx, fn func()) {
	if mt, ok := tx.(*Tx); ok {
		mt.onRollback(fn)
	}
}
