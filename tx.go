package plipsql

import (
	"context"
	"database/sql"
)

// TxFinisher is the commit/rollback half of *sql.Tx.
type TxFinisher interface {
	Commit() error
	Rollback() error
}

// TxBeginner abstracts *sql.DB / *sql.Conn BeginTx.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// AutoCommitter is implemented by transaction handles that can report
// whether they are in auto-commit mode.
type AutoCommitter interface {
	AutoCommit() (bool, error)
}

// Transaction finishes a transaction exactly once. Close rolls back unless
// Commit or Rollback already ran, so a Transaction pushed on a Stack right
// after Begin is rolled back on every path that does not commit.
type Transaction struct {
	tx TxFinisher
}

// NewTransaction wraps tx. It fails if tx is nil or reports auto-commit mode.
func NewTransaction(tx TxFinisher) (*Transaction, error) {
	if stx, ok := tx.(*sql.Tx); tx == nil || (ok && stx == nil) {
		return nil, ErrNilTx
	}
	if ac, ok := tx.(AutoCommitter); ok {
		on, err := ac.AutoCommit()
		if err != nil {
			return nil, err
		}
		if on {
			return nil, ErrAutoCommit
		}
	}
	return &Transaction{tx: tx}, nil
}

// Begin starts a transaction on db and wraps it.
func Begin(ctx context.Context, db TxBeginner, opts *sql.TxOptions) (*Transaction, error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

// Tx returns the wrapped *sql.Tx, or nil if the Transaction wraps another
// TxFinisher or has finished.
func (t *Transaction) Tx() *sql.Tx {
	tx, _ := t.tx.(*sql.Tx)
	return tx
}

// Commit commits. The transaction is finished afterwards even if Commit fails.
func (t *Transaction) Commit() error {
	tx, err := t.finish()
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Rollback rolls back. The transaction is finished afterwards even if Rollback fails.
func (t *Transaction) Rollback() error {
	tx, err := t.finish()
	if err != nil {
		return err
	}
	return tx.Rollback()
}

// Close rolls back if neither Commit nor Rollback has been called.
func (t *Transaction) Close() error {
	if t.tx == nil {
		return nil
	}
	return t.Rollback()
}

// Done reports whether the transaction has been committed or rolled back.
func (t *Transaction) Done() bool {
	return t.tx == nil
}

func (t *Transaction) finish() (TxFinisher, error) {
	if t.tx == nil {
		return nil, ErrNotInTransaction
	}
	tx := t.tx
	t.tx = nil
	return tx, nil
}
