package plipsql

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// PositionalStmt is a prepared statement whose parameters are bound one
// 1-based position at a time before it is executed.
type PositionalStmt interface {
	SetParam(index int, p Param) error
	ClearParams() error
	ExecContext(ctx context.Context) (sql.Result, error)
	QueryContext(ctx context.Context) (*sql.Rows, error)
	QueryRowContext(ctx context.Context) *sql.Row
	AddBatch() error
	ClearBatch() error
	ExecBatchContext(ctx context.Context) ([]int64, error)
	Close() error
}

// FetchDirection hints the order rows will be read in.
type FetchDirection int

const (
	FetchForward FetchDirection = iota
	FetchReverse
	FetchUnknown
)

// FetchHinter is implemented by statements that accept cursor fetch hints.
type FetchHinter interface {
	SetFetchSize(rows int) error
	SetFetchDirection(dir FetchDirection) error
}

// sqlStmt adapts *sql.Stmt, which takes its arguments at execution time, to
// PositionalStmt by holding the argument slots until then.
type sqlStmt struct {
	stmt  *sql.Stmt
	args  []any
	batch [][]any
}

// WrapStmt adapts stmt, which was prepared with n positional markers.
// Unset positions are sent as NULL.
func WrapStmt(stmt *sql.Stmt, n int) PositionalStmt {
	return &sqlStmt{stmt: stmt, args: make([]any, n)}
}

func (s *sqlStmt) SetParam(index int, p Param) error {
	if index < 1 || index > len(s.args) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(s.args))
	}
	v, err := p.driverValue()
	if err != nil {
		return err
	}
	s.args[index-1] = v
	return nil
}

func (s *sqlStmt) ClearParams() error {
	clear(s.args)
	return nil
}

func (s *sqlStmt) ExecContext(ctx context.Context) (sql.Result, error) {
	return s.stmt.ExecContext(ctx, s.args...)
}

func (s *sqlStmt) QueryContext(ctx context.Context) (*sql.Rows, error) {
	return s.stmt.QueryContext(ctx, s.args...)
}

func (s *sqlStmt) QueryRowContext(ctx context.Context) *sql.Row {
	return s.stmt.QueryRowContext(ctx, s.args...)
}

func (s *sqlStmt) AddBatch() error {
	s.batch = append(s.batch, slices.Clone(s.args))
	return nil
}

func (s *sqlStmt) ClearBatch() error {
	s.batch = nil
	return nil
}

// ExecBatchContext executes every queued argument set in order and returns the
// rows affected by each. It stops at the first failure; the batch is cleared
// either way.
func (s *sqlStmt) ExecBatchContext(ctx context.Context) ([]int64, error) {
	batch := s.batch
	s.batch = nil

	counts := make([]int64, 0, len(batch))
	for i, args := range batch {
		res, err := s.stmt.ExecContext(ctx, args...)
		if err != nil {
			return counts, fmt.Errorf("plipsql: batch entry %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func (s *sqlStmt) Close() error {
	return s.stmt.Close()
}
