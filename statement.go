package plipsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Statement binds values by name onto a PositionalStmt prepared from a
// ParsedQuery. Values are forwarded immediately; the Statement only tracks
// which names are still unbound.
// It is NOT safe for concurrent use.
type Statement struct {
	parsed  *ParsedQuery
	stmt    PositionalStmt
	unbound map[string]struct{}
}

// NewStatement wraps stmt, which must have been prepared from parsed.Query().
func NewStatement(parsed *ParsedQuery, stmt PositionalStmt) *Statement {
	s := &Statement{parsed: parsed, stmt: stmt}
	s.resetUnbound()
	return s
}

// Parsed returns the parsed query the statement was prepared from.
func (s *Statement) Parsed() *ParsedQuery {
	return s.parsed
}

// Stmt returns the underlying statement. It stays owned by s.
func (s *Statement) Stmt() PositionalStmt {
	return s.stmt
}

// SetParam binds p to every position of name. A nil value binds a NULL of p's type.
func (s *Statement) SetParam(name string, p Param) error {
	idx, ok := s.parsed.positions[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParamNotFound, name)
	}
	delete(s.unbound, name)
	return s.setIndices(idx, p)
}

// SetValue binds v, untyped, to every position of name.
func (s *Statement) SetValue(name string, v any) error {
	return s.SetParam(name, Value(v))
}

// SetNull binds a NULL of type t to every position of name.
func (s *Statement) SetNull(name string, t SQLType) error {
	return s.SetParam(name, NullOf(t))
}

// SetParams asks src for every parameter name of the query and binds the
// ones it has. Names src does not know keep their previous binding.
func (s *Statement) SetParams(src ParamSource) error {
	if src == nil {
		return nil
	}
	for _, name := range s.parsed.names {
		p, ok, err := src.Lookup(name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.setIndices(s.parsed.positions[name], p); err != nil {
			return err
		}
		delete(s.unbound, name)
	}
	return nil
}

// ParamNames returns every parameter name of the query, sorted.
func (s *Statement) ParamNames() []string {
	names := slices.Clone(s.parsed.names)
	sort.Strings(names)
	return names
}

// UnboundParamNames returns the names that have not been given a value since
// the statement was prepared or last cleared, sorted.
func (s *Statement) UnboundParamNames() []string {
	names := make([]string, 0, len(s.unbound))
	for name := range s.unbound {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Positions returns the 1-based positions of name.
func (s *Statement) Positions(name string) ([]int, error) {
	return s.parsed.Positions(name)
}

// ClearParams clears all bindings; every name becomes unbound again.
func (s *Statement) ClearParams() error {
	if err := s.stmt.ClearParams(); err != nil {
		return err
	}
	s.resetUnbound()
	return nil
}

// Exec is a convenience that executes the statement with context.Background().
func (s *Statement) Exec() (sql.Result, error) {
	return s.ExecContext(context.Background())
}

// ExecContext executes the statement with the current bindings.
func (s *Statement) ExecContext(ctx context.Context) (sql.Result, error) {
	return s.stmt.ExecContext(ctx)
}

// Query is a convenience that runs the query with context.Background().
func (s *Statement) Query() (*sql.Rows, error) {
	return s.QueryContext(context.Background())
}

// QueryContext runs the query with the current bindings. The caller owns the
// returned rows; pushing them on a Stack is the usual way to release them.
func (s *Statement) QueryContext(ctx context.Context) (*sql.Rows, error) {
	return s.stmt.QueryContext(ctx)
}

// QueryRowContext runs a query expected to return at most one row.
func (s *Statement) QueryRowContext(ctx context.Context) *sql.Row {
	return s.stmt.QueryRowContext(ctx)
}

// AddBatch queues the current bindings for ExecBatch.
func (s *Statement) AddBatch() error {
	return s.stmt.AddBatch()
}

// ClearBatch drops every queued binding set.
func (s *Statement) ClearBatch() error {
	return s.stmt.ClearBatch()
}

// ExecBatch is a convenience that executes the batch with context.Background().
func (s *Statement) ExecBatch() ([]int64, error) {
	return s.ExecBatchContext(context.Background())
}

// ExecBatchContext executes every queued binding set and returns the rows
// affected by each.
func (s *Statement) ExecBatchContext(ctx context.Context) ([]int64, error) {
	return s.stmt.ExecBatchContext(ctx)
}

// SetFetchSize forwards a fetch size hint. It returns errors.ErrUnsupported
// if the underlying statement takes no hints.
func (s *Statement) SetFetchSize(rows int) error {
	h, ok := s.stmt.(FetchHinter)
	if !ok {
		return errors.ErrUnsupported
	}
	return h.SetFetchSize(rows)
}

// SetFetchDirection forwards a fetch direction hint. It returns
// errors.ErrUnsupported if the underlying statement takes no hints.
func (s *Statement) SetFetchDirection(dir FetchDirection) error {
	h, ok := s.stmt.(FetchHinter)
	if !ok {
		return errors.ErrUnsupported
	}
	return h.SetFetchDirection(dir)
}

// Close releases the underlying statement.
func (s *Statement) Close() error {
	return s.stmt.Close()
}

// setIndices binds p to each position in idx, in order.
func (s *Statement) setIndices(idx []int, p Param) error {
	for _, i := range idx {
		if err := s.stmt.SetParam(i, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Statement) resetUnbound() {
	s.unbound = make(map[string]struct{}, len(s.parsed.names))
	for _, name := range s.parsed.names {
		s.unbound[name] = struct{}{}
	}
}
