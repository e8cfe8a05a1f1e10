package plipsql

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Stack owns a chain of resources and closes them in reverse order of
// acquisition. A handle pushed on a Stack belongs to it until it is popped,
// claimed by another Stack or released.
//
// The zero value is an empty stack ready to use. A released stack is empty
// and may be reused for a new, independent chain.
type Stack struct {
	mu     sync.Mutex
	items  []io.Closer
	logger *slog.Logger
}

// CloserFunc adapts a release function to io.Closer, for handles that have
// no Close method of their own.
type CloserFunc func() error

// Close calls f().
func (f CloserFunc) Close() error {
	return f()
}

// ReleaseError is the aggregate failure of one release pass: the first
// failure encountered and every later one, in the order they occurred.
type ReleaseError struct {
	Err        error
	Suppressed []error
}

// NewStack returns a stack owning closers, which are released last to first.
func NewStack(closers ...io.Closer) *Stack {
	return &Stack{items: slices.Clone(closers)}
}

// Push appends c and returns it.
func (s *Stack) Push(c io.Closer) io.Closer {
	s.mu.Lock()
	s.items = append(s.items, c)
	s.mu.Unlock()
	return c
}

// Push pushes c on s and returns it with its concrete type, so acquisition
// and registration can share a line:
//
//	rows := plipsql.Push(s, must(stmt.Query()))
func Push[T io.Closer](s *Stack, c T) T {
	s.Push(c)
	return c
}

// PushFunc pushes a release function.
func (s *Stack) PushFunc(release func() error) {
	s.Push(CloserFunc(release))
}

// PushConn pushes a connection and returns it.
func (s *Stack) PushConn(conn *sql.Conn) *sql.Conn { return Push(s, conn) }

// PushStmt pushes a prepared statement and returns it.
func (s *Stack) PushStmt(stmt *sql.Stmt) *sql.Stmt { return Push(s, stmt) }

// PushRows pushes a cursor and returns it.
func (s *Stack) PushRows(rows *sql.Rows) *sql.Rows { return Push(s, rows) }

// Pop removes the most recently pushed handle without closing it; the caller
// now owns it. ok is false if the stack is empty.
func (s *Stack) Pop() (c io.Closer, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if n == 0 {
		return nil, false
	}
	c = s.items[n-1]
	s.items[n-1] = nil
	s.items = s.items[:n-1]
	return c, true
}

// Len returns the number of handles held.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Claim moves every handle, in order, to a new stack and leaves s empty.
// Releasing the new stack closes them exactly as releasing s would have.
func (s *Stack) Claim() *Stack {
	s.mu.Lock()
	defer s.mu.Unlock()
	claimed := &Stack{items: s.items, logger: s.logger}
	s.items = nil
	return claimed
}

// Release closes every handle, most recently pushed first. A failing Close
// never stops the pass: all handles are closed exactly once and the stack
// ends empty. If anything failed the result is a *ReleaseError.
func (s *Stack) Release() error {
	var rerr *ReleaseError
	for {
		c, ok := s.Pop()
		if !ok {
			break
		}
		if err := closeRecover(c); err != nil {
			if rerr == nil {
				rerr = &ReleaseError{Err: err}
			} else {
				rerr.Suppressed = append(rerr.Suppressed, err)
			}
		}
	}
	if rerr == nil {
		return nil
	}
	if len(rerr.Suppressed) > 0 {
		s.log().Warn("suppressed additional release failures",
			slog.Int("count", len(rerr.Suppressed)))
	}
	return rerr
}

// Close is Release, so a Stack can itself be pushed on another Stack.
func (s *Stack) Close() error {
	return s.Release()
}

// ReleaseQuietly releases like Release but only logs a failure. Use it on
// cleanup paths that already carry an error worth returning.
func (s *Stack) ReleaseQuietly() {
	if err := s.Release(); err != nil {
		s.log().Info("suppressed a cascading release failure", slog.Any("error", err))
	}
}

// SetLogger sets where ReleaseQuietly and Release report.
func (s *Stack) SetLogger(l *slog.Logger) {
	s.mu.Lock()
	s.logger = l
	s.mu.Unlock()
}

func (s *Stack) log() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// closeRecover closes c, turning a panic into an ErrReleasePanic error.
func closeRecover(c io.Closer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrReleasePanic, e)
			} else {
				err = fmt.Errorf("%w: %v", ErrReleasePanic, r)
			}
		}
	}()
	return c.Close()
}

func (e *ReleaseError) Error() string {
	if len(e.Suppressed) == 0 {
		return e.Err.Error()
	}
	var b strings.Builder
	b.WriteString(e.Err.Error())
	fmt.Fprintf(&b, " (and %d more release failure", len(e.Suppressed))
	if len(e.Suppressed) > 1 {
		b.WriteByte('s')
	}
	b.WriteString(": ")
	for i, err := range e.Suppressed {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	b.WriteByte(')')
	return b.String()
}

// Unwrap returns the primary failure followed by the suppressed ones, so
// errors.Is and errors.As see all of them.
func (e *ReleaseError) Unwrap() []error {
	return append([]error{e.Err}, e.Suppressed...)
}

// Errors returns every failure of the pass, primary first.
func (e *ReleaseError) Errors() []error {
	return e.Unwrap()
}
