package plipsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Dialect identifies the SQL dialect used for positional marker rendering.
type Dialect int

// Binder is the main entry point. It holds the selected dialect and
// configuration and prepares named-parameter statements.
// A single Binder is safe for concurrent use; the Statements it returns are not.
type Binder struct {
	dialect Dialect
	config  Config
}

// Config defines behavior tweaks for the binder.
type Config struct {
	// Logger receives debug output for prepares and warnings for failures
	// swallowed by Stack.ReleaseQuietly. Nil discards everything.
	Logger *slog.Logger
}

// Preparer abstracts *sql.DB / *sql.Conn / *sql.Tx PrepareContext.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

const (
	SQLite Dialect = iota
	MySQL
	Postgres
	SQLServer
)

var (
	ErrParamNotFound    = errors.New("plipsql: parameter not found")
	ErrIndexOutOfRange  = errors.New("plipsql: parameter index out of range")
	ErrReleasePanic     = errors.New("plipsql: panic during release")
	ErrNilTx            = errors.New("plipsql: transaction must not be nil")
	ErrAutoCommit       = errors.New("plipsql: connection must not be in auto-commit mode")
	ErrNotInTransaction = errors.New("plipsql: not in transaction")
)

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case SQLServer:
		return "sqlserver"
	default:
		return "unknown"
	}
}

// ParseDialect maps a dialect or driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	default:
		return 0, fmt.Errorf("plipsql: unknown dialect %q", name)
	}
}

// New returns a new Binder for the given dialect. Optionally provide a Config;
// unspecified fields fall back to defaults.
func New(dialect Dialect, cfg ...Config) *Binder {
	return &Binder{
		dialect: dialect,
		config:  defaultConfig(cfg...),
	}
}

// Dialect returns the dialect markers are rendered for.
func (b *Binder) Dialect() Dialect {
	return b.dialect
}

// Logger returns the configured logger, never nil.
func (b *Binder) Logger() *slog.Logger {
	return b.config.Logger
}

// Parse rewrites query using the binder's dialect markers.
func (b *Binder) Parse(query string) *ParsedQuery {
	return parse(b.dialect, query)
}

// Prepare parses query, prepares the rewritten text on conn and returns a
// Statement with every parameter unbound.
func (b *Binder) Prepare(ctx context.Context, conn Preparer, query string) (*Statement, error) {
	pq := b.Parse(query)
	stmt, err := conn.PrepareContext(ctx, pq.Query())
	if err != nil {
		return nil, err
	}
	b.config.Logger.Debug("prepared statement",
		slog.String("query", pq.Query()),
		slog.Int("placeholders", pq.Count()),
		slog.Any("names", pq.Names()))
	return NewStatement(pq, WrapStmt(stmt, pq.Count())), nil
}

// PrepareWith is Prepare followed by SetParams(src). The statement is closed
// again if binding fails.
func (b *Binder) PrepareWith(ctx context.Context, conn Preparer, query string, src ParamSource) (*Statement, error) {
	st, err := b.Prepare(ctx, conn, query)
	if err != nil {
		return nil, err
	}
	if err := st.SetParams(src); err != nil {
		return nil, errors.Join(err, st.Close())
	}
	return st, nil
}

// NewStack returns an empty Stack that reports quiet-release failures to the
// binder's logger.
func (b *Binder) NewStack(closers ...io.Closer) *Stack {
	s := NewStack(closers...)
	s.logger = b.config.Logger
	return s
}

// defaultConfig merges user config with defaults.
func defaultConfig(config ...Config) Config {
	c := Config{}

	if len(config) > 0 {
		c = config[0]
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return c
}
