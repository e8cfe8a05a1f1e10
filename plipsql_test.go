package plipsql

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkemi/plipsql/internal/testutil"
)

// --------------------------------
// Test utilities
// --------------------------------

// dcase groups a dialect with a display name for table-driven tests.
type dcase struct {
	name string
	d    Dialect
}

// allDialects returns the list of dialects to iterate over in tests.
func allDialects() []dcase {
	return []dcase{
		{"sqlite", SQLite},
		{"mysql", MySQL},
		{"postgres", Postgres},
		{"sqlserver", SQLServer},
	}
}

// placeholderRegex returns a compiled regex that matches markers for each dialect.
func placeholderRegex(d Dialect) *regexp.Regexp {
	switch d {
	case Postgres:
		return regexp.MustCompile(`\$(?:[1-9][0-9]*)`)
	case SQLServer:
		return regexp.MustCompile(`@p(?:[1-9][0-9]*)`)
	default: // MySQL, SQLite
		return regexp.MustCompile(`\?`)
	}
}

// countPlaceholders counts the markers present in a query for the given dialect.
func countPlaceholders(q string, d Dialect) int {
	return len(placeholderRegex(d).FindAllStringIndex(q, -1))
}

// --------------------------------
// Tests
// --------------------------------

// TestDialectString ensures Dialect.String() returns expected values.
func TestDialectString(t *testing.T) {
	tests := []struct {
		d    Dialect
		want string
	}{
		{Postgres, "postgres"},
		{MySQL, "mysql"},
		{SQLite, "sqlite"},
		{SQLServer, "sqlserver"},
		{Dialect(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.d.String())
	}
}

func TestParseDialect(t *testing.T) {
	for _, name := range []string{"sqlite", "sqlite3", "mysql", "postgres", "pgx", "sqlserver", "mssql"} {
		d, err := ParseDialect(name)
		require.NoError(t, err, name)
		assert.NotEqual(t, "unknown", d.String())
	}
	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestNew_DefaultLoggerNeverNil(t *testing.T) {
	b := New(Postgres)
	require.NotNil(t, b.Logger())
	assert.Equal(t, Postgres, b.Dialect())
	b.Logger().Debug("discarded")
}

func TestBinder_Prepare_RewritesForDialect(t *testing.T) {
	for _, dc := range allDialects() {
		t.Run(dc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer db.Close()

			b := New(dc.d, Config{Logger: testutil.NewTestLogger(t)})
			pq := b.Parse("SELECT * FROM t WHERE a = :a OR b = :a")
			require.Equal(t, 2, countPlaceholders(pq.Query(), dc.d))

			mock.ExpectPrepare(pq.Query()).ExpectQuery().
				WithArgs(1, 1).
				WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

			st, err := b.Prepare(context.Background(), db, "SELECT * FROM t WHERE a = :a OR b = :a")
			require.NoError(t, err)
			require.NoError(t, st.SetValue("a", 1))
			rows, err := st.QueryContext(context.Background())
			require.NoError(t, err)
			require.NoError(t, rows.Close())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBinder_Prepare_Error(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectPrepare("SELECT ?").WillReturnError(boom)

	_, err = New(SQLite).Prepare(context.Background(), db, "SELECT :x")
	assert.ErrorIs(t, err, boom)
}

func TestBinder_PrepareWith_BindsAndClosesOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("UPDATE t SET a = ? WHERE id = ?").
		ExpectExec().WithArgs("x", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	b := New(SQLite)
	st, err := b.PrepareWith(context.Background(), db, "UPDATE t SET a = :a WHERE id = :id", Values{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, st.UnboundParamNames())
	_, err = st.Exec()
	require.NoError(t, err)

	boom := errors.New("lookup failed")
	mock.ExpectPrepare("SELECT ?")
	_, err = b.PrepareWith(context.Background(), db, "SELECT :x", ParamFunc(func(string) (Param, bool, error) {
		return Param{}, false, boom
	}))
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBinder_NewStack_UsesLogger(t *testing.T) {
	b := New(SQLite, Config{Logger: testutil.NewTestLogger(t)})
	s := b.NewStack(CloserFunc(func() error { return errors.New("x") }))
	assert.Equal(t, 1, s.Len())
	s.ReleaseQuietly()
	assert.Equal(t, 0, s.Len())
}
