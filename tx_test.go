package plipsql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx counts commit and rollback calls.
type fakeTx struct {
	commits, rollbacks int
	err                error
	autoCommit         bool
	autoCommitErr      error
}

func (f *fakeTx) Commit() error {
	f.commits++
	return f.err
}

func (f *fakeTx) Rollback() error {
	f.rollbacks++
	return f.err
}

// autoTx reports an auto-commit mode.
type autoTx struct{ fakeTx }

func (a *autoTx) AutoCommit() (bool, error) { return a.autoCommit, a.autoCommitErr }

func TestNewTransaction_Rejects(t *testing.T) {
	_, err := NewTransaction(nil)
	assert.ErrorIs(t, err, ErrNilTx)

	_, err = NewTransaction((*sql.Tx)(nil))
	assert.ErrorIs(t, err, ErrNilTx)

	_, err = NewTransaction(&autoTx{fakeTx{autoCommit: true}})
	assert.ErrorIs(t, err, ErrAutoCommit)

	boom := errors.New("cannot tell")
	_, err = NewTransaction(&autoTx{fakeTx{autoCommitErr: boom}})
	assert.ErrorIs(t, err, boom)

	tx, err := NewTransaction(&autoTx{})
	require.NoError(t, err)
	assert.False(t, tx.Done())
	assert.Nil(t, tx.Tx())
}

func TestTransaction_CloseRollsBackOnlyWhenOpen(t *testing.T) {
	tests := []struct {
		name          string
		finish        func(*Transaction) error
		wantCommits   int
		wantRollbacks int
	}{
		{"nothing", func(*Transaction) error { return nil }, 0, 1},
		{"commit", (*Transaction).Commit, 1, 0},
		{"rollback", (*Transaction).Rollback, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeTx{}
			tx, err := NewTransaction(f)
			require.NoError(t, err)

			require.NoError(t, tt.finish(tx))
			require.NoError(t, tx.Close())
			require.NoError(t, tx.Close())
			assert.True(t, tx.Done())
			assert.Equal(t, tt.wantCommits, f.commits)
			assert.Equal(t, tt.wantRollbacks, f.rollbacks)
		})
	}
}

func TestTransaction_FinishedEvenOnFailure(t *testing.T) {
	f := &fakeTx{err: errors.New("network")}
	tx, err := NewTransaction(f)
	require.NoError(t, err)

	assert.ErrorIs(t, tx.Commit(), f.err)
	assert.ErrorIs(t, tx.Commit(), ErrNotInTransaction)
	assert.ErrorIs(t, tx.Rollback(), ErrNotInTransaction)
	assert.NoError(t, tx.Close())
	assert.Equal(t, 1, f.commits)
	assert.Zero(t, f.rollbacks)
}

func TestTransaction_OnStack(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	// failure path: the stack rolls back
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM t").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	s := &Stack{}
	tx := Push(s, mustBegin(t, db))
	_, err = tx.Tx().ExecContext(ctx, "DELETE FROM t")
	require.Error(t, err)
	require.NoError(t, s.Release())

	// success path: commit, then release is a no-op for the transaction
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM t").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tx = Push(s, mustBegin(t, db))
	_, err = tx.Tx().ExecContext(ctx, "DELETE FROM t")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, s.Release())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBegin_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("no tx for you")
	mock.ExpectBegin().WillReturnError(boom)
	_, err = Begin(context.Background(), db, nil)
	assert.ErrorIs(t, err, boom)
}
