package migrations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRunner(t *testing.T) (*Runner, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := NewRunner(db, nil)
	r.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return r, mock
}

func expectApply(mock sqlmock.Sqlmock, m Migration) {
	mock.ExpectBegin()
	for _, stmt := range m.Statements {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(insertVersion).
		WithArgs(m.Version, m.Name, "2025-03-01 10:00:00").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestAll_Ordered(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	for i, m := range all {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.Statements)
	}
}

func TestRunner_Up_FreshDatabase(t *testing.T) {
	r, mock := setupRunner(t)

	mock.ExpectExec(createVersionTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectVersions).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	for _, m := range All() {
		expectApply(mock, m)
	}

	applied, err := r.Up(context.Background())

	require.NoError(t, err)
	assert.Len(t, applied, len(All()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_Up_SkipsApplied(t *testing.T) {
	r, mock := setupRunner(t)

	all := All()
	rows := sqlmock.NewRows([]string{"version"})
	for _, m := range all[:len(all)-1] {
		rows.AddRow(m.Version)
	}

	mock.ExpectExec(createVersionTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectVersions).WillReturnRows(rows)
	expectApply(mock, all[len(all)-1])

	applied, err := r.Up(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int{all[len(all)-1].Version}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_Up_ToleratesExistingColumn(t *testing.T) {
	r, mock := setupRunner(t)
	r.migrations = []Migration{{
		Version: 1,
		Name:    "add_region",
		Statements: []string{
			`ALTER TABLE games ADD COLUMN region TEXT`,
			`ALTER TABLE games ADD COLUMN date_added TEXT`,
		},
	}}

	mock.ExpectExec(createVersionTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectVersions).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(`ALTER TABLE games ADD COLUMN region TEXT`).
		WillReturnError(errors.New("SQL logic error: duplicate column name: region (1)"))
	mock.ExpectExec(`ALTER TABLE games ADD COLUMN date_added TEXT`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertVersion).
		WithArgs(1, "add_region", "2025-03-01 10:00:00").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := r.Up(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_Up_RollsBackOnFailure(t *testing.T) {
	r, mock := setupRunner(t)
	r.migrations = []Migration{
		{Version: 1, Name: "broken", Statements: []string{`CREATE TABLE broken (`}},
		{Version: 2, Name: "never", Statements: []string{`SELECT 1`}},
	}

	mock.ExpectExec(createVersionTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectVersions).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE broken (`).WillReturnError(errors.New("incomplete input"))
	mock.ExpectRollback()

	applied, err := r.Up(context.Background())

	assert.Error(t, err)
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_Up_VersionTableError(t *testing.T) {
	r, mock := setupRunner(t)

	mock.ExpectExec(createVersionTable).WillReturnError(errors.New("disk I/O error"))

	_, err := r.Up(context.Background())

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
