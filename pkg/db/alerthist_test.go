package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nav-nms/nav/pkg/models"
)

func setupAlertHistRepo(t *testing.T) (sqlmock.Sqlmock, *AlertHistRepo) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return mock, NewAlertHistRepo(conn)
}

func TestAlertHistOpenNew(t *testing.T) {
	mock, repo := setupAlertHistRepo(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT alerthistid FROM alerthist`).
		WithArgs(int64(3), models.EventBoxState, "").
		WillReturnRows(sqlmock.NewRows([]string{"alerthistid"}))
	mock.ExpectQuery(`INSERT INTO alerthist`).
		WithArgs(int64(3), "", models.EventBoxState, 1, "gw.example.org is down", start).
		WillReturnRows(sqlmock.NewRows([]string{"alerthistid"}).AddRow(77))

	id, created, err := repo.Open(context.Background(), &models.AlertHistory{
		NetboxID:  3,
		EventType: models.EventBoxState,
		Severity:  1,
		Message:   "gw.example.org is down",
		StartTime: start,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertHistOpenIsIdempotent(t *testing.T) {
	mock, repo := setupAlertHistRepo(t)

	// A redelivered start event finds the existing open row and stops there.
	mock.ExpectQuery(`SELECT alerthistid FROM alerthist`).
		WithArgs(int64(3), models.EventBoxState, "").
		WillReturnRows(sqlmock.NewRows([]string{"alerthistid"}).AddRow(77))

	id, created, err := repo.Open(context.Background(), &models.AlertHistory{
		NetboxID:  3,
		EventType: models.EventBoxState,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertHistResolve(t *testing.T) {
	mock, repo := setupAlertHistRepo(t)
	at := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE alerthist SET end_time`).
		WithArgs(int64(3), models.EventBoxState, "", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resolved, err := repo.Resolve(context.Background(), 3, models.EventBoxState, "", at)
	require.NoError(t, err)
	assert.True(t, resolved)

	// Resolving again matches no rows and is still fine.
	mock.ExpectExec(`UPDATE alerthist SET end_time`).
		WithArgs(int64(3), models.EventBoxState, "", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	resolved, err = repo.Resolve(context.Background(), 3, models.EventBoxState, "", at)
	require.NoError(t, err)
	assert.False(t, resolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertHistHistory(t *testing.T) {
	mock, repo := setupAlertHistRepo(t)
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	start := since.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	mock.ExpectQuery(`FROM alerthist`).
		WithArgs(int64(3), since, 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"alerthistid", "netboxid", "subid", "eventtype", "severity",
			"message", "start_time", "end_time",
		}).
			AddRow(1, 3, "", models.EventBoxState, 1, "down", start, end).
			AddRow(2, 3, "8", models.EventServiceState, 2, "http down", start, nil))

	entries, err := repo.History(context.Background(), 3, since, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Open())
	assert.True(t, entries[1].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}
