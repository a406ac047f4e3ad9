package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupArpCamRepo(t *testing.T) (sqlmock.Sqlmock, *ArpCamRepo) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return mock, NewArpCamRepo(conn)
}

func TestSyncArpOpensAndCloses(t *testing.T) {
	mock, repo := setupArpCamRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// One row stays open, one must close, one sighting is new.
	mock.ExpectQuery(`SELECT arpid, ip, mac FROM arp`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"arpid", "ip", "mac"}).
			AddRow(10, "10.0.0.5", "00:11:22:33:44:55").
			AddRow(11, "10.0.0.6", "66:77:88:99:aa:bb"))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO arp`).
		WithArgs(int64(1), "gw.example.org", "10.0.0.7", "cc:dd:ee:ff:00:11", now).
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(`UPDATE arp SET end_time`).
		WithArgs(int64(11), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sightings := []ArpSighting{
		{IP: "10.0.0.5", Mac: "00:11:22:33:44:55"},
		{IP: "10.0.0.7", Mac: "cc:dd:ee:ff:00:11"},
	}
	err := repo.SyncArp(context.Background(), 1, "gw.example.org", sightings, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncArpNoChanges(t *testing.T) {
	mock, repo := setupArpCamRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT arpid, ip, mac FROM arp`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"arpid", "ip", "mac"}).
			AddRow(10, "10.0.0.5", "00:11:22:33:44:55"))
	mock.ExpectBegin()
	mock.ExpectCommit()

	sightings := []ArpSighting{{IP: "10.0.0.5", Mac: "00:11:22:33:44:55"}}
	require.NoError(t, repo.SyncArp(context.Background(), 1, "gw", sightings, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchArpByIP(t *testing.T) {
	mock, repo := setupArpCamRepo(t)
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	mock.ExpectQuery(`WHERE ip <<=`).
		WithArgs("10.0.0.0/24", 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"arpid", "netboxid", "sysname", "ip", "mac", "start_time", "end_time",
		}).
			AddRow(1, 1, "gw", "10.0.0.5", "00:11:22:33:44:55", start, end).
			AddRow(2, 1, "gw", "10.0.0.6", "66:77:88:99:aa:bb", start, nil))

	hits, err := repo.SearchArpByIP(context.Background(), "10.0.0.0/24", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.False(t, hits[0].Open())
	assert.True(t, hits[1].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchCamByMac(t *testing.T) {
	mock, repo := setupArpCamRepo(t)
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM cam WHERE mac`).
		WithArgs("00:11:22:33:44:55", 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"camid", "netboxid", "sysname", "ifindex", "port", "mac",
			"start_time", "end_time",
		}).AddRow(1, 2, "sw.example.org", 3, "Gi0/3", "00:11:22:33:44:55", start, nil))

	hits, err := repo.SearchCamByMac(context.Background(), "00:11:22:33:44:55", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Gi0/3", hits[0].Port)
	assert.True(t, hits[0].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}
