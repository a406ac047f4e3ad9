package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTopologyRepo(t *testing.T) (sqlmock.Sqlmock, *TopologyRepo) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return mock, NewTopologyRepo(conn)
}

func TestEnsureVlanReusesExistingRow(t *testing.T) {
	mock, repo := setupTopologyRepo(t)

	mock.ExpectQuery(`SELECT vlanid FROM vlan WHERE vlan`).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"vlanid"}).AddRow(7))

	id, err := repo.EnsureVlan(context.Background(), 42, "lan")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureVlanCreatesMissingRow(t *testing.T) {
	mock, repo := setupTopologyRepo(t)

	mock.ExpectQuery(`SELECT vlanid FROM vlan WHERE vlan`).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"vlanid"}))
	mock.ExpectQuery(`INSERT INTO vlan \(vlan, nettype\)`).
		WithArgs(99, "lan").
		WillReturnRows(sqlmock.NewRows([]string{"vlanid"}).AddRow(8))

	id, err := repo.EnsureVlan(context.Background(), 99, "lan")
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A prefix that cannot be tied to a numbered vlan must keep whatever vlan
// row it was given when first seen. Re-syncing it every poll run may not
// mint a fresh anonymous vlan each time.
func TestUpsertPrefixKeepsExistingVlanLink(t *testing.T) {
	mock, repo := setupTopologyRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO prefix`).
		WithArgs("10.0.42.0/24", nil).
		WillReturnRows(sqlmock.NewRows([]string{"prefixid", "vlanid"}).AddRow(3, 15))
	mock.ExpectCommit()

	id, err := repo.UpsertPrefix(context.Background(), "10.0.42.0/24", nil, "lan")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPrefixNewPrefixGetsAnonymousVlan(t *testing.T) {
	mock, repo := setupTopologyRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO prefix`).
		WithArgs("192.168.1.0/24", nil).
		WillReturnRows(sqlmock.NewRows([]string{"prefixid", "vlanid"}).AddRow(4, nil))
	mock.ExpectQuery(`INSERT INTO vlan \(nettype\)`).
		WithArgs("lan").
		WillReturnRows(sqlmock.NewRows([]string{"vlanid"}).AddRow(21))
	mock.ExpectExec(`UPDATE prefix SET vlanid`).
		WithArgs(int64(21), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.UpsertPrefix(context.Background(), "192.168.1.0/24", nil, "lan")
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPrefixRepointsVlanWhenResolved(t *testing.T) {
	mock, repo := setupTopologyRepo(t)

	vlanID := int64(15)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO prefix`).
		WithArgs("10.0.42.0/24", vlanID).
		WillReturnRows(sqlmock.NewRows([]string{"prefixid", "vlanid"}).AddRow(3, 15))
	mock.ExpectCommit()

	id, err := repo.UpsertPrefix(context.Background(), "10.0.42.0/24", &vlanID, "lan")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
