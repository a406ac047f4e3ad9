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

func setupNetboxRepo(t *testing.T) (sqlmock.Sqlmock, *NetboxRepo) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return mock, NewNetboxRepo(conn)
}

func netboxRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"netboxid", "ip", "sysname", "roomid", "catid", "orgid", "typeid",
		"up", "upsince", "discovered", "deleted_at", "data",
	})
}

func TestNetboxGet(t *testing.T) {
	mock, repo := setupNetboxRepo(t)

	upsince := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM netbox WHERE netboxid`).
		WithArgs(int64(7)).
		WillReturnRows(netboxRows().AddRow(
			7, "10.0.0.1", "gw.example.org", "server-room", "GW", "uninett",
			nil, "y", upsince, upsince, nil, []byte(`{"serial":"FOC1234"}`)))
	mock.ExpectQuery(`FROM management_profile p`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"profileid", "name", "protocol", "community", "version",
			"sec_level", "sec_name", "auth_protocol", "auth_password",
			"priv_protocol", "priv_password", "port", "write",
		}).AddRow(1, "default v2c", "snmp", "public", 2, "", "", "", "", "", "", 161, false))

	n, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "gw.example.org", n.Sysname)
	assert.Equal(t, "FOC1234", n.Data["serial"])
	require.Len(t, n.Profiles, 1)
	assert.Equal(t, 2, n.Profiles[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNetboxGetNotFound(t *testing.T) {
	mock, repo := setupNetboxRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM netbox WHERE netboxid`).
		WithArgs(int64(99)).
		WillReturnRows(netboxRows())

	_, err := repo.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNetboxInsertFallsBackToIP(t *testing.T) {
	mock, repo := setupNetboxRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO netbox`).
		WithArgs("192.0.2.10", "192.0.2.10", "noc", "SW", "uninett", nil, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"netboxid"}).AddRow(42))
	mock.ExpectCommit()

	n := &models.Netbox{IP: "192.0.2.10", RoomID: "noc", CategoryID: "SW", OrgID: "uninett"}
	id, err := repo.Insert(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "192.0.2.10", n.Sysname)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNetboxInsertPersistsProfiles(t *testing.T) {
	mock, repo := setupNetboxRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO netbox`).
		WithArgs("10.0.0.2", "sw.example.org", "noc", "SW", "uninett", nil, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"netboxid"}).AddRow(42))
	mock.ExpectQuery(`INSERT INTO management_profile`).
		WithArgs("default v2c", "snmp", "public", 2, "", "", "", "", "", "", 161, false).
		WillReturnRows(sqlmock.NewRows([]string{"profileid"}).AddRow(int64(9)))
	mock.ExpectExec(`INSERT INTO netbox_profile`).
		WithArgs(int64(42), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n := &models.Netbox{
		IP: "10.0.0.2", Sysname: "sw.example.org",
		RoomID: "noc", CategoryID: "SW", OrgID: "uninett",
		Profiles: []models.ManagementProfile{{
			Name: "default v2c", Protocol: "snmp",
			Community: "public", Version: 2, Port: 161,
		}},
	}
	id, err := repo.Insert(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(9), n.Profiles[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNetboxInsertLinksExistingProfile(t *testing.T) {
	mock, repo := setupNetboxRepo(t)

	// A profile carrying an id is linked, not re-created.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO netbox`).
		WithArgs("10.0.0.3", "gw2.example.org", "noc", "GW", "uninett", nil, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"netboxid"}).AddRow(43))
	mock.ExpectExec(`INSERT INTO netbox_profile`).
		WithArgs(int64(43), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n := &models.Netbox{
		IP: "10.0.0.3", Sysname: "gw2.example.org",
		RoomID: "noc", CategoryID: "GW", OrgID: "uninett",
		Profiles: []models.ManagementProfile{{ID: 5, Name: "site v3", Protocol: "snmp"}},
	}
	_, err := repo.Insert(context.Background(), n)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNetboxInsertedProfilesReachThePoller(t *testing.T) {
	mock, repo := setupNetboxRepo(t)

	// Insert with a fresh profile...
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO netbox`).
		WithArgs("10.0.0.4", "core.example.org", "noc", "GW", "uninett", nil, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"netboxid"}).AddRow(44))
	mock.ExpectQuery(`INSERT INTO management_profile`).
		WithArgs("core v2c", "snmp", "s3cret", 2, "", "", "", "", "", "", 161, false).
		WillReturnRows(sqlmock.NewRows([]string{"profileid"}).AddRow(int64(11)))
	mock.ExpectExec(`INSERT INTO netbox_profile`).
		WithArgs(int64(44), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// ...must come back attached from LoadEnabled, or the box can never
	// be polled.
	mock.ExpectQuery(`SELECT .+ FROM netbox`).
		WillReturnRows(netboxRows().AddRow(
			44, "10.0.0.4", "core.example.org", "noc", "GW", "uninett",
			nil, "y", time.Time{}, time.Time{}, nil, []byte(`{}`)))
	mock.ExpectQuery(`FROM management_profile p`).
		WithArgs(int64(44)).
		WillReturnRows(sqlmock.NewRows([]string{
			"profileid", "name", "protocol", "community", "version",
			"sec_level", "sec_name", "auth_protocol", "auth_password",
			"priv_protocol", "priv_password", "port", "write",
		}).AddRow(11, "core v2c", "snmp", "s3cret", 2, "", "", "", "", "", "", 161, false))

	n := &models.Netbox{
		IP: "10.0.0.4", Sysname: "core.example.org",
		RoomID: "noc", CategoryID: "GW", OrgID: "uninett",
		Profiles: []models.ManagementProfile{{
			Name: "core v2c", Protocol: "snmp",
			Community: "s3cret", Version: 2, Port: 161,
		}},
	}
	_, err := repo.Insert(context.Background(), n)
	require.NoError(t, err)

	boxes, err := repo.LoadEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	require.Len(t, boxes[0].Profiles, 1)
	assert.Equal(t, "s3cret", boxes[0].Profiles[0].Community)
	assert.NotNil(t, boxes[0].PreferredSNMPProfile(false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNetboxUpdateReplacesProfiles(t *testing.T) {
	mock, repo := setupNetboxRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE netbox SET ip`).
		WithArgs(int64(7), "10.0.0.1", "gw.example.org", "noc", "GW", "uninett").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM netbox_profile`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO management_profile`).
		WithArgs("new v3", "snmpv3", "", 0, "authPriv", "nav", "SHA", "pw1", "AES", "pw2", 161, true).
		WillReturnRows(sqlmock.NewRows([]string{"profileid"}).AddRow(int64(12)))
	mock.ExpectExec(`INSERT INTO netbox_profile`).
		WithArgs(int64(7), int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n := &models.Netbox{
		ID: 7, IP: "10.0.0.1", Sysname: "gw.example.org",
		RoomID: "noc", CategoryID: "GW", OrgID: "uninett",
		Profiles: []models.ManagementProfile{{
			Name: "new v3", Protocol: "snmpv3",
			SecLevel: "authPriv", SecName: "nav",
			AuthProtocol: "SHA", AuthPassword: "pw1",
			PrivProtocol: "AES", PrivPassword: "pw2",
			Port: 161, Write: true,
		}},
	}
	require.NoError(t, repo.Update(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNetboxSoftDeleteMissing(t *testing.T) {
	mock, repo := setupNetboxRepo(t)

	mock.ExpectExec(`UPDATE netbox SET deleted_at`).
		WithArgs(int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), 5, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNetboxSetUpStateResetsUpsince(t *testing.T) {
	mock, repo := setupNetboxRepo(t)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE netbox SET up = \$2, upsince = \$3`).
		WithArgs(int64(3), models.UpUp, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetUpState(context.Background(), 3, models.UpUp, at))

	mock.ExpectExec(`UPDATE netbox SET up = \$2 WHERE`).
		WithArgs(int64(3), models.UpDown).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetUpState(context.Background(), 3, models.UpDown, at))

	assert.NoError(t, mock.ExpectationsWereMet())
}
