package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusSendsAPIKey(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(Status{Boxes: 2, Up: 1, Down: 1}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit")
	s, err := c.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sekrit", gotKey)
	assert.Equal(t, "/api/v1/status", gotPath)
	assert.Equal(t, 2, s.Boxes)
	assert.Equal(t, 1, s.Down)
}

func TestNoAPIKeyHeaderWhenUnset(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["X-Api-Key"]
		json.NewEncoder(w).Encode(Status{}) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Status(context.Background())
	require.NoError(t, err)
	assert.False(t, sawHeader)
}

func TestAddNetbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/netboxes", r.URL.Path)

		var req NetboxRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "10.0.0.1", req.IP)
		assert.Equal(t, "myroom", req.Room)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Netbox{ID: 7, IP: req.IP, Sysname: req.IP}) //nolint:errcheck
	}))
	defer srv.Close()

	n, err := New(srv.URL, "").AddNetbox(context.Background(), NetboxRequest{
		IP: "10.0.0.1", Room: "myroom", Category: "SW",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n.ID)
}

func TestDeleteNetboxPath(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "").DeleteNetbox(context.Background(), 42))
	assert.Equal(t, "/api/v1/netboxes/42", gotPath)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestServerErrorMessageSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "ip, room and category are required"}) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").AddNetbox(context.Background(), NetboxRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ip, room and category are required")
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL, "wrong").Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestPostEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		assert.Equal(t, "boxState", ev.EventType)
		assert.Equal(t, "s", ev.State)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"}) //nolint:errcheck
	}))
	defer srv.Close()

	err := New(srv.URL, "").PostEvent(context.Background(), Event{
		NetboxID: 1, EventType: "boxState", State: "s", Severity: 3,
	})
	require.NoError(t, err)
}
