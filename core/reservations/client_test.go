package reservations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lockcode-manager/core/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	creds := settings.NewCache(settings.Static{SettingAPIToken: "secret"}, 0)
	return NewClient(Config{BaseURL: srv.URL + "/", PageSize: 2}, creds, zap.NewNop())
}

func TestFetchPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/reservations", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "2026-10-15", r.URL.Query().Get("checkin_from"))
		_, _ = w.Write([]byte(`{
			"data": [
				{"id":"R-1","guest_name":"Ada","check_in":"2026-10-15","check_out":"2026-10-18","property":"1117 Front Door"},
				{"id":"","check_in":"2026-10-15","check_out":"2026-10-18"},
				{"id":"R-3","check_in":"15/10/2026","check_out":"2026-10-18"},
				{"id":"R-4","check_in":"2026-10-20T16:00:00Z","check_out":"2026-10-23T13:00:00+02:00","property":"9 Shed"}
			],
			"pagination": {"page":3,"per_page":2,"total":7,"has_more":true}
		}`))
	})

	cutoff := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	page, err := c.FetchPage(context.Background(), 3, cutoff)
	require.NoError(t, err)

	require.Len(t, page.Reservations, 2)
	r := page.Reservations[0]
	assert.Equal(t, "R-1", r.ID)
	assert.Equal(t, "Ada", r.GuestName)
	assert.Equal(t, "1117 Front Door", r.Property)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), r.CheckIn)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), r.CheckOut)

	// Timestamps keep their time of day, normalized to UTC.
	ts := page.Reservations[1]
	assert.Equal(t, "R-4", ts.ID)
	assert.Equal(t, time.Date(2026, 10, 20, 16, 0, 0, 0, time.UTC), ts.CheckIn)
	assert.Equal(t, time.Date(2026, 10, 23, 11, 0, 0, 0, time.UTC), ts.CheckOut)
	assert.Equal(t, Pagination{Page: 3, PerPage: 2, Total: 7, HasMore: true}, page.Pagination)
}

func TestFetchPage_MissingPagination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := c.FetchPage(context.Background(), 1, time.Now())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "invalid pagination")
}

func TestFetchPage_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	})

	_, err := c.FetchPage(context.Background(), 1, time.Now())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, `{"error":"bad token"}`, apiErr.Raw)
}

func TestFetchPage_Transport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	c.baseURL = "http://127.0.0.1:1"

	_, err := c.FetchPage(context.Background(), 1, time.Now())
	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestPatchReservation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/reservations/R 1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var p Patch
		require.NoError(t, json.Unmarshal(body, &p))
		assert.Equal(t, "4821", p.DoorCode)
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.PatchReservation(context.Background(), "R 1", Patch{DoorCode: "4821"})
	assert.NoError(t, err)
}

func TestPatchReservation_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	err := c.PatchReservation(context.Background(), "R-1", Patch{DoorCode: "4821"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusText(http.StatusUnprocessableEntity), apiErr.Message)
}
