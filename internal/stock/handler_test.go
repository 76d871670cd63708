package stock_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/stock"
	"github.com/bissquit/stockwatch/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*testutil.Client, *stock.Service) {
	t.Helper()

	svc, _ := newService(t)
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		stock.NewHandler(svc).RegisterRoutes(r)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	validator := testutil.NewOpenAPIValidator(t)
	return testutil.NewClientWithValidator(t, srv.URL, validator), svc
}

func TestHandler_GetActive(t *testing.T) {
	client, svc := newTestServer(t)
	ctx := context.Background()

	t.Run("empty store returns 404", func(t *testing.T) {
		resp, err := client.GET("/api/v1/stock/active")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, testutil.ReadBody(t, resp), "no current stock found")
	})

	ts := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	_, _, err := svc.Upsert(ctx, record("S1", ts))
	require.NoError(t, err)
	_, _, err = svc.Upsert(ctx, record("S2", ts.Add(time.Minute), stock.EmbedField{Name: "🥕 Carrot", Value: "x2"}))
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, "S1"))

	t.Run("returns flagged snapshot", func(t *testing.T) {
		resp, err := client.GET("/api/v1/stock/active")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var snap domain.Snapshot
		testutil.DecodeData(t, resp, &snap)
		assert.Equal(t, "S1", snap.ID)
		assert.True(t, snap.Active)
		assert.Equal(t, 5, snap.Seeds["sunflower"])
	})
}

func TestHandler_GetHistory(t *testing.T) {
	client, svc := newTestServer(t)
	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C"} {
		_, _, err := svc.Upsert(context.Background(), record(id, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    []string
	}{
		{name: "default page", query: "", wantStatus: http.StatusOK, wantIDs: []string{"C", "B", "A"}},
		{name: "limit and offset", query: "?limit=1&offset=1", wantStatus: http.StatusOK, wantIDs: []string{"B"}},
		{name: "offset past end", query: "?offset=10", wantStatus: http.StatusOK, wantIDs: []string{}},
		{name: "limit too large", query: "?limit=51", wantStatus: http.StatusBadRequest},
		{name: "zero limit", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", wantStatus: http.StatusBadRequest},
		{name: "non numeric limit", query: "?limit=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.WithoutValidation().GET("/api/v1/stock/history" + tt.query)
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				_ = resp.Body.Close()
				return
			}

			var page stock.HistoryResponse
			testutil.DecodeData(t, resp, &page)
			assert.Equal(t, 3, page.Total)

			ids := make([]string, 0, len(page.Items))
			for _, s := range page.Items {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	t.Run("response matches schema", func(t *testing.T) {
		resp, err := client.GET("/api/v1/stock/history?limit=2")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestHandler_GetSnapshot(t *testing.T) {
	client, svc := newTestServer(t)
	_, _, err := svc.Upsert(context.Background(), record("S1", time.Now().UTC()))
	require.NoError(t, err)

	resp, err := client.GET("/api/v1/stock/snapshots/S1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap domain.Snapshot
	testutil.DecodeData(t, resp, &snap)
	assert.Equal(t, "S1", snap.ID)

	resp, err = client.GET("/api/v1/stock/snapshots/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHandler_GetCatalog(t *testing.T) {
	client, _ := newTestServer(t)

	resp, err := client.GET("/api/v1/stock/catalog")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []stock.CatalogItem
	testutil.DecodeData(t, resp, &items)
	require.NotEmpty(t, items)
	assert.Equal(t, "sunflower", items[0].Key)
}
