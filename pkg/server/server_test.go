package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/paperdigest/internal/deliver"
	"github.com/elonfeng/paperdigest/internal/store"
	"github.com/elonfeng/paperdigest/pkg/source"
)

type apiFixture struct {
	store  *store.SQLiteStore
	url    string
	client *http.Client
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	srv := New(s, nil, deliver.NewStates(s), 0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{store: s, url: ts.URL, client: ts.Client()}
}

func (f *apiFixture) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := f.client.Get(f.url + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (f *apiFixture) post(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := f.client.Post(f.url+path, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	code, body := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestListItems(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	item := &store.Item{
		Source:      source.SourceArXiv,
		ExternalID:  "2402.00001",
		Title:       "A Paper",
		PublishedAt: time.Now().UTC(),
	}
	_, err := f.store.InsertItem(ctx, item)
	require.NoError(t, err)

	code, body := f.get(t, "/api/v1/items")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, body = f.get(t, "/api/v1/items?days=1&limit=5")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
}

func TestRunUnknownStage(t *testing.T) {
	f := newAPIFixture(t)
	code, body := f.post(t, "/api/v1/run?stage=bogus")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "unknown stage")
}

func TestDeliveryCallbacks(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	item := &store.Item{
		Source:      source.SourceArXiv,
		ExternalID:  "2402.00002",
		Title:       "B Paper",
		PublishedAt: time.Now().UTC(),
	}
	_, err := f.store.InsertItem(ctx, item)
	require.NoError(t, err)
	sum := &store.Summary{ItemID: item.ID, Content: "c", GeneratorTag: "t"}
	require.NoError(t, f.store.InsertSummary(ctx, sum))
	sub := &store.Subscriber{Identity: "chat:1", DailyLimit: 5, HistoryDays: 7, Active: true}
	require.NoError(t, f.store.UpsertSubscriber(ctx, sub))
	_, err = f.store.InsertDelivery(ctx, sub.ID, sum.ID, time.Now().UTC())
	require.NoError(t, err)

	pending, err := f.store.ListPendingDeliveries(ctx, sub.ID, 1)
	require.NoError(t, err)
	id := pending[0].Delivery.ID

	path := fmt.Sprintf("/api/v1/deliveries/%d", id)

	// Unsent delivery rejects the read callback.
	code, _ := f.post(t, path+"/read")
	assert.Equal(t, http.StatusConflict, code)

	require.NoError(t, f.store.MarkSent(ctx, id, time.Now().UTC()))

	code, body := f.post(t, path+"/read")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = f.post(t, path+"/interested")
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.post(t, "/api/v1/deliveries/999/read")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.post(t, "/api/v1/deliveries/abc/read")
	assert.Equal(t, http.StatusBadRequest, code)
}
