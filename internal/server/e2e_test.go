package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemwatch/internal/cloud"
	"github.com/idilsaglam/itemwatch/internal/cloud/httpdb"
	"github.com/idilsaglam/itemwatch/internal/fetcher"
	"github.com/idilsaglam/itemwatch/internal/model"
	"github.com/idilsaglam/itemwatch/internal/recordstore"
)

func serve(t *testing.T, store recordstore.Store, opts Options) *cloud.Container {
	t.Helper()
	ts := httptest.NewServer(New(store, opts).Handler())
	t.Cleanup(ts.Close)
	return httpdb.NewContainer(httpdb.Options{
		Endpoint:    ts.URL,
		Container:   "iCloud.com.example.itemwatch",
		Environment: "development",
	})
}

func TestFetchOverHTTP(t *testing.T) {
	c := serve(t, seeded(t,
		item("a", `{"name":"Alpha"}`),
		item("b", `{}`),
		item("broken", `{"name":`),
		item("c", `{"name":"Gamma"}`),
	), Options{})

	items, err := fetcher.New(c.Public).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Item{
		{ID: "a", Name: "Alpha"},
		{ID: "b", Name: ""},
		{ID: "c", Name: "Gamma"},
	}, items)
}

func TestFetchOverHTTPPrivateFails(t *testing.T) {
	c := serve(t, recordstore.NewMemoryStore(), Options{})

	r := <-fetcher.New(c.Private).FetchItems(context.Background())
	require.Error(t, r.Err)
	assert.Nil(t, r.Items)
	assert.Equal(t, cloud.CodeAuthenticationRequired, fetcher.ReasonOf(r.Err))
}

func TestFetchOverHTTPThrottled(t *testing.T) {
	c := serve(t, recordstore.NewMemoryStore(), Options{RateLimit: 0.001, Burst: 1})
	f := fetcher.New(c.Public)

	_, err := f.Fetch(context.Background())
	require.NoError(t, err)
	_, err = f.Fetch(context.Background())
	assert.Equal(t, cloud.CodeThrottled, fetcher.ReasonOf(err))
}
