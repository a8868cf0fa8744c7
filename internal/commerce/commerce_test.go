package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/catalog"
	"storefront/pkg/errors"
)

const tshirtJSON = `{"product":{"id":"prod_1","title":"Tee","options":[{"id":"opt_size","title":"Size","values":[{"value":"S"}]}],
"variants":[{"id":"var_s","options":[{"option_id":"opt_size","value":"S"}],"prices":[{"currency_code":"usd","amount":1000}]}]}}`

func newTestClient(url string) *Client {
	c := NewClient(url, "pk_test", 2, time.Second, zerolog.Nop())
	c.Backoff = time.Millisecond
	return c
}

func TestClientGetProduct(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "pk_test", r.Header.Get("x-publishable-api-key"))
		assert.Equal(t, "reg_us", r.URL.Query().Get("region_id"))
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch r.URL.Path {
		case "/store/products/prod_1":
			w.Write([]byte(tshirtJSON))
		case "/store/products/broken":
			w.Write([]byte(`{"product":{"id":"broken","options":[],"variants":[{"id":"v","options":[{"option_id":"nope","value":"x"}]}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	p, err := c.GetProduct(context.Background(), "prod_1", "reg_us")
	require.NoError(t, err)
	assert.Equal(t, "Tee", p.Title)
	assert.Equal(t, int32(2), calls.Load(), "one retry after 502")

	_, err = c.GetProduct(context.Background(), "missing", "reg_us")
	assert.True(t, errors.Is(err, errors.CodeProductNotFound))

	_, err = c.GetProduct(context.Background(), "broken", "reg_us")
	assert.True(t, errors.Is(err, errors.CodeInvalidProduct))
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetProduct(context.Background(), "prod_1", "")
	assert.True(t, errors.Is(err, errors.CodeUpstreamFailed))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientListRegions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/store/regions", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"regions": []catalog.Region{
			{ID: "reg_eu", CurrencyCode: "eur", Countries: []string{"de"}},
		}})
	}))
	defer srv.Close()

	regions, err := newTestClient(srv.URL).ListRegions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "eur", regions[0].CurrencyCode)
}

type fakeLister struct {
	regions []catalog.Region
	err     error
	calls   int
}

func (f *fakeLister) ListRegions(context.Context) ([]catalog.Region, error) {
	f.calls++
	return f.regions, f.err
}

func TestRegionDirectory(t *testing.T) {
	lister := &fakeLister{regions: []catalog.Region{
		{ID: "reg_eu", CurrencyCode: "eur", Countries: []string{"DE", "fr"}},
		{ID: "reg_na", CurrencyCode: "usd", Countries: []string{"us"}},
	}}
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	d := NewRegionDirectory(lister, time.Minute, 0)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	r, err := d.ByCountry(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, "reg_eu", r.ID)

	r, err = d.ByID(ctx, "reg_na")
	require.NoError(t, err)
	assert.Equal(t, "usd", r.CurrencyCode)
	assert.Equal(t, 1, lister.calls, "second lookup served from cache")

	_, err = d.ByID(ctx, "reg_mars")
	assert.True(t, errors.Is(err, errors.CodeRegionNotFound))
	assert.Equal(t, 2, lister.calls)

	// Expired entries are refreshed, or served stale when the backend is down.
	now = now.Add(2 * time.Minute)
	lister.err = assert.AnError
	r, err = d.ByCountry(ctx, "FR")
	require.NoError(t, err)
	assert.Equal(t, "reg_eu", r.ID)

	d.Purge()
	_, err = d.ByCountry(ctx, "fr")
	assert.ErrorIs(t, err, assert.AnError)
}

// gatedLister blocks every call until release is closed.
type gatedLister struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *gatedLister) ListRegions(context.Context) ([]catalog.Region, error) {
	g.calls.Add(1)
	<-g.release
	return []catalog.Region{{ID: "reg_eu", CurrencyCode: "eur", Countries: []string{"de"}}}, nil
}

func TestRegionDirectorySharesConcurrentRefresh(t *testing.T) {
	lister := &gatedLister{release: make(chan struct{})}
	d := NewRegionDirectory(lister, time.Minute, 0)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := d.ByCountry(context.Background(), "DE")
			assert.NoError(t, err)
			results <- r.ID
		}()
	}
	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(lister.release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), lister.calls.Load())
	for id := range results {
		assert.Equal(t, "reg_eu", id)
	}
}

func TestFileSource(t *testing.T) {
	s, err := NewFileSource(filepath.Join("..", "..", "testdata", "products"), zerolog.Nop())
	require.NoError(t, err)

	p, err := s.GetProduct(context.Background(), "prod_tshirt", "")
	require.NoError(t, err)
	assert.Len(t, p.Variants, 3)
	assert.Len(t, catalog.BuildMatrix(p).Keys(), 3)

	_, err = s.GetProduct(context.Background(), "prod_nope", "")
	assert.True(t, errors.Is(err, errors.CodeProductNotFound))

	regions, err := s.ListRegions(context.Background())
	require.NoError(t, err)
	assert.Len(t, regions, 2)
}

func TestFileSourceRejectsInvalidProducts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"),
		[]byte(`{"id":"p","options":[{"id":"o","values":[{"value":"a"},{"value":"a"}]}]}`), 0o644))

	_, err := NewFileSource(dir, zerolog.Nop())
	assert.True(t, errors.Is(err, errors.CodeInvalidProduct))
}

func TestFileSourceWatchReloads(t *testing.T) {
	dir := t.TempDir()
	write := func(title string) {
		data := []byte(`{"id":"prod_mug","title":"` + title + `","options":[],"variants":[{"id":"var_mug"}]}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "mug.json"), data, 0o644))
	}
	write("Mug")

	s, err := NewFileSource(dir, zerolog.Nop())
	require.NoError(t, err)
	reloaded := make(chan []string, 8)
	s.OnReload(func(ids []string) {
		select {
		case reloaded <- ids:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	require.Eventually(t, func() bool {
		write("Big Mug")
		select {
		case ids := <-reloaded:
			return assert.Equal(t, []string{"prod_mug"}, ids)
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	p, err := s.GetProduct(context.Background(), "prod_mug", "")
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", p.Title)
}
