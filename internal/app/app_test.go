package app_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/listing-crawler/internal/app"
	"github.com/JakeFAU/listing-crawler/internal/config"
	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

const listingPage = `<html><body>
<div class="item_table-header"><a href="/item/%[1]d1">Game %[1]d-1</a><span>1 500 ₴</span></div>
<div class="item_table-header"><a href="/item/%[1]d2">Game %[1]d-2</a><span>700₴</span></div>
<a class="pagination-page" href="/games?p=1">1</a>
<a class="pagination-page" href="/games?p=2">2</a>
</body></html>`

func newListingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("p")
		if page == "" {
			page = "1"
		}
		if page != "1" && page != "2" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, listingPage, map[string]int{"1": 1, "2": 2}[page])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func baseConfig(t *testing.T, srv *httptest.Server) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Crawler.StartURL = srv.URL + "/games?p="
	cfg.Crawler.RateRPS = 0
	cfg.Layout.Origin = srv.URL + "/"
	cfg.Output.Sinks = []string{config.SinkMemory}
	cfg.Storage.Backend = config.BackendMemory
	return cfg
}

func TestAppCrawlsIntoMemory(t *testing.T) {
	srv := newListingServer(t)
	cfg := baseConfig(t, srv)

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck // test cleanup

	report, err := a.Crawler().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, crawler.StateDone, report.State)
	assert.Equal(t, a.RunID(), report.RunID)
	assert.Equal(t, 2, report.TotalPages)
	assert.Equal(t, 4, report.Records)

	var names []string
	for _, r := range a.MemoryRecords() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"Game 1-1", "Game 1-2", "Game 2-1", "Game 2-2"}, names)
	assert.Equal(t, srv.URL+"/item/11", a.MemoryRecords()[0].URL())
	assert.Equal(t, 1500, a.MemoryRecords()[0].Price())
}

func TestAppCrawlsIntoFile(t *testing.T) {
	srv := newListingServer(t)
	cfg := baseConfig(t, srv)
	dir := t.TempDir()
	cfg.Output.Sinks = []string{config.SinkFile}
	cfg.Output.Path = filepath.Join(dir, "goods.txt")
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.Local.BaseDir = dir

	core, logs := observer.New(zapcore.InfoLevel)
	a, err := app.New(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck // test cleanup

	opened := logs.FilterMessage("appending records to file").All()
	require.Len(t, opened, 1)
	assert.Equal(t, cfg.Output.Path, opened[0].ContextMap()["path"])

	_, err = a.Crawler().Run(context.Background())
	require.NoError(t, err)

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Game 1-1 1500 "+srv.URL+"/item/11", lines[0])
	assert.Nil(t, a.MemoryRecords())
}

func TestAppCountCapturesBlockPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "<html><body>blocked</body></html>")
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := baseConfig(t, srv)
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.Local.BaseDir = dir

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck // test cleanup

	_, err = a.Counter().Count(context.Background(), cfg.Crawler.StartURL)
	var pagErr *crawler.PaginationError
	require.ErrorAs(t, err, &pagErr)

	// #nosec G304 -- test reads from the controlled temp directory.
	captured, err := os.ReadFile(filepath.Join(dir, "error.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(captured), "blocked")
}

func TestAppRejectsBadPostgresDSN(t *testing.T) {
	srv := newListingServer(t)
	cfg := baseConfig(t, srv)
	cfg.Output.Sinks = []string{config.SinkMemory, config.SinkPostgres}
	cfg.DB.DSN = "host=localhost port=notaport"

	_, err := app.New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestAppRejectsBadLayout(t *testing.T) {
	srv := newListingServer(t)
	cfg := baseConfig(t, srv)
	cfg.Layout.Origin = "relative/path"

	_, err := app.New(context.Background(), cfg, nil)
	require.Error(t, err)
}
