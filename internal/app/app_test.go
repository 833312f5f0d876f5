package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/pricefetch/internal/config"
	"github.com/JakeFAU/pricefetch/internal/sources/catalog"
	"github.com/JakeFAU/pricefetch/internal/storage/local"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

const shopPage = `<html><body>
<div class="p"><b>Primacy 4</b><i>89,90 €</i></div>
<div class="p"><b>Turanza</b><i>75,00 €</i></div>
<div class="p"><b>P7</b><i>101,00 €</i></div>
</body></html>`

func newShop(t *testing.T, status int) catalog.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "down", status)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(shopPage))
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return catalog.Config{
		Scheme:     u.Scheme,
		Netloc:     u.Host,
		SearchPath: "/search?q={term}",
		Items:      "div.p",
		Fields: []catalog.Field{
			{Name: "name", Selector: "b", Kind: catalog.KindDescription},
			{Name: "price", Selector: "i", Kind: catalog.KindPrice},
		},
	}
}

func testConfig(t *testing.T, mode string, shops ...catalog.Config) config.Config {
	t.Helper()
	cfg := config.Config{
		Orchestrator: config.OrchestratorConfig{Mode: mode},
		HTTP:         config.HTTPConfig{TimeoutSeconds: 5},
		State: config.StateConfig{
			Backend: config.StateLocal,
			Local:   local.Config{BaseDir: t.TempDir()},
		},
		Output:   config.OutputConfig{Format: config.OutputJSONL, Table: "records"},
		Progress: config.ProgressConfig{BufferSize: 64, FlushIntervalMs: 10},
		Timezone: "UTC",
		Sources:  shops,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func queries(t *testing.T, terms ...string) []crawler.Query {
	t.Helper()
	out := make([]crawler.Query, 0, len(terms))
	for _, term := range terms {
		q, err := crawler.NewQuery(term, 2)
		require.NoError(t, err)
		out = append(out, q)
	}
	return out
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRunStreamWritesEveryRecordAndSavesSessions(t *testing.T) {
	t.Parallel()

	a := newShop(t, http.StatusOK)
	a.Name = "shop-a"
	b := newShop(t, http.StatusOK)
	b.Name = "shop-b"
	cfg := testConfig(t, config.ModeStream, a, b)

	var out bytes.Buffer
	reg := prometheus.NewRegistry()
	ctx := context.Background()
	app, err := Build(ctx, cfg, Options{Logger: zaptest.NewLogger(t), Out: &out, Registry: reg})
	require.NoError(t, err)
	require.Len(t, app.Crawlers(), 2)

	sum, err := app.Run(ctx, queries(t, "205/55 r16", "225/45 r17"))
	require.NoError(t, err)
	require.NoError(t, app.Close(ctx))

	require.Equal(t, 8, sum.Records)
	require.GreaterOrEqual(t, sum.Batches, 1)

	lines := decodeLines(t, &out)
	require.Len(t, lines, 8)
	perSource := map[any]int{}
	for _, rec := range lines {
		perSource[rec["source"]]++
		require.NotEmpty(t, rec["name"])
	}
	require.Equal(t, map[any]int{"shop-a": 4, "shop-b": 4}, perSource)

	for _, name := range []string{"shop-a", "shop-b"} {
		raw, err := os.ReadFile(filepath.Join(cfg.State.Local.BaseDir, "sessions", name+".json"))
		require.NoError(t, err)
		require.Contains(t, string(raw), `"sid"`)
	}

	n, err := testutil.GatherAndCount(reg, "pricefetch_records_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestRunPoolCountsEmptyResults(t *testing.T) {
	t.Parallel()

	up := newShop(t, http.StatusOK)
	up.Name = "up"
	down := newShop(t, http.StatusServiceUnavailable)
	down.Name = "down"
	cfg := testConfig(t, config.ModePool, up, down)
	cfg.State.Backend = config.StateMemory
	cfg.Orchestrator.PoolSize = 2

	var out bytes.Buffer
	ctx := context.Background()
	app, err := Build(ctx, cfg, Options{Out: &out})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	sum, err := app.Run(ctx, queries(t, "a", "b"))
	require.NoError(t, err)
	require.Equal(t, Summary{Records: 4, Batches: 2, Empty: 2}, sum)
	for _, rec := range decodeLines(t, &out) {
		require.Equal(t, "up", rec["source"])
	}
}

func TestRunRejectsInvalidQuery(t *testing.T) {
	t.Parallel()

	shop := newShop(t, http.StatusOK)
	shop.Name = "shop"
	cfg := testConfig(t, config.ModeStream, shop)
	cfg.State.Backend = config.StateMemory

	app, err := Build(context.Background(), cfg, Options{Out: &bytes.Buffer{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	_, err = app.Run(context.Background(), []crawler.Query{{Term: "  "}})
	require.ErrorIs(t, err, crawler.ErrInvalidQuery)
}

type failingSink struct{ closed bool }

func (f *failingSink) Write(context.Context, []crawler.Record) error { return os.ErrClosed }
func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestRunStopsOnSinkError(t *testing.T) {
	t.Parallel()

	shop := newShop(t, http.StatusOK)
	shop.Name = "shop"
	cfg := testConfig(t, config.ModeStream, shop)
	cfg.State.Backend = config.StateMemory

	sink := &failingSink{}
	app, err := Build(context.Background(), cfg, Options{Sink: sink})
	require.NoError(t, err)

	_, err = app.Run(context.Background(), queries(t, "a"))
	require.ErrorIs(t, err, os.ErrClosed)
	require.NoError(t, app.Close(context.Background()))
	require.True(t, sink.closed)
}

func TestBuildRequiresWriterForJSONL(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, config.ModeStream)
	cfg.State.Backend = config.StateMemory
	_, err := Build(context.Background(), cfg, Options{})
	require.Error(t, err)
}
