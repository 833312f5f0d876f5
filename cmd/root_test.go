package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

func writeConfig(t *testing.T, shopURL string) string {
	t.Helper()
	u, err := url.Parse(shopURL)
	require.NoError(t, err)
	dir := t.TempDir()
	body := fmt.Sprintf(`
logging:
  level: error
state:
  backend: local
  local:
    base_dir: %s
sources:
  - name: pneus
    scheme: %s
    netloc: %s
    search_path: /search?q={term}
    items: li
    fields:
      - name: name
        selector: b
      - name: price
        selector: i
        kind: price
`, filepath.Join(dir, "state"), u.Scheme, u.Host)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTestShop(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<ul><li><b>%s one</b><i>10,50</i></li><li><b>%s two</b><i>12,00</i></li></ul>`, term, term)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFetchWritesJSONLines(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, newTestShop(t).URL)
	out, err := execute(t, "--config", cfg, "fetch", "p7:1", "eco")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, out, `"name":"p7 one"`)
	require.NotContains(t, out, `"name":"p7 two"`)
	require.Contains(t, out, `"name":"eco two"`)
	require.Contains(t, out, `"price":10.5`)
}

func TestFetchPoolModeFlag(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, newTestShop(t).URL)
	out, err := execute(t, "--config", cfg, "fetch", "--mode", "pool", "--pool-size", "2", "a", "b")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 4)
}

func TestFetchRejectsBadInput(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, newTestShop(t).URL)

	_, err := execute(t, "--config", cfg, "fetch")
	require.Error(t, err)

	_, err = execute(t, "--config", cfg, "fetch", "--mode", "burst", "a")
	require.ErrorContains(t, err, "orchestrator.mode")

	_, err = execute(t, "--config", cfg, "fetch", " :3")
	require.ErrorIs(t, err, crawler.ErrInvalidQuery)

	_, err = execute(t, "--config", cfg, "fetch", "tire:x2")
	require.ErrorIs(t, err, crawler.ErrInvalidQuery)
}

func TestSourcesListsShops(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, "http://shop.example")
	out, err := execute(t, "--config", cfg, "sources")
	require.NoError(t, err)
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "pneus")
	require.Contains(t, out, "http://shop.example/search?q={term}")
}

func TestParseQueries(t *testing.T) {
	t.Parallel()

	got, err := parseQueries([]string{"205/55 r16:10", "eco", "tire:", "x:0"})
	require.NoError(t, err)
	require.Equal(t, []crawler.Query{
		{Term: "205/55 r16", Quantity: 10},
		{Term: "eco", Quantity: crawler.DefaultQuantity},
		{Term: "tire", Quantity: crawler.DefaultQuantity},
		{Term: "x", Quantity: crawler.DefaultQuantity},
	}, got)

	for _, bad := range []string{"tire:x2", "tire:-1", "a:b"} {
		_, err := parseQueries([]string{bad})
		require.ErrorIs(t, err, crawler.ErrInvalidQuery, bad)
	}
}
