package sources

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pricefetch/internal/sources/catalog"
	"github.com/JakeFAU/pricefetch/internal/storage/memory"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

type stubCrawler struct {
	name    string
	state   []byte
	dumpErr error
}

func (s *stubCrawler) Name() string { return s.name }

func (s *stubCrawler) Fetch(context.Context, crawler.Query) iter.Seq2[crawler.Record, error] {
	return func(func(crawler.Record, error) bool) {}
}

func (s *stubCrawler) Dumps() ([]byte, error) { return s.state, s.dumpErr }

func (s *stubCrawler) Loads(raw []byte) error {
	if string(raw) == "corrupt" {
		return errors.New("bad state")
	}
	s.state = append([]byte(nil), raw...)
	return nil
}

func TestStateStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStateStore(memory.NewBlobStore(), nil)

	saved := &stubCrawler{name: "pneus/pt", state: []byte(`{"cookies":[{"name":"sid","value":"1"}]}`)}
	require.NoError(t, store.SaveAll(ctx, []crawler.Crawler{saved}))

	fresh := &stubCrawler{name: "pneus/pt"}
	other := &stubCrawler{name: "never-saved"}
	require.NoError(t, store.RestoreAll(ctx, []crawler.Crawler{fresh, other}))
	require.Equal(t, saved.state, fresh.state)
	require.Nil(t, other.state)
}

func TestStateStoreJoinsFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := memory.NewBlobStore()
	store := NewStateStore(blobs, nil)

	require.NoError(t, store.Save(ctx, &stubCrawler{name: "bad", state: []byte("corrupt")}))
	good := &stubCrawler{name: "good"}
	require.NoError(t, store.Save(ctx, &stubCrawler{name: "good", state: []byte("{}")}))

	err := store.RestoreAll(ctx, []crawler.Crawler{&stubCrawler{name: "bad"}, good})
	require.ErrorContains(t, err, "load session bad")
	require.Equal(t, "{}", string(good.state))

	err = store.SaveAll(ctx, []crawler.Crawler{&stubCrawler{name: "x", dumpErr: errors.New("boom")}})
	require.ErrorContains(t, err, "dump session x")
}

func TestStatePathIsSanitized(t *testing.T) {
	t.Parallel()
	require.Equal(t, "sessions/pneus_pt.json", statePath("pneus/pt"))
	require.Equal(t, "sessions/.._etc_passwd.json", statePath("../etc/passwd"))
}

func TestBuild(t *testing.T) {
	t.Parallel()

	cfg := catalog.Config{Name: "a", Netloc: "a.example", SearchPath: "/s?q={term}", Items: ".i", Fields: []catalog.Field{{Name: "n"}}}
	crawlers, err := Build([]catalog.Config{cfg}, catalog.Options{})
	require.NoError(t, err)
	require.Len(t, crawlers, 1)
	require.Equal(t, "a", crawlers[0].Name())
	require.Len(t, AsSources(crawlers), 1)

	_, err = Build([]catalog.Config{cfg, cfg}, catalog.Options{})
	require.ErrorIs(t, err, catalog.ErrInvalidConfig)

	cfg.Items = ""
	_, err = Build([]catalog.Config{cfg}, catalog.Options{})
	require.ErrorIs(t, err, catalog.ErrInvalidConfig)
}
