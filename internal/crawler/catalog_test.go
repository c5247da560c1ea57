package crawler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"opdsgrab/internal/opds"
	"opdsgrab/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var english = types.Language{Code: "en", Name: "English"}

const (
	rootPath = "/opds/v1/root.xml"

	catalogRoot = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <id>urn:root</id>
  <title>Library</title>
  <link href="/opds/v1/root.xml" rel="start"/>
  <link href="/opds/v1/en/root.xml" rel="http://opds-spec.org/facet" title="English"/>
</feed>`

	catalogEnglish = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <id>urn:en</id>
  <link href="/opds/v1/en/page-1.xml" rel="first"/>
</feed>`

	catalogPage1 = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:dc="http://purl.org/dc/terms/">
  <id>urn:en:page:1</id>
  <link href="page-2.xml" rel="next"/>
  <entry>
    <id>urn:book:1</id>
    <title>Book One</title>
    <author><name>John Roe</name></author>
    <dc:language>en</dc:language>
    <category term="Fiction"/>
    <link href="/books/1.epub" type="application/epub+zip" rel="http://opds-spec.org/acquisition"/>
  </entry>
</feed>`

	catalogPage2 = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <id>urn:en:page:2</id>
  <entry>
    <id>urn:book:2</id>
    <title>Book: Two?</title>
    <author><name>Jane Doe</name></author>
    <link href="/books/2.png" type="image/png" rel="http://opds-spec.org/image"/>
    <link href="/books/2.epub" type="application/epub+zip" rel="http://opds-spec.org/acquisition"/>
  </entry>
</feed>`
)

// catalog serves feeds by path and answers any /books/ path with fake EPUB content.
type catalog struct {
	mu       sync.Mutex
	feeds    map[string]string
	failing  map[string]int
	requests []string
}

func newCatalog(t *testing.T, feeds map[string]string) (*catalog, *httptest.Server) {
	t.Helper()

	c := &catalog{feeds: feeds, failing: make(map[string]int)}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.requests = append(c.requests, r.URL.Path)
		status, failing := c.failing[r.URL.Path]
		feed, ok := c.feeds[r.URL.Path]
		c.mu.Unlock()

		if failing {
			w.WriteHeader(status)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/books/") {
			_, _ = w.Write([]byte("epub:" + r.URL.Path))
			return
		}

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(ts.Close)

	return c, ts
}

func (c *catalog) fail(path string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failing[path] = status
}

func (c *catalog) requested() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.requests...)
}

func defaultFeeds() map[string]string {
	return map[string]string{
		rootPath:                 catalogRoot,
		"/opds/v1/en/root.xml":   catalogEnglish,
		"/opds/v1/en/page-1.xml": catalogPage1,
		"/opds/v1/en/page-2.xml": catalogPage2,
	}
}

func rootUrlOf(ts *httptest.Server) *url.URL {
	u, _ := url.Parse(ts.URL + rootPath)
	return u
}

func newFetcher(ts *httptest.Server) *opds.HTTPFetcher {
	return &opds.HTTPFetcher{Client: ts.Client(), Logger: discardLogger(), Base: rootUrlOf(ts)}
}

func fetchRoot(t *testing.T, ts *httptest.Server) *RootCatalog {
	t.Helper()

	root, err := FetchRoot(context.Background(), newFetcher(ts), rootUrlOf(ts), discardLogger())
	require.NoError(t, err)

	return root
}

func aggregateOf(t *testing.T, lang types.Language, feeds ...string) *opds.Aggregate {
	t.Helper()

	agg := opds.NewAggregate(lang)
	for _, feed := range feeds {
		doc, err := opds.Parse(feed, discardLogger())
		require.NoError(t, err)

		for _, e := range doc.Entries() {
			agg.Append(e)
		}
	}

	return agg
}

func entryIds(agg *opds.Aggregate) []string {
	var ids []string
	for _, e := range agg.Entries() {
		id, _ := e.ID()
		ids = append(ids, id)
	}

	return ids
}

// files lists regular files of fs, sorted.
func files(t *testing.T, fs afero.Fs) []string {
	t.Helper()

	var ret []string
	err := afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			ret = append(ret, path)
		}

		return nil
	})
	require.NoError(t, err)

	sort.Strings(ret)

	return ret
}

type recordingHandler struct {
	mu      sync.Mutex
	targets []types.Target
	errs    []error
}

func (h *recordingHandler) Handle(_ context.Context, target types.Target, err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.targets = append(h.targets, target)
	h.errs = append(h.errs, err)

	return nil
}

type mockConsumer struct {
	mock.Mock
}

func (m *mockConsumer) ConsumeBooks(ctx context.Context, lang types.Language, books []*types.Book) error {
	args := m.Called(ctx, lang, books)
	return args.Error(0)
}

func (m *mockConsumer) ConsumeDownload(ctx context.Context, target *types.DownloadTarget) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}
