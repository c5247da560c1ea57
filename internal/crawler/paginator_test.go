package crawler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opdsgrab/internal/opds"
	"opdsgrab/internal/types"
)

func TestFetchRootLanguages(t *testing.T) {
	_, ts := newCatalog(t, defaultFeeds())

	root := fetchRoot(t, ts)
	assert.Equal(t, []string{"en"}, root.Languages())
}

func TestFetchRootLanguagesOnlyNextToRoot(t *testing.T) {
	feeds := defaultFeeds()
	feeds[rootPath] = `<feed xmlns="http://www.w3.org/2005/Atom">
  <link href="/opds/v1/root.xml" rel="alternate"/>
  <link href="https://mirror.example.org/opds/v1/root.xml"/>
  <link href="/opds/v1/en/root.xml" rel="http://opds-spec.org/facet"/>
  <link href="/opds/v1/fr/root.xml" rel="http://opds-spec.org/facet"/>
  <link href="/other/de/root.xml" rel="http://opds-spec.org/facet"/>
</feed>`

	_, ts := newCatalog(t, feeds)

	root := fetchRoot(t, ts)
	assert.Equal(t, []string{"en", "fr"}, root.Languages())
}

func TestFetchRootFailure(t *testing.T) {
	c, ts := newCatalog(t, defaultFeeds())
	c.fail(rootPath, http.StatusServiceUnavailable)

	_, err := FetchRoot(context.Background(), newFetcher(ts), rootUrlOf(ts), discardLogger())
	require.Error(t, err)

	var te *opds.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
}

func TestPaginatorFollowsFirstAndNext(t *testing.T) {
	c, ts := newCatalog(t, defaultFeeds())
	root := fetchRoot(t, ts)

	p := &Paginator{Fetcher: newFetcher(ts), Logger: discardLogger()}

	agg, err := p.Aggregate(context.Background(), root, english)
	require.NoError(t, err)

	assert.Equal(t, english, agg.Language)
	assert.Equal(t, []string{"urn:book:1", "urn:book:2"}, entryIds(agg))
	assert.Equal(t, []string{
		rootPath,
		"/opds/v1/en/root.xml",
		"/opds/v1/en/page-1.xml",
		"/opds/v1/en/page-2.xml",
	}, c.requested())
}

func TestPaginatorKeepsPageOrder(t *testing.T) {
	feeds := defaultFeeds()
	feeds["/opds/v1/en/page-1.xml"] = `<feed xmlns="http://www.w3.org/2005/Atom">
  <link href="/opds/v1/en/page-2.xml" rel="next"/>
  <entry><id>A</id></entry>
  <entry><id>B</id></entry>
</feed>`
	feeds["/opds/v1/en/page-2.xml"] = `<feed xmlns="http://www.w3.org/2005/Atom">
  <entry><id>C</id></entry>
  <entry><id>D</id></entry>
  <entry><id>A</id></entry>
</feed>`

	_, ts := newCatalog(t, feeds)
	root := fetchRoot(t, ts)

	p := &Paginator{Fetcher: newFetcher(ts), Logger: discardLogger()}

	agg, err := p.Aggregate(context.Background(), root, english)
	require.NoError(t, err)

	// duplicates are kept
	assert.Equal(t, []string{"A", "B", "C", "D", "A"}, entryIds(agg))
}

func TestPaginatorLanguageNotOffered(t *testing.T) {
	c, ts := newCatalog(t, defaultFeeds())
	root := fetchRoot(t, ts)

	p := &Paginator{Fetcher: newFetcher(ts), Logger: discardLogger()}

	agg, err := p.Aggregate(context.Background(), root, types.Language{Code: "xx", Name: "Unknown"})
	require.NoError(t, err)
	require.NotNil(t, agg)

	assert.Equal(t, 0, agg.Len())
	assert.Equal(t, []string{rootPath}, c.requested())
}

func TestPaginatorNoFirstLink(t *testing.T) {
	feeds := defaultFeeds()
	feeds["/opds/v1/en/root.xml"] = `<feed xmlns="http://www.w3.org/2005/Atom"><id>urn:en</id></feed>`

	_, ts := newCatalog(t, feeds)
	root := fetchRoot(t, ts)

	p := &Paginator{Fetcher: newFetcher(ts), Logger: discardLogger()}

	agg, err := p.Aggregate(context.Background(), root, english)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Len())
}

func TestPaginatorPartialOnTransportError(t *testing.T) {
	c, ts := newCatalog(t, defaultFeeds())
	c.fail("/opds/v1/en/page-2.xml", http.StatusInternalServerError)
	root := fetchRoot(t, ts)

	p := &Paginator{Fetcher: newFetcher(ts), Logger: discardLogger()}

	agg, err := p.Aggregate(context.Background(), root, english)
	require.Error(t, err)

	var te *opds.TransportError
	assert.True(t, errors.As(err, &te))

	require.NotNil(t, agg)
	assert.Equal(t, []string{"urn:book:1"}, entryIds(agg))
}

func TestPaginatorPartialOnMalformedPage(t *testing.T) {
	feeds := defaultFeeds()
	feeds["/opds/v1/en/page-2.xml"] = `<feed><entry></feed>`

	_, ts := newCatalog(t, feeds)
	root := fetchRoot(t, ts)

	p := &Paginator{Fetcher: newFetcher(ts), Logger: discardLogger()}

	agg, err := p.Aggregate(context.Background(), root, english)
	require.Error(t, err)

	var mf *opds.MalformedFeedError
	assert.True(t, errors.As(err, &mf))
	assert.Equal(t, []string{"urn:book:1"}, entryIds(agg))
}

func TestPaginatorBaseFeedFailure(t *testing.T) {
	c, ts := newCatalog(t, defaultFeeds())
	c.fail("/opds/v1/en/root.xml", http.StatusNotFound)
	root := fetchRoot(t, ts)

	p := &Paginator{Fetcher: newFetcher(ts), Logger: discardLogger()}

	agg, err := p.Aggregate(context.Background(), root, english)
	require.Error(t, err)
	assert.Equal(t, 0, agg.Len())
}
