package opds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(ts *httptest.Server) *HTTPFetcher {
	base, _ := url.Parse(ts.URL + "/opds/v1/root.xml")
	return &HTTPFetcher{Client: ts.Client(), Logger: discardLogger(), Base: base}
}

func TestFetchText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/opds/v1/en/root.xml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte("<feed/>"))
	}))
	defer ts.Close()

	f := newTestFetcher(ts)

	// server-relative URLs resolve against Base
	text, err := f.FetchText(context.Background(), "/opds/v1/en/root.xml")
	require.NoError(t, err)
	assert.Equal(t, "<feed/>", text)

	text, err = f.FetchText(context.Background(), ts.URL+"/opds/v1/en/root.xml")
	require.NoError(t, err)
	assert.Equal(t, "<feed/>", text)
}

func TestFetchBytesStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts).FetchBytes(context.Background(), ts.URL+"/book.epub")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, ts.URL+"/book.epub", te.Url)
}

func TestFetchBytesNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	u := ts.URL
	f := newTestFetcher(ts)
	ts.Close()

	_, err := f.FetchBytes(context.Background(), u+"/root.xml")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
	assert.NotNil(t, te.Err)
}

func TestFetchBytesEmptyURL(t *testing.T) {
	f := &HTTPFetcher{Logger: discardLogger()}

	_, err := f.FetchBytes(context.Background(), "  ")

	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestFetchBytesCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(ts).FetchBytes(ctx, ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
