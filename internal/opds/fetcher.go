package opds

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Fetcher retrieves catalog pages and publication files.
// Every failure is reported as *TransportError.
type Fetcher interface {
	FetchText(ctx context.Context, rawUrl string) (string, error)
	FetchBytes(ctx context.Context, rawUrl string) ([]byte, error)
}

type HTTPFetcher struct {
	Client *http.Client
	Logger *slog.Logger
	// Base is used to resolve server-relative URLs, may be nil
	Base *url.URL
}

func (f *HTTPFetcher) FetchText(ctx context.Context, rawUrl string) (string, error) {
	bs, err := f.FetchBytes(ctx, rawUrl)
	if err != nil {
		return "", err
	}

	return string(bs), nil
}

func (f *HTTPFetcher) FetchBytes(ctx context.Context, rawUrl string) ([]byte, error) {
	if strings.TrimSpace(rawUrl) == "" {
		return nil, &TransportError{Url: rawUrl, Err: errors.New("empty URL")}
	}

	u, err := url.Parse(rawUrl)
	if err != nil {
		f.Logger.Error("Failed to parse URL " + rawUrl + ": " + err.Error())
		return nil, &TransportError{Url: rawUrl, Err: err}
	}

	if f.Base != nil {
		u = f.Base.ResolveReference(u)
	}

	f.Logger.Info("Retrieving " + u.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Url: u.String(), Err: err}
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		f.Logger.Error("Failed to fetch " + u.String() + ": " + err.Error())
		return nil, &TransportError{Url: u.String(), Err: err}
	}

	var bs []byte
	func() {
		defer res.Body.Close()
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			bs, err = io.ReadAll(res.Body)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		f.Logger.Error("Unexpected status fetching " + u.String() + ": " + res.Status)
		return nil, &TransportError{Url: u.String(), StatusCode: res.StatusCode}
	}

	if err != nil {
		f.Logger.Error("Failed to read body of " + u.String() + ": " + err.Error())
		return nil, &TransportError{Url: u.String(), Err: err}
	}

	return bs, nil
}
