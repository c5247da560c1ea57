package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"

	"opdsgrab/internal/opds"
	"opdsgrab/internal/types"
)

// RootCatalog is the parsed root feed. It is read only once fetched.
type RootCatalog struct {
	Url      *url.URL
	Document *opds.Document
}

// Languages lists codes of the languages the catalog links to. A language
// feed lives in a directory next to the root feed, {dir}/{code}/root.xml,
// other links matching the pattern are not languages.
func (r *RootCatalog) Languages() []string {
	var ret []string
	rootDir := path.Dir(r.Url.Path)

	for _, code := range r.Document.LanguageCodes() {
		href, ok := r.Document.FindLanguageLink(code)
		if !ok {
			continue
		}

		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}

		if path.Dir(path.Dir(r.Url.ResolveReference(u).Path)) != rootDir {
			continue
		}

		ret = append(ret, code)
	}

	return ret
}

func FetchRoot(ctx context.Context, fetcher opds.Fetcher, rootUrl *url.URL, l *slog.Logger) (*RootCatalog, error) {
	l.Debug("Begin processing root feed " + rootUrl.String())

	doc, err := fetchDocument(ctx, fetcher, rootUrl, l)
	if err != nil {
		return nil, fmt.Errorf("fetching root feed: %w", err)
	}

	return &RootCatalog{Url: rootUrl, Document: doc}, nil
}

// Paginator collects every entry of one language feed by following its
// first and next links.
type Paginator struct {
	Fetcher opds.Fetcher
	Logger  *slog.Logger
}

// Aggregate never returns a nil aggregate. When an error is returned the
// aggregate holds the entries of the pages processed before the failure.
// A language not offered by the catalog yields an empty aggregate.
func (p *Paginator) Aggregate(ctx context.Context, root *RootCatalog, lang types.Language) (*opds.Aggregate, error) {
	agg := opds.NewAggregate(lang)
	l := p.Logger.With(slog.String("language", lang.Code))

	href, ok := root.Document.FindLanguageLink(lang.Code)
	if !ok {
		l.Warn("Language " + lang.Name + " is not offered by the catalog")
		return agg, nil
	}

	baseUrl := resolveLink(root.Url, href, l)
	if baseUrl == nil {
		return agg, nil
	}

	l.Debug("Begin processing language feed " + baseUrl.String())

	base, err := fetchDocument(ctx, p.Fetcher, baseUrl, l)
	if err != nil {
		return agg, fmt.Errorf("fetching language feed: %w", err)
	}

	first, ok := base.FindRelLink(opds.RelFirst)
	if !ok {
		l.Warn("Not found link to the first page in " + baseUrl.String())
		return agg, nil
	}

	pageUrl := resolveLink(baseUrl, first, l)
	pages := 0

	for pageUrl != nil {
		page, err := fetchDocument(ctx, p.Fetcher, pageUrl, l)
		if err != nil {
			return agg, fmt.Errorf("fetching page %d of language feed: %w", pages+1, err)
		}

		pages++

		entries := page.Entries()
		for _, entry := range entries {
			agg.Append(entry)
		}

		l.Debug("Collected " + strconv.Itoa(len(entries)) + " entries from " + pageUrl.String())

		next, ok := page.FindRelLink(opds.RelNext)
		if !ok {
			break
		}

		l.Debug("Found link to the next page")

		pageUrl = resolveLink(pageUrl, next, l)
	}

	l.Info("Collected " + strconv.Itoa(agg.Len()) + " entries of " + lang.Name + " from " + strconv.Itoa(pages) + " pages")

	return agg, nil
}

func fetchDocument(ctx context.Context, fetcher opds.Fetcher, u *url.URL, l *slog.Logger) (*opds.Document, error) {
	text, err := fetcher.FetchText(ctx, u.String())
	if err != nil {
		return nil, err
	}

	doc, err := opds.Parse(text, l.With(slog.String("feed", u.String())))
	if err != nil {
		l.Error("Failed to parse feed " + u.String() + ": " + err.Error())
		return nil, fmt.Errorf("parsing %s: %w", u.String(), err)
	}

	return doc, nil
}
