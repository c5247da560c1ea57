package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"opdsgrab/internal/opds"
	"opdsgrab/internal/types"
)

const booksChunkSize = 200

// Plan is what a single crawl harvests.
type Plan struct {
	Languages      []types.Language
	Author         string
	AuthorLanguage string
}

type Crawler struct {
	Fetcher   opds.Fetcher
	Fs        afero.Fs
	OutputDir string
	Logger    *slog.Logger
	Consumer  Consumer     // optional
	Errors    ErrorHandler // optional
}

// Crawl fetches the root catalog once, then aggregates every planned
// language in order. Failure to get the root catalog is fatal, a failed
// language is reported and the crawl moves on to the next one.
func (c *Crawler) Crawl(ctx context.Context, rootUrl *url.URL, plan Plan) error {
	root, err := FetchRoot(ctx, c.Fetcher, rootUrl, c.Logger)
	if err != nil {
		handleError(ctx, c.Errors, c.Logger, types.MakeTargetRoot(rootUrl), err)
		return err
	}

	offered := root.Languages()
	c.Logger.Info("Catalog offers languages: " + strings.Join(offered, ", "))

	paginator := &Paginator{Fetcher: c.Fetcher, Logger: c.Logger}

	for _, lang := range plan.Languages {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !slices.Contains(offered, lang.Code) {
			c.Logger.Warn("Planned language " + lang.Code + " (" + lang.Name + ") is not offered by the catalog")
		}

		err := c.language(ctx, root, paginator, lang, plan)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Crawler) language(ctx context.Context, root *RootCatalog, paginator *Paginator, lang types.Language, plan Plan) error {
	l := c.Logger.With(slog.String("language", lang.Code))

	agg, err := paginator.Aggregate(ctx, root, lang)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		l.Error("Aggregation of " + lang.Name + " stopped early: " + err.Error())
		handleError(ctx, c.Errors, l, types.MakeTargetLanguage(root.Url, &lang), err)
	}

	err = c.saveAggregate(agg, l)
	if err != nil {
		handleError(ctx, c.Errors, l, types.MakeTargetLanguage(root.Url, &lang), err)
	}

	if c.Consumer != nil {
		err = c.consumeBooks(ctx, agg, root.Url, l)
		if err != nil {
			return err
		}
	}

	if lang.Code != plan.AuthorLanguage || plan.Author == "" {
		return nil
	}

	downloader := &Downloader{
		Fetcher:   c.Fetcher,
		Fs:        c.Fs,
		OutputDir: c.OutputDir,
		Logger:    l,
		Consumer:  c.Consumer,
		Errors:    c.Errors,
	}

	_, err = downloader.DownloadByAuthor(ctx, plan.Author, agg)
	if err != nil {
		return fmt.Errorf("downloading books by %s: %w", plan.Author, err)
	}

	return nil
}

func (c *Crawler) saveAggregate(agg *opds.Aggregate, l *slog.Logger) error {
	path := AggregatePath(c.OutputDir, agg.Language.Name)

	err := c.Fs.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		l.Error("Failed to create directory for " + path + ": " + err.Error())
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := c.Fs.Create(path)
	if err != nil {
		l.Error("Failed to create " + path + ": " + err.Error())
		return fmt.Errorf("creating aggregate file: %w", err)
	}
	defer f.Close()

	_, err = agg.WriteTo(f)
	if err != nil {
		l.Error("Failed to write " + path + ": " + err.Error())
		return fmt.Errorf("writing aggregate: %w", err)
	}

	l.Info("Saved aggregate to " + path)

	return nil
}

func (c *Crawler) consumeBooks(ctx context.Context, agg *opds.Aggregate, base *url.URL, l *slog.Logger) error {
	bks := booksFromAggregate(agg, base, l)

	for start := 0; start < len(bks); start += booksChunkSize {
		end := min(start+booksChunkSize, len(bks))

		err := c.Consumer.ConsumeBooks(ctx, agg.Language, bks[start:end])
		if err != nil {
			if !isIgnored(err) {
				return fmt.Errorf("failed to consume books: %w", err)
			}

			l.Warn("Consumer ignored books: " + err.Error())
		}
	}

	return nil
}
