package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"opdsgrab/internal/opds"
	"opdsgrab/internal/types"
)

// Downloader saves EPUBs of the entries written by one author.
type Downloader struct {
	Fetcher   opds.Fetcher
	Fs        afero.Fs
	OutputDir string
	Logger    *slog.Logger
	Consumer  Consumer
	Errors    ErrorHandler
}

// DownloadByAuthor walks the aggregate in document order and saves the EPUB
// of every entry whose first author name equals author exactly. A failed
// book is reported and skipped. Only cancellation of ctx or a consumer
// failure stop the walk.
func (d *Downloader) DownloadByAuthor(ctx context.Context, author string, agg *opds.Aggregate) ([]types.DownloadTarget, error) {
	l := d.Logger.With(slog.String("author", author))

	var saved []types.DownloadTarget
	matched := 0

	for ix, entry := range agg.Entries() {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		name, ok := entry.AuthorName()
		if !ok || name != author {
			continue
		}

		matched++

		target, ok := d.target(entry, l.With(slog.Int("entry", ix)))
		if !ok {
			continue
		}

		err := d.download(ctx, &target, l)
		if err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}

			u, perr := url.Parse(target.Url)
			if perr != nil {
				l.Warn("Failed to parse EPUB link " + target.Url + ": " + perr.Error())
			}

			handleError(ctx, d.Errors, l, types.MakeTargetBook(u, &target), err)
			continue
		}

		saved = append(saved, target)

		if d.Consumer == nil {
			continue
		}

		err = d.Consumer.ConsumeDownload(ctx, &target)
		if err != nil {
			if !isIgnored(err) {
				return saved, fmt.Errorf("failed to consume download: %w", err)
			}

			l.Warn("Consumer ignored download of " + target.Title + ": " + err.Error())
		}
	}

	l.Info("Saved " + strconv.Itoa(len(saved)) + " of " + strconv.Itoa(matched) + " books by " + author)

	return saved, nil
}

func (d *Downloader) target(entry opds.Entry, l *slog.Logger) (types.DownloadTarget, bool) {
	href, ok := entry.LinkByType(opds.TypeEpub)
	if !ok || href == "" {
		l.Debug("Not found EPUB link")
		return types.DownloadTarget{}, false
	}

	title, ok := entry.Title()
	if !ok || title == "" {
		l.Debug("Not found title")
		return types.DownloadTarget{}, false
	}

	path := BookPath(d.OutputDir, title)
	if path == "" {
		l.Warn("Nothing left of title " + strconv.Quote(title) + " to name the file with")
		return types.DownloadTarget{}, false
	}

	id, _ := entry.ID()

	return types.DownloadTarget{Id: id, Title: title, Url: href, Path: path}, true
}

func (d *Downloader) download(ctx context.Context, target *types.DownloadTarget, l *slog.Logger) error {
	l.Info("Downloading and saving book to " + target.Path)

	bs, err := d.Fetcher.FetchBytes(ctx, target.Url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", target.Title, err)
	}

	err = d.Fs.MkdirAll(filepath.Dir(target.Path), 0755)
	if err != nil {
		l.Error("Failed to create directory for " + target.Path + ": " + err.Error())
		return fmt.Errorf("creating directory: %w", err)
	}

	err = afero.WriteFile(d.Fs, target.Path, bs, 0644)
	if err != nil {
		l.Error("Failed to write " + target.Path + ": " + err.Error())
		return fmt.Errorf("writing book: %w", err)
	}

	return nil
}
