package crawler

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/opds-community/libopds2-go/opds1"

	"opdsgrab/internal/opds"
	"opdsgrab/internal/types"
)

const linkRelImage = "http://opds-spec.org/image"

var regLinkTypeImage = regexp.MustCompile("^image/[^/]+$")

// booksFromAggregate projects aggregate entries onto types.Book. Entries
// without id and repeated ids are skipped, the aggregate itself keeps them.
func booksFromAggregate(agg *opds.Aggregate, base *url.URL, l *slog.Logger) []*types.Book {
	var bks []*types.Book
	seenBooks := make(map[string]struct{})

	for ix, e := range agg.Entries() {
		entry, err := e.Decode()
		if err != nil {
			l.Warn("Failed to decode entry: "+err.Error(), slog.Int("entry", ix))
			continue
		}

		entry.ID = strings.TrimSpace(entry.ID)
		if entry.ID == "" {
			l.Warn("Found entry without id", slog.Int("entry", ix))
			continue
		}

		if _, ok := seenBooks[entry.ID]; ok {
			l.Warn("Found duplicate of book " + entry.ID)
			continue
		}

		seenBooks[entry.ID] = struct{}{}

		bks = append(bks, bookFromEntry(entry, agg.Language, base, l.With(slog.String("entry", entry.ID))))
	}

	return bks
}

func bookFromEntry(entry *opds1.Entry, lang types.Language, base *url.URL, l *slog.Logger) *types.Book {
	var authors []string
	seenAuthors := make(map[string]struct{}, len(entry.Author))
	for _, auth := range entry.Author {
		name := strings.TrimSpace(auth.Name)
		if name == "" {
			continue
		}

		if _, ok := seenAuthors[name]; ok {
			l.Warn("In the same book found duplicate of author " + name)
			continue
		}

		seenAuthors[name] = struct{}{}
		authors = append(authors, name)
	}

	var genres []string
	seenGenres := make(map[string]struct{}, len(entry.Category))
	for _, cat := range entry.Category {
		cat.Term = strings.TrimSpace(cat.Term)
		if cat.Term == "" {
			continue
		}

		if _, ok := seenGenres[strings.ToLower(cat.Term)]; ok {
			l.Warn("In the same book found duplicate of genre " + cat.Term)
			continue
		}

		seenGenres[strings.ToLower(cat.Term)] = struct{}{}
		genres = append(genres, cat.Term)
	}

	epub := ""
	epubLink := chooseLink(entry, func(link *opds1.Link) string {
		if link.TypeLink != opds.TypeEpub {
			return "unknown type: " + link.TypeLink
		}

		return ""
	}, clLogger{logger: l, levelSkipLink: slog.LevelDebug})

	if epubLink == nil {
		l.Debug("Not found EPUB link")
	} else if u := resolveLink(base, epubLink.Href, l); u != nil {
		epub = u.String()
	}

	cover := ""
	coverLink := chooseLink(entry, func(link *opds1.Link) string {
		if !strings.HasPrefix(link.Rel, linkRelImage) {
			return "unknown rel: " + link.Rel
		}

		if !regLinkTypeImage.MatchString(link.TypeLink) {
			return "unknown type: " + link.TypeLink
		}

		return ""
	}, clLogger{logger: l, levelSkipLink: slog.LevelDebug})

	if coverLink != nil {
		if u := resolveLink(base, coverLink.Href, l); u != nil {
			cover = u.String()
		}
	}

	language := strings.TrimSpace(entry.Language)
	if language == "" {
		language = lang.Code
	}

	return &types.Book{
		Id:       entry.ID,
		Title:    strings.TrimSpace(entry.Title),
		Authors:  authors,
		Genres:   genres,
		Language: language,
		Issued:   strings.TrimSpace(entry.Issued),
		About:    strings.TrimSpace(entry.Content.Content),
		EpubUrl:  epub,
		Cover:    cover,
	}
}
