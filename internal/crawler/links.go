package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/opds-community/libopds2-go/opds1"
)

type clLogger struct {
	logger        *slog.Logger
	levelSkipLink slog.Leveler
}

func chooseLink(e *opds1.Entry, matcher func(link *opds1.Link) string, l clLogger) *opds1.Link {
	var ret *opds1.Link

	for _, link := range e.Links {
		link.Rel = strings.TrimSpace(link.Rel)
		link.TypeLink = strings.TrimSpace(link.TypeLink)

		if matcher != nil {
			mismatch := matcher(&link)
			if mismatch != "" {
				if l.levelSkipLink != nil {
					l.logger.LogAttrs(context.Background(), l.levelSkipLink.Level(), "Skip non-matching link: "+mismatch)
				}

				continue
			}
		}

		if ret != nil {
			l.logger.Debug("Skip duplicate matching link: " + link.Href)
			continue
		}

		ret = &link
	}

	return ret
}

// resolveLink resolves href found in the feed at base. Unparseable hrefs are
// logged and reported as nil, callers treat them as absent links.
func resolveLink(base *url.URL, href string, l *slog.Logger) *url.URL {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		l.Error("Failed to parse link " + href + ": " + err.Error())
		return nil
	}

	return base.ResolveReference(u)
}
