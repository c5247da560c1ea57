package types

import (
	"encoding/json"
	"net/url"
)

type TargetType uint8

const (
	TargetRoot     TargetType = 1
	TargetLanguage TargetType = 2
	TargetBook     TargetType = 3
)

func (t TargetType) String() string {
	switch t {
	case TargetRoot:
		return "root"
	case TargetLanguage:
		return "language"
	case TargetBook:
		return "book"
	default:
		return "unknown"
	}
}

// Target identifies what the crawler was working on when something failed.
//
// To create a Target, use one of the following functions:
//   - MakeTargetRoot
//   - MakeTargetLanguage
//   - MakeTargetBook
//
// Direct construction of Target is discouraged.
type Target struct {
	Url      *url.URL
	Type     TargetType
	Language *Language       // required for Type == TargetLanguage
	Book     *DownloadTarget // required for Type == TargetBook
}

func MakeTargetRoot(u *url.URL) Target {
	return Target{Url: u, Type: TargetRoot}
}

func MakeTargetLanguage(u *url.URL, lang *Language) Target {
	return Target{Url: u, Type: TargetLanguage, Language: lang}
}

func MakeTargetBook(u *url.URL, book *DownloadTarget) Target {
	return Target{Url: u, Type: TargetBook, Book: book}
}

func (t Target) MarshalJSON() ([]byte, error) {
	u := ""
	if t.Url != nil {
		u = t.Url.String()
	}

	return json.Marshal(struct {
		Url      string          `json:"url"`
		Type     string          `json:"type"`
		Language *Language       `json:"language,omitempty"`
		Book     *DownloadTarget `json:"book,omitempty"`
	}{
		Url:      u,
		Type:     t.Type.String(),
		Language: t.Language,
		Book:     t.Book,
	})
}
