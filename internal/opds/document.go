package opds

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

const (
	NamespaceAtom = "http://www.w3.org/2005/Atom"
	NamespaceOPDS = "http://opds-spec.org/2010/catalog"
	NamespaceDC   = "http://purl.org/dc/terms/"
	NamespaceLRMI = "http://purl.org/dcx/lrmi-terms/"

	RelFirst = "first"
	RelNext  = "next"
	RelStart = "start"
	RelSelf  = "self"

	TypeEpub = "application/epub+zip"
)

var regHrefLanguageRoot = regexp.MustCompile(`/([^/]+)/root\.xml`)

// Document is a parsed feed. It is never mutated by the query methods,
// so one Document may be shared between sequential callers.
type Document struct {
	doc *etree.Document
}

// Parse turns raw feed text into a Document.
func Parse(text string, l *slog.Logger) (*Document, error) {
	doc := etree.NewDocument()

	err := doc.ReadFromBytes(removeDisallowedCodepoints([]byte(text), l))
	if err != nil {
		return nil, &MalformedFeedError{Err: err}
	}

	if doc.Root() == nil {
		return nil, &MalformedFeedError{Err: errors.New("no root element")}
	}

	return &Document{doc: doc}, nil
}

// FindLanguageLink returns href of the first link anywhere in the document
// pointing to the root feed of the given language.
func (d *Document) FindLanguageLink(code string) (string, bool) {
	needle := "/" + code + "/root.xml"

	link := findFirst(d.doc.Root(), func(e *etree.Element) bool {
		return isAtom(e, "link") && strings.Contains(e.SelectAttrValue("href", ""), needle)
	})
	if link == nil {
		return "", false
	}

	return link.SelectAttrValue("href", ""), true
}

// FindRelLink returns href of the first link directly under the feed root
// whose rel attribute contains rel. Links without href are not considered.
func (d *Document) FindRelLink(rel string) (string, bool) {
	for _, e := range d.doc.Root().ChildElements() {
		if !isAtom(e, "link") {
			continue
		}

		attr := e.SelectAttr("rel")
		if attr == nil || !strings.Contains(attr.Value, rel) {
			continue
		}

		if href := e.SelectAttrValue("href", ""); href != "" {
			return href, true
		}
	}

	return "", false
}

// Entries returns entry elements directly under the document root, in document order.
func (d *Document) Entries() []Entry {
	var ret []Entry

	for _, e := range d.doc.Root().ChildElements() {
		if isAtom(e, "entry") {
			ret = append(ret, Entry{el: e})
		}
	}

	return ret
}

// LanguageCodes lists codes of every language root feed linked from the
// document. Links to the document itself (start and self) are not languages.
func (d *Document) LanguageCodes() []string {
	var ret []string
	seen := make(map[string]struct{})

	walk(d.doc.Root(), func(e *etree.Element) bool {
		if !isAtom(e, "link") || hasRelToken(e, RelStart) || hasRelToken(e, RelSelf) {
			return false
		}

		s := regHrefLanguageRoot.FindStringSubmatch(e.SelectAttrValue("href", ""))
		if len(s) == 0 {
			return false
		}

		if _, ok := seen[s[1]]; !ok {
			seen[s[1]] = struct{}{}
			ret = append(ret, s[1])
		}

		return false
	})

	return ret
}

func hasRelToken(e *etree.Element, rel string) bool {
	for _, token := range strings.Fields(e.SelectAttrValue("rel", "")) {
		if token == rel {
			return true
		}
	}

	return false
}

func isAtom(e *etree.Element, tag string) bool {
	if e.Tag != tag {
		return false
	}

	ns := e.NamespaceURI()
	return ns == "" || ns == NamespaceAtom
}

// walk visits e and its descendants in document order until visit returns true.
func walk(e *etree.Element, visit func(e *etree.Element) bool) bool {
	if visit(e) {
		return true
	}

	for _, c := range e.ChildElements() {
		if walk(c, visit) {
			return true
		}
	}

	return false
}

func findFirst(e *etree.Element, match func(e *etree.Element) bool) *etree.Element {
	var ret *etree.Element

	walk(e, func(e *etree.Element) bool {
		if match(e) {
			ret = e
			return true
		}

		return false
	})

	return ret
}
