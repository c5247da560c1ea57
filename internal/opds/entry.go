package opds

import (
	"encoding/xml"
	"strings"

	"github.com/beevik/etree"
	"github.com/opds-community/libopds2-go/opds1"
)

// Entry is one publication record of a feed or of an Aggregate.
type Entry struct {
	el *etree.Element
}

func (e Entry) ID() (string, bool) {
	id := firstChild(e.el, "id")
	if id == nil {
		return "", false
	}

	return strings.TrimSpace(innerText(id)), true
}

// AuthorName returns text of the first name element found under the
// entry's direct author children.
func (e Entry) AuthorName() (string, bool) {
	for _, author := range e.el.ChildElements() {
		if !isAtom(author, "author") {
			continue
		}

		if name := firstChild(author, "name"); name != nil {
			return innerText(name), true
		}
	}

	return "", false
}

// Title returns the text of the entry's direct title child.
func (e Entry) Title() (string, bool) {
	title := firstChild(e.el, "title")
	if title == nil {
		return "", false
	}

	return innerText(title), true
}

// LinkByType returns href of the first direct link child with the given type.
func (e Entry) LinkByType(linkType string) (string, bool) {
	for _, link := range e.el.ChildElements() {
		if isAtom(link, "link") && link.SelectAttrValue("type", "") == linkType {
			return link.SelectAttrValue("href", ""), true
		}
	}

	return "", false
}

// XML serializes the entry markup.
func (e Entry) XML() (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(e.el.Copy())

	return doc.WriteToString()
}

// Decode gives the typed view of the entry.
func (e Entry) Decode() (*opds1.Entry, error) {
	s, err := e.XML()
	if err != nil {
		return nil, err
	}

	var entry opds1.Entry
	if err := xml.Unmarshal([]byte(s), &entry); err != nil {
		return nil, &MalformedFeedError{Err: err}
	}

	return &entry, nil
}

func firstChild(e *etree.Element, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if isAtom(c, tag) {
			return c
		}
	}

	return nil
}

func innerText(e *etree.Element) string {
	sb := strings.Builder{}

	var collect func(e *etree.Element)
	collect = func(e *etree.Element) {
		for _, t := range e.Child {
			switch t := t.(type) {
			case *etree.CharData:
				sb.WriteString(t.Data)
			case *etree.Element:
				collect(t)
			}
		}
	}
	collect(e)

	return sb.String()
}
