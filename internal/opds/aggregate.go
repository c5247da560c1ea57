package opds

import (
	"io"

	"github.com/beevik/etree"

	"opdsgrab/internal/types"
)

// Aggregate collects entries of every page of one language feed under a
// single synthetic root. Entries are only ever appended.
type Aggregate struct {
	Language types.Language
	doc      *Document
}

func NewAggregate(lang types.Language) *Aggregate {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("digitallibrary")
	root.CreateAttr("lang", lang.Code)
	root.CreateAttr("xmlns:lrmi", NamespaceLRMI)
	root.CreateAttr("xmlns:opds", NamespaceOPDS)
	root.CreateAttr("xmlns:dc", NamespaceDC)
	root.CreateAttr("xmlns", NamespaceAtom)

	return &Aggregate{Language: lang, doc: &Document{doc: doc}}
}

// Append copies the markup inside entry into a new entry element of the
// aggregate. Default namespace declarations binding the Atom namespace are
// dropped from the copy, the aggregate root already declares it.
func (a *Aggregate) Append(entry Entry) {
	c := entry.el.Copy()
	c.Space = ""
	c.Tag = "entry"
	c.Attr = nil

	stripDefaultNamespace(c, NamespaceAtom)

	// prefixes bound on the source feed root, the aggregate root may not know them
	root := a.doc.doc.Root()
	for _, ns := range usedNamespaces(entry.el) {
		if root.SelectAttrValue("xmlns:"+ns.prefix, "") != ns.uri {
			c.CreateAttr("xmlns:"+ns.prefix, ns.uri)
		}
	}

	root.AddChild(c)
}

func (a *Aggregate) Entries() []Entry {
	return a.doc.Entries()
}

func (a *Aggregate) Len() int {
	return len(a.doc.Entries())
}

func (a *Aggregate) WriteTo(w io.Writer) (int64, error) {
	return a.doc.doc.WriteTo(w)
}

func (a *Aggregate) Bytes() ([]byte, error) {
	return a.doc.doc.WriteToBytes()
}

type prefixBinding struct {
	prefix string
	uri    string
}

// usedNamespaces lists prefixes referenced inside e that are bound outside
// of it, together with the namespace they resolve to. Declarations made on
// descendants of e travel with the copy and are not reported.
func usedNamespaces(e *etree.Element) []prefixBinding {
	var ret []prefixBinding
	seen := make(map[string]struct{})

	var visit func(el *etree.Element, local map[string]struct{})
	visit = func(el *etree.Element, local map[string]struct{}) {
		if el != e {
			for _, attr := range el.Attr {
				if attr.Space != "xmlns" {
					continue
				}

				scoped := make(map[string]struct{}, len(local)+1)
				for k := range local {
					scoped[k] = struct{}{}
				}
				scoped[attr.Key] = struct{}{}
				local = scoped
			}
		}

		add := func(prefix, uri string) {
			if prefix == "" || prefix == "xmlns" || prefix == "xml" || uri == "" {
				return
			}

			if _, ok := local[prefix]; ok {
				return
			}

			if _, ok := seen[prefix]; ok {
				return
			}

			seen[prefix] = struct{}{}
			ret = append(ret, prefixBinding{prefix: prefix, uri: uri})
		}

		add(el.Space, el.NamespaceURI())
		for i := range el.Attr {
			add(el.Attr[i].Space, el.Attr[i].NamespaceURI())
		}

		for _, c := range el.ChildElements() {
			visit(c, local)
		}
	}
	visit(e, nil)

	return ret
}

func stripDefaultNamespace(e *etree.Element, ns string) {
	kept := e.Attr[:0:0]
	for _, attr := range e.Attr {
		if attr.Space == "" && attr.Key == "xmlns" && attr.Value == ns {
			continue
		}

		kept = append(kept, attr)
	}
	e.Attr = kept

	for _, c := range e.ChildElements() {
		stripDefaultNamespace(c, ns)
	}
}
