package opds

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opdsgrab/internal/types"
)

var english = types.Language{Code: "en", Name: "English"}

func entryXMLs(t *testing.T, entries []Entry) []string {
	t.Helper()

	ret := make([]string, 0, len(entries))
	for _, e := range entries {
		s, err := e.XML()
		require.NoError(t, err)
		ret = append(ret, s)
	}

	return ret
}

func TestAggregatePreservesOrder(t *testing.T) {
	p1 := mustParse(t, `<feed xmlns="http://www.w3.org/2005/Atom"><entry><id>A</id></entry><entry><id>B</id></entry></feed>`)
	p2 := mustParse(t, `<feed xmlns="http://www.w3.org/2005/Atom"><entry><id>C</id></entry><entry><id>D</id></entry></feed>`)

	agg := NewAggregate(english)
	for _, p := range []*Document{p1, p2} {
		for _, e := range p.Entries() {
			agg.Append(e)
		}
	}

	assert.Equal(t, 4, agg.Len())
	assert.Equal(t, []string{
		`<entry><id>A</id></entry>`,
		`<entry><id>B</id></entry>`,
		`<entry><id>C</id></entry>`,
		`<entry><id>D</id></entry>`,
	}, entryXMLs(t, agg.Entries()))
}

func TestAggregateKeepsDuplicates(t *testing.T) {
	p := mustParse(t, `<feed xmlns="http://www.w3.org/2005/Atom"><entry><id>A</id></entry></feed>`)

	agg := NewAggregate(english)
	agg.Append(p.Entries()[0])
	agg.Append(p.Entries()[0])

	assert.Equal(t, 2, agg.Len())
}

func TestAggregateStripsDefaultNamespace(t *testing.T) {
	p := mustParse(t, `<feed xmlns="http://www.w3.org/2005/Atom">`+
		`<entry xmlns="http://www.w3.org/2005/Atom" xml:lang="en">`+
		`<title>A</title>`+
		`<author xmlns="http://www.w3.org/2005/Atom"><name>Jane Doe</name></author>`+
		`<content type="xhtml"><div xmlns="http://www.w3.org/1999/xhtml"><p>Text</p></div></content>`+
		`</entry></feed>`)

	agg := NewAggregate(english)
	agg.Append(p.Entries()[0])

	assert.Equal(t, []string{
		`<entry><title>A</title>` +
			`<author><name>Jane Doe</name></author>` +
			`<content type="xhtml"><div xmlns="http://www.w3.org/1999/xhtml"><p>Text</p></div></content>` +
			`</entry>`,
	}, entryXMLs(t, agg.Entries()))

	name, ok := agg.Entries()[0].AuthorName()
	assert.True(t, ok)
	assert.Equal(t, "Jane Doe", name)
}

func TestAggregateNamespacePrefixes(t *testing.T) {
	p := mustParse(t, `<feed xmlns="http://www.w3.org/2005/Atom" xmlns:dc="http://purl.org/dc/terms/" xmlns:schema="http://schema.org/">`+
		`<entry><dc:issued>2017</dc:issued><schema:pages>12</schema:pages></entry>`+
		`</feed>`)

	agg := NewAggregate(english)
	agg.Append(p.Entries()[0])

	// dc is declared by the aggregate root, schema is not
	assert.Equal(t, []string{
		`<entry xmlns:schema="http://schema.org/"><dc:issued>2017</dc:issued><schema:pages>12</schema:pages></entry>`,
	}, entryXMLs(t, agg.Entries()))
}

func TestAggregateWriteTo(t *testing.T) {
	p := mustParse(t, `<feed xmlns="http://www.w3.org/2005/Atom"><entry><title>A</title></entry><entry><title>B</title></entry></feed>`)

	agg := NewAggregate(english)
	for _, e := range p.Entries() {
		agg.Append(e)
	}

	var buf bytes.Buffer
	_, err := agg.WriteTo(&buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, `<digitallibrary lang="en" xmlns:lrmi="http://purl.org/dcx/lrmi-terms/" xmlns:opds="http://opds-spec.org/2010/catalog" xmlns:dc="http://purl.org/dc/terms/" xmlns="http://www.w3.org/2005/Atom">`)

	reread := mustParse(t, out)
	assert.Len(t, reread.Entries(), 2)
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewAggregate(english)

	assert.Equal(t, 0, agg.Len())
	assert.Empty(t, agg.Entries())

	bs, err := agg.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(bs), `<digitallibrary lang="en"`)
}
