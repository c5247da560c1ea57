package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Plain title", want: "Plain title"},
		{in: "What? Where: When*", want: "What_ Where_ When_"},
		{in: `a/b\c|d"e<f>g`, want: "a_b_c_d_e_f_g"},
		{in: "  spaced \t  out  ", want: "spaced _ out"},
		{in: "Ends with dots...", want: "Ends with dots"},
		{in: "...", want: ""},
		{in: "Ünïcödé títle", want: "Ünïcödé títle"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}
}

func TestBookPath(t *testing.T) {
	assert.Equal(t, "/tmp/Book_ Two_.epub", BookPath("/tmp", "Book: Two?"))
	assert.Equal(t, "", BookPath("/tmp", " . "))
}

func TestAggregatePath(t *testing.T) {
	assert.Equal(t, "/tmp/AllEnglishEntries.opds", AggregatePath("/tmp", "English"))
}
