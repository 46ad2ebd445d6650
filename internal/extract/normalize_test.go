package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		ending LineEnding
		want   string
	}{
		{name: "smart quotes", in: "“Hello” ‘world’", want: `"Hello" 'world'`},
		{name: "dashes and ellipsis", in: "a–b—c…", want: "a-b-c..."},
		{name: "accents folded", in: "José Müller façade", want: "Jose Muller facade"},
		{name: "nbsp and bullets", in: "• item", want: "* item"},
		{name: "controls stripped", in: "a\x00b\x07c\u200bd\te", want: "abcd\te"},
		{name: "crlf input to lf", in: "a\r\nb\rc", want: "a\nb\nc"},
		{name: "lf to crlf", in: "a\nb", ending: CRLF, want: "a\r\nb"},
		{name: "ligature", in: "ﬁle", want: "file"},
		{name: "emoji dropped", in: "ok 👍", want: "ok "},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Normalizer{LineEnding: tt.ending}.Normalize(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLineEnding(t *testing.T) {
	assert.Equal(t, CRLF, ParseLineEnding(" CRLF "))
	assert.Equal(t, LF, ParseLineEnding(""))
	assert.Equal(t, LF, ParseLineEnding("bogus"))
}
