package fomod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func TestDecode(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("<a>Ünï</a>"))
	require.NoError(t, err)
	utf16NoBOM, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte("<a>x</a>"))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("<a>Ünï</a>"), "<a>Ünï</a>"},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("<a/>")...), "<a/>"},
		{"utf16 bom", utf16, "<a>Ünï</a>"},
		{"utf16 without bom", utf16NoBOM, "<a>x</a>"},
		{"windows-1252", []byte("<a>caf\xe9</a>"), "<a>café</a>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
