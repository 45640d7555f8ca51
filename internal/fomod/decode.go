package fomod

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeFile reads an XML file and returns its content as UTF-8.
// FOMOD files in the wild come as UTF-8 (with or without BOM), UTF-16 or
// Windows-1252, so the bytes are sniffed before parsing.
func decodeFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	out, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return out, nil
}

func decode(raw []byte) ([]byte, error) {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	switch {
	case hasBOM(raw):
	case looksUTF16(raw, true):
		fallback = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case looksUTF16(raw, false):
		fallback = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case !utf8.Valid(raw):
		fallback = charmap.Windows1252.NewDecoder()
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hasBOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(b, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(b, []byte{0xFE, 0xFF})
}

// looksUTF16 detects a BOM-less UTF-16 document by its leading '<'
func looksUTF16(b []byte, little bool) bool {
	if len(b) < 2 {
		return false
	}
	if little {
		return b[0] == '<' && b[1] == 0
	}
	return b[0] == 0 && b[1] == '<'
}

// passthroughCharset is handed to the XML reader; content is already UTF-8
// by the time it is parsed, whatever the declaration claims.
func passthroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}
