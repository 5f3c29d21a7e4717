package comicinfo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newDecoder strips byte order marks, transcodes UTF-16 input to UTF-8 and
// installs a charset reader for legacy encodings named in the declaration.
func newDecoder(data []byte) (*xml.Decoder, error) {
	transcoded := false
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		data = data[len(utf8BOM):]
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}), bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode utf-16: %w", err)
		}
		data = bytes.TrimPrefix(out, utf8BOM)
		transcoded = true
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		name := strings.ToLower(strings.TrimSpace(label))
		if transcoded && strings.HasPrefix(name, "utf-16") {
			return input, nil
		}
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return dec, nil
}
