// Package preprocess implements C6 of the specification: the document
// pre-processor that optionally pre-wraps plain text, sanitizes HTML,
// injects fit-page-to-content styling, and validates/rewrites images
// before handing a local HTML file to the browser.
package preprocess

import (
	"bytes"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// detectEncoding returns the text encoding of content: a BOM, if present,
// wins; otherwise golang.org/x/net/html/charset's statistical prober
// runs; UTF-8 is the final fallback (spec §4.6).
func detectEncoding(content []byte) encoding.Encoding {
	if bom, enc := bomEncoding(content); bom {
		return enc
	}
	_, name, _ := charset.DetermineEncoding(content, "")
	if enc, _ := charset.Lookup(name); enc != nil {
		return enc
	}
	return unicode.UTF8
}

func bomEncoding(content []byte) (bool, encoding.Encoding) {
	switch {
	case bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}):
		return true, unicode.UTF8BOM
	case bytes.HasPrefix(content, []byte{0xFF, 0xFE}):
		return true, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case bytes.HasPrefix(content, []byte{0xFE, 0xFF}):
		return true, unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	default:
		return false, nil
	}
}

// decodeToUTF8 transcodes content from its detected (or hinted) encoding
// into UTF-8 text.
func decodeToUTF8(content []byte, hint string) (string, error) {
	var enc encoding.Encoding
	if hint != "" {
		if e, _ := charset.Lookup(hint); e != nil {
			enc = e
		}
	}
	if enc == nil {
		enc = detectEncoding(content)
	}

	reader := transform.NewReader(bytes.NewReader(content), enc.NewDecoder())
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}
