package preprocess

import "bytes"

// bytesReader is a tiny helper so call sites read cleanly as
// goquery.NewDocumentFromReader(bytesReader(doc)) instead of repeating
// bytes.NewReader at each call site.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
