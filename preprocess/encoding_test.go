package preprocess

import "testing"

func TestDecodeToUTF8PlainASCII(t *testing.T) {
	t.Parallel()

	got, err := decodeToUTF8([]byte("hello"), "")
	if err != nil {
		t.Fatalf("decodeToUTF8: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestDecodeToUTF8WithBOM(t *testing.T) {
	t.Parallel()

	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hi")...)
	got, err := decodeToUTF8(bom, "")
	if err != nil {
		t.Fatalf("decodeToUTF8: %v", err)
	}
	if got != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}

func TestDetectEncodingUTF16LEBOM(t *testing.T) {
	t.Parallel()

	content := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	found, enc := bomEncoding(content)
	if !found {
		t.Fatal("expected a BOM to be detected")
	}
	if enc == nil {
		t.Fatal("expected a non-nil encoding")
	}
}
