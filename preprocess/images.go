package preprocess

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

// ImageFetcher retrieves a remote or local resource and reports whether
// the response was served from cache. Satisfied by the C7 cache's
// Fetch method; kept as a narrow interface here so preprocess does not
// import the cache package directly.
type ImageFetcher interface {
	Fetch(url string, headers map[string]string) (data []byte, cached bool, err error)
}

// ImageOptions controls the image-validate pass (spec §4.6).
type ImageOptions struct {
	BaseURL       string
	Blacklist     []string // glob patterns; BaseURL is always implicitly allowed
	MaxWidthPx    int      // 0 disables downscaling
	RequestHeaders map[string]string
}

// ValidateImages rewrites every <img src> in the document at uri: remote
// or local image sources not covered by Blacklist are fetched through
// fetcher, EXIF-rotated if a JPEG orientation tag requests it, downscaled
// to MaxWidthPx if larger, and saved to tempDir; the <img> tag's src is
// then rewritten to the local file:// URI. Blacklisted sources are left
// untouched (the browser will attempt to load them directly, and fail
// per the page's own error handling, same as any other broken <img>).
func ValidateImages(uri string, fetcher ImageFetcher, opts ImageOptions, tempDir string) (string, bool, error) {
	path := filePath(uri)
	if path == "" {
		return uri, false, fmt.Errorf("preprocess: image-validate requires a local file URI, got %q", uri)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: image-validate read: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytesReader(raw))
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: image-validate parse: %w", err)
	}

	changed := false
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" || !isAllowed(src, opts) {
			return
		}
		local, err := fetchAndRewriteImage(src, fetcher, opts, tempDir)
		if err != nil {
			// A broken image should not fail the whole conversion;
			// leave the original src so the browser renders its own
			// broken-image placeholder.
			return
		}
		s.SetAttr("src", local)
		changed = true
	})

	if !changed {
		return uri, false, nil
	}

	html, err := doc.Html()
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: image-validate render: %w", err)
	}
	out := filepath.Join(tempDir, uuid.NewString()+".html")
	if err := os.WriteFile(out, []byte(html), 0o600); err != nil {
		return uri, false, fmt.Errorf("preprocess: image-validate write: %w", err)
	}
	return "file://" + out, true, nil
}

// isAllowed reports whether src is cleared to be fetched and rewritten:
// the document's own base URL is always allowed; anything else is
// allowed unless it glob-matches one of the blacklist patterns, in
// which case the image is left alone and the browser loads (or fails
// to load) it directly.
func isAllowed(src string, opts ImageOptions) bool {
	if opts.BaseURL != "" && strings.HasPrefix(src, opts.BaseURL) {
		return true
	}
	for _, pattern := range opts.Blacklist {
		if ok, _ := path.Match(pattern, src); ok {
			return false
		}
	}
	return true
}

func fetchAndRewriteImage(src string, fetcher ImageFetcher, opts ImageOptions, tempDir string) (string, error) {
	data, _, err := fetcher.Fetch(src, opts.RequestHeaders)
	if err != nil {
		return "", fmt.Errorf("preprocess: image fetch %s: %w", src, err)
	}

	data = applyEXIFOrientation(data)

	if opts.MaxWidthPx > 0 {
		if resized, ok := downscale(data, opts.MaxWidthPx); ok {
			data = resized
		}
	}

	ext := extFor(data)
	out := filepath.Join(tempDir, uuid.NewString()+ext)
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return "", fmt.Errorf("preprocess: image write: %w", err)
	}
	return "file://" + out, nil
}

func extFor(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return ".jpg"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return ".png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return ".gif"
	default:
		return ".bin"
	}
}

// downscale shrinks data to maxWidth if it decodes as an image wider
// than that, preserving aspect ratio. It returns ok=false (leaving data
// untouched) for formats it cannot decode or re-encode, or if the image
// is already narrow enough.
func downscale(data []byte, maxWidth int) ([]byte, bool) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return nil, false
	}
	newH := b.Dy() * maxWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	case "png":
		err = png.Encode(&buf, dst)
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// applyEXIFOrientation rotates JPEG pixel data according to the Exif
// Orientation tag, if present: values 3, 6 and 8 are rotated; the
// mirrored values (2, 4, 5, 7) are not flipped and leave the pixels as
// they are. There is no EXIF
// library anywhere in the dependency corpus this module was grounded
// on, so this is a minimal hand-rolled TIFF-IFD walk limited to the
// single tag this pass needs; any parse failure is treated as
// orientation=1 (no-op) rather than an error, since a missing or
// malformed EXIF block is not a reason to drop the image.
func applyEXIFOrientation(data []byte) []byte {
	orientation := exifOrientation(data)
	if orientation <= 1 {
		return data
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil || format != "jpeg" {
		return data
	}
	rotated := rotateByOrientation(img, orientation)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rotated, &jpeg.Options{Quality: 92}); err != nil {
		return data
	}
	return buf.Bytes()
}

func rotateByOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 3:
		return rotate180(img)
	case 6:
		return rotate90CW(img)
	case 8:
		return rotate90CCW(img)
	default:
		return img
	}
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

func rotate90CW(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x, img.At(x, y))
		}
	}
	return dst
}

func rotate90CCW(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y, b.Max.X-1-x, img.At(x, y))
		}
	}
	return dst
}

// exifOrientation walks the minimal JPEG APP1/Exif/TIFF IFD0 structure
// to find tag 0x0112 (Orientation). It returns 1 (normal) for anything
// it cannot parse.
func exifOrientation(data []byte) int {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 1
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			break
		}
		marker := data[i+1]
		if marker == 0xD8 || marker == 0xD9 {
			i += 2
			continue
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if marker == 0xE1 && i+4+segLen <= len(data) {
			seg := data[i+4 : i+4+segLen]
			if o, ok := parseExifSegment(seg); ok {
				return o
			}
		}
		i += 2 + segLen
	}
	return 1
}

func parseExifSegment(seg []byte) (int, bool) {
	if len(seg) < 10 || string(seg[:6]) != "Exif\x00\x00" {
		return 0, false
	}
	tiff := seg[6:]
	if len(tiff) < 8 {
		return 0, false
	}
	var bo binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return 0, false
	}
	ifdOffset := bo.Uint32(tiff[4:8])
	if int(ifdOffset)+2 > len(tiff) {
		return 0, false
	}
	n := bo.Uint16(tiff[ifdOffset : ifdOffset+2])
	entryStart := int(ifdOffset) + 2
	for j := 0; j < int(n); j++ {
		off := entryStart + j*12
		if off+12 > len(tiff) {
			break
		}
		tag := bo.Uint16(tiff[off : off+2])
		if tag == 0x0112 {
			typ := bo.Uint16(tiff[off+2 : off+4])
			if typ != 3 { // SHORT
				return 0, false
			}
			val := bo.Uint16(tiff[off+8 : off+10])
			return int(val), true
		}
	}
	return 0, false
}
