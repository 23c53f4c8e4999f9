// Package convert implements C5 of the specification: the conversion
// state machine that drives one DevTools Session through navigate → wait
// → (optional script) → printToPDF → stream-read.
package convert

import (
	"fmt"
	"math"
)

// Orientation is the page orientation.
type Orientation int

// Orientation values.
const (
	Portrait Orientation = iota
	Landscape
)

// PaperFormat is one of the named paper sizes spec §3 enumerates, or
// FitPageToContent which defers sizing to the fit-page-to-content
// pre-processor pass.
type PaperFormat int

// PaperFormat values.
const (
	FormatCustom PaperFormat = iota
	FormatLetter
	FormatLegal
	FormatTabloid
	FormatLedger
	FormatA0
	FormatA1
	FormatA2
	FormatA3
	FormatA4
	FormatA5
	FormatA6
	FormatFitPageToContent
)

// mmToInch rounds a millimeter dimension to inches at 6 decimal places,
// per spec §4.5's numeric policy for the ISO 216 series.
func mmToInch(mm float64) float64 {
	return math.Round(mm/25.4*1e6) / 1e6
}

// paperDimensions returns the (width, height) in inches for every format
// except FormatCustom and FormatFitPageToContent, which have no intrinsic
// dimensions.
func paperDimensions(f PaperFormat) (width, height float64, ok bool) {
	switch f {
	case FormatLetter:
		return 8.5, 11, true
	case FormatLegal:
		return 8.5, 14, true
	case FormatTabloid:
		return 11, 17, true
	case FormatLedger:
		return 17, 11, true
	case FormatA0:
		return mmToInch(841), mmToInch(1189), true
	case FormatA1:
		return mmToInch(594), mmToInch(841), true
	case FormatA2:
		return mmToInch(420), mmToInch(594), true
	case FormatA3:
		return mmToInch(297), mmToInch(420), true
	case FormatA4:
		return mmToInch(210), mmToInch(297), true
	case FormatA5:
		return mmToInch(148), mmToInch(210), true
	case FormatA6:
		return mmToInch(105), mmToInch(148), true
	default:
		return 0, 0, false
	}
}

// PageSettings is spec §3's PageSettings: print geometry and options, 1:1
// with Page.printToPDF's parameters.
type PageSettings struct {
	Orientation Orientation
	PaperFormat PaperFormat

	// PaperWidth, PaperHeight are in inches. Ignored (and recomputed by
	// Resolve) when PaperFormat is anything but FormatCustom.
	PaperWidth  float64
	PaperHeight float64

	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64

	Scale float64

	PrintBackground bool
	// Transparent removes the default white page background instead of
	// painting it (SPEC_FULL §5 supplement).
	Transparent bool

	DisplayHeaderFooter bool
	HeaderTemplate      string
	FooterTemplate      string

	PageRanges             string
	IgnoreInvalidPageRanges bool

	PreferCSSPageSize bool
	GenerateTaggedPDF bool
	GenerateOutline   bool

	// MHTML requests an additional Page.captureSnapshot(format=mhtml)
	// before printing (SPEC_FULL §5 supplement; spec §4.5's "optional
	// capture").
	MHTML bool
}

// DefaultPageSettings mirrors Chrome's own printToPDF defaults.
func DefaultPageSettings() PageSettings {
	return PageSettings{
		PaperFormat:     FormatLetter,
		MarginTop:       0.4,
		MarginBottom:    0.4,
		MarginLeft:      0.4,
		MarginRight:     0.4,
		Scale:           1,
		PrintBackground: false,
	}
}

// Resolve fills in PaperWidth/PaperHeight from PaperFormat (when it names
// a concrete size) and validates every invariant in spec §3. When
// PaperFormat and explicit dimensions are both supplied, PaperFormat wins
// (spec §4.5's tie-break, confirming the Open Question in spec §9).
func (p *PageSettings) Resolve() error {
	if p.PaperFormat == FormatFitPageToContent {
		p.PreferCSSPageSize = true
		p.PaperWidth = 0
		p.PaperHeight = 0
	} else if w, h, ok := paperDimensions(p.PaperFormat); ok {
		p.PaperWidth, p.PaperHeight = w, h
	}

	if p.PaperFormat != FormatFitPageToContent {
		if p.PaperWidth <= 0 || p.PaperHeight <= 0 {
			return fmt.Errorf("convert: paper dimensions must be > 0, got %gx%g", p.PaperWidth, p.PaperHeight)
		}
	}

	if p.MarginTop < 0 || p.MarginBottom < 0 || p.MarginLeft < 0 || p.MarginRight < 0 {
		return fmt.Errorf("convert: margins must be >= 0")
	}
	if p.PaperFormat != FormatFitPageToContent {
		if p.MarginTop+p.MarginBottom >= p.PaperHeight {
			return fmt.Errorf("convert: top+bottom margins (%g) must be < height (%g)", p.MarginTop+p.MarginBottom, p.PaperHeight)
		}
		if p.MarginLeft+p.MarginRight >= p.PaperWidth {
			return fmt.Errorf("convert: left+right margins (%g) must be < width (%g)", p.MarginLeft+p.MarginRight, p.PaperWidth)
		}
	}

	if p.Scale <= 0 || p.Scale > 10 {
		return fmt.Errorf("convert: scale must be in (0, 10], got %g", p.Scale)
	}

	return nil
}

// landscape reports the orientation as Page.printToPDF expects it.
func (p *PageSettings) landscape() bool {
	return p.Orientation == Landscape
}
