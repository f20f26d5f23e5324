package collision

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/golang/geo/r3"

	"github.com/stagecraft/scenecore/spatialmath"
)

// Layout metrics of a rendered text annotation, in CSS pixels unless noted.
const (
	PixelsPerUnit       = 100.0
	charWidthEm         = 0.6
	lineHeightEm        = 1.2
	horizontalPaddingPx = 56.0
	verticalPaddingPx   = 24.0
	minWidthPx          = 150.0
	maxWidthPx          = 400.0
	// TextProxyDepth is the thickness of a text proxy in world units.
	TextProxyDepth = 0.1
)

// TextProxySize returns the world extents of the panel a text annotation occupies. Lines wrap once the panel
// reaches its maximum width; explicit newlines start new lines.
func TextProxySize(fontSize float64, text string) r3.Vector {
	if fontSize <= 0 || !isFiniteSize(fontSize) {
		fontSize = 16
	}
	charWidth := charWidthEm * fontSize
	contentMax := maxWidthPx - horizontalPaddingPx
	charsPerLine := math.Max(1, math.Floor(contentMax/charWidth))

	widestPx := 0.0
	lines := 0
	for _, paragraph := range strings.Split(text, "\n") {
		n := float64(utf8.RuneCountInString(paragraph))
		if n == 0 {
			lines++
			continue
		}
		wrapped := math.Ceil(n / charsPerLine)
		lines += int(wrapped)
		widestPx = math.Max(widestPx, math.Min(n, charsPerLine)*charWidth)
	}

	widthPx := math.Min(math.Max(widestPx+horizontalPaddingPx, minWidthPx), maxWidthPx)
	heightPx := float64(lines)*lineHeightEm*fontSize + verticalPaddingPx
	return r3.Vector{X: widthPx / PixelsPerUnit, Y: heightPx / PixelsPerUnit, Z: TextProxyDepth}
}

func isFiniteSize(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NewTextProxy synthesizes the box standing in for a text annotation, centered on the annotation's position.
// Proxies are never cached since the text and font size can change between calls.
func NewTextProxy(fontSize float64, text string) *spatialmath.Model {
	mesh, err := spatialmath.NewBoxMesh(TextProxySize(fontSize, text), "text")
	if err != nil {
		// sizes are clamped positive
		return spatialmath.NewModel("text")
	}
	return spatialmath.NewModel("text", mesh)
}
