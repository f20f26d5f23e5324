package scene

import (
	"encoding/json"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/stagecraft/scenecore/referenceframe"
)

// Text box defaults.
const (
	DefaultFontSize        = 16.0
	DefaultTextColor       = "#000000"
	DefaultBackgroundColor = "#ffffff"
	// DefaultTextBoxY keeps new annotations just above the ground.
	DefaultTextBoxY = 0.1
)

// TextBox is a 2D text annotation placed in the scene. Only the position, text and font size matter for
// collision; the rest is presentation.
type TextBox struct {
	ID                    string    `json:"id"`
	Position              r3.Vector `json:"-"`
	Text                  string    `json:"text"`
	TextColor             string    `json:"textColor"`
	BackgroundColor       string    `json:"backgroundColor"`
	BackgroundTransparent bool      `json:"backgroundTransparent"`
	FontSize              float64   `json:"fontSize"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// NewTextBox returns an empty text box with a fresh id and default styling at position, created at now.
func NewTextBox(position r3.Vector, now time.Time) TextBox {
	tb := TextBox{
		ID:              uuid.NewString(),
		Position:        position,
		TextColor:       DefaultTextColor,
		BackgroundColor: DefaultBackgroundColor,
		FontSize:        DefaultFontSize,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return tb.Normalized()
}

// Normalized fills missing style attributes with their defaults and keeps the box on or above the ground.
func (tb TextBox) Normalized() TextBox {
	if tb.FontSize <= 0 || math.IsNaN(tb.FontSize) || math.IsInf(tb.FontSize, 0) {
		tb.FontSize = DefaultFontSize
	}
	if tb.TextColor == "" {
		tb.TextColor = DefaultTextColor
	}
	if tb.BackgroundColor == "" {
		tb.BackgroundColor = DefaultBackgroundColor
	}
	tb.Position.Y = math.Max(tb.Position.Y, 0)
	return tb
}

// TextBoxPatch is a partial update of a text box. Nil fields are left unchanged.
type TextBoxPatch struct {
	Position              *r3.Vector
	Text                  *string
	TextColor             *string
	BackgroundColor       *string
	BackgroundTransparent *bool
	FontSize              *float64
}

// Apply returns tb with the patch applied and normalized.
func (p TextBoxPatch) Apply(tb TextBox) TextBox {
	if p.Position != nil {
		tb.Position = *p.Position
	}
	if p.Text != nil {
		tb.Text = *p.Text
	}
	if p.TextColor != nil {
		tb.TextColor = *p.TextColor
	}
	if p.BackgroundColor != nil {
		tb.BackgroundColor = *p.BackgroundColor
	}
	if p.BackgroundTransparent != nil {
		tb.BackgroundTransparent = *p.BackgroundTransparent
	}
	if p.FontSize != nil {
		tb.FontSize = *p.FontSize
	}
	return tb.Normalized()
}

// Geometric reports whether the patch changes anything that affects collision.
func (p TextBoxPatch) Geometric() bool {
	return p.Position != nil || p.Text != nil || p.FontSize != nil
}

type textBoxAlias TextBox

type textBoxJSON struct {
	textBoxAlias
	Position [3]float64 `json:"position"`
}

// MarshalJSON encodes the position as an [x, y, z] array.
func (tb TextBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(textBoxJSON{textBoxAlias: textBoxAlias(tb), Position: referenceframe.Vector3(tb.Position)})
}

// UnmarshalJSON decodes a text box with an [x, y, z] position.
func (tb *TextBox) UnmarshalJSON(data []byte) error {
	var raw textBoxJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "cannot decode text box")
	}
	*tb = TextBox(raw.textBoxAlias)
	tb.Position = r3.Vector{X: raw.Position[0], Y: raw.Position[1], Z: raw.Position[2]}
	return nil
}
