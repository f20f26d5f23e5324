package web

import (
	"github.com/golang/geo/r3"

	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
	"github.com/stagecraft/scenecore/spatialmath"
)

// Request types sent by clients.
const (
	MessageDragStart         = "drag_start"
	MessageDragUpdate        = "drag_update"
	MessageDragEnd           = "drag_end"
	MessageRotate            = "rotate"
	MessageSetVertical       = "set_vertical"
	MessageTextBoxCreate     = "text_box_create"
	MessageTextBoxUpdate     = "text_box_update"
	MessageTextBoxDelete     = "text_box_delete"
	MessageTextBoxDragStart  = "text_box_drag_start"
	MessageTextBoxDragUpdate = "text_box_drag_update"
	MessageTextBoxDragEnd    = "text_box_drag_end"
	MessageUndo              = "undo"
	MessageRedo              = "redo"
	MessageState             = "state"
)

// Message types only sent by the server.
const (
	MessageError = "error"
	MessageScene = "scene"
)

// Request is a message from a client. Which fields are read depends on Type.
type Request struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	// Translation and Rotation are the cumulative gizmo offset of a drag, rotation in radians.
	Translation *[3]float64 `json:"translation,omitempty"`
	Rotation    *[3]float64 `json:"rotation,omitempty"`
	// Axis and Radians set one rotation axis.
	Axis    string  `json:"axis,omitempty"`
	Radians float64 `json:"radians,omitempty"`
	Enabled bool    `json:"enabled,omitempty"`
	// Position is where a text box is created; only X and Z are used.
	Position *[3]float64     `json:"position,omitempty"`
	Patch    *TextBoxPatchMsg `json:"patch,omitempty"`
}

// TextBoxPatchMsg is the wire form of a text box edit.
type TextBoxPatchMsg struct {
	Position              *[3]float64 `json:"position,omitempty"`
	Text                  *string     `json:"text,omitempty"`
	TextColor             *string     `json:"textColor,omitempty"`
	BackgroundColor       *string     `json:"backgroundColor,omitempty"`
	BackgroundTransparent *bool       `json:"backgroundTransparent,omitempty"`
	FontSize              *float64    `json:"fontSize,omitempty"`
}

func (p *TextBoxPatchMsg) patch() scene.TextBoxPatch {
	if p == nil {
		return scene.TextBoxPatch{}
	}
	out := scene.TextBoxPatch{
		Text:                  p.Text,
		TextColor:             p.TextColor,
		BackgroundColor:       p.BackgroundColor,
		BackgroundTransparent: p.BackgroundTransparent,
		FontSize:              p.FontSize,
	}
	if p.Position != nil {
		pos := vector(p.Position)
		out.Position = &pos
	}
	return out
}

func vector(v *[3]float64) r3.Vector {
	if v == nil {
		return r3.Vector{}
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

func euler(v *[3]float64) spatialmath.EulerAngles {
	if v == nil {
		return spatialmath.EulerAngles{}
	}
	return spatialmath.EulerAngles{Roll: v[0], Pitch: v[1], Yaw: v[2]}
}

// Response answers one request. Scene broadcasts use the same shape with Type "scene".
type Response struct {
	Type        string                    `json:"type"`
	ID          string                    `json:"id,omitempty"`
	Error       string                    `json:"error,omitempty"`
	Transform   *referenceframe.Transform `json:"transform,omitempty"`
	Position    *[3]float64               `json:"position,omitempty"`
	IsColliding bool                      `json:"isColliding,omitempty"`
	Applied     bool                      `json:"applied,omitempty"`
	Change      *scene.Change             `json:"change,omitempty"`
	TextBox     *scene.TextBox            `json:"textBox,omitempty"`
	State       *State                    `json:"state,omitempty"`
}

// ObjectState is an object with its gesture feedback.
type ObjectState struct {
	ID          string                   `json:"id"`
	Transform   referenceframe.Transform `json:"transform"`
	Bounds      *Bounds                  `json:"bounds,omitempty"`
	IsDragging  bool                     `json:"isDragging"`
	IsColliding bool                     `json:"isColliding"`
}

// Bounds is the wire form of a world bounding box.
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// State is everything a client needs to draw the scene.
type State struct {
	Objects           []ObjectState   `json:"objects"`
	TextBoxes         []scene.TextBox `json:"textBoxes"`
	VerticalMovement  bool            `json:"verticalMovement"`
	NavigationEnabled bool            `json:"navigationEnabled"`
	CanUndo           bool            `json:"canUndo"`
	CanRedo           bool            `json:"canRedo"`
}
