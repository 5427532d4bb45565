// Package flow holds the node and edge model of a flow diagram and the
// change records that mutate it.
//
// Collections are plain ordered slices. Their order is the render and
// z-order, and it is the order "add" indexes refer to. The only way a
// collection changes shape is ApplyNodeChanges / ApplyEdgeChanges, which
// never mutate their inputs.
package flow

// XYPosition is a point in flow coordinates
type XYPosition struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Dimensions is a width/height pair
type Dimensions struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Viewport is the pan/zoom transform of the canvas
type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

// DefaultViewport is the identity transform
var DefaultViewport = Viewport{Zoom: 1}

// Position is the side of a node a handle sits on
type Position string

const (
	PositionTop    Position = "top"
	PositionRight  Position = "right"
	PositionBottom Position = "bottom"
	PositionLeft   Position = "left"
)

// HandleType distinguishes connection sources from targets
type HandleType string

const (
	HandleSource HandleType = "source"
	HandleTarget HandleType = "target"
)

// Handle is a connection point on a node
type Handle struct {
	ID       string     `json:"id,omitempty" yaml:"id,omitempty"`
	Position Position   `json:"position" yaml:"position"`
	X        float64    `json:"x" yaml:"x"`
	Y        float64    `json:"y" yaml:"y"`
	Width    float64    `json:"width,omitempty" yaml:"width,omitempty"`
	Height   float64    `json:"height,omitempty" yaml:"height,omitempty"`
	Type     HandleType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Data is the user payload attached to a node or edge
type Data map[string]any

// Node is a member of the node collection.
//
// Tri-state flags (Draggable, Selectable, Connectable, Deletable) are
// pointers: nil means the library default, which is true.
type Node struct {
	ID             string      `json:"id" yaml:"id"`
	Position       XYPosition  `json:"position" yaml:"position"`
	Data           Data        `json:"data" yaml:"data"`
	Type           string      `json:"type,omitempty" yaml:"type,omitempty"`
	SourcePosition Position    `json:"sourcePosition,omitempty" yaml:"sourcePosition,omitempty"`
	TargetPosition Position    `json:"targetPosition,omitempty" yaml:"targetPosition,omitempty"`
	Hidden         bool        `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Selected       bool        `json:"selected,omitempty" yaml:"selected,omitempty"`
	Dragging       bool        `json:"dragging,omitempty" yaml:"dragging,omitempty"`
	Resizing       bool        `json:"resizing,omitempty" yaml:"resizing,omitempty"`
	Draggable      *bool       `json:"draggable,omitempty" yaml:"draggable,omitempty"`
	Selectable     *bool       `json:"selectable,omitempty" yaml:"selectable,omitempty"`
	Connectable    *bool       `json:"connectable,omitempty" yaml:"connectable,omitempty"`
	Deletable      *bool       `json:"deletable,omitempty" yaml:"deletable,omitempty"`
	DragHandle     string      `json:"dragHandle,omitempty" yaml:"dragHandle,omitempty"`
	Width          *float64    `json:"width,omitempty" yaml:"width,omitempty"`
	Height         *float64    `json:"height,omitempty" yaml:"height,omitempty"`
	InitialWidth   *float64    `json:"initialWidth,omitempty" yaml:"initialWidth,omitempty"`
	InitialHeight  *float64    `json:"initialHeight,omitempty" yaml:"initialHeight,omitempty"`
	ParentID       string      `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	ZIndex         int         `json:"zIndex,omitempty" yaml:"zIndex,omitempty"`
	Extent         string      `json:"extent,omitempty" yaml:"extent,omitempty"`
	ExpandParent   bool        `json:"expandParent,omitempty" yaml:"expandParent,omitempty"`
	Origin         *[2]float64 `json:"origin,omitempty" yaml:"origin,omitempty"`
	Handles        []Handle    `json:"handles,omitempty" yaml:"handles,omitempty"`
	AriaLabel      string      `json:"ariaLabel,omitempty" yaml:"ariaLabel,omitempty"`

	// Measured is the size reported by the renderer
	Measured *Dimensions `json:"measured,omitempty" yaml:"measured,omitempty"`

	// PositionAbsolute is the position after resolving parent offsets
	PositionAbsolute *XYPosition `json:"positionAbsolute,omitempty" yaml:"positionAbsolute,omitempty"`
}

// IsDeletable reports whether the node may be removed by user actions
func (n Node) IsDeletable() bool {
	return n.Deletable == nil || *n.Deletable
}

// IsSelectable reports whether the node may be selected by user actions
func (n Node) IsSelectable() bool {
	return n.Selectable == nil || *n.Selectable
}

// Edge is a member of the edge collection
type Edge struct {
	ID               string  `json:"id" yaml:"id"`
	Source           string  `json:"source" yaml:"source"`
	Target           string  `json:"target" yaml:"target"`
	SourceHandle     string  `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle     string  `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Type             string  `json:"type,omitempty" yaml:"type,omitempty"`
	Animated         bool    `json:"animated,omitempty" yaml:"animated,omitempty"`
	Hidden           bool    `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Deletable        *bool   `json:"deletable,omitempty" yaml:"deletable,omitempty"`
	Selectable       *bool   `json:"selectable,omitempty" yaml:"selectable,omitempty"`
	Selected         bool    `json:"selected,omitempty" yaml:"selected,omitempty"`
	Data             Data    `json:"data,omitempty" yaml:"data,omitempty"`
	ZIndex           int     `json:"zIndex,omitempty" yaml:"zIndex,omitempty"`
	Label            string  `json:"label,omitempty" yaml:"label,omitempty"`
	AriaLabel        string  `json:"ariaLabel,omitempty" yaml:"ariaLabel,omitempty"`
	InteractionWidth float64 `json:"interactionWidth,omitempty" yaml:"interactionWidth,omitempty"`
}

// IsDeletable reports whether the edge may be removed by user actions
func (e Edge) IsDeletable() bool {
	return e.Deletable == nil || *e.Deletable
}

// IsSelectable reports whether the edge may be selected by user actions
func (e Edge) IsSelectable() bool {
	return e.Selectable == nil || *e.Selectable
}

// Connection is a request to link two handles
type Connection struct {
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// HandleConnection is a connection attached to a handle, with the id of the
// edge that carries it
type HandleConnection struct {
	Connection `yaml:",inline"`
	EdgeID     string `json:"edgeId" yaml:"edgeId"`
}

// Document is the serialized state of a whole flow
type Document struct {
	Nodes    []Node   `json:"nodes" yaml:"nodes"`
	Edges    []Edge   `json:"edges" yaml:"edges"`
	Viewport Viewport `json:"viewport" yaml:"viewport"`
}

// Bool returns a pointer to b, for the tri-state flags
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f, for optional sizes
func Float(f float64) *float64 { return &f }
