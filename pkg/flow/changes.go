package flow

import "fmt"

// ChangeType is the discriminator of a change record
type ChangeType string

const (
	// ChangePosition moves a node or toggles its dragging flag
	ChangePosition ChangeType = "position"
	// ChangeDimensions reports a measured or explicit node size
	ChangeDimensions ChangeType = "dimensions"
	// ChangeSelect sets the selected flag
	ChangeSelect ChangeType = "select"
	// ChangeRemove deletes an element
	ChangeRemove ChangeType = "remove"
	// ChangeAdd inserts a new element
	ChangeAdd ChangeType = "add"
	// ChangeReplace swaps an element for a new value in place
	ChangeReplace ChangeType = "replace"
)

// NodeChange is a single mutation of the node collection.
// Implemented by PositionChange, DimensionsChange, SelectChange,
// RemoveChange, NodeAddChange and NodeReplaceChange.
type NodeChange interface {
	ChangeType() ChangeType
	String() string
	nodeChange()
}

// EdgeChange is a single mutation of the edge collection.
// Implemented by SelectChange, RemoveChange, EdgeAddChange and
// EdgeReplaceChange.
type EdgeChange interface {
	ChangeType() ChangeType
	String() string
	edgeChange()
}

// PositionChange patches the position fields of a node.
// Nil fields are left untouched.
type PositionChange struct {
	ID               string
	Position         *XYPosition
	PositionAbsolute *XYPosition
	Dragging         *bool
}

// DimensionsChange reports a node size. The size always lands in
// Node.Measured; SetAttributes also writes Node.Width/Height.
type DimensionsChange struct {
	ID            string
	Dimensions    *Dimensions
	Resizing      *bool
	SetAttributes bool
}

// SelectChange overwrites the selected flag of a node or edge
type SelectChange struct {
	ID       string
	Selected bool
}

// RemoveChange deletes a node or edge
type RemoveChange struct {
	ID string
}

// NodeAddChange inserts Item at Index, or appends when Index is nil
type NodeAddChange struct {
	Item  Node
	Index *int
}

// NodeReplaceChange swaps the node with ID for Item, keeping its slot
type NodeReplaceChange struct {
	ID   string
	Item Node
}

// EdgeAddChange inserts Item at Index, or appends when Index is nil
type EdgeAddChange struct {
	Item  Edge
	Index *int
}

// EdgeReplaceChange swaps the edge with ID for Item, keeping its slot
type EdgeReplaceChange struct {
	ID   string
	Item Edge
}

func (PositionChange) ChangeType() ChangeType    { return ChangePosition }
func (DimensionsChange) ChangeType() ChangeType  { return ChangeDimensions }
func (SelectChange) ChangeType() ChangeType      { return ChangeSelect }
func (RemoveChange) ChangeType() ChangeType      { return ChangeRemove }
func (NodeAddChange) ChangeType() ChangeType     { return ChangeAdd }
func (NodeReplaceChange) ChangeType() ChangeType { return ChangeReplace }
func (EdgeAddChange) ChangeType() ChangeType     { return ChangeAdd }
func (EdgeReplaceChange) ChangeType() ChangeType { return ChangeReplace }

func (PositionChange) nodeChange()    {}
func (DimensionsChange) nodeChange()  {}
func (SelectChange) nodeChange()      {}
func (RemoveChange) nodeChange()      {}
func (NodeAddChange) nodeChange()     {}
func (NodeReplaceChange) nodeChange() {}

func (SelectChange) edgeChange()      {}
func (RemoveChange) edgeChange()      {}
func (EdgeAddChange) edgeChange()     {}
func (EdgeReplaceChange) edgeChange() {}

// String returns a human-readable representation of the change
func (c PositionChange) String() string {
	s := fmt.Sprintf("Position(id=%q", c.ID)
	if c.Position != nil {
		s += fmt.Sprintf(", x=%g, y=%g", c.Position.X, c.Position.Y)
	}
	if c.Dragging != nil {
		s += fmt.Sprintf(", dragging=%t", *c.Dragging)
	}
	return s + ")"
}

// String returns a human-readable representation of the change
func (c DimensionsChange) String() string {
	s := fmt.Sprintf("Dimensions(id=%q", c.ID)
	if c.Dimensions != nil {
		s += fmt.Sprintf(", w=%g, h=%g", c.Dimensions.Width, c.Dimensions.Height)
	}
	if c.Resizing != nil {
		s += fmt.Sprintf(", resizing=%t", *c.Resizing)
	}
	if c.SetAttributes {
		s += ", setAttributes"
	}
	return s + ")"
}

// String returns a human-readable representation of the change
func (c SelectChange) String() string {
	return fmt.Sprintf("Select(id=%q, selected=%t)", c.ID, c.Selected)
}

// String returns a human-readable representation of the change
func (c RemoveChange) String() string {
	return fmt.Sprintf("Remove(id=%q)", c.ID)
}

// String returns a human-readable representation of the change
func (c NodeAddChange) String() string {
	return addString(c.Item.ID, c.Index)
}

// String returns a human-readable representation of the change
func (c NodeReplaceChange) String() string {
	return fmt.Sprintf("Replace(id=%q)", c.ID)
}

// String returns a human-readable representation of the change
func (c EdgeAddChange) String() string {
	return addString(c.Item.ID, c.Index)
}

// String returns a human-readable representation of the change
func (c EdgeReplaceChange) String() string {
	return fmt.Sprintf("Replace(id=%q)", c.ID)
}

func addString(id string, index *int) string {
	if index == nil {
		return fmt.Sprintf("Add(id=%q)", id)
	}
	return fmt.Sprintf("Add(id=%q, index=%d)", id, *index)
}

// Index returns a pointer to i, for NodeAddChange.Index and EdgeAddChange.Index
func Index(i int) *int { return &i }

// ChangeTarget returns the id a change refers to. For add changes it is the
// id of the inserted item.
func ChangeTarget(c interface{ ChangeType() ChangeType }) string {
	switch c := c.(type) {
	case PositionChange:
		return c.ID
	case DimensionsChange:
		return c.ID
	case SelectChange:
		return c.ID
	case RemoveChange:
		return c.ID
	case NodeAddChange:
		return c.Item.ID
	case NodeReplaceChange:
		return c.ID
	case EdgeAddChange:
		return c.Item.ID
	case EdgeReplaceChange:
		return c.ID
	}
	return ""
}
