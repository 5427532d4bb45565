package flow

import "math"

// Rect is an axis-aligned box in flow coordinates
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Empty reports whether the rect has no area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// OverlapArea returns the area shared by r and o
func (r Rect) OverlapArea(o Rect) float64 {
	x := math.Max(0, math.Min(r.X+r.Width, o.X+o.Width)-math.Max(r.X, o.X))
	y := math.Max(0, math.Min(r.Y+r.Height, o.Y+o.Height)-math.Max(r.Y, o.Y))
	return x * y
}

// Intersects reports whether r and o share any area
func (r Rect) Intersects(o Rect) bool {
	return r.OverlapArea(o) > 0
}

// Contains reports whether o lies completely inside r
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width && o.Y+o.Height <= r.Y+r.Height
}

// Union returns the smallest rect covering r and o
func (r Rect) Union(o Rect) Rect {
	x := math.Min(r.X, o.X)
	y := math.Min(r.Y, o.Y)
	return Rect{
		X:      x,
		Y:      y,
		Width:  math.Max(r.X+r.Width, o.X+o.Width) - x,
		Height: math.Max(r.Y+r.Height, o.Y+o.Height) - y,
	}
}

// NodeSize resolves the size of a node: explicit width/height first, then
// the measured size, then the initial size.
func NodeSize(n Node) Dimensions {
	var d Dimensions
	switch {
	case n.Width != nil:
		d.Width = *n.Width
	case n.Measured != nil:
		d.Width = n.Measured.Width
	case n.InitialWidth != nil:
		d.Width = *n.InitialWidth
	}
	switch {
	case n.Height != nil:
		d.Height = *n.Height
	case n.Measured != nil:
		d.Height = n.Measured.Height
	case n.InitialHeight != nil:
		d.Height = *n.InitialHeight
	}
	return d
}

// NodeRect returns the box a node occupies. PositionAbsolute is used when
// set, and the node origin shifts the box.
func NodeRect(n Node) Rect {
	pos := n.Position
	if n.PositionAbsolute != nil {
		pos = *n.PositionAbsolute
	}
	size := NodeSize(n)
	if n.Origin != nil {
		pos.X -= size.Width * n.Origin[0]
		pos.Y -= size.Height * n.Origin[1]
	}
	return Rect{X: pos.X, Y: pos.Y, Width: size.Width, Height: size.Height}
}

// NodesBounds returns the box covering every visible node
func NodesBounds(nodes []Node) Rect {
	var bounds Rect
	first := true
	for _, n := range nodes {
		if n.Hidden {
			continue
		}
		r := NodeRect(n)
		if first {
			bounds = r
			first = false
			continue
		}
		bounds = bounds.Union(r)
	}
	return bounds
}

// IntersectingNodes returns the nodes overlapping area. With partially any
// overlap counts, otherwise the node must lie fully inside area. Hidden and
// unsized nodes never match.
func IntersectingNodes(area Rect, nodes []Node, partially bool) []Node {
	var out []Node
	for _, n := range nodes {
		if n.Hidden {
			continue
		}
		r := NodeRect(n)
		if r.Empty() {
			continue
		}
		if partially && area.Intersects(r) {
			out = append(out, n)
		} else if !partially && area.Contains(r) {
			out = append(out, n)
		}
	}
	return out
}

// IntersectingNodesOf returns the nodes overlapping node, excluding node
// itself
func IntersectingNodesOf(node Node, nodes []Node, partially bool) []Node {
	var out []Node
	for _, n := range IntersectingNodes(NodeRect(node), nodes, partially) {
		if n.ID != node.ID {
			out = append(out, n)
		}
	}
	return out
}
