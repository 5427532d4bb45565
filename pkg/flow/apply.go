package flow

// ApplyNodeChanges applies changes to nodes in order and returns the next
// node collection. nodes is never modified.
//
// Changes referring to an id that is not in the working collection are
// skipped, so a remove followed by a select of the same id leaves the node
// removed. When ids are duplicated, changes target the first match. Nil
// changes are skipped.
func ApplyNodeChanges(changes []NodeChange, nodes []Node) []Node {
	if len(changes) == 0 {
		return nodes
	}

	c := newCollection(nodes, nodeID, countAdds(changes))
	for _, change := range changes {
		switch ch := change.(type) {
		case PositionChange:
			if i, ok := c.find(ch.ID); ok {
				applyPosition(&c.items[i], ch)
			}
		case DimensionsChange:
			if i, ok := c.find(ch.ID); ok {
				applyDimensions(&c.items[i], ch)
			}
		case SelectChange:
			if i, ok := c.find(ch.ID); ok {
				c.items[i].Selected = ch.Selected
			}
		case RemoveChange:
			if i, ok := c.find(ch.ID); ok {
				c.remove(i)
			}
		case NodeAddChange:
			c.insert(ch.Index, ch.Item)
		case NodeReplaceChange:
			if i, ok := c.find(ch.ID); ok {
				c.set(i, ch.Item)
			}
		}
	}
	return c.items
}

// ApplyEdgeChanges applies changes to edges in order and returns the next
// edge collection. edges is never modified.
func ApplyEdgeChanges(changes []EdgeChange, edges []Edge) []Edge {
	if len(changes) == 0 {
		return edges
	}

	c := newCollection(edges, edgeID, countAdds(changes))
	for _, change := range changes {
		switch ch := change.(type) {
		case SelectChange:
			if i, ok := c.find(ch.ID); ok {
				c.items[i].Selected = ch.Selected
			}
		case RemoveChange:
			if i, ok := c.find(ch.ID); ok {
				c.remove(i)
			}
		case EdgeAddChange:
			c.insert(ch.Index, ch.Item)
		case EdgeReplaceChange:
			if i, ok := c.find(ch.ID); ok {
				c.set(i, ch.Item)
			}
		}
	}
	return c.items
}

func applyPosition(n *Node, ch PositionChange) {
	if ch.Position != nil {
		n.Position = *ch.Position
	}
	if ch.PositionAbsolute != nil {
		abs := *ch.PositionAbsolute
		n.PositionAbsolute = &abs
	}
	if ch.Dragging != nil {
		n.Dragging = *ch.Dragging
	}
}

func applyDimensions(n *Node, ch DimensionsChange) {
	if ch.Dimensions != nil {
		measured := *ch.Dimensions
		n.Measured = &measured
		if ch.SetAttributes {
			n.Width = Float(measured.Width)
			n.Height = Float(measured.Height)
		}
	}
	if ch.Resizing != nil {
		n.Resizing = *ch.Resizing
	}
}

func nodeID(n Node) string { return n.ID }
func edgeID(e Edge) string { return e.ID }

func countAdds[C interface{ ChangeType() ChangeType }](changes []C) int {
	n := 0
	for _, c := range changes {
		if any(c) == nil {
			continue
		}
		if c.ChangeType() == ChangeAdd {
			n++
		}
	}
	return n
}

// collection is the working copy of an ordered element slice with a lazily
// built id index. The index is dropped whenever slots shift.
type collection[T any] struct {
	items []T
	idOf  func(T) string
	index map[string]int
}

func newCollection[T any](items []T, idOf func(T) string, extra int) *collection[T] {
	out := make([]T, len(items), len(items)+extra)
	copy(out, items)
	return &collection[T]{items: out, idOf: idOf}
}

// find returns the slot of the first element with id
func (c *collection[T]) find(id string) (int, bool) {
	if c.index == nil {
		c.index = make(map[string]int, len(c.items))
		for i := len(c.items) - 1; i >= 0; i-- {
			c.index[c.idOf(c.items[i])] = i
		}
	}
	i, ok := c.index[id]
	return i, ok
}

func (c *collection[T]) remove(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.index = nil
}

// insert puts item at index, clamped to [0, len]. A nil index appends.
func (c *collection[T]) insert(index *int, item T) {
	if index == nil || *index >= len(c.items) {
		c.items = append(c.items, item)
		if c.index != nil {
			if _, dup := c.index[c.idOf(item)]; !dup {
				c.index[c.idOf(item)] = len(c.items) - 1
			}
		}
		return
	}

	i := *index
	if i < 0 {
		i = 0
	}
	var zero T
	c.items = append(c.items, zero)
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = item
	c.index = nil
}

func (c *collection[T]) set(i int, item T) {
	prev := c.idOf(c.items[i])
	c.items[i] = item
	if c.index != nil && c.idOf(item) != prev {
		c.index = nil
	}
}
