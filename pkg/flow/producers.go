package flow

// NodeSelectionChanges returns select changes for every selectable node
// whose selected flag differs from its membership in selected.
func NodeSelectionChanges(nodes []Node, selected map[string]bool) []NodeChange {
	var changes []NodeChange
	for _, n := range nodes {
		want := selected[n.ID]
		if n.Selected != want && (n.IsSelectable() || !want) {
			changes = append(changes, SelectChange{ID: n.ID, Selected: want})
		}
	}
	return changes
}

// EdgeSelectionChanges is NodeSelectionChanges for edges
func EdgeSelectionChanges(edges []Edge, selected map[string]bool) []EdgeChange {
	var changes []EdgeChange
	for _, e := range edges {
		want := selected[e.ID]
		if e.Selected != want && (e.IsSelectable() || !want) {
			changes = append(changes, SelectChange{ID: e.ID, Selected: want})
		}
	}
	return changes
}

// NodeDataChange returns a replace change carrying node with its data
// updated. With replace the data is swapped wholesale, otherwise patch is
// merged over a copy of the current data.
func NodeDataChange(node Node, patch Data, replace bool) NodeChange {
	next := node
	if replace {
		next.Data = patch
	} else {
		merged := make(Data, len(node.Data)+len(patch))
		for k, v := range node.Data {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		next.Data = merged
	}
	return NodeReplaceChange{ID: node.ID, Item: next}
}

// Deletion is the outcome of DeleteElements
type Deletion struct {
	NodeChanges  []NodeChange
	EdgeChanges  []EdgeChange
	DeletedNodes []Node
	DeletedEdges []Edge
}

// DeleteElements computes the removal of the deletable nodes in nodeIDs,
// their child nodes, every edge connected to a removed node, and the
// deletable edges in edgeIDs. Unknown ids are ignored.
func DeleteElements(nodes []Node, edges []Edge, nodeIDs, edgeIDs []string) Deletion {
	var d Deletion

	requested := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		requested[id] = true
	}

	removed := make(map[string]bool)
	for _, n := range nodes {
		if requested[n.ID] && n.IsDeletable() {
			removed[n.ID] = true
		}
	}

	// Children go with their parents
	for grew := true; grew; {
		grew = false
		for _, n := range nodes {
			if !removed[n.ID] && n.ParentID != "" && removed[n.ParentID] && n.IsDeletable() {
				removed[n.ID] = true
				grew = true
			}
		}
	}

	for _, n := range nodes {
		if removed[n.ID] {
			d.DeletedNodes = append(d.DeletedNodes, n)
			d.NodeChanges = append(d.NodeChanges, RemoveChange{ID: n.ID})
		}
	}

	requestedEdges := make(map[string]bool, len(edgeIDs))
	for _, id := range edgeIDs {
		requestedEdges[id] = true
	}
	for _, e := range edges {
		connected := removed[e.Source] || removed[e.Target]
		if connected || (requestedEdges[e.ID] && e.IsDeletable()) {
			d.DeletedEdges = append(d.DeletedEdges, e)
			d.EdgeChanges = append(d.EdgeChanges, RemoveChange{ID: e.ID})
		}
	}

	return d
}
