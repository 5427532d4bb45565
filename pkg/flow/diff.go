package flow

import "reflect"

// DiffNodes computes the changes that turn prev into next. Applying the
// result to prev with ApplyNodeChanges yields next.
//
// Elements are matched by id. Unchanged elements produce nothing, changed
// ones a replace, missing ones a remove and new ones an add at their final
// index. An element that moved is removed and re-added at its new index.
func DiffNodes(prev, next []Node) []NodeChange {
	ops := diffKeyed(prev, next, nodeID)
	changes := make([]NodeChange, 0, len(ops))
	for _, op := range ops {
		switch op.kind {
		case ChangeRemove:
			changes = append(changes, RemoveChange{ID: op.id})
		case ChangeReplace:
			changes = append(changes, NodeReplaceChange{ID: op.id, Item: op.item})
		case ChangeAdd:
			changes = append(changes, NodeAddChange{Item: op.item, Index: op.index})
		}
	}
	return changes
}

// DiffEdges computes the changes that turn prev into next
func DiffEdges(prev, next []Edge) []EdgeChange {
	ops := diffKeyed(prev, next, edgeID)
	changes := make([]EdgeChange, 0, len(ops))
	for _, op := range ops {
		switch op.kind {
		case ChangeRemove:
			changes = append(changes, RemoveChange{ID: op.id})
		case ChangeReplace:
			changes = append(changes, EdgeReplaceChange{ID: op.id, Item: op.item})
		case ChangeAdd:
			changes = append(changes, EdgeAddChange{Item: op.item, Index: op.index})
		}
	}
	return changes
}

type diffOp[T any] struct {
	kind  ChangeType
	id    string
	item  T
	index *int
}

func diffKeyed[T any](prev, next []T, idOf func(T) string) []diffOp[T] {
	// Fast path: nothing on either side
	if len(prev) == 0 && len(next) == 0 {
		return nil
	}

	prevKeyed, prevUnique := keyIndex(prev, idOf)
	nextKeyed, nextUnique := keyIndex(next, idOf)

	// Ids are not unique on one side, so matching is ambiguous. Rebuild.
	if !prevUnique || !nextUnique {
		ops := make([]diffOp[T], 0, len(prev)+len(next))
		for _, p := range prev {
			ops = append(ops, diffOp[T]{kind: ChangeRemove, id: idOf(p)})
		}
		for _, n := range next {
			ops = append(ops, diffOp[T]{kind: ChangeAdd, id: idOf(n), item: n})
		}
		return ops
	}

	var ops []diffOp[T]

	// Remove elements that no longer exist
	working := make([]string, 0, len(prev))
	for _, p := range prev {
		id := idOf(p)
		if _, keep := nextKeyed[id]; !keep {
			ops = append(ops, diffOp[T]{kind: ChangeRemove, id: id})
			continue
		}
		working = append(working, id)
	}

	// Walk next in order; working[:j] always matches next[:j]
	for j, n := range next {
		id := idOf(n)
		prevIdx, existed := prevKeyed[id]

		switch {
		case !existed:
			ops = append(ops, diffOp[T]{kind: ChangeAdd, id: id, item: n, index: insertIndex(j, len(working))})
			working = insertAt(working, j, id)

		case working[j] == id:
			if !reflect.DeepEqual(prev[prevIdx], n) {
				ops = append(ops, diffOp[T]{kind: ChangeReplace, id: id, item: n})
			}

		default:
			// Moved: its current slot is somewhere after j
			from := indexOf(working, id, j)
			working = append(working[:from], working[from+1:]...)
			ops = append(ops, diffOp[T]{kind: ChangeRemove, id: id})
			ops = append(ops, diffOp[T]{kind: ChangeAdd, id: id, item: n, index: insertIndex(j, len(working))})
			working = insertAt(working, j, id)
		}
	}

	return ops
}

func keyIndex[T any](items []T, idOf func(T) string) (map[string]int, bool) {
	keyed := make(map[string]int, len(items))
	for i, item := range items {
		id := idOf(item)
		if _, dup := keyed[id]; dup {
			return keyed, false
		}
		keyed[id] = i
	}
	return keyed, true
}

// insertIndex returns nil when inserting at j is a plain append
func insertIndex(j, length int) *int {
	if j >= length {
		return nil
	}
	return Index(j)
}

func insertAt(ids []string, i int, id string) []string {
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func indexOf(ids []string, id string, from int) int {
	for i := from; i < len(ids); i++ {
		if ids[i] == id {
			return i
		}
	}
	return -1
}
