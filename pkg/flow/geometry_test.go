package flow

import (
	"reflect"
	"testing"
)

func TestNodeRect(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want Rect
	}{
		{
			name: "explicit size wins",
			node: Node{Position: XYPosition{X: 1, Y: 2}, Width: Float(10), Height: Float(20), Measured: &Dimensions{Width: 5, Height: 5}},
			want: Rect{X: 1, Y: 2, Width: 10, Height: 20},
		},
		{
			name: "measured size",
			node: Node{Measured: &Dimensions{Width: 5, Height: 6}},
			want: Rect{Width: 5, Height: 6},
		},
		{
			name: "initial size",
			node: Node{InitialWidth: Float(7), InitialHeight: Float(8)},
			want: Rect{Width: 7, Height: 8},
		},
		{
			name: "absolute position and origin",
			node: Node{
				Position:         XYPosition{X: 1, Y: 1},
				PositionAbsolute: &XYPosition{X: 100, Y: 100},
				Width:            Float(20),
				Height:           Float(10),
				Origin:           &[2]float64{0.5, 0.5},
			},
			want: Rect{X: 90, Y: 95, Width: 20, Height: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NodeRect(tt.node); got != tt.want {
				t.Errorf("NodeRect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}
	c := Rect{X: 10, Y: 0, Width: 5, Height: 5}

	if got := a.OverlapArea(b); got != 25 {
		t.Errorf("OverlapArea() = %v, want 25", got)
	}
	if a.Intersects(c) {
		t.Error("touching rects should not intersect")
	}
	if !a.Contains(Rect{X: 1, Y: 1, Width: 2, Height: 2}) {
		t.Error("Contains() = false, want true")
	}
	if a.Contains(b) {
		t.Error("Contains() = true, want false")
	}
	if got := a.Union(b); got != (Rect{X: 0, Y: 0, Width: 15, Height: 15}) {
		t.Errorf("Union() = %+v", got)
	}
}

func TestIntersectingNodes(t *testing.T) {
	nodes := []Node{
		{ID: "inside", Position: XYPosition{X: 10, Y: 10}, Width: Float(10), Height: Float(10)},
		{ID: "partial", Position: XYPosition{X: 45, Y: 45}, Width: Float(10), Height: Float(10)},
		{ID: "outside", Position: XYPosition{X: 100, Y: 100}, Width: Float(10), Height: Float(10)},
		{ID: "hidden", Position: XYPosition{X: 10, Y: 10}, Width: Float(10), Height: Float(10), Hidden: true},
		{ID: "unsized", Position: XYPosition{X: 10, Y: 10}},
	}
	area := Rect{X: 0, Y: 0, Width: 50, Height: 50}

	if got := ids(IntersectingNodes(area, nodes, true)); !reflect.DeepEqual(got, []string{"inside", "partial"}) {
		t.Errorf("IntersectingNodes(partially) = %v", got)
	}
	if got := ids(IntersectingNodes(area, nodes, false)); !reflect.DeepEqual(got, []string{"inside"}) {
		t.Errorf("IntersectingNodes(fully) = %v", got)
	}

	probe := Node{ID: "inside", Position: XYPosition{X: 0, Y: 0}, Width: Float(50), Height: Float(50)}
	if got := ids(IntersectingNodesOf(probe, nodes, true)); !reflect.DeepEqual(got, []string{"partial"}) {
		t.Errorf("IntersectingNodesOf() = %v", got)
	}
}

func TestNodesBounds(t *testing.T) {
	nodes := []Node{
		{ID: "a", Position: XYPosition{X: -10, Y: 0}, Width: Float(10), Height: Float(10)},
		{ID: "b", Position: XYPosition{X: 20, Y: 30}, Width: Float(5), Height: Float(5)},
		{ID: "c", Position: XYPosition{X: 500, Y: 500}, Width: Float(5), Height: Float(5), Hidden: true},
	}
	want := Rect{X: -10, Y: 0, Width: 35, Height: 35}
	if got := NodesBounds(nodes); got != want {
		t.Errorf("NodesBounds() = %+v, want %+v", got, want)
	}
	if got := NodesBounds(nil); got != (Rect{}) {
		t.Errorf("NodesBounds(nil) = %+v, want zero", got)
	}
}
