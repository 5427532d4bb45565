package reactive

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestState_GetSet(t *testing.T) {
	state := NewState(42)

	// Test initial value
	if got := state.Get(); got != 42 {
		t.Errorf("Expected initial value 42, got %d", got)
	}

	// Test set
	state.Set(100)
	if got := state.Get(); got != 100 {
		t.Errorf("Expected value 100 after Set, got %d", got)
	}
}

func TestState_Update(t *testing.T) {
	state := NewState([]string{"a"})

	var seen []string
	state.Subscribe(func(v []string) { seen = v })

	state.Update(func(v []string) []string {
		return append(append([]string(nil), v...), "b")
	})

	if got := state.Get(); len(got) != 2 || got[1] != "b" {
		t.Errorf("Expected [a b], got %v", got)
	}
	if len(seen) != 2 {
		t.Errorf("Listener saw %v, want [a b]", seen)
	}
}

func TestState_Subscribe(t *testing.T) {
	state := NewState("hello")

	var calls atomic.Int32
	var last string
	unsubscribe := state.Subscribe(func(v string) {
		calls.Add(1)
		last = v
	})

	if state.ListenerCount() != 1 {
		t.Errorf("Expected 1 listener, got %d", state.ListenerCount())
	}

	state.Set("world")
	if calls.Load() != 1 || last != "world" {
		t.Errorf("Expected 1 call with world, got %d calls with %q", calls.Load(), last)
	}

	unsubscribe()
	state.Set("again")
	if calls.Load() != 1 {
		t.Errorf("Expected no call after unsubscribe, got %d", calls.Load())
	}
	if state.ListenerCount() != 0 {
		t.Errorf("Expected 0 listeners, got %d", state.ListenerCount())
	}

	// nil listeners are ignored
	state.Subscribe(nil)()
}

func TestState_ListenerCanWrite(t *testing.T) {
	a := NewState(0)
	b := NewState(0)
	a.Subscribe(func(v int) { b.Set(v * 2) })

	a.Set(21)
	if got := b.Get(); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
}

func TestRunBatch(t *testing.T) {
	nodes := NewState(0)
	edges := NewState(0)

	var order []string
	nodes.Subscribe(func(int) { order = append(order, "nodes") })
	edges.Subscribe(func(int) { order = append(order, "edges") })

	RunBatch(func() {
		nodes.Set(1)
		edges.Set(1)
		nodes.Set(2)

		if len(order) != 0 {
			t.Errorf("Listeners ran inside batch: %v", order)
		}
	})

	if len(order) != 2 || order[0] != "nodes" || order[1] != "edges" {
		t.Errorf("Expected [nodes edges], got %v", order)
	}
	if nodes.Get() != 2 {
		t.Errorf("Expected last write to win, got %d", nodes.Get())
	}
}

func TestRunBatch_Nested(t *testing.T) {
	state := NewState(0)

	var calls int
	state.Subscribe(func(int) { calls++ })

	RunBatch(func() {
		state.Set(1)
		RunBatch(func() {
			state.Set(2)
		})
		if calls != 0 {
			t.Errorf("Inner batch committed early, got %d calls", calls)
		}
	})

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestBatch_SetBatched(t *testing.T) {
	state := NewState("a")

	var calls int
	state.Subscribe(func(string) { calls++ })

	b := NewBatch()
	state.SetBatched(b, "b")
	state.SetBatched(b, "c")
	if calls != 0 {
		t.Errorf("Expected no calls before commit, got %d", calls)
	}

	b.Commit()
	if calls != 1 || state.Get() != "c" {
		t.Errorf("Expected 1 call with c, got %d with %q", calls, state.Get())
	}

	// A committed batch no longer collects
	b.Add(state)
	b.Commit()
	if calls != 1 {
		t.Errorf("Expected committed batch to stay empty, got %d calls", calls)
	}
}

func TestComputed(t *testing.T) {
	count := NewState(2)

	var computations int
	doubled := NewComputed(func() int {
		computations++
		return count.Get() * 2
	}, count)

	if got := doubled.Get(); got != 4 {
		t.Errorf("Expected 4, got %d", got)
	}
	doubled.Get()
	if computations != 1 {
		t.Errorf("Expected memoized value, got %d computations", computations)
	}

	count.Set(5)
	if got := doubled.Get(); got != 10 {
		t.Errorf("Expected 10 after dependency change, got %d", got)
	}
	if computations != 2 {
		t.Errorf("Expected 2 computations, got %d", computations)
	}
}

func TestState_Concurrent(t *testing.T) {
	state := NewState(0)

	var calls atomic.Int64
	state.Subscribe(func(int) { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()

	if got := state.Get(); got != 50 {
		t.Errorf("Expected 50, got %d", got)
	}
	if calls.Load() != 50 {
		t.Errorf("Expected 50 notifications, got %d", calls.Load())
	}
}
