package scheduler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

// recorder applies batches to a node collection the way a store would
type recorder struct {
	mu    sync.Mutex
	nodes []flow.Node
	runs  int
}

func (r *recorder) apply(cs flow.ChangeSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	r.nodes = flow.ApplyNodeChanges(cs.Nodes, r.nodes)
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.nodes))
	for i, n := range r.nodes {
		out[i] = n.ID
	}
	return out
}

func addNode(id string) flow.ChangeSet {
	return flow.ChangeSet{Nodes: []flow.NodeChange{flow.NodeAddChange{Item: flow.Node{ID: id}}}}
}

func TestScheduler_Enqueue(t *testing.T) {
	rec := &recorder{}
	sched := NewScheduler(rec.apply)
	sched.Start()
	defer sched.Stop()

	job := sched.Enqueue(addNode("1"))
	select {
	case err := <-job.Done():
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("batch was not applied")
	}

	if got := rec.ids(); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("nodes = %v, want [1]", got)
	}
	if sched.Applied() != 1 {
		t.Errorf("Expected 1 applied batch, got %d", sched.Applied())
	}
}

func TestScheduler_FlushKeepsOrder(t *testing.T) {
	rec := &recorder{}
	sched := NewScheduler(rec.apply)
	sched.Start()
	defer sched.Stop()

	want := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("n%d", i)
		want = append(want, id)
		sched.Enqueue(addNode(id))
	}
	// Removing n0 only works if it was added first
	sched.Enqueue(flow.ChangeSet{Nodes: []flow.NodeChange{flow.RemoveChange{ID: "n0"}}})
	want = want[1:]

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sched.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if got := rec.ids(); !reflect.DeepEqual(got, want) {
		t.Errorf("nodes = %v, want %v", got, want)
	}
	if sched.Applied() != 51 {
		t.Errorf("Expected 51 applied batches, got %d", sched.Applied())
	}
	if sched.Runs() > sched.Applied() {
		t.Errorf("Runs() = %d exceeds Applied() = %d", sched.Runs(), sched.Applied())
	}
	if sched.Pending() != 0 {
		t.Errorf("Expected empty queue, got %d", sched.Pending())
	}
}

func TestScheduler_EnqueueFuncSeesEarlierBatches(t *testing.T) {
	rec := &recorder{}
	sched := NewScheduler(rec.apply)
	sched.Start()
	defer sched.Stop()

	sched.Enqueue(addNode("a"))
	sched.Enqueue(addNode("b"))

	var seen []string
	job := sched.EnqueueFunc(func() flow.ChangeSet {
		seen = rec.ids()
		// Remove whatever is first at the time the producer runs
		return flow.ChangeSet{Nodes: []flow.NodeChange{flow.RemoveChange{ID: seen[0]}}}
	})
	sched.Enqueue(addNode("c"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sched.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := <-job.Done(); err != nil {
		t.Fatalf("EnqueueFunc() error = %v", err)
	}

	if !reflect.DeepEqual(seen, []string{"a", "b"}) {
		t.Errorf("producer saw %v, want [a b]", seen)
	}
	if got := rec.ids(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("nodes = %v, want [b c]", got)
	}
	if sched.Applied() != 4 {
		t.Errorf("Expected 4 applied batches, got %d", sched.Applied())
	}
}

func TestScheduler_EnqueueFuncPanic(t *testing.T) {
	rec := &recorder{}
	sched := NewScheduler(rec.apply)
	sched.SetErrorHandler(func(flow.ChangeSet, interface{}) bool { return true })
	sched.Start()
	defer sched.Stop()

	job := sched.EnqueueFunc(func() flow.ChangeSet { panic("producer failed") })
	if err := <-job.Done(); err == nil {
		t.Fatal("expected an error from a panicking producer")
	}

	// The loop keeps serving later batches
	if err := <-sched.Enqueue(addNode("1")).Done(); err != nil {
		t.Fatalf("Enqueue() after panic error = %v", err)
	}
	if got := rec.ids(); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("nodes = %v, want [1]", got)
	}
}

func TestScheduler_ConcurrentEnqueue(t *testing.T) {
	rec := &recorder{}
	sched := NewScheduler(rec.apply)
	sched.Start()
	defer sched.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-sched.Enqueue(addNode(fmt.Sprintf("n%d", i))).Done()
		}(i)
	}
	wg.Wait()

	if got := len(rec.ids()); got != 100 {
		t.Errorf("Expected 100 nodes, got %d", got)
	}
	t.Logf("100 batches applied in %d runs", sched.Runs())
}

func TestScheduler_ErrorHandling(t *testing.T) {
	var handled atomic.Int32
	var shouldContinue atomic.Bool
	shouldContinue.Store(true)

	sched := NewScheduler(func(cs flow.ChangeSet) {
		if len(cs.Nodes) > 0 {
			if _, ok := cs.Nodes[0].(flow.RemoveChange); ok {
				panic("test panic")
			}
		}
	})
	sched.SetErrorHandler(func(cs flow.ChangeSet, err interface{}) bool {
		handled.Add(1)
		return shouldContinue.Load()
	})
	sched.Start()
	defer sched.Stop()

	boom := flow.ChangeSet{Nodes: []flow.NodeChange{flow.RemoveChange{ID: "x"}}}

	err := <-sched.Enqueue(boom).Done()
	if err == nil {
		t.Error("Expected error for panicking batch")
	}
	if handled.Load() != 1 {
		t.Errorf("Error handler called %d times, want 1", handled.Load())
	}
	if !sched.IsRunning() {
		t.Fatal("Scheduler stopped despite error handler returning true")
	}

	if err := <-sched.Enqueue(addNode("ok")).Done(); err != nil {
		t.Errorf("Expected later batch to succeed, got %v", err)
	}

	shouldContinue.Store(false)
	<-sched.Enqueue(boom).Done()

	deadline := time.Now().Add(time.Second)
	for sched.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sched.IsRunning() {
		t.Error("Scheduler kept running when error handler returned false")
	}
}

func TestScheduler_StopStart(t *testing.T) {
	rec := &recorder{}
	sched := NewScheduler(rec.apply)

	if sched.IsRunning() {
		t.Error("Scheduler should not be running initially")
	}

	// Nothing is applied while stopped
	if err := <-sched.Enqueue(addNode("early")).Done(); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	if err := sched.Flush(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Flush() on stopped scheduler = %v, want ErrStopped", err)
	}

	sched.Start()
	sched.Start()
	if !sched.IsRunning() {
		t.Error("Scheduler should be running after Start")
	}

	job := sched.Enqueue(addNode("1"))
	sched.Stop()
	sched.Stop()

	// Stop applies what was queued before it
	if err := <-job.Done(); err != nil {
		t.Errorf("queued batch error = %v", err)
	}
	if sched.IsRunning() {
		t.Error("Scheduler should not be running after Stop")
	}
	if got := rec.ids(); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("nodes = %v, want [1]", got)
	}

	sched.Start()
	defer sched.Stop()
	<-sched.Enqueue(addNode("2")).Done()
	if got := rec.ids(); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("nodes after restart = %v, want [1 2]", got)
	}
}

func TestScheduler_FlushContext(t *testing.T) {
	block := make(chan struct{})
	sched := NewScheduler(func(flow.ChangeSet) { <-block })
	sched.Start()
	defer func() {
		close(block)
		sched.Stop()
	}()

	sched.Enqueue(addNode("slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sched.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Flush() = %v, want deadline exceeded", err)
	}
}

func BenchmarkScheduler_Enqueue(b *testing.B) {
	sched := NewScheduler(func(flow.ChangeSet) {})
	sched.Start()
	defer sched.Stop()

	cs := addNode("bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sched.Enqueue(cs)
	}
	_ = sched.Flush(context.Background())
}
