package listener

import (
	"fmt"
	"testing"
)

func TestDedupWindowDropsReplays(t *testing.T) {
	w := newDedupWindow(8)

	if w.Observe("a") {
		t.Fatal("first observation reported as duplicate")
	}
	if !w.Observe("a") {
		t.Fatal("replay not reported as duplicate")
	}
	if w.Observe("b") {
		t.Fatal("distinct id reported as duplicate")
	}
}

func TestDedupWindowEvictsOldest(t *testing.T) {
	w := newDedupWindow(3)

	for i := 0; i < 4; i++ {
		w.Observe(fmt.Sprintf("id-%d", i))
	}
	if w.Len() != 3 {
		t.Fatalf("got %d remembered ids, want 3", w.Len())
	}

	// id-0 was evicted, so it looks new again
	if w.Observe("id-0") {
		t.Fatal("evicted id still reported as duplicate")
	}
	// id-2 is still inside the window
	if !w.Observe("id-2") {
		t.Fatal("retained id not reported as duplicate")
	}
}

func TestDedupWindowDefaultCapacity(t *testing.T) {
	w := newDedupWindow(0)
	if w.capacity != 4096 {
		t.Fatalf("got capacity %d, want 4096", w.capacity)
	}
}
