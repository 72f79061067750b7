package bufslot

import "testing"

func TestDisplayQueue_FIFOOrder(t *testing.T) {
	var q displayQueue
	q.push(2, false)
	q.push(0, false)
	q.push(1, false)

	want := []int{2, 0, 1}
	for _, w := range want {
		got, ok := q.popHead()
		if !ok || got != w {
			t.Fatalf("popHead() = (%d, %v), want (%d, true)", got, ok, w)
		}
	}
	if !q.empty() {
		t.Fatal("expected queue empty after draining")
	}
}

func TestDisplayQueue_RequeueMovesToBack(t *testing.T) {
	var q displayQueue
	q.push(0, false)
	q.push(1, false)
	q.push(0, true) // re-seat: should move to back, not duplicate

	if len(q.indices) != 2 {
		t.Fatalf("len = %d, want 2 (no duplicate entries)", len(q.indices))
	}
	first, _ := q.popHead()
	if first != 1 {
		t.Fatalf("first = %d, want 1 (0 moved to back)", first)
	}
	second, _ := q.popHead()
	if second != 0 {
		t.Fatalf("second = %d, want 0", second)
	}
}
