package queue

import (
	"math/rand"
	"sort"
	"testing"
)

func TestPushPopOrdering(t *testing.T) {
	pq := New(func(a, b int) bool { return a < b })

	rng := rand.New(rand.NewSource(7))
	input := make([]int, 500)
	for i := range input {
		input[i] = rng.Intn(1000)
		pq.Push(input[i])
	}

	sorted := append([]int(nil), input...)
	sort.Ints(sorted)

	for i, want := range sorted {
		if pq.Len() != len(sorted)-i {
			t.Fatalf("Len = %d, want %d", pq.Len(), len(sorted)-i)
		}
		if got := pq.Pop(); got != want {
			t.Fatalf("Pop #%d = %d, want %d", i, got, want)
		}
	}
	if pq.Len() != 0 {
		t.Fatalf("queue not empty after draining: %d", pq.Len())
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	pq := New(func(a, b int) bool { return a < b })
	pq.Push(3)
	pq.Push(1)
	pq.Push(2)

	if got := pq.Peek(); got != 1 {
		t.Fatalf("Peek = %d, want 1", got)
	}
	if pq.Len() != 3 {
		t.Fatalf("Peek must not remove, Len = %d", pq.Len())
	}
}

func TestPeekUpdate(t *testing.T) {
	type source struct{ head int }
	pq := New(func(a, b *source) bool { return a.head < b.head })

	a, b, c := &source{1}, &source{5}, &source{9}
	pq.Push(a)
	pq.Push(b)
	pq.Push(c)

	// advance the front source past the next one and restore heap order
	front := pq.Peek()
	front.head = 7
	pq.PeekUpdate()

	if got := pq.Pop(); got != b {
		t.Fatalf("after PeekUpdate front = %v, want %v", got, b)
	}
	if got := pq.Pop(); got != a {
		t.Fatalf("second = %v, want %v", got, a)
	}
	if got := pq.Pop(); got != c {
		t.Fatalf("third = %v, want %v", got, c)
	}
}

func TestDescendingComparator(t *testing.T) {
	pq := New(func(a, b int) bool { return a > b })
	for _, v := range []int{4, 9, 1} {
		pq.Push(v)
	}
	for _, want := range []int{9, 4, 1} {
		if got := pq.Pop(); got != want {
			t.Fatalf("Pop = %d, want %d", got, want)
		}
	}
}
