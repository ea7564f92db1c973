// Package queue provides the generic min-heap priority queue the merge
// loop orders its sources with.
package queue

// Built on container/heap, following
// https://golang.org/pkg/container/heap/#example__priorityQueue

import "container/heap"

// PriorityQueue is a heap-ordered queue of E. The element for which
// less(e, other) holds against every other element sits at the front.
type PriorityQueue[E any] struct {
	h innerHeap[E]
}

// New creates a PriorityQueue ordered by less.
func New[E any](less func(a, b E) bool) *PriorityQueue[E] {
	pq := &PriorityQueue[E]{h: innerHeap[E]{less: less}}
	heap.Init(&pq.h)
	return pq
}

// Len returns the number of queued elements.
func (pq *PriorityQueue[E]) Len() int {
	return len(pq.h.items)
}

// Push adds x to the queue.
func (pq *PriorityQueue[E]) Push(x E) {
	heap.Push(&pq.h, x)
}

// Pop removes and returns the front element.
func (pq *PriorityQueue[E]) Pop() E {
	return heap.Pop(&pq.h).(E)
}

// Peek returns the front element without removing it.
func (pq *PriorityQueue[E]) Peek() E {
	return pq.h.items[0]
}

// PeekUpdate restores heap order after the front element's ordering key
// changed in place. Cheaper than Pop followed by Push.
func (pq *PriorityQueue[E]) PeekUpdate() {
	heap.Fix(&pq.h, 0)
}

// innerHeap implements heap.Interface over a plain slice.
type innerHeap[E any] struct {
	items []E
	less  func(a, b E) bool
}

func (h *innerHeap[E]) Len() int {
	return len(h.items)
}

func (h *innerHeap[E]) Less(i, j int) bool {
	return h.less(h.items[i], h.items[j])
}

func (h *innerHeap[E]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *innerHeap[E]) Push(x any) {
	h.items = append(h.items, x.(E))
}

func (h *innerHeap[E]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	var zero E
	old[n-1] = zero
	h.items = old[:n-1]
	return item
}
