package hnsw

import "container/heap"

// Item is one entry in a PriorityQueue: a graph node paired with its
// distance to whatever query point is currently being searched for.
type Item struct {
	Node     LocalID
	Distance float32
}

// PriorityQueue is a container/heap.Interface implementation shared by
// every search routine in this package. Order selects the heap's
// direction: Order=false (the zero value) is a min-heap, used for the
// candidate frontier during greedy descent and layer search; Order=true
// is a max-heap, used for the bounded result set so the farthest current
// result sits at the top and can be evicted in O(log n) as closer
// candidates are found.
type PriorityQueue struct {
	items []Item
	Order bool
}

func (pq PriorityQueue) Len() int { return len(pq.items) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq.Order {
		return pq.items[i].Distance > pq.items[j].Distance
	}
	return pq.items[i].Distance < pq.items[j].Distance
}

func (pq PriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

// Push implements heap.Interface; use heap.Push(pq, item) to insert.
func (pq *PriorityQueue) Push(x any) {
	pq.items = append(pq.items, x.(Item))
}

// Pop implements heap.Interface; use heap.Pop(pq) to remove.
func (pq *PriorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[:n-1]
	return item
}

// Top returns the item at the root of the heap without removing it. It
// panics if the queue is empty.
func (pq *PriorityQueue) Top() Item {
	return pq.items[0]
}

// Empty reports whether the queue holds no items.
func (pq *PriorityQueue) Empty() bool {
	return len(pq.items) == 0
}

// NewPriorityQueue returns an initialized, empty queue with the given
// order.
func NewPriorityQueue(order bool) *PriorityQueue {
	pq := &PriorityQueue{Order: order}
	heap.Init(pq)
	return pq
}

// Items returns the queue's current contents in heap (not sorted) order.
// Callers that need a sorted slice should repeatedly heap.Pop instead.
func (pq *PriorityQueue) Items() []Item {
	return pq.items
}

// push, pop, top, empty, and len are unexported heap.Push/heap.Pop
// wrappers used internally by this package's search routines, so call
// sites read as ordinary queue operations instead of container/heap
// boilerplate.
func (pq *PriorityQueue) push(item Item) { heap.Push(pq, item) }

func (pq *PriorityQueue) pop() Item { return heap.Pop(pq).(Item) }

func (pq *PriorityQueue) top() Item { return pq.Top() }

func (pq *PriorityQueue) empty() bool { return pq.Empty() }

func (pq *PriorityQueue) len() int { return pq.Len() }
