package ndp

//
// Stable priority queue for the TOR model (spec.md §4.4/§9): packets are
// ordered by priority ascending (0 = control before 1 = data), and a
// strictly increasing insertion sequence breaks ties so that FIFO order
// is preserved within a priority class.
//

import "container/heap"

// torQueueItem is one entry in the [torQueue] heap.
type torQueueItem struct {
	pkt      NetworkPacket
	priority int
	seq      int64
}

// torHeap is the container/heap.Interface implementation backing
// [torQueue]. Lower priority value sorts first; ties break on seq.
type torHeap []*torQueueItem

func (h torHeap) Len() int { return len(h) }

func (h torHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h torHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *torHeap) Push(x any) { *h = append(*h, x.(*torQueueItem)) }

func (h *torHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// torQueue is a strict-priority, FIFO-within-class queue. The zero value
// is invalid; use [newTORQueue].
type torQueue struct {
	h       torHeap
	nextSeq int64
}

// newTORQueue creates an empty torQueue.
func newTORQueue() *torQueue {
	return &torQueue{h: torHeap{}}
}

// push enqueues pkt at the given priority, preserving insertion order
// among packets sharing a priority.
func (q *torQueue) push(pkt NetworkPacket) {
	item := &torQueueItem{pkt: pkt, priority: pkt.Priority, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.h, item)
}

// len returns the number of packets currently queued.
func (q *torQueue) len() int { return q.h.Len() }

// pop removes and returns the highest-priority (lowest value), oldest
// packet. It panics if the queue is empty; callers must check len first.
func (q *torQueue) pop() NetworkPacket {
	item := heap.Pop(&q.h).(*torQueueItem)
	return item.pkt
}
