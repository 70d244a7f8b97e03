package processor

import (
	"github.com/Sumatoshi-tech/streamcdp/internal/event"
)

// eventHeap is a min-heap of buffered events keyed by timestamp. It
// implements container/heap. Pop order for equal timestamps is unspecified
// but stable within a single drain pass.
type eventHeap []*event.Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	return h[i].Timestamp.Before(h[j].Timestamp)
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*event.Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return ev
}
