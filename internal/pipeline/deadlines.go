package pipeline

// deadlineHeap is a min-heap of pending requests ordered by deadline. The
// coordinator keeps a single timer armed for the earliest entry; worker
// timeouts never depend on classifier cooperation.
type deadlineHeap []*request

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *deadlineHeap) Push(x any) {
	req := x.(*request)
	req.heapIndex = len(*h)
	*h = append(*h, req)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	req := old[n-1]
	old[n-1] = nil
	req.heapIndex = -1
	*h = old[:n-1]
	return req
}

// peek returns the request with the earliest deadline without removing it.
func (h deadlineHeap) peek() *request {
	return h[0]
}
