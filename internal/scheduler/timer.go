package scheduler

// Handle identifies a registered timer for CancelTimer.
type Handle int

// timer is one entry in the scheduler's min-heap, ordered by expire. A
// periodic timer (period != 0) is reinserted with expire += period each
// time it fires (spec.md §4.9); a one-shot timer (period == 0) is dropped
// after firing.
type timer struct {
	expire  uint64
	period  uint64
	cb      func()
	handle  Handle
	index   int
	pending bool
}

// timerHeap implements container/heap.Interface, ordered by expire —
// spec.md §9's "Pattern translations" calls out container/heap as the Go
// analogue of redream's std::multimap<ns, timer*> timer set.
type timerHeap []*timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].expire < h[j].expire }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
