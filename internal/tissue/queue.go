package tissue

import "neoplasm/internal/cell"

// entry schedules one cell for its pending event. seq is the insertion
// counter that breaks ties at equal times, so replays with one seed pop in
// one order.
type entry struct {
	time float64
	seq  uint64
	c    *cell.Cell
}

// eventQueue is a min-heap on (time, seq) used with container/heap.
type eventQueue []*entry

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*entry)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
