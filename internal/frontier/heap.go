package frontier

import (
	"container/heap"

	"github.com/JakeFAU/polzat/internal/crawler"
)

type entry struct {
	task crawler.Task
	seq  uint64
}

// taskHeap orders entries by priority descending, then insertion sequence
// ascending. It is not safe for concurrent use; Frontier owns the locking.
type taskHeap []entry

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	e, ok := x.(entry)
	if !ok {
		return
	}
	*h = append(*h, e)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return e
}

// queue is the single-threaded ordered container behind Frontier.
type queue struct {
	items   taskHeap
	nextSeq uint64
}

func (q *queue) push(task crawler.Task) {
	heap.Push(&q.items, entry{task: task, seq: q.nextSeq})
	q.nextSeq++
}

func (q *queue) pop() (crawler.Task, bool) {
	if len(q.items) == 0 {
		return crawler.Task{}, false
	}
	e, _ := heap.Pop(&q.items).(entry)
	return e.task, true
}

func (q *queue) len() int {
	return len(q.items)
}
