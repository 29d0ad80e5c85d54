package frontier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/polzat/internal/crawler"
)

func TestQueueOrdersByPriorityThenSequence(t *testing.T) {
	t.Parallel()

	var q queue
	q.push(crawler.Task{Priority: 5, URL: "A"})
	q.push(crawler.Task{Priority: 9, URL: "B"})
	q.push(crawler.Task{Priority: 5, URL: "C"})

	var order []string
	for {
		task, ok := q.pop()
		if !ok {
			break
		}
		order = append(order, task.URL)
	}
	require.Equal(t, []string{"B", "A", "C"}, order)
}

func TestQueueFIFOAmongManyTies(t *testing.T) {
	t.Parallel()

	var q queue
	urls := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for i, u := range urls {
		// interleave lower priority tasks to force heap reshuffles
		q.push(crawler.Task{Priority: 1, URL: u})
		if i%3 == 0 {
			q.push(crawler.Task{Priority: 0, URL: "low-" + u})
		}
	}
	for _, want := range urls {
		task, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, want, task.URL)
	}
	for _, want := range []string{"low-a", "low-d", "low-g", "low-j"} {
		task, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, want, task.URL)
	}
	require.Equal(t, 0, q.len())
}

func TestQueueNonIncreasingPriorities(t *testing.T) {
	t.Parallel()

	var q queue
	priorities := []uint8{3, 255, 0, 17, 17, 128, 1, 0, 255, 64}
	for _, p := range priorities {
		q.push(crawler.Task{Priority: p})
	}
	last := uint8(255)
	for range priorities {
		task, ok := q.pop()
		require.True(t, ok)
		require.LessOrEqual(t, task.Priority, last)
		last = task.Priority
	}
}
