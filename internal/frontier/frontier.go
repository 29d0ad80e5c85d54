// Package frontier holds pending tasks in priority order.
package frontier

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/polzat/internal/crawler"
)

// ErrFull is returned by Push when the configured capacity is reached.
var ErrFull = errors.New("frontier full")

// Frontier is a priority queue of tasks safe for concurrent use. Higher
// priority tasks are served first; equal priorities are served in push order.
// Pop never blocks: an empty frontier is reported immediately.
type Frontier struct {
	mu       sync.RWMutex
	q        queue
	capacity int
}

// New creates a Frontier. A capacity of zero or less means unbounded.
func New(capacity int) *Frontier {
	if capacity < 0 {
		capacity = 0
	}
	return &Frontier{capacity: capacity}
}

// Push inserts a task.
func (f *Frontier) Push(task crawler.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capacity > 0 && f.q.len() >= f.capacity {
		return fmt.Errorf("push %s: %w (capacity %d)", task.URL, ErrFull, f.capacity)
	}
	f.q.push(task)
	return nil
}

// Pop removes and returns the highest priority task. The boolean is false
// when the frontier is empty.
func (f *Frontier) Pop() (crawler.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.q.pop()
}

// Len returns the number of pending tasks at the time of the call.
func (f *Frontier) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.q.len()
}

// Capacity reports the configured bound, zero when unbounded.
func (f *Frontier) Capacity() int {
	return f.capacity
}
