// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package pool

import (
	"container/heap"
	"sync"
	"time"

	"github.com/nbtaylor/go-syncpool/lock"
)

// Task is an opaque nullary unit of work submitted to a Queue or Pool.
type Task func()

// PopStatus describes the outcome of a Queue.Pop call.
type PopStatus int

const (
	// Ready indicates a task was returned and should be executed.
	Ready PopStatus = iota
	// Stopped indicates the queue is stopped and fully drained.
	Stopped
	// Timeout indicates idleTimeout elapsed with no task becoming ready.
	Timeout
)

type delayedTask struct {
	deadline time.Time
	task     Task
	index    int
}

// delayHeap is a container/heap.Interface ordering delayedTasks by deadline,
// the same shape gaio's watcher.go uses for its per-connection timeout
// queue.
type delayHeap []*delayedTask

func (h delayHeap) Len() int            { return len(h) }
func (h delayHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayHeap) Push(x any) {
	item := x.(*delayedTask)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Queue is a blocking task queue supporting FIFO, priority ("jump the
// line"), and absolute-deadline delayed submission. Submission and
// consumption are serialized by one internal mutex; a single condition
// variable signals new work and stop.
//
// The zero value is not usable; construct one with NewQueue.
type Queue struct {
	mu   lock.TimedMutex
	cond *sync.Cond

	normal  []Task
	delayed delayHeap
	stopped bool
}

// NewQueue returns a ready-to-use, empty Queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends t to the FIFO and wakes one consumer.
func (q *Queue) Push(t Task) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	q.normal = append(q.normal, t)
	q.mu.Unlock()
	q.cond.Signal()
	return nil
}

// PushPriority prepends t to the FIFO, ahead of every task already queued
// there, including earlier priority tasks. This is a single "jump the line"
// level, not a general priority queue.
func (q *Queue) PushPriority(t Task) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	q.normal = append([]Task{t}, q.normal...)
	q.mu.Unlock()
	q.cond.Signal()
	return nil
}

// PushDelay inserts t into the delay heap, keyed by the absolute monotonic
// deadline at which it becomes eligible for Pop.
func (q *Queue) PushDelay(t Task, deadline time.Time) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	heap.Push(&q.delayed, &delayedTask{deadline: deadline, task: t})
	q.mu.Unlock()
	q.cond.Signal()
	return nil
}

// Pop returns the next task to run, blocking until one is ready, the queue
// is stopped and drained, or idleTimeout elapses without any work becoming
// ready:
//
//  1. If the earliest delayed task's deadline has passed, it is returned.
//  2. Else if the FIFO has a task, it is returned.
//  3. Else if the queue is stopped and both structures are empty, Stopped.
//  4. Else the caller sleeps until either idleTimeout elapses or the next
//     delayed task's deadline arrives, then re-evaluates from step 1; if
//     idleTimeout elapses with nothing ready, Timeout.
func (q *Queue) Pop(idleTimeout time.Duration) (Task, PopStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	arrivalDeadline := time.Now().Add(idleTimeout)
	for {
		now := time.Now()

		if n := len(q.delayed); n > 0 && !q.delayed[0].deadline.After(now) {
			item := heap.Pop(&q.delayed).(*delayedTask)
			return item.task, Ready, nil
		}

		if len(q.normal) > 0 {
			t := q.normal[0]
			q.normal = q.normal[1:]
			return t, Ready, nil
		}

		if q.stopped && len(q.delayed) == 0 {
			return nil, Stopped, nil
		}

		if !now.Before(arrivalDeadline) {
			return nil, Timeout, nil
		}

		waitUntil := arrivalDeadline
		if len(q.delayed) > 0 && q.delayed[0].deadline.Before(waitUntil) {
			waitUntil = q.delayed[0].deadline
		}

		timer := time.AfterFunc(time.Until(waitUntil), q.cond.Broadcast)
		q.cond.Wait()
		timer.Stop()
	}
}

// Stop marks the queue stopped: further Push/PushPriority/PushDelay calls
// fail with ErrQueueStopped, but already-enqueued tasks remain drainable via
// Pop until both structures are empty.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Size returns the total number of tasks currently queued (normal +
// delayed), a point-in-time snapshot used by the pool's expand heuristic.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.normal) + len(q.delayed)
}
