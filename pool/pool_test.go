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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRejectsBadBounds(t *testing.T) {
	_, err := New(WithMinWorkers(5), WithMaxWorkers(2))
	assert.ErrorIs(t, err, ErrCapacityMisconfigured)

	_, err = New(WithMinWorkers(-1))
	assert.ErrorIs(t, err, ErrCapacityMisconfigured)

	_, err = New(WithMaxWorkers(0))
	assert.ErrorIs(t, err, ErrCapacityMisconfigured)
}

func TestPoolRunsSubmittedTask(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(2))
	require.NoError(t, err)
	defer p.Stop()

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestPoolSubmitAfterStopFails(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(1))
	require.NoError(t, err)
	p.Stop()

	assert.ErrorIs(t, p.Submit(func() {}), ErrStopped)
	assert.ErrorIs(t, p.SubmitPriority(func() {}), ErrStopped)
	assert.ErrorIs(t, p.SubmitDelay(func() {}, time.Now()), ErrStopped)
}

func TestPoolStopIsIdempotent(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(1))
	require.NoError(t, err)
	p.Stop()
	assert.NotPanics(t, p.Stop)
}

func TestPoolPanickingTaskDoesNotKillWorker(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(1))
	require.NoError(t, err)
	defer p.Stop()

	require.NoError(t, p.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

// TestPoolScalesUpUnderBacklog submits far more slow tasks than min workers
// and checks that more than the 2 core workers, but never more than max, run
// tasks at the same time.
func TestPoolScalesUpUnderBacklog(t *testing.T) {
	p, err := New(WithMinWorkers(2), WithMaxWorkers(10), WithIdleTimeout(300*time.Millisecond))
	require.NoError(t, err)
	defer p.Stop()

	var inFlight int32
	var maxSeen int32
	var wg sync.WaitGroup
	wg.Add(30)
	for i := 0; i < 30; i++ {
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(150 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}))
	}

	wg.Wait()
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&maxSeen)), 3,
		"pool never scaled past its 2 core workers under backlog")
	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxSeen)), 10)
}

// TestPoolScalesDownAfterIdle checks that once backlog drains, workers above
// min exit within idleTimeout and a couple of reap cycles.
func TestPoolScalesDownAfterIdle(t *testing.T) {
	p, err := New(WithMinWorkers(2), WithMaxWorkers(8), WithIdleTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(16)
	for i := 0; i < 16; i++ {
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			time.Sleep(50 * time.Millisecond)
		}))
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		// Nudge the reaper: a worker only moves from dead to actually
		// joined when expand() runs again, so issue trivial submissions.
		_ = p.Submit(func() {})
		return p.Stats().Workers <= 2
	}, 4*time.Second, 50*time.Millisecond)
}

func TestPoolStatsPendingReflectsQueue(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(1))
	require.NoError(t, err)
	defer p.Stop()

	block := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-block }))
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func() {}))
	}

	require.Eventually(t, func() bool {
		return p.Stats().Pending == 5
	}, time.Second, 10*time.Millisecond)

	close(block)
}

func TestPoolStopJoinsAllWorkersIncludingScaledUp(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(6), WithIdleTimeout(2*time.Second))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(12)
	for i := 0; i < 12; i++ {
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
		}))
	}
	wg.Wait()

	done := make(chan struct{})
	go func() { p.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not join all scaled-up workers")
	}
	assert.Equal(t, 0, p.Stats().Workers)
}
