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

package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimedMutexLockUnlock(t *testing.T) {
	var m TimedMutex
	m.Lock()
	m.Unlock()
	assert.True(t, m.TryLock())
	m.Unlock()
}

func TestTimedMutexTryLockForEqualsTryLock(t *testing.T) {
	var m TimedMutex
	m.Lock()
	assert.False(t, m.TryLockFor(0))
	m.Unlock()
	assert.True(t, m.TryLockFor(0))
}

func TestTimedMutexTryLockUntilPastIsImmediateFailure(t *testing.T) {
	var m TimedMutex
	start := time.Now()
	ok := m.TryLockUntil(start.Add(-time.Hour))
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

// TestTimedMutexTimeoutThenSuccess exercises a holder taking the lock and
// sleeping, a contender's short try-lock failing, and a longer try-lock
// later succeeding once the holder releases.
func TestTimedMutexTimeoutThenSuccess(t *testing.T) {
	var m TimedMutex
	m.Lock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(200 * time.Millisecond)
		m.Unlock()
	}()

	start := time.Now()
	ok := m.TryLockFor(50 * time.Millisecond)
	elapsed := time.Since(start)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 45*time.Millisecond)

	ok = m.TryLockFor(400 * time.Millisecond)
	require.True(t, ok)
	m.Unlock()

	<-done
}

func TestTimedMutexUnlockUnheldPanics(t *testing.T) {
	var m TimedMutex
	assert.PanicsWithValue(t, ErrNotLocked, func() { m.Unlock() })
}

func TestTimedMutexMutualExclusion(t *testing.T) {
	var m TimedMutex
	var counter int
	var wg sync.WaitGroup

	const goroutines = 16
	const iterations = 500

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*iterations, counter)
}

func BenchmarkTimedMutex(b *testing.B) {
	var m TimedMutex
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Lock()
			m.Unlock()
		}
	})
}
