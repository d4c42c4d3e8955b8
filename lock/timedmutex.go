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
	"time"
)

// TimedMutex is a non-recursive exclusive lock that, in addition to Lock and
// TryLock, supports bounded waits via TryLockFor and TryLockUntil.
//
// The zero value is an unlocked TimedMutex ready for use.
type TimedMutex struct {
	mu   sync.Mutex
	cond *sync.Cond
	held bool
}

func (m *TimedMutex) cv() *sync.Cond {
	if m.cond == nil {
		m.cond = sync.NewCond(&m.mu)
	}
	return m.cond
}

// Lock blocks until the mutex can be acquired.
func (m *TimedMutex) Lock() {
	m.mu.Lock()
	for m.held {
		m.cv().Wait()
	}
	m.held = true
	m.mu.Unlock()
}

// TryLock acquires the mutex without blocking, returning whether it
// succeeded.
func (m *TimedMutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return false
	}
	m.held = true
	return true
}

// TryLockFor is equivalent to TryLockUntil(time.Now().Add(d)), except that a
// non-positive d makes it equivalent to TryLock.
func (m *TimedMutex) TryLockFor(d time.Duration) bool {
	if d <= 0 {
		return m.TryLock()
	}
	return m.TryLockUntil(time.Now().Add(d))
}

// TryLockUntil blocks until either the mutex is acquired or the absolute
// deadline passes, whichever comes first. A deadline already in the past is
// treated as an immediate failure.
func (m *TimedMutex) TryLockUntil(deadline time.Time) bool {
	if deadlinePast(deadline) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		m.held = true
		return true
	}

	timer := time.AfterFunc(time.Until(deadline), func() { m.cv().Broadcast() })
	defer timer.Stop()

	for m.held {
		if deadlinePast(deadline) {
			return false
		}
		m.cv().Wait()
	}
	m.held = true
	return true
}

// Unlock releases the mutex and wakes exactly one waiter, if any. The
// internal mutex is dropped before signalling (release-before-notify) so
// that the woken waiter does not immediately collide on it.
//
// Unlock panics with ErrNotLocked if the mutex is not currently held; callers
// that want a typed error instead of a panic should track ownership
// themselves, since a plain TimedMutex (unlike RecursiveMutex) does not.
func (m *TimedMutex) Unlock() {
	m.mu.Lock()
	if !m.held {
		m.mu.Unlock()
		panic(ErrNotLocked)
	}
	m.held = false
	m.mu.Unlock()
	m.cv().Signal()
}
