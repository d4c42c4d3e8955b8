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

import "go.uber.org/atomic"

// SpinMutex is a test-and-test-and-set exclusive lock over a single atomic
// flag. It never blocks on a condition variable and offers no fairness, no
// timed variants, and no reentry: relocking from the same goroutine deadlocks
// the spinner. Intended only for very short critical sections where the cost
// of a syscall-backed wait would dwarf the critical section itself.
//
// The zero value is an unlocked SpinMutex.
type SpinMutex struct {
	locked atomic.Bool
}

// Lock spins until the flag can be claimed. A read-only inner spin (no CAS)
// runs between compare-and-swap attempts so that contending goroutines don't
// all hammer the same cache line with write traffic while the lock is held.
func (m *SpinMutex) Lock() {
	for !m.locked.CompareAndSwap(false, true) {
		for m.locked.Load() {
			// relaxed read-only spin; reduces cache-line ping-pong before
			// the next CAS attempt.
		}
	}
}

// TryLock attempts to claim the flag without spinning, returning whether it
// succeeded.
func (m *SpinMutex) TryLock() bool {
	return m.locked.CompareAndSwap(false, true)
}

// Unlock clears the flag. Calling Unlock on an already-unlocked SpinMutex, or
// from a goroutine other than the one that locked it, is undefined behavior —
// the type does not track an owner.
func (m *SpinMutex) Unlock() {
	m.locked.Store(false)
}
