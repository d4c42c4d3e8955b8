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

import "runtime"

// Lockable is anything that can be locked unconditionally, attempted
// non-blockingly, and unlocked. SpinMutex, TimedMutex, FIFORWMutex (directly
// for exclusive access, or via RLocker for shared access) and RecursiveMutex
// (bound to a Token) all satisfy it.
type Lockable interface {
	Lock()
	TryLock() bool
	Unlock()
}

// AcquireAll locks every one of locks in a deadlock-free order: it blocks on
// locks[0], then attempts a non-blocking TryLock on each of locks[1:] in
// order. If any attempt fails, every lock acquired so far is released and the
// whole sequence restarts from locks[0]. On return, the caller holds every
// lock in locks.
//
// This is deadlock-free (any cycle among holders releases on a failed
// try-lock) but not starvation-free: a sufficiently unlucky caller can retry
// indefinitely under adversarial scheduling.
//
// For n == 0, AcquireAll is a no-op. For n == 1, it degenerates to
// locks[0].Lock().
func AcquireAll(locks ...Lockable) {
	switch len(locks) {
	case 0:
		return
	case 1:
		locks[0].Lock()
		return
	}

	for attempt := uint(0); ; attempt++ {
		locks[0].Lock()

		acquired := 1
		ok := true
		for _, l := range locks[1:] {
			if !l.TryLock() {
				ok = false
				break
			}
			acquired++
		}
		if ok {
			return
		}

		for i := 0; i < acquired; i++ {
			locks[i].Unlock()
		}
		if attempt == 0 {
			runtime.Gosched()
		} else {
			spinBackoff(attempt)
		}
	}
}

// TryAcquireAll attempts to acquire every lock in locks without ever
// blocking. It makes exactly one pass: on the first failed TryLock, it
// releases everything acquired so far and returns false. Unlike AcquireAll it
// never retries.
func TryAcquireAll(locks ...Lockable) bool {
	acquired := 0
	for _, l := range locks {
		if !l.TryLock() {
			for i := 0; i < acquired; i++ {
				locks[i].Unlock()
			}
			return false
		}
		acquired++
	}
	return true
}

// ScopedMultiLock owns a set of locks acquired together and releases all of
// them on Release. Construct one with Acquire (which blocks, like
// AcquireAll) or Adopt (for locks the caller has already locked itself, e.g.
// via a prior TryAcquireAll).
type ScopedMultiLock struct {
	locks []Lockable
}

// Acquire locks every one of locks (via AcquireAll) and returns a
// ScopedMultiLock owning them.
func Acquire(locks ...Lockable) *ScopedMultiLock {
	AcquireAll(locks...)
	return &ScopedMultiLock{locks: locks}
}

// Adopt returns a ScopedMultiLock that assumes locks are already held by the
// caller; it performs no locking itself.
func Adopt(locks ...Lockable) *ScopedMultiLock {
	return &ScopedMultiLock{locks: locks}
}

// Release unlocks every lock owned by s, in reverse acquisition order. It is
// a programming error to call Release more than once.
func (s *ScopedMultiLock) Release() {
	for i := len(s.locks) - 1; i >= 0; i-- {
		s.locks[i].Unlock()
	}
}
