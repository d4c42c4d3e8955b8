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

	"go.uber.org/atomic"
)

// Token identifies the logical owner of a RecursiveMutex. Go exposes no
// public goroutine identity, so callers that want reentrant locking obtain a
// Token once (NewToken) and thread it through every Lock/Unlock call made by
// that logical owner.
type Token struct {
	id uint64
}

var tokenSeq atomic.Uint64

// NewToken allocates a fresh, globally unique Token.
func NewToken() Token {
	return Token{id: tokenSeq.Inc()}
}

func (t Token) valid() bool { return t.id != 0 }

// RecursiveMutex is a reentrant timed mutex: the same Token may lock it
// multiple times without blocking on itself, and must unlock it the same
// number of times before another Token may acquire it.
//
// The zero value is an unlocked RecursiveMutex ready for use.
type RecursiveMutex struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner Token
	count atomic.Uint64
}

func (m *RecursiveMutex) cv() *sync.Cond {
	if m.cond == nil {
		m.cond = sync.NewCond(&m.mu)
	}
	return m.cond
}

// Lock blocks until tok owns the mutex (immediately, if tok already owns it)
// and increments the reentry count.
func (m *RecursiveMutex) Lock(tok Token) {
	m.mu.Lock()
	for m.count.Load() != 0 && m.owner != tok {
		m.cv().Wait()
	}
	if m.count.Load() == 0 {
		m.owner = tok
	}
	m.count.Inc()
	m.mu.Unlock()
}

// TryLock is the non-blocking variant of Lock.
func (m *RecursiveMutex) TryLock(tok Token) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count.Load() != 0 && m.owner != tok {
		return false
	}
	if m.count.Load() == 0 {
		m.owner = tok
	}
	m.count.Inc()
	return true
}

// TryLockFor is equivalent to TryLockUntil(time.Now().Add(d)).
func (m *RecursiveMutex) TryLockFor(tok Token, d time.Duration) bool {
	return m.TryLockUntil(tok, time.Now().Add(d))
}

// TryLockUntil blocks until tok can acquire the mutex or the absolute
// deadline passes.
func (m *RecursiveMutex) TryLockUntil(tok Token, deadline time.Time) bool {
	if deadlinePast(deadline) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count.Load() == 0 || m.owner == tok {
		if m.count.Load() == 0 {
			m.owner = tok
		}
		m.count.Inc()
		return true
	}

	timer := time.AfterFunc(time.Until(deadline), func() { m.cv().Broadcast() })
	defer timer.Stop()

	for m.count.Load() != 0 && m.owner != tok {
		if deadlinePast(deadline) {
			return false
		}
		m.cv().Wait()
	}
	if m.count.Load() == 0 {
		m.owner = tok
	}
	m.count.Inc()
	return true
}

// Unlock decrements the reentry count. When it reaches zero the mutex is
// released and one waiter is woken, with the internal mutex dropped first
// (release-before-notify) so the woken waiter never re-blocks on it.
//
// Unlock panics with ErrNotOwner if tok is not the current owner.
func (m *RecursiveMutex) Unlock(tok Token) {
	m.mu.Lock()
	if m.count.Load() == 0 || m.owner != tok {
		m.mu.Unlock()
		panic(ErrNotOwner)
	}
	remaining := m.count.Dec()
	wake := remaining == 0
	if wake {
		m.owner = Token{}
	}
	m.mu.Unlock()
	if wake {
		m.cv().Signal()
	}
}

// Bind returns a Lockable view of m for the given token, so a
// RecursiveMutex can participate in AcquireAll/ScopedMultiLock alongside
// SpinMutex and TimedMutex.
func (m *RecursiveMutex) Bind(tok Token) Lockable {
	return boundRecursiveMutex{m: m, tok: tok}
}

type boundRecursiveMutex struct {
	m   *RecursiveMutex
	tok Token
}

func (b boundRecursiveMutex) Lock()         { b.m.Lock(b.tok) }
func (b boundRecursiveMutex) TryLock() bool { return b.m.TryLock(b.tok) }
func (b boundRecursiveMutex) Unlock()       { b.m.Unlock(b.tok) }
