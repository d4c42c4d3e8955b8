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

	"github.com/rs/zerolog"
)

type waitMode int

const (
	modeRead waitMode = iota
	modeWrite
)

// rwNode is a queued lock request. gate is closed by the scheduler exactly
// once, when the node is admitted; it is the node's private wake-up channel,
// so admitting one waiter never has to broadcast and wake the rest.
type rwNode struct {
	mode   waitMode
	ticket uint64
	gate   chan struct{}
}

// FIFORWMutex is a multi-reader/single-writer lock that serves arrivals in
// FIFO order. Consecutive queued readers are admitted together as a single
// batch; a writer immediately behind a reader batch is never admitted with
// it. Neither readers nor writers can starve.
//
// The zero value is an unlocked FIFORWMutex ready for use. Use
// NewFIFORWMutex to attach an optional logger.
type FIFORWMutex struct {
	mu sync.Mutex

	q              []*rwNode
	hasWriter      bool
	readerCnt      int
	pendingReaders int
	nextTicket     uint64

	log *zerolog.Logger
}

// RWOption configures a FIFORWMutex constructed via NewFIFORWMutex.
type RWOption func(*FIFORWMutex)

// WithLogger attaches a structured logger that receives debug-level events
// for scheduler decisions (batch admission, writer promotion). Logging never
// affects correctness.
func WithLogger(l zerolog.Logger) RWOption {
	return func(m *FIFORWMutex) { m.log = &l }
}

// NewFIFORWMutex returns a ready-to-use FIFORWMutex.
func NewFIFORWMutex(opts ...RWOption) *FIFORWMutex {
	m := &FIFORWMutex{}
	for _, o := range opts {
		o(m)
	}
	return m
}

var nopLogger = zerolog.Nop()

// logger returns the configured logger, or a no-op logger for a FIFORWMutex
// used via its zero value instead of NewFIFORWMutex.
func (m *FIFORWMutex) logger() *zerolog.Logger {
	if m.log == nil {
		return &nopLogger
	}
	return m.log
}

// schedLocked inspects the queue and counters (mu must be held) and decides
// which waiter(s), if any, to admit. It mutates hasWriter/pendingReaders and
// pops admitted nodes from the queue, but returns the gates to close rather
// than closing them itself, so that callers can release mu first
// (release-before-notify): a woken waiter should never have to re-block on
// the mutex that just admitted it.
func (m *FIFORWMutex) schedLocked() []chan struct{} {
	if m.hasWriter || m.pendingReaders > 0 {
		return nil
	}
	if len(m.q) == 0 {
		return nil
	}

	head := m.q[0]
	if head.mode == modeWrite {
		if m.readerCnt > 0 {
			return nil
		}
		m.q = m.q[1:]
		m.hasWriter = true
		m.logger().Debug().Uint64("ticket", head.ticket).Msg("rwmutex: admitting queued writer")
		return []chan struct{}{head.gate}
	}

	var gates []chan struct{}
	for len(m.q) > 0 && m.q[0].mode == modeRead {
		n := m.q[0]
		m.q = m.q[1:]
		gates = append(gates, n.gate)
	}
	m.pendingReaders += len(gates)
	m.logger().Debug().Int("batch_size", len(gates)).Msg("rwmutex: admitting reader batch")
	return gates
}

func closeAll(gates []chan struct{}) {
	for _, g := range gates {
		close(g)
	}
}

// Lock acquires the mutex for exclusive access, blocking until it is free
// and this goroutine's turn in FIFO order has arrived.
func (m *FIFORWMutex) Lock() {
	m.mu.Lock()
	m.nextTicket++
	n := &rwNode{mode: modeWrite, ticket: m.nextTicket, gate: make(chan struct{})}
	m.q = append(m.q, n)
	gates := m.schedLocked()
	m.mu.Unlock()
	closeAll(gates)

	<-n.gate
	// has_writer was already set true by the scheduler at admission time,
	// under the same mutex that popped this node off the queue.
}

// Unlock releases an exclusive lock and re-runs the scheduler.
func (m *FIFORWMutex) Unlock() {
	m.mu.Lock()
	m.hasWriter = false
	gates := m.schedLocked()
	m.mu.Unlock()
	closeAll(gates)
}

// RLock acquires the mutex for shared access, blocking until admitted.
func (m *FIFORWMutex) RLock() {
	m.mu.Lock()
	m.nextTicket++
	n := &rwNode{mode: modeRead, ticket: m.nextTicket, gate: make(chan struct{})}
	m.q = append(m.q, n)
	gates := m.schedLocked()
	m.mu.Unlock()
	closeAll(gates)

	<-n.gate

	m.mu.Lock()
	m.readerCnt++
	m.pendingReaders--
	m.mu.Unlock()
	// Deliberately does not re-invoke the scheduler: a live reader already
	// blocks writer admission, so there is nothing new to decide here.
}

// RUnlock releases a shared lock. The scheduler is re-run only once the last
// active reader has released and no batch is still entering, so a queued
// writer is never admitted out from under readers that are still arriving.
func (m *FIFORWMutex) RUnlock() {
	m.mu.Lock()
	m.readerCnt--
	var gates []chan struct{}
	if m.readerCnt == 0 && m.pendingReaders == 0 {
		gates = m.schedLocked()
	}
	m.mu.Unlock()
	closeAll(gates)
}

// TryLock acquires the mutex for exclusive access only if it is completely
// uncontended: no writer, no active or admitted readers, and nothing queued.
// This strict no-cutting policy preserves FIFO fairness for blocking
// acquirers.
func (m *FIFORWMutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasWriter || m.readerCnt > 0 || m.pendingReaders > 0 || len(m.q) > 0 {
		return false
	}
	m.hasWriter = true
	return true
}

// TryRLock is the shared-access analogue of TryLock, with the same
// strict no-cutting policy.
func (m *FIFORWMutex) TryRLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasWriter || m.pendingReaders > 0 || len(m.q) > 0 {
		return false
	}
	m.readerCnt++
	return true
}

// RLocker returns a Lockable view over the shared-access side of m, so it
// can participate in AcquireAll/ScopedMultiLock alongside the other
// primitives in this package.
func (m *FIFORWMutex) RLocker() Lockable {
	return rwMutexRLocker{m}
}

type rwMutexRLocker struct{ m *FIFORWMutex }

func (r rwMutexRLocker) Lock()         { r.m.RLock() }
func (r rwMutexRLocker) TryLock() bool { return r.m.TryRLock() }
func (r rwMutexRLocker) Unlock()       { r.m.RUnlock() }
