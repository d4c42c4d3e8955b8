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

// Package lock implements the non-trivial blocking synchronization
// primitives used elsewhere in this module: a spin mutex, a timed mutex, a
// reentrant timed mutex, a fair FIFO reader-writer lock, and a generic
// multi-lock acquirer.
package lock

import (
	"runtime"
	"time"

	"github.com/pkg/errors"
)

const startingBackoff = 50 * time.Microsecond
const maxBackoff = 500 * time.Microsecond
const backoffFactor = 2

// ErrNotLocked is the value TimedMutex.Unlock panics with when the mutex is
// not currently held.
var ErrNotLocked = errors.New("lock: unlock of unheld mutex")

// ErrNotOwner is the value RecursiveMutex.Unlock panics with when the given
// Token is not the current owner (including when the mutex is not held).
var ErrNotOwner = errors.New("lock: unlock by non-owning token")

// spinBackoff performs a short, capped, exponentially increasing sleep. It
// is used between failed AcquireAll attempts so that the retry loop relaxes
// contention on the locks rather than hammering them every time through.
func spinBackoff(attempt uint) {
	if attempt == 0 {
		runtime.Gosched()
		return
	}
	d := startingBackoff
	for i := uint(0); i < attempt; i++ {
		d *= backoffFactor
		if d > maxBackoff {
			d = maxBackoff
			break
		}
	}
	time.Sleep(d)
}

// deadlinePast reports whether d is already in the past relative to now. The
// try-lock-until variants treat a past deadline as an immediate failure
// rather than a blocking wait.
func deadlinePast(d time.Time) bool {
	return !d.After(time.Now())
}
