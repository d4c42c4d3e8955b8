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

// Package pool implements a blocking task queue (FIFO + priority + delay)
// and an elastic worker pool built on top of it, scaling worker count up
// under backlog and down on idle timeout.
package pool

import "github.com/pkg/errors"

// ErrQueueStopped is returned by Queue.Push/PushPriority/PushDelay once
// Queue.Stop has been called.
var ErrQueueStopped = errors.New("pool: queue is stopped")

// ErrStopped is returned by Pool.Submit and its variants once Pool.Stop has
// been called.
var ErrStopped = errors.New("pool: pool is stopped")

// ErrCapacityMisconfigured is returned by New when max is non-positive, min
// is negative, or the bounds are inverted (max < min).
var ErrCapacityMisconfigured = errors.New("pool: min/max worker bounds misconfigured")
