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
	"context"

	"github.com/pkg/errors"
)

// ErrFuturePanicked is wrapped into a Future's error when the submitted
// function panicked instead of returning.
var ErrFuturePanicked = errors.New("pool: future function panicked")

// Future is the result of a function submitted via Pool.SubmitFuture. It is
// resolved exactly once, by the worker that runs the function.
type Future struct {
	done chan struct{}
	val  interface{}
	err  error
}

// Wait blocks until the Future resolves or ctx is done, whichever comes
// first.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubmitFuture wraps fn in a Task and submits it for execution, returning a
// Future that resolves to fn's result. A panic inside fn is recovered and
// surfaced as the Future's error rather than crashing the worker.
func (p *Pool) SubmitFuture(fn func() (interface{}, error)) (*Future, error) {
	f := &Future{done: make(chan struct{})}
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				f.err = errors.Wrapf(ErrFuturePanicked, "%v", r)
			}
			close(f.done)
		}()
		f.val, f.err = fn()
	}
	if err := p.Submit(task); err != nil {
		return nil, err
	}
	return f, nil
}
