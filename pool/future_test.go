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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureResolvesWithValue(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(1))
	require.NoError(t, err)
	defer p.Stop()

	f, err := p.SubmitFuture(func() (interface{}, error) { return 42, nil })
	require.NoError(t, err)

	val, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestFutureSurfacesPanicAsError(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(1))
	require.NoError(t, err)
	defer p.Stop()

	f, err := p.SubmitFuture(func() (interface{}, error) { panic("boom") })
	require.NoError(t, err)

	_, err = f.Wait(context.Background())
	assert.ErrorIs(t, err, ErrFuturePanicked)
}

func TestFutureWaitRespectsContext(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(1))
	require.NoError(t, err)
	defer p.Stop()

	block := make(chan struct{})
	f, err := p.SubmitFuture(func() (interface{}, error) {
		<-block
		return nil, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestSubmitFutureAfterStopFails(t *testing.T) {
	p, err := New(WithMinWorkers(1), WithMaxWorkers(1))
	require.NoError(t, err)
	p.Stop()

	_, err = p.SubmitFuture(func() (interface{}, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrStopped)
}
