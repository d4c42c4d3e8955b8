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
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

const defaultMinWorkers = 2
const defaultIdleTimeout = 2 * time.Second

// Option configures a Pool constructed via New.
type Option func(*config)

type config struct {
	min, max    int
	idleTimeout time.Duration
	name        string
	log         zerolog.Logger
}

func defaultConfig() config {
	return config{
		min:         defaultMinWorkers,
		max:         runtime.NumCPU(),
		idleTimeout: defaultIdleTimeout,
		log:         zerolog.Nop(),
	}
}

// WithMinWorkers sets the lower bound on live workers (the core pool). The
// default is 2.
func WithMinWorkers(n int) Option {
	return func(c *config) { c.min = n }
}

// WithMaxWorkers sets the upper bound on live workers. The default is
// runtime.NumCPU().
func WithMaxWorkers(n int) Option {
	return func(c *config) { c.max = n }
}

// WithIdleTimeout sets how long a non-core worker waits for work before
// exiting. The default is 2s.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) { c.idleTimeout = d }
}

// WithName attaches a name used only in log fields, for operators running
// multiple pools.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithLogger attaches a structured logger that receives info-level events
// at scale-up/scale-down transitions. Logging never affects correctness.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = l }
}
