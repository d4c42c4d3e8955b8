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
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

type workerHandle struct {
	id   int64
	done chan struct{}
}

// Stats is a point-in-time snapshot of a Pool's worker accounting.
type Stats struct {
	Workers int // live workers, core + scaled
	Idle    int // workers currently blocked in Pop
	Pending int // tasks sitting in the queue (normal + delayed)
	Dead    int // exited workers awaiting a join by Stop or the reaper
}

// Pool is an elastic worker pool built on a Queue. It spawns min workers at
// construction, scales up toward max under backlog, and scales individual
// non-core workers back down after idleTimeout of inactivity.
type Pool struct {
	queue *Queue

	min, max    int
	idleTimeout time.Duration
	name        string
	log         zerolog.Logger

	mu      sync.Mutex
	workers map[int64]*workerHandle
	dead    []*workerHandle

	idleCount atomic.Int64
	stopping  atomic.Bool
	nextID    atomic.Int64
}

// New constructs a Pool and spawns its min workers. It fails with
// ErrCapacityMisconfigured if max <= 0, min < 0, or min > max.
func New(opts ...Option) (*Pool, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.max <= 0 || cfg.min < 0 || cfg.min > cfg.max {
		return nil, ErrCapacityMisconfigured
	}

	p := &Pool{
		queue:       NewQueue(),
		min:         cfg.min,
		max:         cfg.max,
		idleTimeout: cfg.idleTimeout,
		name:        cfg.name,
		log:         cfg.log,
		workers:     make(map[int64]*workerHandle),
	}

	for i := 0; i < p.min; i++ {
		p.spawnWorker()
	}
	return p, nil
}

func (p *Pool) spawnWorker() {
	id := p.nextID.Inc()
	h := &workerHandle{id: id, done: make(chan struct{})}

	p.mu.Lock()
	p.workers[id] = h
	p.mu.Unlock()

	go p.workerLoop(h)
}

// workerLoop implements the worker state machine: Idle (blocked in Pop),
// Running (executing a task), Exiting (terminal). idleCount brackets every
// interval spent blocked in Pop, so it stays accurate across Timeout
// iterations that don't exit.
func (p *Pool) workerLoop(h *workerHandle) {
	defer close(h.done)

	p.idleCount.Inc()
	for {
		task, status, _ := p.queue.Pop(p.idleTimeout)
		switch status {
		case Ready:
			p.idleCount.Dec()
			p.runTask(task)
			p.idleCount.Inc()

		case Stopped:
			p.idleCount.Dec()
			return

		case Timeout:
			if p.stopping.Load() {
				// A stopped queue reports Timeout only while delayed tasks
				// are still waiting for their deadlines; keep popping until
				// they have run and Pop reports Stopped.
				continue
			}

			p.mu.Lock()
			if len(p.workers) > p.min {
				delete(p.workers, h.id)
				p.dead = append(p.dead, h)
				p.mu.Unlock()
				p.idleCount.Dec()
				p.log.Info().Str("pool", p.name).Int64("worker", h.id).Msg("pool: scaling down idle worker")
				return
			}
			p.mu.Unlock()
			// Core worker: stay idle and loop back into Pop.
		}
	}
}

// runTask executes t, recovering any panic so that a failing task never
// tears down the worker or the pool.
func (p *Pool) runTask(t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("pool", p.name).Interface("panic", r).Msg("pool: task panicked")
		}
	}()
	t()
}

// Submit enqueues t for execution. It fails with ErrStopped if the pool has
// been stopped.
func (p *Pool) Submit(t Task) error {
	if p.stopping.Load() {
		return ErrStopped
	}
	if err := p.queue.Push(t); err != nil {
		return ErrStopped
	}
	p.expand()
	return nil
}

// SubmitPriority enqueues t ahead of normally-submitted tasks.
func (p *Pool) SubmitPriority(t Task) error {
	if p.stopping.Load() {
		return ErrStopped
	}
	if err := p.queue.PushPriority(t); err != nil {
		return ErrStopped
	}
	p.expand()
	return nil
}

// SubmitDelay enqueues t to run no earlier than deadline. Delayed tasks
// survive Stop: the min core workers remain alive to execute them even
// after the pool has begun stopping.
func (p *Pool) SubmitDelay(t Task, deadline time.Time) error {
	if p.stopping.Load() {
		return ErrStopped
	}
	if err := p.queue.PushDelay(t, deadline); err != nil {
		return ErrStopped
	}
	p.expand()
	return nil
}

// expand grows the pool toward max when backlog exceeds idle capacity, then
// runs the non-blocking reaper.
func (p *Pool) expand() {
	pending := p.queue.Size()
	idle := int(p.idleCount.Load())

	p.mu.Lock()
	active := len(p.workers)
	p.mu.Unlock()

	if active < p.max && pending > idle+1 {
		toSpawn := pending - idle
		if room := p.max - active; toSpawn > room {
			toSpawn = room
		}
		for i := 0; i < toSpawn; i++ {
			p.spawnWorker()
		}
		p.log.Info().Str("pool", p.name).Int("spawned", toSpawn).Int("active", active+toSpawn).Msg("pool: scaling up")
	}

	p.reap()
}

// reap attempt-locks the pool mutex and, if it acquires it and the dead list
// is non-empty, joins every exited worker outside the lock. Using TryLock
// here means a concurrent Stop never blocks a routine submission path behind
// reaping.
func (p *Pool) reap() {
	if !p.mu.TryLock() {
		return
	}
	if len(p.dead) == 0 {
		p.mu.Unlock()
		return
	}
	toJoin := p.dead
	p.dead = nil
	p.mu.Unlock()

	for _, h := range toJoin {
		<-h.done
	}
}

// Stop idempotently stops the pool: the queue stops accepting new work,
// already-queued tasks (including delayed ones) continue draining, and Stop
// blocks until every worker — core, scaled-up, and already-exited — has
// been joined.
func (p *Pool) Stop() {
	if !p.stopping.CompareAndSwap(false, true) {
		return
	}
	p.queue.Stop()

	p.mu.Lock()
	all := make([]*workerHandle, 0, len(p.workers)+len(p.dead))
	all = append(all, p.dead...)
	for _, h := range p.workers {
		all = append(all, h)
	}
	p.workers = make(map[int64]*workerHandle)
	p.dead = nil
	p.mu.Unlock()

	for _, h := range all {
		<-h.done
	}
}

// Stats returns a point-in-time snapshot of the pool's worker accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers: len(p.workers),
		Idle:    int(p.idleCount.Load()),
		Pending: p.queue.Size(),
		Dead:    len(p.dead),
	}
}
