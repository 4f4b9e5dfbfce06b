// Package workerpool runs single-node work items on a fixed set of worker
// goroutines, each fed by its own bounded queue.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Item is one unit of work: run Node on Backend and record the outcome.
type Item struct {
	Backend graph.Backend
	Node    *graph.Node
	Action  graph.Action

	ctx   context.Context
	batch *Batch
}

// Batch tracks the items handed to one Issue call.
type Batch struct {
	items     []*Item
	remaining atomic.Int64
	done      chan struct{}
}

func (b *Batch) finish() {
	if b.remaining.Add(-1) == 0 {
		close(b.done)
	}
}

// Done is closed once every item of the batch has run.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until every item of the batch has run, then reports
// ActionAbandon if any item abandoned.
func (b *Batch) Wait(ctx context.Context) (graph.Action, error) {
	select {
	case <-b.done:
	case <-ctx.Done():
		return graph.ActionAbandon, ctx.Err()
	}
	for _, it := range b.items {
		if it.Action != graph.ActionContinue {
			return it.Action, nil
		}
	}
	return graph.ActionContinue, nil
}

// Pool is a fixed-size worker pool.
type Pool struct {
	ctx     context.Context
	queues  []chan *Item
	next    atomic.Uint64
	workers sync.WaitGroup

	// mu orders Issue against Close so no send hits a closed queue.
	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines with queues of depth items each. ctx supplies
// the pool's own logger.
func New(ctx context.Context, workers, depth int) (*Pool, error) {
	if workers <= 0 || depth <= 0 {
		return nil, status.Errorf(status.InvalidValue, "worker pool needs positive size, got %d workers of depth %d", workers, depth)
	}
	p := &Pool{ctx: ctx, queues: make([]chan *Item, workers)}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", workers, "depth", depth)
	p.workers.Add(workers)
	for i := range p.queues {
		p.queues[i] = make(chan *Item, depth)
		go p.worker(i)
	}
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.queues) }

// Issue distributes items round-robin across the workers. It blocks while
// the chosen worker's queue is full. ctx is passed to every backend call of
// the batch.
func (p *Pool) Issue(ctx context.Context, items []*Item) (*Batch, error) {
	if ctx == nil {
		ctx = p.ctx
	}
	b := &Batch{items: items, done: make(chan struct{})}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, status.Errorf(status.NoResources, "worker pool is closed")
	}
	for _, it := range items {
		if it.Backend == nil || it.Node == nil {
			return nil, status.Errorf(status.InvalidParameters, "work item without backend or node")
		}
	}
	if len(items) == 0 {
		close(b.done)
		return b, nil
	}
	b.remaining.Store(int64(len(items)))
	for _, it := range items {
		it.ctx = ctx
		it.batch = b
		it.Action = graph.ActionContinue
		w := p.next.Add(1) % uint64(len(p.queues))
		p.queues[w] <- it
	}
	return b, nil
}

// Close stops accepting work, lets queued items finish, and joins the
// workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()
	p.workers.Wait()
	ctxlog.FromContext(p.ctx).Debug("Worker pool stopped.")
}

func (p *Pool) worker(id int) {
	defer p.workers.Done()
	logger := ctxlog.FromContext(p.ctx)
	logger.Debug("Worker started.", "workerID", id)

	for it := range p.queues[id] {
		workerLogger := ctxlog.FromContext(it.ctx).With("workerID", id, "target", it.Backend.Name())
		workerLogger.Debug("Worker picked up node for execution.", "kernel", it.Node.Kernel().Name())
		it.Action = it.Backend.Process(ctxlog.WithLogger(it.ctx, workerLogger), []*graph.Node{it.Node})
		if it.Action != graph.ActionContinue {
			workerLogger.Warn("Work item abandoned.", "kernel", it.Node.Kernel().Name(), "error", it.Node.Status())
		}
		it.batch.finish()
	}
	logger.Debug("Worker finished.", "workerID", id)
}
