// Package stream processes graphs asynchronously on one background
// goroutine. Submissions queue FIFO on a bounded channel; each result is
// parked per graph until a Wait collects it.
package stream

import (
	"context"
	"sync"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Streamer owns the background processing goroutine.
type Streamer struct {
	ctx     context.Context
	in      chan *graph.Graph
	done    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	closed  bool
	results map[*graph.Graph]*job
}

// job is one scheduled run. done closes once err is set, so any number of
// waiters can read the result.
type job struct {
	done    chan struct{}
	err     error
	waiters int
}

// Start launches the processing goroutine with an input queue of depth
// graphs. ctx supplies the logger and is passed to every Process call.
func Start(ctx context.Context, depth int) (*Streamer, error) {
	if depth <= 0 {
		return nil, status.Errorf(status.InvalidValue, "stream queue depth %d", depth)
	}
	s := &Streamer{
		ctx:     ctx,
		in:      make(chan *graph.Graph, depth),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		results: make(map[*graph.Graph]*job),
	}
	go s.loop()
	return s, nil
}

// Schedule queues g for processing. A graph may be in flight only once.
func (s *Streamer) Schedule(g *graph.Graph) error {
	if !g.ValidAs(reference.TypeGraph) {
		return status.Errorf(status.InvalidReference, "schedule of invalid graph")
	}
	if !g.MarkScheduled() {
		return status.Errorf(status.GraphScheduled, "%s is already scheduled", g)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		g.ClearScheduled()
		return status.Errorf(status.NoResources, "stream is stopped")
	}
	s.results[g] = &job{done: make(chan struct{})}
	select {
	case s.in <- g:
		s.mu.Unlock()
		ctxlog.FromContext(s.ctx).Debug("Graph scheduled.", "graph", g.String())
		return nil
	default:
		delete(s.results, g)
		s.mu.Unlock()
		g.ClearScheduled()
		return status.Errorf(status.NoResources, "stream queue is full")
	}
}

// Wait blocks until g's scheduled run finishes and returns its result.
// Every caller already waiting when the run finishes gets the same result;
// the run is then collected, and a later Wait fails as not scheduled.
func (s *Streamer) Wait(ctx context.Context, g *graph.Graph) error {
	s.mu.Lock()
	j, ok := s.results[g]
	if ok {
		j.waiters++
	}
	s.mu.Unlock()
	if !ok {
		return status.Errorf(status.Failure, "graph is not scheduled")
	}
	select {
	case <-j.done:
		s.mu.Lock()
		if s.results[g] == j {
			delete(s.results, g)
			g.ClearScheduled()
		}
		s.mu.Unlock()
		return j.err
	case <-ctx.Done():
		s.mu.Lock()
		j.waiters--
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Pending returns the number of scheduled graphs not yet collected by Wait.
func (s *Streamer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Close stops the goroutine after its current graph. Graphs still queued
// complete with FAILURE.
func (s *Streamer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	<-s.stopped

	for {
		select {
		case g := <-s.in:
			s.deliver(g, status.Errorf(status.Failure, "stream stopped before processing"))
		default:
			ctxlog.FromContext(s.ctx).Debug("Stream stopped.")
			return
		}
	}
}

func (s *Streamer) loop() {
	defer close(s.stopped)
	logger := ctxlog.FromContext(s.ctx)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		select {
		case <-s.done:
			return
		case g := <-s.in:
			logger.Debug("Processing scheduled graph.", "graph", g.String())
			err := g.Process(s.ctx)
			s.deliver(g, err)
		}
	}
}

func (s *Streamer) deliver(g *graph.Graph, err error) {
	s.mu.Lock()
	j := s.results[g]
	s.mu.Unlock()
	if j != nil {
		j.err = err
		close(j.done)
	}
}
