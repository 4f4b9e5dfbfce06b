package graph

import (
	"sync"
	"time"
)

// PerfStats is a snapshot of a Perf counter.
type PerfStats struct {
	Num uint64
	Tmp time.Duration
	Sum time.Duration
	Avg time.Duration
	Min time.Duration
	Max time.Duration
}

// Perf accumulates execution timings.
type Perf struct {
	mu    sync.Mutex
	begin time.Time
	stats PerfStats
}

func (p *Perf) Start() {
	p.mu.Lock()
	p.begin = time.Now()
	p.mu.Unlock()
}

func (p *Perf) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.begin.IsZero() {
		return
	}
	d := time.Since(p.begin)
	p.begin = time.Time{}

	s := &p.stats
	s.Num++
	s.Tmp = d
	s.Sum += d
	s.Avg = s.Sum / time.Duration(s.Num)
	if s.Num == 1 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
}

func (p *Perf) Stats() PerfStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
