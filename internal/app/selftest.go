package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/data"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/reference"
)

const demoSize = 8

type selfTestResult struct {
	nodes  int
	counts []uint32
	perf   graph.PerfStats
}

// selfTest builds box3x3 -> gain -> histogram over a gradient, processes it
// once directly and once through the streaming loop, and checks both runs
// agree.
func (a *App) selfTest(ctx context.Context) (*selfTestResult, error) {
	logger := ctxlog.FromContext(ctx)
	eng := a.engine

	var owned []reference.Object
	defer func() {
		for _, obj := range owned {
			if err := data.Release(obj); err != nil {
				logger.Warn("Self-test object release failed.", "error", err)
			}
		}
	}()

	in, err := data.NewImage(eng, demoSize, demoSize, data.FormatU8)
	if err != nil {
		return nil, err
	}
	owned = append(owned, in)
	pixels := in.Pixels()
	for y := 0; y < demoSize; y++ {
		for x := 0; x < demoSize; x++ {
			pixels[y*in.Stride()+x] = byte(x*16 + y)
		}
	}
	out, err := data.NewImage(eng, demoSize, demoSize, data.FormatU8)
	if err != nil {
		return nil, err
	}
	owned = append(owned, out)
	gain, err := data.NewScalar(eng, cty.NumberFloatVal(1.5))
	if err != nil {
		return nil, err
	}
	owned = append(owned, gain)
	dist, err := data.NewDistribution(eng, 4, 0, 256)
	if err != nil {
		return nil, err
	}
	owned = append(owned, dist)

	g, err := eng.CreateGraph()
	if err != nil {
		return nil, err
	}
	defer func() { _ = g.Release() }()
	blurred, err := data.NewVirtualImage(g, 0, 0, "")
	if err != nil {
		return nil, err
	}

	steps := []struct {
		kernel string
		params []reference.Object
	}{
		{kernels.NameBox3x3, []reference.Object{in, blurred}},
		{kernels.NameGain, []reference.Object{blurred, gain, out}},
		{kernels.NameHistogram, []reference.Object{out, dist}},
	}
	for _, s := range steps {
		k, err := eng.FindKernelByName(s.kernel)
		if err != nil {
			return nil, err
		}
		_, err = g.AddNode(k, s.params...)
		_ = eng.ReleaseKernel(k)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", s.kernel, err)
		}
	}

	if err := g.Process(ctx); err != nil {
		return nil, fmt.Errorf("synchronous run: %w", err)
	}
	first := slices.Clone(out.Pixels())
	firstCounts := dist.Counts()
	logger.Debug("Synchronous run complete.", "histogram", firstCounts)

	dist.Reset()
	if err := eng.Schedule(g); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	if err := eng.Wait(ctx, g); err != nil {
		return nil, fmt.Errorf("scheduled run: %w", err)
	}
	if !slices.Equal(first, out.Pixels()) || !slices.Equal(firstCounts, dist.Counts()) {
		return nil, fmt.Errorf("scheduled run disagrees with synchronous run")
	}

	return &selfTestResult{nodes: len(g.Nodes()), counts: firstCounts, perf: g.Perf()}, nil
}
