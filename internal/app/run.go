package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
)

// Run reports the loaded targets and, when asked, runs the self-test.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.report()

	if a.config.SelfTest {
		a.logger.Info("Starting self-test...")
		res, err := a.selfTest(ctx)
		if err != nil {
			return fmt.Errorf("self-test failed: %w", err)
		}
		fmt.Fprintf(a.outW, "self-test: ok (%d nodes, histogram %v)\n", res.nodes, res.counts)
		if a.runtime.Perf {
			fmt.Fprintf(a.outW, "self-test perf: runs=%d avg=%s min=%s max=%s\n", res.perf.Num, res.perf.Avg, res.perf.Min, res.perf.Max)
		}
		a.logger.Info("Self-test finished.")
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// report prints every target, loaded or not, with its kernels.
func (a *App) report() {
	loaded := map[int]int{}
	for rank, t := range a.engine.Priority() {
		loaded[t.Index()] = rank
	}
	for _, t := range a.engine.Targets() {
		state := "failed"
		if rank, ok := loaded[t.Index()]; ok {
			state = fmt.Sprintf("rank %d", rank)
		}
		fmt.Fprintf(a.outW, "target %s priority=%d %s kernels=%d\n", t.Name(), t.Priority(), state, t.NumKernels())

		var names []string
		for _, k := range t.Kernels() {
			names = append(names, fmt.Sprintf("%s (%#x)", k.Name(), k.Enum()))
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(a.outW, "  %s\n", n)
		}
	}
}
