package collector

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kubev2v/vsan-health/internal/report"
	"github.com/kubev2v/vsan-health/internal/vsphere"
	"github.com/kubev2v/vsan-health/pkg/metrics"
	"github.com/kubev2v/vsan-health/pkg/runid"
)

// Collector slot states. A slot leaves slotRunning exactly once, so a collector run is
// recorded either by the collector or as abandoned by Run, never both.
const (
	slotRunning int32 = iota
	slotFinished
	slotAbandoned
)

// Runner fans the collectors out and joins their results.
type Runner struct {
	collectors []Collector
	observe    func(subsystem, outcome string, duration time.Duration)
}

func NewRunner(collectors ...Collector) *Runner {
	return &Runner{collectors: collectors, observe: metrics.ObserveCollectorRun}
}

// Run executes every collector concurrently and returns their results in collector order.
// When ctx is done before all collectors returned, Run returns ctx.Err() at once; the
// collectors still running are abandoned and their results are discarded.
func (r *Runner) Run(ctx context.Context, cluster *vsphere.ClusterHandle) ([]report.PartialResult, error) {
	results := make([]report.PartialResult, len(r.collectors))
	slots := make([]atomic.Int32, len(r.collectors))

	var g errgroup.Group
	for i, c := range r.collectors {
		g.Go(func() error {
			results[i] = r.runCollector(ctx, c, cluster, &slots[i])
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		zap.S().Named("collector").Warnw("abandoning collectors", "run_id", runid.FromContext(ctx), "cluster", cluster.Name, "error", ctx.Err())
		for i, c := range r.collectors {
			if slots[i].CompareAndSwap(slotRunning, slotAbandoned) {
				r.observe(string(c.Subsystem()), metrics.OutcomeAbandoned, 0)
			}
		}
		return nil, ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runCollector(ctx context.Context, c Collector, cluster *vsphere.ClusterHandle, slot *atomic.Int32) (res report.PartialResult) {
	subsystem := c.Subsystem()
	start := time.Now()
	log := zap.S().Named("collector").With("run_id", runid.FromContext(ctx), "subsystem", subsystem, "cluster", cluster.Name)

	defer func() {
		if p := recover(); p != nil {
			log.Errorw("collector panicked", "panic", p)
			res = report.NewFailedResult(subsystem, fmt.Errorf("collector panicked: %v", p))
		}
		// A collector must not report under another subsystem.
		res.Subsystem = subsystem
		if res.Failure != nil {
			res.Failure.Subsystem = subsystem
		}

		if !slot.CompareAndSwap(slotRunning, slotFinished) {
			log.Debugw("abandoned collector returned", "duration", time.Since(start))
			return
		}

		outcome := metrics.OutcomeSuccess
		if res.Failed() {
			outcome = metrics.OutcomeFailure
			log.Warnw("collector failed", "error", res.Failure.Cause, "duration", time.Since(start))
		} else {
			log.Debugw("collector finished", "findings", len(res.Findings), "duration", time.Since(start))
		}
		r.observe(string(subsystem), outcome, time.Since(start))
	}()

	return c.Collect(ctx, cluster)
}
