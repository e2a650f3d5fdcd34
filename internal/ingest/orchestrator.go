package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs many sources and isolates their failures from each other.
type Orchestrator struct {
	pipeline    *Pipeline
	parallelism int
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator running up to parallelism sources at once.
func NewOrchestrator(pipeline *Pipeline, parallelism int, logger *slog.Logger) *Orchestrator {
	if parallelism <= 0 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		pipeline:    pipeline,
		parallelism: parallelism,
		logger:      logger.With("component", "orchestrator"),
	}
}

// RunAll runs every source and returns one report per source, in input order.
// A failing source is logged and does not stop its siblings.
func (o *Orchestrator) RunAll(ctx context.Context, sources []Source) []Report {
	reports := make([]Report, len(sources))

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i, src := range sources {
		g.Go(func() error {
			report, err := o.run(ctx, src)
			reports[i] = report
			if err != nil {
				o.logger.Error("source run failed", "source", src.Name, "kind", src.Kind.Name, "failures", report.Failures, "error", err)
				return nil
			}
			o.logger.Info("source run finished", "source", src.Name, "kind", src.Kind.Name,
				"fetched", report.Fetched, "committed", report.Committed, "skipped", report.Skipped)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

// run executes one source and turns a panic in its producer into a failed report.
func (o *Orchestrator) run(ctx context.Context, src Source) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", src.Name, r)
			if report.Source == "" {
				report = Report{Source: src.Name, Kind: src.Kind.Name}
			}
			report.abort(err)
			o.pipeline.metrics.RecordRun(src.Name, false)
			o.logger.Error("source panicked", "source", src.Name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return o.pipeline.Run(ctx, src)
}
