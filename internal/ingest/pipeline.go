// Package ingest runs sources through the dedup gate into the ledger and blob store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chronicle/internal/blobstore"
	"chronicle/internal/dedup"
	"chronicle/internal/ledger"
	"chronicle/internal/metrics"
	"chronicle/internal/models"
	"chronicle/internal/producer"
)

// Source binds a producer to the kind it feeds. Exactly one of Batch or Paged is set.
type Source struct {
	Name  string
	Kind  models.Kind
	Batch producer.BatchSource
	Paged producer.PagedSource
}

// Options configures a Pipeline.
type Options struct {
	// Clock supplies commit timestamps. Defaults to time.Now.
	Clock func() time.Time
	// MaxFailures bounds failed attempts of paginated runs. Defaults to DefaultMaxFailures.
	MaxFailures int
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Pipeline fetches, decides and commits items for one source at a time.
type Pipeline struct {
	ledger      ledger.Ledger
	blobs       blobstore.BlobStore
	now         func() time.Time
	maxFailures int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New creates a pipeline over an opened ledger and blob store.
func New(l ledger.Ledger, blobs blobstore.BlobStore, opts Options) *Pipeline {
	p := &Pipeline{
		ledger:      l,
		blobs:       blobs,
		now:         opts.Clock,
		maxFailures: opts.MaxFailures,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.maxFailures <= 0 {
		p.maxFailures = DefaultMaxFailures
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "ingest")
	return p
}

// Run executes one source run and returns its report. The error is also set on the report.
func (p *Pipeline) Run(ctx context.Context, src Source) (Report, error) {
	report := Report{Source: src.Name, Kind: src.Kind.Name, State: StateIdle}

	var err error
	switch {
	case src.Batch != nil && src.Paged != nil:
		err = fmt.Errorf("source %s: both batch and paged producers set", src.Name)
	case src.Batch != nil:
		err = p.RunBatch(ctx, src, &report)
	case src.Paged != nil:
		err = p.RunPaginated(ctx, src, &report)
	default:
		err = fmt.Errorf("source %s: no producer", src.Name)
	}

	if err != nil {
		report.abort(err)
	} else {
		report.State = StateDone
	}
	p.metrics.RecordRun(src.Name, err == nil)
	return report, err
}

// RunBatch fetches the source once and commits the result. Any failure aborts the run.
func (p *Pipeline) RunBatch(ctx context.Context, src Source, report *Report) error {
	report.State = StateFetching
	items, err := src.Batch.Fetch(ctx)
	if err != nil {
		report.Failures++
		p.metrics.RecordFailure(src.Name)
		return sourceError(src.Name, err)
	}
	report.Fetched += len(items)

	if err := p.Ingest(ctx, src.Kind, items, report); err != nil {
		report.Failures++
		p.metrics.RecordFailure(src.Name)
		return err
	}
	return nil
}

// RunPaginated walks pages until an empty one. Each fetch-and-commit cycle is retried
// in place; the run aborts once the failure bound is reached.
func (p *Pipeline) RunPaginated(ctx context.Context, src Source, report *Report) error {
	page := 1
	step := func(ctx context.Context) (bool, error) {
		report.State = StateFetching
		items, err := src.Paged.FetchPage(ctx, page)
		if err != nil {
			return false, err
		}
		if len(items) == 0 {
			return true, nil
		}
		report.Fetched += len(items)
		if err := p.Ingest(ctx, src.Kind, items, report); err != nil {
			return false, err
		}
		page++
		return false, nil
	}

	failures, err := Retry(ctx, p.maxFailures, step, func(n int, err error) {
		p.metrics.RecordFailure(src.Name)
		p.logger.Warn("source attempt failed", "source", src.Name, "page", page, "failures", n, "error", err)
	})
	report.Failures += failures
	if err != nil {
		return sourceError(src.Name, err)
	}
	return nil
}

// Ingest decides and commits items in order, stopping at the first failure.
func (p *Pipeline) Ingest(ctx context.Context, kind models.Kind, items []models.Item, report *Report) error {
	if report == nil {
		report = &Report{Kind: kind.Name}
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		decision, err := p.ingestItem(ctx, kind, item, report)
		if err != nil {
			return fmt.Errorf("%s %q: %w", kind.Name, item.Key, err)
		}
		p.metrics.RecordItem(kind.Name, decision.String())
		if decision == dedup.Commit {
			report.Committed++
		} else {
			report.Skipped++
		}
	}
	return nil
}

func (p *Pipeline) ingestItem(ctx context.Context, kind models.Kind, item models.Item, report *Report) (dedup.Decision, error) {
	report.State = StateDeciding

	key := strings.TrimSpace(item.Key)
	if _, err := ledger.NormalizeKey(kind, key); err != nil {
		return dedup.Skip, err
	}

	latest, err := p.ledger.Latest(ctx, kind, key)
	if err != nil {
		return dedup.Skip, err
	}
	prior, err := p.prior(ctx, kind, latest)
	if err != nil {
		return dedup.Skip, err
	}

	attrs := itemAttrs(kind, item)
	decision := dedup.Decide(kind, prior, dedup.Candidate{Payload: item.Payload, Attrs: attrs})
	if decision == dedup.Skip {
		return decision, nil
	}

	report.State = StateCommitting
	row := models.NewRow{Key: key, Attrs: attrs}
	switch {
	case kind.Binary:
		// The blob must exist before any row references it.
		id, err := p.blobs.Write(ctx, item.Name, item.Payload)
		if err != nil {
			return dedup.Skip, err
		}
		p.metrics.RecordBlobBytes(kind.Name, len(item.Payload))
		row.Payload = id
	case kind.PayloadColumn != "":
		row.Payload = string(item.Payload)
	}
	row.Date = p.now().UnixMilli()

	if _, err := p.ledger.Append(ctx, kind, row); err != nil {
		return dedup.Skip, err
	}
	return decision, nil
}

func (p *Pipeline) prior(ctx context.Context, kind models.Kind, latest *models.Row) (*dedup.Prior, error) {
	if latest == nil {
		return nil, nil
	}
	prior := &dedup.Prior{Row: *latest}
	if kind.Equality != models.ByteEquality {
		return prior, nil
	}

	data, err := p.blobs.ReadData(ctx, latest.Payload)
	if errors.Is(err, models.ErrNotFound) {
		p.logger.Warn("latest row references a missing blob", "kind", kind.Name, "key", latest.Key, "row", latest.ID, "blob", latest.Payload)
		prior.DataMissing = true
		return prior, nil
	}
	if err != nil {
		return nil, err
	}
	prior.Data = data
	return prior, nil
}

// itemAttrs keeps the attributes the kind stores. Binary kinds with a name column
// default it to the item's display name.
func itemAttrs(kind models.Kind, item models.Item) map[string]string {
	var out map[string]string
	for _, attr := range kind.Attrs {
		value, ok := item.Attrs[attr]
		if !ok && attr == "name" && item.Name != "" {
			value, ok = item.Name, true
		}
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(kind.Attrs))
		}
		out[attr] = value
	}
	return out
}

func sourceError(name string, err error) error {
	var srcErr *models.SourceError
	if errors.As(err, &srcErr) || models.IsIOError(err) {
		return err
	}
	return &models.SourceError{Source: name, Err: err}
}
