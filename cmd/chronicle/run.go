package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"chronicle/internal/config"
	"chronicle/internal/ingest"
	"chronicle/internal/metrics"
	"chronicle/internal/models"
	"chronicle/internal/producer"
)

func newRunCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		sourcesFile string
		only        []string
		parallelism int
		maxFailures int
		metricsFile string
		pushgateway string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch every configured source and archive what changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourcesFile == "" {
				sourcesFile = cfg.Ingest.SourcesFile
			}
			specs, err := config.LoadSources(sourcesFile)
			if err != nil {
				return err
			}
			sources, err := buildSources(specs, only)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no enabled sources in %s", sourcesFile)
			}

			st, bs, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if parallelism <= 0 {
				parallelism = cfg.Ingest.Parallelism
			}
			if maxFailures <= 0 {
				maxFailures = cfg.Ingest.MaxFailures
			}

			logger := slog.Default()
			m := metrics.New()
			pipeline := ingest.New(st, bs, ingest.Options{
				MaxFailures: maxFailures,
				Logger:      logger,
				Metrics:     m,
			})
			reports := ingest.NewOrchestrator(pipeline, parallelism, logger).RunAll(cmd.Context(), sources)

			if metricsFile == "" {
				metricsFile = cfg.Metrics.Textfile
			}
			if pushgateway == "" {
				pushgateway = cfg.Metrics.PushgatewayURL
			}
			if err := exportMetrics(cmd.Context(), m, metricsFile, pushgateway, cfg.Metrics.Job); err != nil {
				logger.Warn("export metrics", "error", err)
			}

			if *jsonOutput {
				if err := writeJSON(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					if err := writePlain("%s\n", formatReportLine(r)); err != nil {
						return err
					}
				}
			}
			return runError(reports)
		},
	}

	cmd.Flags().StringVar(&sourcesFile, "sources", "", "sources manifest (default: ingest.sources_file)")
	cmd.Flags().StringSliceVar(&only, "source", nil, "run only the named sources (repeatable)")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "sources run concurrently (default: ingest.parallelism)")
	cmd.Flags().IntVar(&maxFailures, "max-failures", 0, "failed attempts before a paginated source aborts (default: ingest.max_failures)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write run metrics to a textfile-collector file (default: metrics.textfile)")
	cmd.Flags().StringVar(&pushgateway, "pushgateway", "", "push run metrics to this Pushgateway (default: metrics.pushgateway_url)")
	return cmd
}

// exportMetrics hands the counters of a finished run to the textfile collector and
// the Pushgateway, whichever are configured.
func exportMetrics(ctx context.Context, m *metrics.Metrics, textfile, gatewayURL, job string) error {
	var errs []error
	if textfile != "" {
		if err := m.WriteTextfile(textfile); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", textfile, err))
		}
	}
	if gatewayURL != "" {
		if job == "" {
			job = config.DefaultMetricsJob
		}
		if err := m.Push(ctx, gatewayURL, job); err != nil {
			errs = append(errs, fmt.Errorf("push to %s: %w", gatewayURL, err))
		}
	}
	return errors.Join(errs...)
}

// buildSources turns manifest entries into pipeline sources. When only is non-empty,
// just those sources are kept and each name must exist.
func buildSources(specs []config.SourceConfig, only []string) ([]ingest.Source, error) {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		name = strings.TrimSpace(name)
		if name != "" {
			wanted[name] = false
		}
	}

	sources := make([]ingest.Source, 0, len(specs))
	for _, spec := range specs {
		if len(wanted) > 0 {
			if _, ok := wanted[spec.Name]; !ok {
				continue
			}
			wanted[spec.Name] = true
		} else if !spec.IsEnabled() {
			continue
		}

		kind, err := models.LookupKind(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", spec.Name, err)
		}
		feed, err := producer.NewHTTPFeed(producer.FeedConfig{
			Name:      spec.Name,
			URL:       spec.URL,
			PageParam: spec.PageParam,
			Headers:   spec.Headers,
			Username:  spec.Username,
			Password:  spec.Password,
			Binary:    kind.Binary,
		}, nil)
		if err != nil {
			return nil, err
		}

		src := ingest.Source{Name: spec.Name, Kind: kind}
		if spec.Mode == config.ModePaginated {
			src.Paged = feed
		} else {
			src.Batch = feed
		}
		sources = append(sources, src)
	}

	for name, found := range wanted {
		if !found {
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return sources, nil
}

// partialRunError reports the sources of a run that ended in error.
type partialRunError struct {
	failed, total int
	err           error
}

func (e *partialRunError) Error() string {
	return fmt.Sprintf("%d of %d sources failed: %v", e.failed, e.total, e.err)
}

func (e *partialRunError) Unwrap() error { return e.err }

func runError(reports []ingest.Report) error {
	var errs []error
	for _, r := range reports {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &partialRunError{failed: len(errs), total: len(reports), err: errors.Join(errs...)}
}
