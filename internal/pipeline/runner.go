// Package pipeline runs catalogue builds and indicator computations for a
// feed and hands the results to the configured sinks.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"gtfs-segments/internal/export"
	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/indicators"
	"gtfs-segments/internal/publisher"
	"gtfs-segments/internal/segments"
)

// Store persists results; *db.Store implements it.
type Store interface {
	SaveCatalogue(ctx context.Context, feed string, cat *segments.Catalogue) error
	SaveIndicators(ctx context.Context, feed string, t *indicators.Table) error
}

// Publisher announces indicator summaries; *publisher.NATSPublisher
// implements it.
type Publisher interface {
	PublishSummary(msg publisher.SummaryMessage) error
}

// Metrics receives pipeline observations; *metrics.Collector implements it.
type Metrics interface {
	ObserveCatalogue(cat *segments.Catalogue)
	ObserveTable(t *indicators.Table)
	Stage(name string) func()
}

type Options struct {
	// OutputDir receives CSV and GeoJSON exports; empty disables them.
	OutputDir   string
	TopN        int
	MinPassages int

	Store     Store
	Publisher Publisher
	Metrics   Metrics
	// Report receives the text summary of every indicator run.
	Report io.Writer
}

type Runner struct {
	opts  Options
	cache *segments.Cache
	// RunID tags every message published by this runner.
	RunID string
}

func NewRunner(opts Options) *Runner {
	r := &Runner{opts: opts, RunID: uuid.NewString()}
	r.cache = segments.NewCache(func(feed *gtfs.Feed, routeType int) (*segments.Catalogue, error) {
		done := r.stage("catalogue")
		cat, err := segments.BuildUniqueSegments(feed, routeType)
		done()
		if err == nil && r.opts.Metrics != nil {
			r.opts.Metrics.ObserveCatalogue(cat)
		}
		return cat, err
	})
	return r
}

func (r *Runner) stage(name string) func() {
	if r.opts.Metrics == nil {
		return func() {}
	}
	return r.opts.Metrics.Stage(name)
}

// Catalogue returns the catalogue of feed for routeType, building it on
// first use.
func (r *Runner) Catalogue(feed *gtfs.Feed, routeType int) (*segments.Catalogue, error) {
	return r.cache.Get(feed, routeType)
}

// Forget drops the cached catalogues of feed.
func (r *Runner) Forget(feed *gtfs.Feed) { r.cache.Forget(feed) }

// BuildCatalogue builds (or reuses) the catalogue and sends it to the
// exporters and the store.
func (r *Runner) BuildCatalogue(ctx context.Context, feed *gtfs.Feed, routeType int) (*segments.Catalogue, error) {
	cat, err := r.Catalogue(feed, routeType)
	if err != nil {
		return nil, fmt.Errorf("build %s catalogue: %w", gtfs.ModeName(routeType), err)
	}
	if r.opts.OutputDir != "" {
		done := r.stage("export")
		err := export.Catalogue(r.opts.OutputDir, cat)
		done()
		if err != nil {
			return nil, err
		}
	}
	if r.opts.Store != nil {
		done := r.stage("store")
		err := r.opts.Store.SaveCatalogue(ctx, feed.Name, cat)
		done()
		if err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// BuildCatalogues runs BuildCatalogue for every route type concurrently.
// Catalogues are returned in routeTypes order.
func (r *Runner) BuildCatalogues(ctx context.Context, feed *gtfs.Feed, routeTypes []int) ([]*segments.Catalogue, error) {
	cats := make([]*segments.Catalogue, len(routeTypes))
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	for i, rt := range routeTypes {
		p.Go(func(ctx context.Context) error {
			cat, err := r.BuildCatalogue(ctx, feed, rt)
			if err != nil {
				return err
			}
			cats[i] = cat
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return cats, nil
}

// Indicators computes the indicators of routeType on date and sends the
// table and its summary to every configured sink.
func (r *Runner) Indicators(ctx context.Context, feed *gtfs.Feed, resolver indicators.ServiceResolver, routeType int, date string) (*indicators.Table, indicators.Summary, error) {
	cat, err := r.Catalogue(feed, routeType)
	if err != nil {
		return nil, indicators.Summary{}, fmt.Errorf("build %s catalogue: %w", gtfs.ModeName(routeType), err)
	}

	done := r.stage("indicators")
	table, err := indicators.Compute(ctx, feed, resolver, date, cat.Segments, routeType)
	done()
	if err != nil {
		return nil, indicators.Summary{}, err
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveTable(table)
	}

	summary := indicators.Summarize(table, r.opts.TopN, r.opts.MinPassages)

	if r.opts.OutputDir != "" {
		done := r.stage("export")
		err := export.Indicators(r.opts.OutputDir, table)
		done()
		if err != nil {
			return nil, summary, err
		}
	}
	if r.opts.Store != nil {
		done := r.stage("store")
		err := r.opts.Store.SaveIndicators(ctx, feed.Name, table)
		done()
		if err != nil {
			return nil, summary, err
		}
	}
	if r.opts.Publisher != nil {
		done := r.stage("publish")
		err := r.opts.Publisher.PublishSummary(publisher.SummaryMessage{
			RunID:      r.RunID,
			Feed:       feed.Name,
			ComputedAt: time.Now().UTC(),
			Summary:    summary,
		})
		done()
		// publish failures are logged, not returned
		if err != nil {
			log.Error().Err(err).Str("mode", summary.Mode).Str("date", date).Msg("Failed to publish summary")
		}
	}
	if r.opts.Report != nil {
		if err := summary.WriteText(r.opts.Report); err != nil {
			return nil, summary, err
		}
	}
	return table, summary, nil
}
