package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/indicators"
	"gtfs-segments/internal/segments"
)

type Collector struct {
	reg *prometheus.Registry

	CatalogueBuilds   *prometheus.CounterVec // mode
	CatalogueSegments *prometheus.GaugeVec   // mode
	ActiveTrips       *prometheus.GaugeVec   // mode
	Passages          *prometheus.GaugeVec   // mode
	ActiveSegments    *prometheus.GaugeVec   // mode
	SkippedPairs      *prometheus.CounterVec // mode, reason
	Unmatched         *prometheus.CounterVec // mode

	StageDuration *prometheus.HistogramVec // stage: load|catalogue|indicators|export|store|publish

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		CatalogueBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segments_catalogue_builds_total",
			Help: "Total segment catalogues built.",
		}, []string{"mode"}),
		CatalogueSegments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "segments_catalogue_segments",
			Help: "Unique segments in the last catalogue built.",
		}, []string{"mode"}),
		ActiveTrips: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "segments_active_trips",
			Help: "Active trips of the last indicator run.",
		}, []string{"mode"}),
		Passages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "segments_passages",
			Help: "Passages counted by the last indicator run.",
		}, []string{"mode"}),
		ActiveSegments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "segments_active_segments",
			Help: "Segments with at least one passage in the last indicator run.",
		}, []string{"mode"}),
		SkippedPairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segments_skipped_pairs_total",
			Help: "Consecutive stop times not counted as passages.",
		}, []string{"mode", "reason"}),
		Unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segments_unmatched_passages_total",
			Help: "Passages whose station pair is not in the catalogue.",
		}, []string{"mode"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "segments_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 18),
		}, []string{"stage"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "segments_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "segments_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "segments_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "segments_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	// Register
	reg.MustRegister(
		c.CatalogueBuilds, c.CatalogueSegments,
		c.ActiveTrips, c.Passages, c.ActiveSegments, c.SkippedPairs, c.Unmatched,
		c.StageDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)
	return c
}

// ObserveCatalogue records a freshly built catalogue.
func (c *Collector) ObserveCatalogue(cat *segments.Catalogue) {
	mode := gtfs.ModeName(cat.RouteType)
	c.CatalogueBuilds.WithLabelValues(mode).Inc()
	c.CatalogueSegments.WithLabelValues(mode).Set(float64(len(cat.Segments)))
}

// ObserveTable records the outcome of an indicator run.
func (c *Collector) ObserveTable(t *indicators.Table) {
	mode := gtfs.ModeName(t.RouteType)
	active := 0
	for _, r := range t.Records {
		if r.Passages > 0 {
			active++
		}
	}
	c.ActiveTrips.WithLabelValues(mode).Set(float64(t.ActiveTrips))
	c.Passages.WithLabelValues(mode).Set(float64(t.Passages))
	c.ActiveSegments.WithLabelValues(mode).Set(float64(active))
	for reason, n := range t.Skipped {
		c.SkippedPairs.WithLabelValues(mode, string(reason)).Add(float64(n))
	}
	c.Unmatched.WithLabelValues(mode).Add(float64(t.Unmatched))
}

// Stage starts timing a pipeline stage; call the returned func when done.
func (c *Collector) Stage(name string) func() {
	start := time.Now()
	return func() { c.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds()) }
}

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }

func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}
