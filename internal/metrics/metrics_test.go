package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/indicators"
	"gtfs-segments/internal/segments"
)

func TestObserveCatalogueAndTable(t *testing.T) {
	c := NewCollector()

	c.ObserveCatalogue(&segments.Catalogue{RouteType: gtfs.RouteTypeBus, Segments: make([]segments.UniqueSegment, 4)})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CatalogueBuilds.WithLabelValues("bus")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.CatalogueSegments.WithLabelValues("bus")))

	c.ObserveTable(&indicators.Table{
		RouteType:   gtfs.RouteTypeTram,
		ActiveTrips: 12,
		Passages:    30,
		Unmatched:   2,
		Skipped:     map[indicators.SkipReason]int{indicators.SkipMissingTime: 3},
		Records:     []indicators.Record{{Passages: 20}, {Passages: 10}, {}},
	})
	assert.Equal(t, 12.0, testutil.ToFloat64(c.ActiveTrips.WithLabelValues("tram")))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.Passages.WithLabelValues("tram")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ActiveSegments.WithLabelValues("tram")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.SkippedPairs.WithLabelValues("tram", "missing_time")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Unmatched.WithLabelValues("tram")))
}

func TestPublisherMetrics(t *testing.T) {
	c := NewCollector()
	c.NATSSetConnected(true)
	c.NATSPublishedInc()
	c.NATSPublishErrInc()
	c.PublishObserve(time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSPublishErrs))
	c.NATSSetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.NATSConnected))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.Stage("catalogue")()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `segments_stage_duration_seconds_count{stage="catalogue"} 1`)
}
