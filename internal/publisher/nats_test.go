package publisher

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-segments/internal/indicators"
)

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"bus":     "bus",
		" tram ":  "tram",
		"a.b":     "a_b",
		"ligne 1": "ligne_1",
		"x>*y":    "x__y",
		"route/7": "route_7",
		"":        "_",
		"   ":     "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, subjectToken(in), "%q", in)
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "segments.bus.20251123", Subject("segments", "bus", "20251123"))
	assert.Equal(t, "segments._.x_y", Subject("segments", "", "x.y"))
	assert.Equal(t, "gtfs.segments.tram.20251123", Subject("gtfs.segments", "tram", "20251123"))
	assert.Equal(t, "gtfs.segments.bus.20251123", Subject(" gtfs.segments. ", "bus", "20251123"))
	assert.Equal(t, "bus.20251123", Subject("", "bus", "20251123"))
}

func TestSummaryMessageJSON(t *testing.T) {
	msg := SummaryMessage{
		Feed:       "montpellier",
		ComputedAt: time.Date(2025, 11, 23, 8, 0, 0, 0, time.UTC),
		Summary: indicators.Summary{
			Date:          "20251123",
			Mode:          "tram",
			TotalPassages: 42,
			MeanSpeedKmh:  indicators.Some(math.NaN()),
			Busiest:       []indicators.SegmentStat{},
			Fastest:       []indicators.SegmentStat{},
		},
	}
	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "montpellier", got["feed"])
	summary := got["summary"].(map[string]any)
	assert.Equal(t, 42.0, summary["totalPassages"])
	assert.Nil(t, summary["meanSpeedKmh"])
	assert.Nil(t, summary["medianPassages"])
}
