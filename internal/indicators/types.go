// Package indicators aggregates the scheduled traversals of one service day
// onto a segment catalogue: passage counts, travel times and speeds.
package indicators

import (
	"context"
	"math"
	"strconv"

	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/segments"
)

// Optional separates a value that was not measured (Valid false) from a
// measured one. A measured value may still be NaN when it cannot be
// computed from the data, e.g. a speed over a zero-length segment.
type Optional struct {
	Value float64
	Valid bool
}

func Some(v float64) Optional { return Optional{Value: v, Valid: true} }

func (o Optional) IsNaN() bool { return o.Valid && math.IsNaN(o.Value) }

// String renders "" when not measured and "NaN" when not a number.
func (o Optional) String() string {
	if !o.Valid {
		return ""
	}
	if math.IsNaN(o.Value) {
		return "NaN"
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64)
}

// MarshalJSON encodes unmeasured and non-finite values as null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(o.Value, 'f', -1, 64)), nil
}

type Quality string

const (
	QualityOK           Quality = "ok"
	QualityNotTraversed Quality = "not_traversed"
	// the segment was traversed but its endpoints coincide, so no speed
	QualityDegenerate Quality = "degenerate_geometry"
	// an endpoint has no stop_lat or stop_lon: distance and speeds are NaN
	QualityMissingCoordinates Quality = "missing_coordinates"
)

// Record holds the indicators of one unique segment. Durations are in
// seconds, speeds in km/h.
//
// MinSpeed is derived from MaxDuration and MaxSpeed from MinDuration: the
// slowest traversal gives the lowest speed.
type Record struct {
	Segment segments.UniqueSegment

	Passages     int
	MeanDuration Optional
	MinDuration  Optional
	MaxDuration  Optional

	DistanceKm float64 // NaN when coordinates are missing
	MeanSpeed  Optional
	MinSpeed   Optional
	MaxSpeed   Optional

	Quality Quality
}

type SkipReason string

const (
	SkipMissingTime   SkipReason = "missing_time"
	SkipMalformedTime SkipReason = "malformed_time"
	SkipNonPositive   SkipReason = "non_positive"
)

// Table is the indicator table of one mode for one service day, one record
// per catalogue segment, sorted by passages descending.
type Table struct {
	Date      string
	RouteType int

	ActiveTrips int
	Passages    int
	// passages whose station pair is not in the catalogue
	Unmatched int
	Skipped   map[SkipReason]int

	Records []Record
}

// ServiceResolver returns the service_id values running on a YYYYMMDD date.
type ServiceResolver interface {
	ActiveServiceIDs(ctx context.Context, date string) (gtfs.ServiceSet, error)
}

// FeedCalendar resolves services from the calendar tables of a loaded feed.
type FeedCalendar struct {
	Feed *gtfs.Feed
}

func (c FeedCalendar) ActiveServiceIDs(_ context.Context, date string) (gtfs.ServiceSet, error) {
	return c.Feed.ActiveServiceIDs(date)
}
