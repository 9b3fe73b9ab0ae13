// Package segments builds the catalogue of network segments of one mode:
// directed per-route segments between consecutive stops, projected onto
// parent stations, then collapsed into direction- and route-agnostic unique
// segments.
package segments

import (
	"math"

	"github.com/paulmach/orb"

	"gtfs-segments/internal/geo"
	"gtfs-segments/internal/gtfs"
)

// Endpoints carries the two stops of a segment as recorded in the source
// trips (origin first).
type Endpoints struct {
	OriginID        string
	DestinationID   string
	OriginName      string
	DestinationName string
	OriginLat       float64
	OriginLon       float64
	DestinationLat  float64
	DestinationLon  float64
	// set when either stop row lacks stop_lat or stop_lon; the coordinate
	// fields are then zero and carry no position
	MissingCoordinates bool
}

func newEndpoints(from, to gtfs.Stop) Endpoints {
	e := Endpoints{
		OriginID:        from.StopID,
		DestinationID:   to.StopID,
		OriginName:      from.StopName,
		DestinationName: to.StopName,
	}
	var okFrom, okTo bool
	e.OriginLat, e.OriginLon, okFrom = from.LatLon()
	e.DestinationLat, e.DestinationLon, okTo = to.LatLon()
	if !okFrom || !okTo {
		e.OriginLat, e.OriginLon, e.DestinationLat, e.DestinationLon = 0, 0, 0, 0
		e.MissingCoordinates = true
	}
	return e
}

func (e Endpoints) Pair() Pair { return SortedPair(e.OriginID, e.DestinationID) }

// Line is nil when coordinates are missing.
func (e Endpoints) Line() orb.LineString {
	if e.MissingCoordinates {
		return nil
	}
	return geo.Line(e.OriginLat, e.OriginLon, e.DestinationLat, e.DestinationLon)
}

// DistanceKm is NaN when coordinates are missing.
func (e Endpoints) DistanceKm() float64 {
	if e.MissingCoordinates {
		return math.NaN()
	}
	return geo.HaversineKm(e.OriginLat, e.OriginLon, e.DestinationLat, e.DestinationLon)
}

// DirectedSegment links two consecutive stops of a trip on one route.
type DirectedSegment struct {
	ID      string // T000000, stable within one build only
	RouteID string
	Endpoints
	Geometry orb.LineString
}

// ParentDirectedSegment is a DirectedSegment whose endpoints were rewritten
// to their canonical stations. RouteID is empty once routes are dropped.
type ParentDirectedSegment struct {
	ID       string
	SourceID string // DirectedSegment it was projected from
	RouteID  string
	Endpoints
	Geometry orb.LineString
}

// UniqueSegment is keyed by the unordered pair of canonical stations. Its
// endpoint order and attributes come from the first parent segment seen for
// that pair.
type UniqueSegment struct {
	ID string // TU000000
	Endpoints
	Geometry orb.LineString
}

// Pair is an unordered pair of station ids, stored sorted.
type Pair [2]string

func SortedPair(a, b string) Pair {
	if b < a {
		return Pair{b, a}
	}
	return Pair{a, b}
}

// Catalogue is the read-only set of unique segments for a feed and mode.
type Catalogue struct {
	RouteType int
	Segments  []UniqueSegment

	DirectedCount int
	ParentCount   int
}
