package segments

import (
	"errors"
	"fmt"

	"gtfs-segments/internal/gtfs"
)

// ErrMissingStation reports a canonical station id with no stop row, so no
// coordinates can be attached to it.
var ErrMissingStation = errors.New("canonical station has no stop row")

// ProjectToParents rewrites each directed segment onto the canonical stations
// of its endpoints, taking names and coordinates from the station rows
// themselves. Any unresolved station aborts the projection.
func ProjectToParents(directed []DirectedSegment, stops []gtfs.Stop) ([]ParentDirectedSegment, error) {
	idx := NewStationIndex(stops)
	out := make([]ParentDirectedSegment, 0, len(directed))
	for _, d := range directed {
		from, err := resolveStation(idx, d.OriginID)
		if err != nil {
			return nil, fmt.Errorf("segment %s origin: %w", d.ID, err)
		}
		to, err := resolveStation(idx, d.DestinationID)
		if err != nil {
			return nil, fmt.Errorf("segment %s destination: %w", d.ID, err)
		}
		p := ParentDirectedSegment{
			ID:        d.ID,
			SourceID:  d.ID,
			RouteID:   d.RouteID,
			Endpoints: newEndpoints(from, to),
		}
		p.Geometry = p.Line()
		out = append(out, p)
	}
	return out, nil
}

func resolveStation(idx *StationIndex, stopID string) (gtfs.Stop, error) {
	station := idx.Canonical(stopID)
	s, ok := idx.Stop(station)
	if !ok {
		return gtfs.Stop{}, fmt.Errorf("%w: stop %q -> station %q", ErrMissingStation, stopID, station)
	}
	return s, nil
}
