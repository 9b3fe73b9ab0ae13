package segments

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"gtfs-segments/internal/gtfs"
)

// DropRoutes removes route identity from parent segments and keeps the first
// segment of every ordered station pair. Direction is still significant here.
func DropRoutes(parents []ParentDirectedSegment) []ParentDirectedSegment {
	type ordered struct{ o, d string }
	seen := make(map[ordered]bool)
	out := make([]ParentDirectedSegment, 0)
	for _, p := range parents {
		k := ordered{p.OriginID, p.DestinationID}
		if seen[k] {
			continue
		}
		seen[k] = true
		p.RouteID = ""
		p.ID = fmt.Sprintf("TNR%06d", len(out))
		out = append(out, p)
	}
	return out
}

// BuildUnique collapses parent segments onto unordered station pairs. The
// first segment seen for a pair provides its names, coordinates and endpoint
// order.
func BuildUnique(parents []ParentDirectedSegment) []UniqueSegment {
	index := make(map[Pair]int)
	out := make([]UniqueSegment, 0)
	for _, p := range parents {
		key := p.Pair()
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(out)
		out = append(out, UniqueSegment{
			ID:        fmt.Sprintf("TU%06d", len(out)),
			Endpoints: p.Endpoints,
			Geometry:  p.Line(),
		})
	}
	return out
}

// BuildUniqueSegments builds the unique segment catalogue of one mode.
func BuildUniqueSegments(feed *gtfs.Feed, routeType int) (*Catalogue, error) {
	directed := ExtractDirected(feed, routeType)
	parents, err := ProjectToParents(directed, feed.Stops)
	if err != nil {
		return nil, fmt.Errorf("project %s segments to parent stations: %w", gtfs.ModeName(routeType), err)
	}
	unique := BuildUnique(DropRoutes(parents))

	log.Info().
		Str("mode", gtfs.ModeName(routeType)).
		Int("directed", len(directed)).
		Int("unique", len(unique)).
		Msg("Segment catalogue built")

	return &Catalogue{
		RouteType:     routeType,
		Segments:      unique,
		DirectedCount: len(directed),
		ParentCount:   len(parents),
	}, nil
}
