package segments

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"gtfs-segments/internal/gtfs"
)

type directedKey struct {
	route, origin, destination string
}

// ExtractDirected emits one DirectedSegment per pair of consecutive stops of
// every trip whose route has routeType, deduplicated on
// (route, origin, destination). Pairs touching a stop missing from the stop
// table are dropped rather than bridged.
func ExtractDirected(feed *gtfs.Feed, routeType int) []DirectedSegment {
	routeOK := make(map[string]bool)
	for _, r := range feed.Routes {
		if r.RouteType == routeType {
			routeOK[r.RouteID] = true
		}
	}
	tripRoute := make(map[string]string)
	for _, t := range feed.Trips {
		if routeOK[t.RouteID] {
			tripRoute[t.TripID] = t.RouteID
		}
	}
	idx := NewStationIndex(feed.Stops)

	groups := gtfs.GroupByTrip(feed.StopTimes, func(tripID string) bool {
		_, ok := tripRoute[tripID]
		return ok
	})

	seen := make(map[directedKey]bool)
	out := make([]DirectedSegment, 0)
	unknownStops := 0
	for _, g := range groups {
		routeID := tripRoute[g.TripID]
		for i := 0; i+1 < len(g.StopTimes); i++ {
			from, okFrom := idx.Stop(g.StopTimes[i].StopID)
			to, okTo := idx.Stop(g.StopTimes[i+1].StopID)
			if !okFrom || !okTo {
				unknownStops++
				continue
			}
			key := directedKey{routeID, from.StopID, to.StopID}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, DirectedSegment{
				RouteID:   routeID,
				Endpoints: newEndpoints(from, to),
			})
		}
	}

	for i := range out {
		out[i].ID = fmt.Sprintf("T%06d", i)
		out[i].Geometry = out[i].Line()
	}

	if unknownStops > 0 {
		log.Warn().Int("pairs", unknownStops).Int("route_type", routeType).Msg("Dropped stop pairs referencing unknown stops")
	}
	log.Debug().Int("route_type", routeType).Int("trips", len(groups)).Int("segments", len(out)).Msg("Directed segments extracted")
	return out
}
