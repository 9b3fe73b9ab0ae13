package segments

import (
	"strings"

	"gtfs-segments/internal/gtfs"
)

// CanonicalStation returns the parent station of stop, or the stop itself
// when it has none. Only one level of parenting is followed.
func CanonicalStation(stop gtfs.Stop) string {
	if p := strings.TrimSpace(stop.ParentStation); p != "" {
		return p
	}
	return stop.StopID
}

// StationIndex maps every stop id to its canonical station and gives access
// to stop rows by id.
type StationIndex struct {
	stops     map[string]gtfs.Stop
	canonical map[string]string
}

func NewStationIndex(stops []gtfs.Stop) *StationIndex {
	idx := &StationIndex{
		stops:     make(map[string]gtfs.Stop, len(stops)),
		canonical: make(map[string]string, len(stops)),
	}
	for _, s := range stops {
		// first row wins on duplicate stop ids
		if _, dup := idx.stops[s.StopID]; dup {
			continue
		}
		idx.stops[s.StopID] = s
		idx.canonical[s.StopID] = CanonicalStation(s)
	}
	return idx
}

// Canonical resolves a stop id. Unknown ids resolve to themselves.
func (idx *StationIndex) Canonical(stopID string) string {
	if c, ok := idx.canonical[stopID]; ok {
		return c
	}
	return stopID
}

func (idx *StationIndex) Stop(stopID string) (gtfs.Stop, bool) {
	s, ok := idx.stops[stopID]
	return s, ok
}

func (idx *StationIndex) Len() int { return len(idx.stops) }
