package indicators

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/segments"
)

// Compute resolves the services running on date and aggregates the day's
// traversals onto catalogue.
func Compute(ctx context.Context, feed *gtfs.Feed, resolver ServiceResolver, date string, catalogue []segments.UniqueSegment, routeType int) (*Table, error) {
	if _, err := gtfs.ParseDate(date); err != nil {
		return nil, err
	}
	services, err := resolver.ActiveServiceIDs(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("resolve services for %s: %w", date, err)
	}
	t := Aggregate(feed, services, catalogue, routeType)
	t.Date = date

	log.Info().
		Str("date", date).
		Str("mode", gtfs.ModeName(routeType)).
		Int("services", len(services)).
		Int("trips", t.ActiveTrips).
		Int("passages", t.Passages).
		Int("segments", len(t.Records)).
		Msg("Segment indicators computed")
	return t, nil
}

// Aggregate counts the passages of the active trips of routeType over every
// catalogue segment. Consecutive stop times whose times are missing,
// malformed or not strictly increasing are not passages; they are tallied in
// Table.Skipped. The catalogue is only read.
func Aggregate(feed *gtfs.Feed, services gtfs.ServiceSet, catalogue []segments.UniqueSegment, routeType int) *Table {
	routeOK := make(map[string]bool)
	for _, r := range feed.Routes {
		if r.RouteType == routeType {
			routeOK[r.RouteID] = true
		}
	}
	active := make(map[string]bool)
	for _, t := range feed.Trips {
		if services.Has(t.ServiceID) && routeOK[t.RouteID] {
			active[t.TripID] = true
		}
	}

	table := &Table{
		RouteType:   routeType,
		ActiveTrips: len(active),
		Skipped:     make(map[SkipReason]int),
		Records:     make([]Record, 0, len(catalogue)),
	}

	idx := segments.NewStationIndex(feed.Stops)
	durations := make(map[segments.Pair][]float64)
	for _, g := range gtfs.GroupByTrip(feed.StopTimes, func(id string) bool { return active[id] }) {
		for i := 0; i+1 < len(g.StopTimes); i++ {
			from, to := g.StopTimes[i], g.StopTimes[i+1]
			d, reason := travelSeconds(from, to)
			if reason != "" {
				table.Skipped[reason]++
				continue
			}
			key := segments.SortedPair(idx.Canonical(from.StopID), idx.Canonical(to.StopID))
			durations[key] = append(durations[key], float64(d))
			table.Passages++
		}
	}

	matched := 0
	for _, seg := range catalogue {
		durs := durations[seg.Pair()]
		matched += len(durs)
		table.Records = append(table.Records, newRecord(seg, durs))
	}
	table.Unmatched = table.Passages - matched
	if table.Unmatched > 0 {
		log.Warn().Int("passages", table.Unmatched).Str("mode", gtfs.ModeName(routeType)).Msg("Passages outside the segment catalogue")
	}

	sort.SliceStable(table.Records, func(i, j int) bool {
		return table.Records[i].Passages > table.Records[j].Passages
	})
	return table
}

func travelSeconds(from, to gtfs.StopTime) (int, SkipReason) {
	dep, okDep, errDep := gtfs.ParseTimeOfDay(from.DepartureTime)
	arr, okArr, errArr := gtfs.ParseTimeOfDay(to.ArrivalTime)
	if errDep != nil || errArr != nil {
		return 0, SkipMalformedTime
	}
	if !okDep || !okArr {
		return 0, SkipMissingTime
	}
	if arr-dep <= 0 {
		return 0, SkipNonPositive
	}
	return arr - dep, ""
}

func newRecord(seg segments.UniqueSegment, durs []float64) Record {
	rec := Record{
		Segment:    seg,
		Passages:   len(durs),
		DistanceKm: seg.DistanceKm(),
		Quality:    QualityNotTraversed,
	}
	if len(durs) == 0 {
		return rec
	}

	rec.MeanDuration = Some(stat.Mean(durs, nil))
	rec.MinDuration = Some(floats.Min(durs))
	rec.MaxDuration = Some(floats.Max(durs))
	rec.Quality = QualityOK

	if seg.MissingCoordinates || !(rec.DistanceKm > 0) {
		rec.Quality = QualityDegenerate
		if seg.MissingCoordinates {
			rec.Quality = QualityMissingCoordinates
		}
		rec.MeanSpeed = Some(math.NaN())
		rec.MinSpeed = Some(math.NaN())
		rec.MaxSpeed = Some(math.NaN())
		return rec
	}
	rec.MeanSpeed = Some(speedKmh(rec.DistanceKm, rec.MeanDuration.Value))
	rec.MinSpeed = Some(speedKmh(rec.DistanceKm, rec.MaxDuration.Value))
	rec.MaxSpeed = Some(speedKmh(rec.DistanceKm, rec.MinDuration.Value))
	return rec
}

func speedKmh(km, seconds float64) float64 {
	return km / (seconds / 3600)
}
