package indicators

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-segments/internal/geo"
	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/segments"
)

const day = "20251123" // a Sunday

func coord(v float64) *float64 { return &v }

// scenarioFeed: two trips of one tram route over A-B-C. trip1 takes 60s then
// 120s; trip2 takes 90s on A-B and has no departure time at B.
func scenarioFeed() *gtfs.Feed {
	return &gtfs.Feed{
		Stops: []gtfs.Stop{
			{StopID: "A", StopName: "Albert", StopLat: coord(43.600), StopLon: coord(3.870)},
			{StopID: "B", StopName: "Bastide", StopLat: coord(43.610), StopLon: coord(3.870)},
			{StopID: "C", StopName: "Corum", StopLat: coord(43.620), StopLon: coord(3.870)},
		},
		Routes: []gtfs.Route{{RouteID: "L1", RouteType: gtfs.RouteTypeTram}},
		Trips: []gtfs.Trip{
			{TripID: "trip1", RouteID: "L1", ServiceID: "SUN"},
			{TripID: "trip2", RouteID: "L1", ServiceID: "SUN"},
		},
		StopTimes: []gtfs.StopTime{
			{TripID: "trip1", StopID: "A", StopSequence: 1, ArrivalTime: "08:00:00", DepartureTime: "08:00:00"},
			{TripID: "trip1", StopID: "B", StopSequence: 2, ArrivalTime: "08:01:00", DepartureTime: "08:01:00"},
			{TripID: "trip1", StopID: "C", StopSequence: 3, ArrivalTime: "08:03:00", DepartureTime: "08:03:00"},
			{TripID: "trip2", StopID: "A", StopSequence: 1, ArrivalTime: "09:00:00", DepartureTime: "09:00:00"},
			{TripID: "trip2", StopID: "B", StopSequence: 2, ArrivalTime: "09:01:30", DepartureTime: ""},
			{TripID: "trip2", StopID: "C", StopSequence: 3, ArrivalTime: "09:04:00", DepartureTime: "09:04:00"},
		},
		Calendars: []gtfs.Calendar{
			{ServiceID: "SUN", Sunday: 1, StartDate: "20250101", EndDate: "20251231"},
		},
	}
}

func catalogue(t *testing.T, feed *gtfs.Feed, routeType int) []segments.UniqueSegment {
	t.Helper()
	cat, err := segments.BuildUniqueSegments(feed, routeType)
	require.NoError(t, err)
	return cat.Segments
}

func recordFor(t *testing.T, table *Table, a, b string) Record {
	t.Helper()
	for _, r := range table.Records {
		if r.Segment.Pair() == segments.SortedPair(a, b) {
			return r
		}
	}
	t.Fatalf("no record for %s-%s", a, b)
	return Record{}
}

func TestComputeScenario(t *testing.T) {
	feed := scenarioFeed()
	cat := catalogue(t, feed, gtfs.RouteTypeTram)

	table, err := Compute(context.Background(), feed, FeedCalendar{Feed: feed}, day, cat, gtfs.RouteTypeTram)
	require.NoError(t, err)

	assert.Equal(t, day, table.Date)
	assert.Equal(t, 2, table.ActiveTrips)
	assert.Equal(t, 3, table.Passages)
	assert.Equal(t, 1, table.Skipped[SkipMissingTime])
	require.Len(t, table.Records, len(cat))

	ab := recordFor(t, table, "A", "B")
	assert.Equal(t, 2, ab.Passages)
	assert.Equal(t, Some(75), ab.MeanDuration)
	assert.Equal(t, Some(60), ab.MinDuration)
	assert.Equal(t, Some(90), ab.MaxDuration)
	assert.Equal(t, QualityOK, ab.Quality)

	bc := recordFor(t, table, "B", "C")
	assert.Equal(t, 1, bc.Passages)
	assert.Equal(t, Some(120), bc.MeanDuration)

	// busiest first
	assert.Equal(t, 2, table.Records[0].Passages)
}

func TestAggregateSpeeds(t *testing.T) {
	feed := scenarioFeed()
	cat := catalogue(t, feed, gtfs.RouteTypeTram)
	table := Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, cat, gtfs.RouteTypeTram)

	ab := recordFor(t, table, "A", "B")
	dist := geo.HaversineKm(43.600, 3.870, 43.610, 3.870)
	assert.InDelta(t, dist, ab.DistanceKm, 1e-12)
	assert.InDelta(t, dist/(75.0/3600), ab.MeanSpeed.Value, 1e-9)
	// slowest traversal gives the minimum speed
	assert.InDelta(t, dist/(90.0/3600), ab.MinSpeed.Value, 1e-9)
	assert.InDelta(t, dist/(60.0/3600), ab.MaxSpeed.Value, 1e-9)
	assert.Less(t, ab.MinSpeed.Value, ab.MeanSpeed.Value)
	assert.Less(t, ab.MeanSpeed.Value, ab.MaxSpeed.Value)
}

func TestAggregateNonPositiveDurationExcluded(t *testing.T) {
	feed := scenarioFeed()
	feed.StopTimes = []gtfs.StopTime{
		{TripID: "trip1", StopID: "A", StopSequence: 1, DepartureTime: "08:00:00"},
		{TripID: "trip1", StopID: "B", StopSequence: 2, ArrivalTime: "07:59:00", DepartureTime: "08:00:00"},
		{TripID: "trip1", StopID: "C", StopSequence: 3, ArrivalTime: "08:00:00"},
	}
	cat := []segments.UniqueSegment{
		{ID: "TU000000", Endpoints: segments.Endpoints{OriginID: "A", DestinationID: "B", OriginLat: 43.6, OriginLon: 3.87, DestinationLat: 43.61, DestinationLon: 3.87}},
		{ID: "TU000001", Endpoints: segments.Endpoints{OriginID: "B", DestinationID: "C", OriginLat: 43.61, OriginLon: 3.87, DestinationLat: 43.62, DestinationLon: 3.87}},
	}

	table := Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, cat, gtfs.RouteTypeTram)
	assert.Equal(t, 0, table.Passages)
	assert.Equal(t, 2, table.Skipped[SkipNonPositive])
	for _, r := range table.Records {
		assert.Zero(t, r.Passages)
		assert.False(t, r.MeanDuration.Valid)
	}
}

func TestAggregateMalformedTimeSkipped(t *testing.T) {
	feed := scenarioFeed()
	feed.StopTimes[1].ArrivalTime = "8h01"
	table := Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, catalogue(t, feed, gtfs.RouteTypeTram), gtfs.RouteTypeTram)
	assert.Equal(t, 1, table.Skipped[SkipMalformedTime])
	assert.Equal(t, 1, recordFor(t, table, "A", "B").Passages)
}

func TestAggregateNoActiveTrips(t *testing.T) {
	feed := scenarioFeed()
	cat := catalogue(t, feed, gtfs.RouteTypeTram)

	table := Aggregate(feed, gtfs.ServiceSet{}, cat, gtfs.RouteTypeTram)
	assert.Zero(t, table.ActiveTrips)
	require.Len(t, table.Records, len(cat))
	for _, r := range table.Records {
		assert.Zero(t, r.Passages)
		assert.Equal(t, QualityNotTraversed, r.Quality)
		assert.False(t, r.MeanDuration.Valid)
		assert.False(t, r.MinDuration.Valid)
		assert.False(t, r.MaxDuration.Valid)
		assert.False(t, r.MeanSpeed.Valid)
		assert.False(t, r.MinSpeed.Valid)
		assert.False(t, r.MaxSpeed.Valid)
		assert.Greater(t, r.DistanceKm, 0.0)
	}
}

func TestAggregateEmptyCatalogue(t *testing.T) {
	table := Aggregate(&gtfs.Feed{}, gtfs.ServiceSet{}, nil, gtfs.RouteTypeBus)
	assert.NotNil(t, table.Records)
	assert.Empty(t, table.Records)
}

func TestAggregateModeFilter(t *testing.T) {
	feed := scenarioFeed()
	cat := catalogue(t, feed, gtfs.RouteTypeTram)
	table := Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, cat, gtfs.RouteTypeBus)
	assert.Zero(t, table.ActiveTrips)
	assert.Zero(t, table.Passages)
}

func TestAggregateBothDirectionsAndPlatforms(t *testing.T) {
	feed := scenarioFeed()
	feed.Stops = append(feed.Stops,
		gtfs.Stop{StopID: "B1", StopLat: coord(43.6101), StopLon: coord(3.8701), ParentStation: "B"},
		gtfs.Stop{StopID: "B2", StopLat: coord(43.6099), StopLon: coord(3.8699), ParentStation: "B"},
	)
	feed.Trips = append(feed.Trips, gtfs.Trip{TripID: "trip3", RouteID: "L1", ServiceID: "SUN"})
	feed.StopTimes = append(feed.StopTimes,
		gtfs.StopTime{TripID: "trip3", StopID: "B2", StopSequence: 1, DepartureTime: "10:00:00"},
		gtfs.StopTime{TripID: "trip3", StopID: "A", StopSequence: 2, ArrivalTime: "10:02:00"},
	)
	cat := catalogue(t, feed, gtfs.RouteTypeTram)
	table := Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, cat, gtfs.RouteTypeTram)

	ab := recordFor(t, table, "A", "B")
	assert.Equal(t, 3, ab.Passages)
	assert.Equal(t, Some(120), ab.MaxDuration)
	assert.Zero(t, table.Unmatched)
}

func TestAggregateDegenerateSegment(t *testing.T) {
	feed := scenarioFeed()
	feed.Stops[1].StopLat, feed.Stops[1].StopLon = coord(43.600), coord(3.870) // B on top of A
	cat := catalogue(t, feed, gtfs.RouteTypeTram)
	table := Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, cat, gtfs.RouteTypeTram)

	ab := recordFor(t, table, "A", "B")
	assert.Equal(t, 0.0, ab.DistanceKm)
	assert.Equal(t, QualityDegenerate, ab.Quality)
	assert.True(t, ab.MeanSpeed.IsNaN())
	assert.True(t, ab.MinSpeed.IsNaN())
	assert.True(t, ab.MaxSpeed.IsNaN())
	assert.True(t, ab.MeanDuration.Valid)
}

func TestAggregateMissingCoordinates(t *testing.T) {
	feed := scenarioFeed()
	feed.Stops[1].StopLat = nil // B has no stop_lat
	cat := catalogue(t, feed, gtfs.RouteTypeTram)
	table := Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, cat, gtfs.RouteTypeTram)

	ab := recordFor(t, table, "A", "B")
	assert.True(t, ab.Segment.MissingCoordinates)
	assert.Nil(t, ab.Segment.Geometry)
	assert.Equal(t, 2, ab.Passages)
	assert.Equal(t, Some(75), ab.MeanDuration)
	assert.True(t, math.IsNaN(ab.DistanceKm), "no distance from a stop without coordinates")
	assert.Equal(t, QualityMissingCoordinates, ab.Quality)
	assert.True(t, ab.MeanSpeed.IsNaN())
	assert.True(t, ab.MinSpeed.IsNaN())
	assert.True(t, ab.MaxSpeed.IsNaN())

	bc := recordFor(t, table, "B", "C")
	assert.Equal(t, QualityMissingCoordinates, bc.Quality)
}

func TestAggregateMissingCoordinatesNotTraversed(t *testing.T) {
	feed := scenarioFeed()
	feed.Stops[2].StopLon = nil // C
	cat := catalogue(t, feed, gtfs.RouteTypeTram)
	table := Aggregate(feed, gtfs.ServiceSet{}, cat, gtfs.RouteTypeTram)

	bc := recordFor(t, table, "B", "C")
	assert.Equal(t, QualityNotTraversed, bc.Quality)
	assert.True(t, math.IsNaN(bc.DistanceKm))
	assert.False(t, bc.MeanSpeed.Valid)

	ab := recordFor(t, table, "A", "B")
	assert.Greater(t, ab.DistanceKm, 0.0)
}

func TestAggregateDoesNotMutateCatalogue(t *testing.T) {
	feed := scenarioFeed()
	cat := catalogue(t, feed, gtfs.RouteTypeTram)
	before := append([]segments.UniqueSegment(nil), cat...)

	_ = Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, cat, gtfs.RouteTypeTram)
	assert.Equal(t, before, cat)
}

func TestAggregateStableOrderOnTies(t *testing.T) {
	cat := []segments.UniqueSegment{
		{ID: "TU000000", Endpoints: segments.Endpoints{OriginID: "X", DestinationID: "Y"}},
		{ID: "TU000001", Endpoints: segments.Endpoints{OriginID: "A", DestinationID: "B"}},
		{ID: "TU000002", Endpoints: segments.Endpoints{OriginID: "Y", DestinationID: "Z"}},
	}
	feed := scenarioFeed()
	table := Aggregate(feed, gtfs.ServiceSet{"SUN": {}}, cat, gtfs.RouteTypeTram)

	var ids []string
	for _, r := range table.Records {
		ids = append(ids, r.Segment.ID)
	}
	assert.Equal(t, []string{"TU000001", "TU000000", "TU000002"}, ids)
	assert.Equal(t, 1, table.Unmatched, "B-C passage has no catalogue segment")
}

type failingResolver struct{}

func (failingResolver) ActiveServiceIDs(context.Context, string) (gtfs.ServiceSet, error) {
	return nil, errors.New("calendar unavailable")
}

func TestComputeErrors(t *testing.T) {
	feed := scenarioFeed()

	_, err := Compute(context.Background(), feed, FeedCalendar{Feed: feed}, "23/11/2025", nil, gtfs.RouteTypeTram)
	assert.ErrorIs(t, err, gtfs.ErrInvalidDate)

	_, err = Compute(context.Background(), feed, failingResolver{}, day, nil, gtfs.RouteTypeTram)
	assert.ErrorContains(t, err, "calendar unavailable")
}

func TestOptional(t *testing.T) {
	assert.Equal(t, "", Optional{}.String())
	assert.Equal(t, "NaN", Some(math.NaN()).String())
	assert.Equal(t, "75", Some(75).String())
	assert.Equal(t, "12.5", Some(12.5).String())

	b, err := Optional{}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
	b, err = Some(math.NaN()).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
	b, err = Some(3.5).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "3.5", string(b))
}
