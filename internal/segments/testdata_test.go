package segments

import "gtfs-segments/internal/gtfs"

func coord(v float64) *float64 { return &v }

// lineFeed is a small tram network: stations A, B and C, where B has two
// platforms (B1, B2) and every trip runs A-B-C or back. A bus route shares
// stop A and D.
func lineFeed() *gtfs.Feed {
	return &gtfs.Feed{
		Stops: []gtfs.Stop{
			{StopID: "A", StopName: "Albert", StopLat: coord(43.600), StopLon: coord(3.870)},
			{StopID: "B", StopName: "Bastide", StopLat: coord(43.610), StopLon: coord(3.880), LocationType: 1},
			{StopID: "B1", StopName: "Bastide quai 1", StopLat: coord(43.6101), StopLon: coord(3.8801), ParentStation: "B"},
			{StopID: "B2", StopName: "Bastide quai 2", StopLat: coord(43.6099), StopLon: coord(3.8799), ParentStation: "B"},
			{StopID: "C", StopName: "Corum", StopLat: coord(43.620), StopLon: coord(3.890)},
			{StopID: "D", StopName: "Dauphine", StopLat: coord(43.630), StopLon: coord(3.900)},
		},
		Routes: []gtfs.Route{
			{RouteID: "L1", RouteType: gtfs.RouteTypeTram},
			{RouteID: "L2", RouteType: gtfs.RouteTypeTram},
			{RouteID: "B10", RouteType: gtfs.RouteTypeBus},
		},
		Trips: []gtfs.Trip{
			{TripID: "t1", RouteID: "L1", ServiceID: "S"},
			{TripID: "t2", RouteID: "L1", ServiceID: "S"},
			{TripID: "t3", RouteID: "L1", ServiceID: "S"},
			{TripID: "t4", RouteID: "L2", ServiceID: "S"},
			{TripID: "b1", RouteID: "B10", ServiceID: "S"},
		},
		StopTimes: []gtfs.StopTime{
			// t1 supplied out of order: A(1) B1(2) C(3)
			{TripID: "t1", StopID: "C", StopSequence: 3},
			{TripID: "t1", StopID: "A", StopSequence: 1},
			{TripID: "t1", StopID: "B1", StopSequence: 2},
			// t2 repeats the pattern of t1
			{TripID: "t2", StopID: "A", StopSequence: 1},
			{TripID: "t2", StopID: "B1", StopSequence: 2},
			{TripID: "t2", StopID: "C", StopSequence: 3},
			// t3 runs back C-B2-A
			{TripID: "t3", StopID: "C", StopSequence: 1},
			{TripID: "t3", StopID: "B2", StopSequence: 2},
			{TripID: "t3", StopID: "A", StopSequence: 3},
			// t4 on another tram route, same link A-B1
			{TripID: "t4", StopID: "A", StopSequence: 5},
			{TripID: "t4", StopID: "B1", StopSequence: 9},
			// bus
			{TripID: "b1", StopID: "A", StopSequence: 1},
			{TripID: "b1", StopID: "D", StopSequence: 2},
		},
	}
}
