package gtfs

import "strconv"

// Feed holds the schedule tables of one transit network.
type Feed struct {
	Name          string
	Stops         []Stop
	Routes        []Route
	Trips         []Trip
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
}

// Stop coordinates are optional in GTFS; a blank stop_lat or stop_lon
// leaves the pointer nil.
type Stop struct {
	StopID        string   `csv:"stop_id"`
	StopName      string   `csv:"stop_name"`
	StopLat       *float64 `csv:"stop_lat,omitempty"`
	StopLon       *float64 `csv:"stop_lon,omitempty"`
	LocationType  int      `csv:"location_type"`
	ParentStation string   `csv:"parent_station"`
}

// LatLon reports ok=false unless both coordinates are set.
func (s Stop) LatLon() (lat, lon float64, ok bool) {
	if s.StopLat == nil || s.StopLon == nil {
		return 0, 0, false
	}
	return *s.StopLat, *s.StopLon, true
}

type Route struct {
	RouteID        string `csv:"route_id"`
	RouteShortName string `csv:"route_short_name"`
	RouteType      int    `csv:"route_type"`
}

type Trip struct {
	TripID    string `csv:"trip_id"`
	RouteID   string `csv:"route_id"`
	ServiceID string `csv:"service_id"`
}

// StopTime keeps arrival and departure as raw GTFS text; values may exceed
// 24:00:00 for service running past midnight.
type StopTime struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
}

type Calendar struct {
	ServiceID string `csv:"service_id"`
	Monday    int    `csv:"monday"`
	Tuesday   int    `csv:"tuesday"`
	Wednesday int    `csv:"wednesday"`
	Thursday  int    `csv:"thursday"`
	Friday    int    `csv:"friday"`
	Saturday  int    `csv:"saturday"`
	Sunday    int    `csv:"sunday"`
	StartDate string `csv:"start_date"` // YYYYMMDD
	EndDate   string `csv:"end_date"`   // YYYYMMDD
}

// CalendarDate exception types: 1 adds the service on Date, 2 removes it.
type CalendarDate struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType int    `csv:"exception_type"`
}

const (
	ExceptionAdded   = 1
	ExceptionRemoved = 2
)

// Route types used by the indicator runs.
const (
	RouteTypeTram  = 0
	RouteTypeMetro = 1
	RouteTypeRail  = 2
	RouteTypeBus   = 3
)

// ModeName returns a short label for a route type, used in file names,
// metric labels and subjects.
func ModeName(routeType int) string {
	switch routeType {
	case RouteTypeTram:
		return "tram"
	case RouteTypeMetro:
		return "metro"
	case RouteTypeRail:
		return "rail"
	case RouteTypeBus:
		return "bus"
	case 4:
		return "ferry"
	case 5:
		return "cablecar"
	case 6:
		return "gondola"
	case 7:
		return "funicular"
	case 11:
		return "trolleybus"
	case 12:
		return "monorail"
	}
	return "type" + strconv.Itoa(routeType)
}
