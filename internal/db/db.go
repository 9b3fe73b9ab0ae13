// Package db reads GTFS feeds imported into PostgreSQL and stores the
// segment catalogues and indicator tables computed from them.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"gtfs-segments/internal/gtfs"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Store is a GTFS database: the source of feeds and calendars, and the
// destination of computed results.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

// LoadFeed reads the tables needed to build catalogues and indicators.
// name is only used to label the feed.
func (s *Store) LoadFeed(ctx context.Context, name string) (*gtfs.Feed, error) {
	feed := &gtfs.Feed{Name: name}
	var err error

	if feed.Stops, err = s.fetchStops(ctx); err != nil {
		return nil, err
	}
	if feed.Routes, err = s.fetchRoutes(ctx); err != nil {
		return nil, err
	}
	if feed.Trips, err = s.fetchTrips(ctx); err != nil {
		return nil, err
	}
	if feed.StopTimes, err = s.fetchStopTimes(ctx); err != nil {
		return nil, err
	}
	if feed.Calendars, err = s.fetchCalendars(ctx); err != nil {
		return nil, err
	}
	if feed.CalendarDates, err = s.fetchCalendarDates(ctx); err != nil {
		return nil, err
	}

	log.Info().
		Str("feed", name).
		Int("stops", len(feed.Stops)).
		Int("routes", len(feed.Routes)).
		Int("trips", len(feed.Trips)).
		Int("stop_times", len(feed.StopTimes)).
		Msg("Loaded GTFS feed from database")
	return feed, nil
}

func (s *Store) fetchStops(ctx context.Context) ([]gtfs.Stop, error) {
	// Prefer stop_lat/stop_lon, but support PostGIS stop_loc geography as fallback
	latlonExists, err := hasColumns(ctx, s.db, "public", "stops", "stop_lat", "stop_lon")
	if err != nil {
		return nil, fmt.Errorf("introspect stops columns: %w", err)
	}
	// NULL coordinates scan to nil
	coords := `stop_lat, stop_lon`
	if !latlonExists["stop_lat"] || !latlonExists["stop_lon"] {
		locExists, err := hasColumns(ctx, s.db, "public", "stops", "stop_loc")
		if err != nil {
			return nil, fmt.Errorf("introspect stops stop_loc: %w", err)
		}
		if !locExists["stop_loc"] {
			return nil, fmt.Errorf("stops table missing expected columns (stop_lat/lon or stop_loc)")
		}
		coords = `ST_Y(stop_loc::geometry), ST_X(stop_loc::geometry)`
	}
	q := `SELECT stop_id, COALESCE(stop_name, ''), ` + coords + `,
                 COALESCE(location_type::text, ''), COALESCE(parent_station, '')
          FROM stops`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []gtfs.Stop
	for rows.Next() {
		var st gtfs.Stop
		var locType string
		if err := rows.Scan(&st.StopID, &st.StopName, &st.StopLat, &st.StopLon, &locType, &st.ParentStation); err != nil {
			return nil, err
		}
		st.LocationType = parseLocationType(locType)
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

func (s *Store) fetchRoutes(ctx context.Context) ([]gtfs.Route, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT route_id, COALESCE(route_short_name, ''), route_type::text FROM routes`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var routes []gtfs.Route
	for rows.Next() {
		var r gtfs.Route
		var rt string
		if err := rows.Scan(&r.RouteID, &r.RouteShortName, &rt); err != nil {
			return nil, err
		}
		if r.RouteType, err = parseRouteType(rt); err != nil {
			return nil, fmt.Errorf("route %s: %w", r.RouteID, err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func (s *Store) fetchTrips(ctx context.Context) ([]gtfs.Trip, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT trip_id, route_id, service_id FROM trips`)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	var trips []gtfs.Trip
	for rows.Next() {
		var t gtfs.Trip
		if err := rows.Scan(&t.TripID, &t.RouteID, &t.ServiceID); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *Store) fetchStopTimes(ctx context.Context) ([]gtfs.StopTime, error) {
	// arrival_time and departure_time may be stored as text or interval
	q := `SELECT trip_id, stop_id, stop_sequence,
                 COALESCE(arrival_time::text, ''),
                 COALESCE(departure_time::text, '')
          FROM stop_times`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()

	var sts []gtfs.StopTime
	for rows.Next() {
		var st gtfs.StopTime
		if err := rows.Scan(&st.TripID, &st.StopID, &st.StopSequence, &st.ArrivalTime, &st.DepartureTime); err != nil {
			return nil, err
		}
		sts = append(sts, st)
	}
	return sts, rows.Err()
}

const availableDay = `(CASE WHEN %s::text IN ('1','t','true','available') THEN 1 ELSE 0 END)`

func (s *Store) fetchCalendars(ctx context.Context) ([]gtfs.Calendar, error) {
	days := make([]string, 0, 7)
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		days = append(days, fmt.Sprintf(availableDay, d))
	}
	q := `SELECT service_id, ` + strings.Join(days, ", ") + `,
                 to_char(start_date::date, 'YYYYMMDD'), to_char(end_date::date, 'YYYYMMDD')
          FROM calendar`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query calendar: %w", err)
	}
	defer rows.Close()

	var cals []gtfs.Calendar
	for rows.Next() {
		var c gtfs.Calendar
		if err := rows.Scan(&c.ServiceID, &c.Monday, &c.Tuesday, &c.Wednesday, &c.Thursday, &c.Friday, &c.Saturday, &c.Sunday, &c.StartDate, &c.EndDate); err != nil {
			return nil, err
		}
		cals = append(cals, c)
	}
	return cals, rows.Err()
}

func (s *Store) fetchCalendarDates(ctx context.Context) ([]gtfs.CalendarDate, error) {
	q := `SELECT service_id, to_char(date::date, 'YYYYMMDD'),
                 CASE WHEN exception_type::text IN ('1','added') THEN 1 ELSE 2 END
          FROM calendar_dates`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query calendar_dates: %w", err)
	}
	defer rows.Close()

	var cds []gtfs.CalendarDate
	for rows.Next() {
		var cd gtfs.CalendarDate
		if err := rows.Scan(&cd.ServiceID, &cd.Date, &cd.ExceptionType); err != nil {
			return nil, err
		}
		cds = append(cds, cd)
	}
	return cds, rows.Err()
}

// parseRouteType accepts the numeric codes and the enum labels some
// importers use for route_type.
func parseRouteType(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	switch strings.ToLower(s) {
	case "tram", "streetcar", "light_rail":
		return gtfs.RouteTypeTram, nil
	case "subway", "metro":
		return gtfs.RouteTypeMetro, nil
	case "rail":
		return gtfs.RouteTypeRail, nil
	case "bus":
		return gtfs.RouteTypeBus, nil
	}
	return 0, fmt.Errorf("unknown route_type %q", s)
}

func parseLocationType(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "station":
		return 1
	case "2", "entrance_exit":
		return 2
	case "3", "node", "generic_node":
		return 3
	case "4", "boarding_area":
		return 4
	}
	return 0
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	// Initialize to false
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
