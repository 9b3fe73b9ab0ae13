package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"gtfs-segments/internal/gtfs"
)

// calendar has booleans (0/1). calendar_dates has exception_type (1 add, 2 remove)
// Assume these columns are of standard types created by postgis-gtfs-importer.
const activeServicesQuery = `
WITH base AS (
  SELECT service_id
  FROM calendar
  WHERE start_date <= $1::date AND end_date >= $1::date
    AND (
      ($2 = 0 AND (sunday::text IN ('1','t','true','available'))) OR
      ($2 = 1 AND (monday::text IN ('1','t','true','available'))) OR
      ($2 = 2 AND (tuesday::text IN ('1','t','true','available'))) OR
      ($2 = 3 AND (wednesday::text IN ('1','t','true','available'))) OR
      ($2 = 4 AND (thursday::text IN ('1','t','true','available'))) OR
      ($2 = 5 AND (friday::text IN ('1','t','true','available'))) OR
      ($2 = 6 AND (saturday::text IN ('1','t','true','available')))
    )
), add_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('1','added'))
), rm_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('2','removed'))
), merged AS (
  SELECT service_id FROM base
  UNION
  SELECT service_id FROM add_exc
)
SELECT DISTINCT service_id FROM merged
WHERE service_id NOT IN (SELECT service_id FROM rm_exc)
`

// ActiveServiceIDs resolves the services running on date (YYYYMMDD) from
// the calendar tables of the database, without loading the feed.
func (s *Store) ActiveServiceIDs(ctx context.Context, date string) (gtfs.ServiceSet, error) {
	day, err := gtfs.ParseDate(date)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, activeServicesQuery, day.Format("2006-01-02"), int(day.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("query active services: %w", err)
	}
	defer rows.Close()

	svc := make(gtfs.ServiceSet)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		svc[id] = struct{}{}
	}
	return svc, rows.Err()
}

// isUndefinedTable reports a query against a table the import did not
// create (optional GTFS files).
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
