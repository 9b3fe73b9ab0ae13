package gtfs

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDate = errors.New("invalid service date")

const DateLayout = "20060102"

// ServiceSet is the set of service_id values running on one day.
type ServiceSet map[string]struct{}

func (s ServiceSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// ParseDate parses a YYYYMMDD service date.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// ActiveServiceIDs resolves calendar.txt and calendar_dates.txt for date
// (YYYYMMDD): weekly services whose range covers the date, plus added
// exceptions, minus removed ones.
func (f *Feed) ActiveServiceIDs(date string) (ServiceSet, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	ymd := day.Format(DateLayout)

	active := make(ServiceSet)
	for _, c := range f.Calendars {
		// YYYYMMDD compares correctly as text
		if c.StartDate > ymd || c.EndDate < ymd {
			continue
		}
		if runsOn(c, day.Weekday()) {
			active[c.ServiceID] = struct{}{}
		}
	}
	removed := make(map[string]bool)
	for _, cd := range f.CalendarDates {
		if cd.Date != ymd {
			continue
		}
		switch cd.ExceptionType {
		case ExceptionAdded:
			active[cd.ServiceID] = struct{}{}
		case ExceptionRemoved:
			removed[cd.ServiceID] = true
		}
	}
	for id := range removed {
		delete(active, id)
	}
	return active, nil
}

func runsOn(c Calendar, wd time.Weekday) bool {
	switch wd {
	case time.Monday:
		return c.Monday == 1
	case time.Tuesday:
		return c.Tuesday == 1
	case time.Wednesday:
		return c.Wednesday == 1
	case time.Thursday:
		return c.Thursday == 1
	case time.Friday:
		return c.Friday == 1
	case time.Saturday:
		return c.Saturday == 1
	case time.Sunday:
		return c.Sunday == 1
	}
	return false
}
