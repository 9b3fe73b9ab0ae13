package gtfs

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

func init() {
	// Optional GTFS columns vary between producers; tolerate ragged rows.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		return r
	})
}

var requiredFiles = []string{"stops.txt", "routes.txt", "trips.txt", "stop_times.txt"}

// LoadZip reads a GTFS archive from disk.
func LoadZip(path string) (*Feed, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open gtfs zip: %w", err)
	}
	defer r.Close()

	feed, err := Load(&r.Reader)
	if err != nil {
		return nil, err
	}
	feed.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return feed, nil
}

// Load parses the tables of an opened GTFS archive. stops, routes, trips and
// stop_times are required; calendar files are optional.
func Load(archive *zip.Reader) (*Feed, error) {
	feed := &Feed{}
	fileMap := map[string]interface{}{
		"stops.txt":          &feed.Stops,
		"routes.txt":         &feed.Routes,
		"trips.txt":          &feed.Trips,
		"stop_times.txt":     &feed.StopTimes,
		"calendar.txt":       &feed.Calendars,
		"calendar_dates.txt": &feed.CalendarDates,
	}

	seen := make(map[string]bool)
	for _, zf := range archive.File {
		// some producers nest the tables in a folder
		name := filepath.Base(zf.Name)
		dest, ok := fileMap[name]
		if !ok {
			log.Debug().Str("file", zf.Name).Msg("Skipping gtfs file")
			continue
		}
		if err := unmarshalFile(zf, dest); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		seen[name] = true
	}
	for _, name := range requiredFiles {
		if !seen[name] {
			return nil, fmt.Errorf("gtfs archive missing %s", name)
		}
	}

	log.Info().
		Int("stops", len(feed.Stops)).
		Int("routes", len(feed.Routes)).
		Int("trips", len(feed.Trips)).
		Int("stop_times", len(feed.StopTimes)).
		Msg("GTFS parsed")
	return feed, nil
}

func unmarshalFile(zf *zip.File, dest interface{}) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	return gocsv.Unmarshal(br, dest)
}
