// Package export writes segment catalogues and indicator tables as CSV and
// GeoJSON files. Column names follow the tronçon naming used by the
// published datasets.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rs/zerolog/log"

	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/indicators"
	"gtfs-segments/internal/segments"
)

type segmentRow struct {
	ID              string `csv:"troncon_unique_id"`
	OriginID        string `csv:"stop_depart_parent_id"`
	OriginName      string `csv:"stop_depart_name"`
	DestinationID   string `csv:"stop_arrivee_parent_id"`
	DestinationName string `csv:"stop_arrivee_name"`
	OriginLat       string `csv:"lat_depart_parent"`
	OriginLon       string `csv:"lon_depart_parent"`
	DestinationLat  string `csv:"lat_arrivee_parent"`
	DestinationLon  string `csv:"lon_arrivee_parent"`
	Geometry        string `csv:"geometry"`
}

type indicatorRow struct {
	segmentRow
	Passages     int    `csv:"nombre_passages"`
	MeanDuration string `csv:"duree_moyenne_secondes"`
	MinDuration  string `csv:"duree_min_secondes"`
	MaxDuration  string `csv:"duree_max_secondes"`
	DistanceKm   string `csv:"distance_km"`
	MeanSpeed    string `csv:"vitesse_moyenne_kmh"`
	MinSpeed     string `csv:"vitesse_min_kmh"`
	MaxSpeed     string `csv:"vitesse_max_kmh"`
	Quality      string `csv:"qualite"`
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Coordinates are left empty when the stops have none.
func newSegmentRow(s segments.UniqueSegment) segmentRow {
	row := segmentRow{
		ID:              s.ID,
		OriginID:        s.OriginID,
		OriginName:      s.OriginName,
		DestinationID:   s.DestinationID,
		DestinationName: s.DestinationName,
		Geometry:        wkt.MarshalString(s.Geometry),
	}
	if !s.MissingCoordinates {
		row.OriginLat = formatFloat(s.OriginLat)
		row.OriginLon = formatFloat(s.OriginLon)
		row.DestinationLat = formatFloat(s.DestinationLat)
		row.DestinationLon = formatFloat(s.DestinationLon)
	}
	return row
}

// WriteCatalogueCSV writes one row per unique segment with a WKT geometry.
func WriteCatalogueCSV(w io.Writer, segs []segments.UniqueSegment) error {
	rows := make([]segmentRow, 0, len(segs))
	for _, s := range segs {
		rows = append(rows, newSegmentRow(s))
	}
	return gocsv.Marshal(&rows, w)
}

// WriteIndicatorsCSV writes one row per record. Unmeasured values are
// empty cells. Speeds over degenerate segments are "NaN", as are distance
// and speeds when coordinates are missing.
func WriteIndicatorsCSV(w io.Writer, t *indicators.Table) error {
	rows := make([]indicatorRow, 0, len(t.Records))
	for _, r := range t.Records {
		rows = append(rows, indicatorRow{
			segmentRow:   newSegmentRow(r.Segment),
			Passages:     r.Passages,
			MeanDuration: r.MeanDuration.String(),
			MinDuration:  r.MinDuration.String(),
			MaxDuration:  r.MaxDuration.String(),
			DistanceKm:   formatFloat(r.DistanceKm),
			MeanSpeed:    r.MeanSpeed.String(),
			MinSpeed:     r.MinSpeed.String(),
			MaxSpeed:     r.MaxSpeed.String(),
			Quality:      string(r.Quality),
		})
	}
	return gocsv.Marshal(&rows, w)
}

// CataloguePath is the file name, without extension, of a catalogue export.
func CataloguePath(dir string, routeType int) string {
	return filepath.Join(dir, "troncons_uniques_"+gtfs.ModeName(routeType))
}

// IndicatorsPath is the file name, without extension, of an indicator export.
func IndicatorsPath(dir string, routeType int, date string) string {
	return filepath.Join(dir, fmt.Sprintf("indicateurs_troncons_%s_%s", gtfs.ModeName(routeType), date))
}

// Catalogue writes <dir>/troncons_uniques_<mode>.csv and .geojson.
func Catalogue(dir string, cat *segments.Catalogue) error {
	base := CataloguePath(dir, cat.RouteType)
	if err := writeFile(base+".csv", func(w io.Writer) error { return WriteCatalogueCSV(w, cat.Segments) }); err != nil {
		return err
	}
	return writeFile(base+".geojson", func(w io.Writer) error { return WriteCatalogueGeoJSON(w, cat.Segments) })
}

// Indicators writes <dir>/indicateurs_troncons_<mode>_<date>.csv and .geojson.
func Indicators(dir string, t *indicators.Table) error {
	base := IndicatorsPath(dir, t.RouteType, t.Date)
	if err := writeFile(base+".csv", func(w io.Writer) error { return WriteIndicatorsCSV(w, t) }); err != nil {
		return err
	}
	return writeFile(base+".geojson", func(w io.Writer) error { return WriteIndicatorsGeoJSON(w, t) })
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	log.Info().Str("file", path).Msg("Exported")
	return nil
}
