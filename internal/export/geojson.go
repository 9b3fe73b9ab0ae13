package export

import (
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"gtfs-segments/internal/indicators"
	"gtfs-segments/internal/segments"
)

func segmentFeature(s segments.UniqueSegment) *geojson.Feature {
	var g orb.Geometry
	if !s.MissingCoordinates {
		g = s.Geometry
	}
	f := geojson.NewFeature(g)
	f.ID = s.ID
	f.Properties["troncon_unique_id"] = s.ID
	f.Properties["stop_depart_parent_id"] = s.OriginID
	f.Properties["stop_depart_name"] = s.OriginName
	f.Properties["stop_arrivee_parent_id"] = s.DestinationID
	f.Properties["stop_arrivee_name"] = s.DestinationName
	return f
}

// WriteCatalogueGeoJSON writes the segments as a FeatureCollection of
// LineStrings.
func WriteCatalogueGeoJSON(w io.Writer, segs []segments.UniqueSegment) error {
	fc := geojson.NewFeatureCollection()
	for _, s := range segs {
		fc.Append(segmentFeature(s))
	}
	return encode(w, fc)
}

// WriteIndicatorsGeoJSON writes the records as a FeatureCollection.
// Unmeasured and NaN values become null properties.
func WriteIndicatorsGeoJSON(w io.Writer, t *indicators.Table) error {
	fc := geojson.NewFeatureCollection()
	for _, r := range t.Records {
		f := segmentFeature(r.Segment)
		f.Properties["nombre_passages"] = r.Passages
		f.Properties["duree_moyenne_secondes"] = r.MeanDuration
		f.Properties["duree_min_secondes"] = r.MinDuration
		f.Properties["duree_max_secondes"] = r.MaxDuration
		f.Properties["distance_km"] = indicators.Some(r.DistanceKm)
		f.Properties["vitesse_moyenne_kmh"] = r.MeanSpeed
		f.Properties["vitesse_min_kmh"] = r.MinSpeed
		f.Properties["vitesse_max_kmh"] = r.MaxSpeed
		f.Properties["qualite"] = string(r.Quality)
		fc.Append(f)
	}
	return encode(w, fc)
}

func encode(w io.Writer, fc *geojson.FeatureCollection) error {
	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
