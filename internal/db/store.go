package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rs/zerolog/log"

	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/indicators"
	"gtfs-segments/internal/segments"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the result tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create result tables: %w", err)
	}
	return nil
}

// SaveCatalogue replaces the stored catalogue of (feed, mode).
func (s *Store) SaveCatalogue(ctx context.Context, feed string, cat *segments.Catalogue) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM segment_catalogue WHERE feed = $1 AND route_type = $2`, feed, cat.RouteType); err != nil {
			return fmt.Errorf("clear catalogue: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO segment_catalogue (feed, route_type, troncon_unique_id, stop_depart_parent_id, stop_depart_name,
                               stop_arrivee_parent_id, stop_arrivee_name, geometry_wkt)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, seg := range cat.Segments {
			if _, err := stmt.ExecContext(ctx, feed, cat.RouteType, seg.ID,
				seg.OriginID, seg.OriginName, seg.DestinationID, seg.DestinationName,
				wkt.MarshalString(seg.Geometry)); err != nil {
				return fmt.Errorf("insert segment %s: %w", seg.ID, err)
			}
		}
		log.Info().Str("feed", feed).Str("mode", gtfs.ModeName(cat.RouteType)).Int("segments", len(cat.Segments)).Msg("Stored segment catalogue")
		return nil
	})
}

// SaveIndicators replaces the stored indicators of (feed, mode, date).
// Unmeasured and NaN values are stored as NULL.
func (s *Store) SaveIndicators(ctx context.Context, feed string, t *indicators.Table) error {
	day, err := gtfs.ParseDate(t.Date)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM segment_indicators WHERE feed = $1 AND route_type = $2 AND service_date = $3`,
			feed, t.RouteType, day); err != nil {
			return fmt.Errorf("clear indicators: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO segment_indicators (feed, route_type, service_date, troncon_unique_id, nombre_passages,
                                duree_moyenne_secondes, duree_min_secondes, duree_max_secondes, distance_km,
                                vitesse_moyenne_kmh, vitesse_min_kmh, vitesse_max_kmh, qualite)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range t.Records {
			if _, err := stmt.ExecContext(ctx, feed, t.RouteType, day, r.Segment.ID, r.Passages,
				nullFloat(r.MeanDuration), nullFloat(r.MinDuration), nullFloat(r.MaxDuration), nullFloat(indicators.Some(r.DistanceKm)),
				nullFloat(r.MeanSpeed), nullFloat(r.MinSpeed), nullFloat(r.MaxSpeed), string(r.Quality)); err != nil {
				return fmt.Errorf("insert indicators %s: %w", r.Segment.ID, err)
			}
		}
		log.Info().Str("feed", feed).Str("mode", gtfs.ModeName(t.RouteType)).Str("date", t.Date).Int("segments", len(t.Records)).Msg("Stored segment indicators")
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullFloat(o indicators.Optional) sql.NullFloat64 {
	if !o.Valid || o.IsNaN() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: o.Value, Valid: true}
}
