package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"gtfs-segments/internal/config"
	"gtfs-segments/internal/db"
	"gtfs-segments/internal/gtfs"
	"gtfs-segments/internal/indicators"
	"gtfs-segments/internal/metrics"
	"gtfs-segments/internal/pipeline"
	"gtfs-segments/internal/publisher"
)

func sourceFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "gtfs",
			Usage: "Path to a GTFS zip; without it the feed is read from the database",
		},
		&cli.StringFlag{
			Name:  "city",
			Usage: "Use the latest database import of this city",
			Value: cfg.City,
		},
		&cli.IntSliceFlag{
			Name:  "route-type",
			Usage: "GTFS route_type to process, repeatable",
			Value: cli.NewIntSlice(cfg.RouteTypes...),
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Directory for CSV and GeoJSON exports; empty disables them",
			Value: cfg.OutputDir,
		},
		&cli.BoolFlag{
			Name:  "store",
			Usage: "Save the results into the feed database",
		},
	}
}

// source is a loaded feed plus the database it came from, if any.
type source struct {
	feed  *gtfs.Feed
	store *db.Store
}

func (s *source) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

// resolver uses the SQL calendar for database sources.
func (s *source) resolver() indicators.ServiceResolver {
	if s.store != nil {
		return s.store
	}
	return indicators.FeedCalendar{Feed: s.feed}
}

func openSource(ctx context.Context, c *cli.Context, cfg *config.Config) (*source, error) {
	if path := c.String("gtfs"); path != "" {
		feed, err := gtfs.LoadZip(path)
		if err != nil {
			return nil, err
		}
		return &source{feed: feed}, nil
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("either --gtfs or a database (DATABASE_URL, PG_DSN or PG*) is required")
	}

	var store *db.Store
	name := "default"
	if city := c.String("city"); city != "" {
		var err error
		if store, name, err = db.OpenCity(ctx, cfg.DatabaseURL, city); err != nil {
			return nil, fmt.Errorf("resolve latest import for city %q: %w", city, err)
		}
		log.Info().Str("database", name).Str("city", city).Msg("Using city database")
	} else {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		store = db.NewStore(conn)
	}

	feed, err := store.LoadFeed(ctx, name)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &source{feed: feed, store: store}, nil
}

// newRunner wires the sinks selected by flags and configuration. The
// returned func releases them.
func newRunner(c *cli.Context, cfg *config.Config, src *source) (*pipeline.Runner, func(), error) {
	opts := pipeline.Options{
		OutputDir:   c.String("output"),
		TopN:        cfg.TopN,
		MinPassages: cfg.MinPassagesFast,
	}
	if !c.Bool("quiet") {
		opts.Report = os.Stdout
	}
	var closers []func()

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector()
		opts.Metrics = mcol
		srv := mcol.Serve(cfg.MetricsAddr)
		closers = append(closers, func() {
			// Shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	if c.Bool("store") {
		if src.store == nil {
			return nil, nil, errors.New("--store needs a database source")
		}
		if err := src.store.EnsureSchema(c.Context); err != nil {
			return nil, nil, err
		}
		opts.Store = src.store
	}

	if c.Bool("publish") {
		logSubjects := log.Logger.GetLevel() <= zerolog.DebugLevel
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, logSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			return nil, nil, fmt.Errorf("nats: %w", err)
		}
		opts.Publisher = pub
		closers = append(closers, pub.Close)
	}

	return pipeline.NewRunner(opts), func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

// wrapPublisherMetrics avoids handing a typed nil collector to the publisher.
func wrapPublisherMetrics(m *metrics.Collector) publisher.PublisherMetrics {
	if m == nil {
		return nil
	}
	return m
}

func catalogueCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "catalogue",
		Usage: "Build the unique segment catalogue of each mode",
		Flags: sourceFlags(cfg),
		Action: func(c *cli.Context) error {
			src, err := openSource(c.Context, c, cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			runner, closeRunner, err := newRunner(c, cfg, src)
			if err != nil {
				return err
			}
			defer closeRunner()

			routeTypes := c.IntSlice("route-type")
			cats, err := runner.BuildCatalogues(c.Context, src.feed, routeTypes)
			if err != nil {
				return err
			}
			for _, cat := range cats {
				fmt.Fprintf(os.Stdout, "%s: %d directed, %d parent, %d unique segments\n",
					gtfs.ModeName(cat.RouteType), cat.DirectedCount, cat.ParentCount, len(cat.Segments))
			}
			return nil
		},
	}
}

func indicatorsCommand(cfg *config.Config) *cli.Command {
	flags := append(sourceFlags(cfg),
		&cli.StringSliceFlag{
			Name:  "date",
			Usage: "Service date YYYYMMDD, repeatable (default today)",
		},
		&cli.BoolFlag{
			Name:  "publish",
			Usage: "Publish each summary on NATS",
			Value: cfg.PublishResults,
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Do not print the summaries",
		},
	)
	return &cli.Command{
		Name:  "indicators",
		Usage: "Count passages and speeds per segment for one or more service days",
		Flags: flags,
		Action: func(c *cli.Context) error {
			dates := c.StringSlice("date")
			if len(dates) == 0 {
				dates = []string{cfg.Today()}
			}
			for _, d := range dates {
				if _, err := gtfs.ParseDate(d); err != nil {
					return err
				}
			}

			src, err := openSource(c.Context, c, cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			runner, closeRunner, err := newRunner(c, cfg, src)
			if err != nil {
				return err
			}
			defer closeRunner()

			resolver := src.resolver()
			for _, rt := range c.IntSlice("route-type") {
				for _, d := range dates {
					if err := c.Context.Err(); err != nil {
						return err
					}
					if _, _, err := runner.Indicators(c.Context, src.feed, resolver, rt, d); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func importStatusCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import-status",
		Usage: "List the latest database imports of a city",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "city",
				Value: cfg.City,
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: 5,
			},
		},
		Action: func(c *cli.Context) error {
			if cfg.DatabaseURL == "" {
				return errors.New("a database (DATABASE_URL, PG_DSN or PG*) is required")
			}
			rootDSN, err := db.WithDBName(cfg.DatabaseURL, "postgres")
			if err != nil {
				return fmt.Errorf("invalid base DSN: %w", err)
			}
			meta, err := db.Open(rootDSN)
			if err != nil {
				return err
			}
			defer meta.Close()
			if err := db.Ping(c.Context, meta); err != nil {
				return fmt.Errorf("db ping (meta): %w", err)
			}

			imports, err := db.LatestImports(c.Context, meta, c.String("city"), c.Int("limit"))
			if err != nil {
				return err
			}
			if len(imports) == 0 {
				log.Warn().Str("city", c.String("city")).Msg("No successful import found")
				return nil
			}
			for _, imp := range imports {
				fmt.Fprintf(os.Stdout, "%s\t%s\n", imp.DBName, imp.ImportedAt.In(cfg.Location).Format(time.RFC3339))
			}
			return nil
		},
	}
}
