package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"gtfs-segments/internal/gtfs"
)

type Config struct {
	// Empty when no database is configured; the zip source still works.
	DatabaseURL       string
	City              string
	NATSURL           string `validate:"omitempty,url"`
	NATSSubjectPrefix string `validate:"required"`
	PublishResults    bool
	MetricsAddr       string
	RouteTypes        []int  `validate:"min=1,dive,gte=0"`
	OutputDir         string `validate:"required"`
	TopN              int    `validate:"gt=0"`
	MinPassagesFast   int    `validate:"gte=0"`
	Location          *time.Location
}

var validate = validator.New()

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL (cluster DSN): prefer DATABASE_URL / PG_DSN, else build from PG* vars
	cfg.DatabaseURL = firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dsnFromPGEnv()
	}

	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "segments")
	cfg.PublishResults = parseBool(os.Getenv("PUBLISH_RESULTS"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	var err error
	if cfg.RouteTypes, err = ParseRouteTypes(getenvDefault("ROUTE_TYPES", "3,0")); err != nil {
		return nil, fmt.Errorf("invalid ROUTE_TYPES: %w", err)
	}

	cfg.OutputDir = getenvDefault("OUTPUT_DIR", "output")

	if cfg.TopN, err = getenvInt("TOP_N", 10); err != nil {
		return nil, err
	}
	if cfg.MinPassagesFast, err = getenvInt("MIN_PASSAGES_FAST", 10); err != nil {
		return nil, err
	}

	// Time zone
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Today is the current service date in the configured time zone.
func (c *Config) Today() string {
	return time.Now().In(c.Location).Format(gtfs.DateLayout)
}

// ParseRouteTypes parses a comma separated list of GTFS route types such as
// "3,0".
func ParseRouteTypes(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rt, err := strconv.Atoi(part)
		if err != nil || rt < 0 {
			return nil, fmt.Errorf("route type %q", part)
		}
		out = append(out, rt)
	}
	return out, nil
}

func dsnFromPGEnv() string {
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	// If CITY is provided, default base DB to 'postgres' when PGDATABASE is not set.
	if db == "" && os.Getenv("CITY") != "" {
		db = "postgres"
	}
	if db == "" {
		return ""
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
