package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Import is one successful feed import recorded in the cluster's
// metadata database.
type Import struct {
	DBName     string
	ImportedAt time.Time
}

// LatestImports lists the successful imports whose db_name matches city,
// most recent first. Assumes meta is connected to the 'postgres' database.
func LatestImports(ctx context.Context, meta *sql.DB, city string, limit int) ([]Import, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("city is required")
	}
	if limit <= 0 {
		limit = 1
	}
	q := `
SELECT db_name, imported_at
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%' AND COALESCE(db_name, '') <> ''
ORDER BY imported_at DESC
LIMIT $2`
	rows, err := meta.QueryContext(ctx, q, city, limit)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var imp Import
		if err := rows.Scan(&imp.DBName, &imp.ImportedAt); err != nil {
			return nil, err
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// ResolveLatestImportDBName returns the db_name with the most recent imported_at
// from public.latest_successful_imports where db_name ILIKE '%city%'.
func ResolveLatestImportDBName(ctx context.Context, meta *sql.DB, city string) (string, error) {
	imports, err := LatestImports(ctx, meta, city, 1)
	if err != nil {
		return "", err
	}
	if len(imports) == 0 {
		return "", fmt.Errorf("no database found for city like %q: %w", city, sql.ErrNoRows)
	}
	return imports[0].DBName, nil
}

// OpenCity connects to the latest import of city on the cluster at dsn.
func OpenCity(ctx context.Context, dsn, city string) (*Store, string, error) {
	// Ensure we connect to the 'postgres' database to read latest_successful_imports
	rootDSN, err := WithDBName(dsn, "postgres")
	if err != nil {
		return nil, "", err
	}
	meta, err := Open(rootDSN)
	if err != nil {
		return nil, "", err
	}
	defer meta.Close()

	name, err := ResolveLatestImportDBName(ctx, meta, city)
	if err != nil {
		return nil, "", err
	}
	cityDSN, err := WithDBName(dsn, name)
	if err != nil {
		return nil, "", err
	}
	conn, err := Open(cityDSN)
	if err != nil {
		return nil, "", err
	}
	if err := Ping(ctx, conn); err != nil {
		conn.Close()
		return nil, "", errors.Join(fmt.Errorf("ping %s", name), err)
	}
	return NewStore(conn), name, nil
}
