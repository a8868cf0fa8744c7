// Package sqlstore persists region-priced product snapshots in PostgreSQL, MySQL or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"storefront/internal/catalog"
	"storefront/pkg/errors"
)

// Store is a product snapshot table keyed by product and region.
type Store struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	name   string
	schema string
	upsert string
	get    string
}

var dialects = map[string]dialect{
	"postgres": {
		name: "postgres",
		schema: `CREATE TABLE IF NOT EXISTS product_snapshots (
			product_id VARCHAR(191) NOT NULL,
			region_id  VARCHAR(191) NOT NULL,
			payload    TEXT NOT NULL,
			fetched_at BIGINT NOT NULL,
			PRIMARY KEY (product_id, region_id)
		)`,
		upsert: `INSERT INTO product_snapshots (product_id, region_id, payload, fetched_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, region_id) DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at`,
		get: `SELECT payload, fetched_at FROM product_snapshots WHERE product_id = $1 AND region_id = $2`,
	},
	"mysql": {
		name: "mysql",
		schema: `CREATE TABLE IF NOT EXISTS product_snapshots (
			product_id VARCHAR(191) NOT NULL,
			region_id  VARCHAR(191) NOT NULL,
			payload    MEDIUMTEXT NOT NULL,
			fetched_at BIGINT NOT NULL,
			PRIMARY KEY (product_id, region_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		upsert: `INSERT INTO product_snapshots (product_id, region_id, payload, fetched_at) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE payload = VALUES(payload), fetched_at = VALUES(fetched_at)`,
		get: `SELECT payload, fetched_at FROM product_snapshots WHERE product_id = ? AND region_id = ?`,
	},
	"sqlite": {
		name: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS product_snapshots (
			product_id TEXT NOT NULL,
			region_id  TEXT NOT NULL,
			payload    TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (product_id, region_id)
		)`,
		upsert: `INSERT INTO product_snapshots (product_id, region_id, payload, fetched_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (product_id, region_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		get: `SELECT payload, fetched_at FROM product_snapshots WHERE product_id = ? AND region_id = ?`,
	},
}

// Open connects to a snapshot database. driver is one of postgres, mysql or sqlite.
func Open(driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported snapshot driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, dialect: d}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the dialect name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// EnsureSchema creates the snapshot table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to create product_snapshots: %w", err)
	}
	return nil
}

// PutProduct stores p as priced for regionID, replacing any earlier snapshot.
func (s *Store) PutProduct(ctx context.Context, regionID string, p *catalog.Product, fetchedAt time.Time) error {
	if p == nil || p.ID == "" {
		return errors.NewInvalidProductError("", "cannot store a product without id")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product %s: %w", p.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, p.ID, regionID, string(payload), fetchedAt.UnixMilli()); err != nil {
		return fmt.Errorf("store product %s: %w", p.ID, err)
	}
	return nil
}

// GetProduct loads a snapshot and the time it was fetched upstream.
func (s *Store) GetProduct(ctx context.Context, id, regionID string) (*catalog.Product, time.Time, error) {
	var payload string
	var fetchedMillis int64
	err := s.db.QueryRowContext(ctx, s.dialect.get, id, regionID).Scan(&payload, &fetchedMillis)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, errors.NewProductNotFoundError(id)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load product %s: %w", id, err)
	}
	var p catalog.Product
	if err := json.NewDecoder(strings.NewReader(payload)).Decode(&p); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode product %s: %w", id, err)
	}
	return &p, time.UnixMilli(fetchedMillis), nil
}
