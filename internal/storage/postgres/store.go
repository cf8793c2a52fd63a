// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/mo"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

//go:embed schema.sql
var schema string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists raw scrapes, extracted details, addresses and run metadata.
type Store struct {
	pool Pool
}

var _ crawler.Store = (*Store)(nil)

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates any missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RecordRun upserts the run's origins and stores the run row.
func (s *Store) RecordRun(ctx context.Context, run crawler.Run) error {
	for _, o := range run.Origins {
		_, err := s.pool.Exec(ctx, `
INSERT INTO scrape_origins (short_code, full_name, region_id, region_path, latitude, longitude, radius)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (short_code) DO UPDATE SET
	full_name = EXCLUDED.full_name,
	region_id = EXCLUDED.region_id,
	region_path = EXCLUDED.region_path,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	radius = EXCLUDED.radius`,
			o.ShortCode, o.FullName, o.RegionID, o.RegionPath, o.Latitude, o.Longitude, o.Radius,
		)
		if err != nil {
			return fmt.Errorf("upsert origin %s: %w", o.ShortCode, err)
		}
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO scrape_runs (id, started_at) VALUES ($1, $2)`, run.ID, run.StartedAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns runs oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]crawler.Run, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, started_at FROM scrape_runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []crawler.Run
	for rows.Next() {
		var run crawler.Run
		if err := rows.Scan(&run.ID, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListOrigins returns every stored origin ordered by short code.
func (s *Store) ListOrigins(ctx context.Context) ([]origin.Origin, error) {
	rows, err := s.pool.Query(ctx, `
SELECT short_code, full_name, region_id, region_path, latitude, longitude, radius
FROM scrape_origins ORDER BY short_code`)
	if err != nil {
		return nil, fmt.Errorf("query origins: %w", err)
	}
	defer rows.Close()

	var out []origin.Origin
	for rows.Next() {
		var o origin.Origin
		if err := rows.Scan(&o.ShortCode, &o.FullName, &o.RegionID, &o.RegionPath, &o.Latitude, &o.Longitude, &o.Radius); err != nil {
			return nil, fmt.Errorf("scan origin: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertRaw stores one downloaded listing and returns its id.
func (s *Store) InsertRaw(ctx context.Context, record crawler.RawRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO apartment_scrapes (origin_short_code, url, content)
VALUES ($1, $2, $3)
RETURNING id`, record.OriginCode, record.URL, record.Content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert raw record: %w", err)
	}
	return id, nil
}

// ListRaw reads raw records in insertion order, optionally filtered by URL
// and bounded by a limit.
func (s *Store) ListRaw(ctx context.Context, query crawler.RawQuery) ([]crawler.RawRecord, error) {
	var (
		sql  strings.Builder
		args []any
	)
	sql.WriteString(`SELECT id, origin_short_code, url, content FROM apartment_scrapes`)
	if query.URL != "" {
		args = append(args, query.URL)
		fmt.Fprintf(&sql, ` WHERE url = $%d`, len(args))
	}
	sql.WriteString(` ORDER BY id`)
	if query.Limit > 0 {
		args = append(args, query.Limit)
		fmt.Fprintf(&sql, ` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sql.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query raw records: %w", err)
	}
	defer rows.Close()

	var out []crawler.RawRecord
	for rows.Next() {
		var rec crawler.RawRecord
		if err := rows.Scan(&rec.ID, &rec.OriginCode, &rec.URL, &rec.Content); err != nil {
			return nil, fmt.Errorf("scan raw record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteDetails removes every extracted record.
func (s *Store) DeleteDetails(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM apartment_details`); err != nil {
		return fmt.Errorf("delete details: %w", err)
	}
	return nil
}

// InsertDetails stores an extracted record, replacing an earlier extraction of
// the same raw record.
func (s *Store) InsertDetails(ctx context.Context, record crawler.ExtractedRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO apartment_details (
	apartment_scrape_id,
	headline,
	description,
	date_posted,
	price,
	raw_address,
	num_rooms,
	num_bathrooms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (apartment_scrape_id) DO UPDATE SET
	headline = EXCLUDED.headline,
	description = EXCLUDED.description,
	date_posted = EXCLUDED.date_posted,
	price = EXCLUDED.price,
	raw_address = EXCLUDED.raw_address,
	num_rooms = EXCLUDED.num_rooms,
	num_bathrooms = EXCLUDED.num_bathrooms`,
		record.RawID,
		record.Headline,
		nullable(record.Description),
		nullable(record.DatePosted),
		nullable(record.Price),
		nullable(record.RawAddress),
		nullable(record.NumRooms),
		nullable(record.NumBathrooms),
	)
	if err != nil {
		return fmt.Errorf("insert details for %d: %w", record.RawID, err)
	}
	return nil
}

// ListDetails returns every extracted record ordered by raw id.
func (s *Store) ListDetails(ctx context.Context) ([]crawler.ExtractedRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT apartment_scrape_id, headline, description, date_posted, price, raw_address, num_rooms, num_bathrooms
FROM apartment_details ORDER BY apartment_scrape_id`)
	if err != nil {
		return nil, fmt.Errorf("query details: %w", err)
	}
	defer rows.Close()

	var out []crawler.ExtractedRecord
	for rows.Next() {
		var (
			rec          crawler.ExtractedRecord
			description  *string
			datePosted   *time.Time
			price        *int64
			rawAddress   *string
			numRooms     *float64
			numBathrooms *float64
		)
		if err := rows.Scan(&rec.RawID, &rec.Headline, &description, &datePosted, &price, &rawAddress, &numRooms, &numBathrooms); err != nil {
			return nil, fmt.Errorf("scan details: %w", err)
		}
		rec.Description = fromPointer(description)
		rec.DatePosted = fromPointer(datePosted)
		rec.Price = fromPointer(price)
		rec.RawAddress = fromPointer(rawAddress)
		rec.NumRooms = fromPointer(numRooms)
		rec.NumBathrooms = fromPointer(numBathrooms)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertAddress stores a geocoded address, replacing an earlier one.
func (s *Store) InsertAddress(ctx context.Context, address crawler.Address) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO apartment_addresses (apartment_scrape_id, latitude, longitude, formatted_address)
VALUES ($1, $2, $3, $4)
ON CONFLICT (apartment_scrape_id) DO UPDATE SET
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	formatted_address = EXCLUDED.formatted_address`,
		address.RawID, address.Latitude, address.Longitude, address.FormattedAddress,
	)
	if err != nil {
		return fmt.Errorf("insert address for %d: %w", address.RawID, err)
	}
	return nil
}

// ListApartments joins scrapes with their details and addresses. Records
// missing either side are left out.
func (s *Store) ListApartments(ctx context.Context) ([]crawler.Apartment, error) {
	rows, err := s.pool.Query(ctx, `
SELECT
	a_s.id,
	a_s.url,
	ad.headline,
	ad.description,
	ad.date_posted,
	ad.price,
	ad.num_rooms,
	ad.num_bathrooms,
	aa.latitude,
	aa.longitude,
	aa.formatted_address,
	a_s.origin_short_code
FROM apartment_scrapes a_s
INNER JOIN apartment_details ad ON a_s.id = ad.apartment_scrape_id
INNER JOIN apartment_addresses aa ON a_s.id = aa.apartment_scrape_id
ORDER BY a_s.id`)
	if err != nil {
		return nil, fmt.Errorf("query apartments: %w", err)
	}
	defer rows.Close()

	var out []crawler.Apartment
	for rows.Next() {
		var a crawler.Apartment
		if err := rows.Scan(
			&a.ID, &a.URL, &a.Headline, &a.Description, &a.DatePosted, &a.Price,
			&a.NumRooms, &a.NumBathrooms, &a.Latitude, &a.Longitude, &a.FormattedAddress, &a.Origin,
		); err != nil {
			return nil, fmt.Errorf("scan apartment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable[T any](o mo.Option[T]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

func fromPointer[T any](p *T) mo.Option[T] {
	if p == nil {
		return mo.None[T]()
	}
	return mo.Some(*p)
}
