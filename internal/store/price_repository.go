package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// schemaSQL 일별 종가 테이블
const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS analysis;

	CREATE TABLE IF NOT EXISTS analysis.daily_closes (
		symbol      TEXT             NOT NULL,
		trade_date  DATE             NOT NULL,
		close       DOUBLE PRECISION NOT NULL CHECK (close > 0),
		source      TEXT             NOT NULL DEFAULT '',
		updated_at  TIMESTAMPTZ      NOT NULL DEFAULT now(),
		PRIMARY KEY (symbol, trade_date)
	);
`

// PriceRepository 일별 종가 저장소
// ⭐ SSOT: 가격 이력 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// Migrate creates the schema if it does not exist
func (r *PriceRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate daily_closes: %w", err)
	}
	return nil
}

// SaveSeries upserts every point of the series in one batch
func (r *PriceRepository) SaveSeries(ctx context.Context, series contracts.PriceSeries, source string) (int, error) {
	if series.Len() == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO analysis.daily_closes (symbol, trade_date, close, source, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			close = EXCLUDED.close,
			source = EXCLUDED.source,
			updated_at = now()
	`

	batch := &pgx.Batch{}
	for _, p := range series.Points() {
		batch.Queue(query, series.Symbol(), p.Date, p.Close, source)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("upsert %s row %d: %w", series.Symbol(), i, err)
		}
	}
	return batch.Len(), nil
}

// GetRange loads closes for symbol within [from, to] in date order
func (r *PriceRepository) GetRange(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	query := `
		SELECT trade_date, close
		FROM analysis.daily_closes
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return contracts.PriceSeries{}, err
	}
	defer rows.Close()

	var points []contracts.PricePoint
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return contracts.PriceSeries{}, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return contracts.PriceSeries{}, err
	}

	return contracts.NewPriceSeries(symbol, points)
}

// LatestDate returns the most recent stored trade date (ok=false when none)
func (r *PriceRepository) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	query := `
		SELECT trade_date
		FROM analysis.daily_closes
		WHERE symbol = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`

	var d time.Time
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&d)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}

// Symbols lists every stored symbol
func (r *PriceRepository) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT symbol FROM analysis.daily_closes ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
