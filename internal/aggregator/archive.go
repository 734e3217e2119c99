package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/database"
	"github.com/quantumalpha/backend/pkg/logger"
)

// freshWindow bounds how old an archived series may be before it is
// ignored and refetched from the network.
const freshWindow = 12 * time.Hour

// ArchiveRepository persists fetched daily bars and fund-flow rows so a
// rescan of the same universe skips the network.
// ⭐ SSOT: market-data archive SQL lives only here
type ArchiveRepository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewArchiveRepository creates an archive over the given database.
func NewArchiveRepository(db *database.DB, log *logger.Logger) *ArchiveRepository {
	return &ArchiveRepository{db: db, logger: log}
}

// Schema is the DDL for the archive tables. Applied by the operator or a
// migration step, kept here so the queries and the shape stay together.
const Schema = `
CREATE TABLE IF NOT EXISTS daily_bars (
    symbol     TEXT             NOT NULL,
    trade_date DATE             NOT NULL,
    open       DOUBLE PRECISION NOT NULL,
    high       DOUBLE PRECISION NOT NULL,
    low        DOUBLE PRECISION NOT NULL,
    close      DOUBLE PRECISION NOT NULL,
    volume     DOUBLE PRECISION NOT NULL,
    amount     DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMPTZ      NOT NULL DEFAULT now(),
    PRIMARY KEY (symbol, trade_date)
);

CREATE TABLE IF NOT EXISTS fund_flow (
    symbol         TEXT             NOT NULL,
    trade_date     DATE             NOT NULL,
    net_inflow     DOUBLE PRECISION NOT NULL,
    net_inflow_pct DOUBLE PRECISION NOT NULL,
    updated_at     TIMESTAMPTZ      NOT NULL DEFAULT now(),
    PRIMARY KEY (symbol, trade_date)
);
`

// UpsertBars writes daily bars, replacing rows for the same day.
func (r *ArchiveRepository) UpsertBars(ctx context.Context, symbol string, bars []contracts.Candle) error {
	const q = `
		INSERT INTO daily_bars (symbol, trade_date, open, high, low, close, volume, amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume,
			amount = EXCLUDED.amount, updated_at = now()`

	for _, b := range bars {
		if _, err := r.db.Pool.Exec(ctx, q,
			symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount); err != nil {
			return fmt.Errorf("upsert bar %s %s: %w", symbol, b.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

// LoadBars returns up to limit archived bars, oldest first. Returns an
// empty slice when the archive is stale for the symbol.
func (r *ArchiveRepository) LoadBars(ctx context.Context, symbol string, limit int) ([]contracts.Candle, error) {
	var latest time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(max(updated_at), 'epoch'::timestamptz) FROM daily_bars WHERE symbol = $1`,
		symbol).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("check bar freshness %s: %w", symbol, err)
	}
	if time.Since(latest) > freshWindow {
		return nil, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT trade_date, open, high, low, close, volume, amount
		FROM daily_bars
		WHERE symbol = $1
		ORDER BY trade_date DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("load bars %s: %w", symbol, err)
	}
	defer rows.Close()

	var reversed []contracts.Candle
	for rows.Next() {
		var c contracts.Candle
		if err := rows.Scan(&c.Date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Amount); err != nil {
			return nil, fmt.Errorf("scan bar %s: %w", symbol, err)
		}
		reversed = append(reversed, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bars := make([]contracts.Candle, len(reversed))
	for i, c := range reversed {
		bars[len(reversed)-1-i] = c
	}
	return bars, nil
}

// UpsertFlow writes fund-flow points, replacing rows for the same day.
func (r *ArchiveRepository) UpsertFlow(ctx context.Context, symbol string, points []contracts.FlowPoint) error {
	const q = `
		INSERT INTO fund_flow (symbol, trade_date, net_inflow, net_inflow_pct, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			net_inflow = EXCLUDED.net_inflow,
			net_inflow_pct = EXCLUDED.net_inflow_pct,
			updated_at = now()`

	for _, p := range points {
		if _, err := r.db.Pool.Exec(ctx, q, symbol, p.Date, p.NetInflow, p.NetInflowPct); err != nil {
			return fmt.Errorf("upsert flow %s %s: %w", symbol, p.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

// LoadFlow returns up to limit archived flow points, oldest first.
func (r *ArchiveRepository) LoadFlow(ctx context.Context, symbol string, limit int) ([]contracts.FlowPoint, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT trade_date, net_inflow, net_inflow_pct
		FROM fund_flow
		WHERE symbol = $1
		ORDER BY trade_date DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", symbol, err)
	}
	defer rows.Close()

	var reversed []contracts.FlowPoint
	for rows.Next() {
		var p contracts.FlowPoint
		if err := rows.Scan(&p.Date, &p.NetInflow, &p.NetInflowPct); err != nil {
			return nil, fmt.Errorf("scan flow %s: %w", symbol, err)
		}
		reversed = append(reversed, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	points := make([]contracts.FlowPoint, len(reversed))
	for i, p := range reversed {
		points[len(reversed)-1-i] = p
	}
	return points, nil
}
