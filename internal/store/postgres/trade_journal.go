package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// TradeJournal implements domain.TradeJournal using PostgreSQL.
type TradeJournal struct {
	pool *pgxpool.Pool
}

// NewTradeJournal creates a TradeJournal backed by the given connection pool.
func NewTradeJournal(pool *pgxpool.Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

const tradeSelectCols = `token_id, question, entry_price, exit_price, size,
	fees, entry_time, exit_time, pnl, odds_bucket, exit_reason`

// Append records one closed trade.
func (j *TradeJournal) Append(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (
			token_id, question, entry_price, exit_price, size,
			fees, entry_time, exit_time, pnl, odds_bucket, exit_reason
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11
		)`

	_, err := j.pool.Exec(ctx, query,
		rec.TokenID, rec.Question, rec.EntryPrice, rec.ExitPrice, rec.Size,
		rec.Fees, rec.EntryTime, rec.ExitTime, rec.PnL, rec.OddsBucket, rec.ExitReason,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade %s: %w", rec.TokenID, err)
	}
	return nil
}

// ListRecent returns the most recently closed trades, newest first.
func (j *TradeJournal) ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades ORDER BY exit_time DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	recs, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent trades: %w", err)
	}
	return recs, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		if err := rows.Scan(
			&r.TokenID, &r.Question, &r.EntryPrice, &r.ExitPrice, &r.Size,
			&r.Fees, &r.EntryTime, &r.ExitTime, &r.PnL, &r.OddsBucket, &r.ExitReason,
		); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

var _ domain.TradeJournal = (*TradeJournal)(nil)
