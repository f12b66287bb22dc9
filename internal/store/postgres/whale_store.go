package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// WhaleAlertStore implements domain.WhaleAlertStore using PostgreSQL.
type WhaleAlertStore struct {
	pool *pgxpool.Pool
}

// NewWhaleAlertStore creates a WhaleAlertStore backed by the given pool.
func NewWhaleAlertStore(pool *pgxpool.Pool) *WhaleAlertStore {
	return &WhaleAlertStore{pool: pool}
}

// Insert persists one whale alert. Re-detecting the same trade (same
// symbol and trade_id) is a no-op via ON CONFLICT DO NOTHING.
func (s *WhaleAlertStore) Insert(ctx context.Context, alert domain.WhaleAlert) error {
	const query = `
		INSERT INTO whale_alerts (
			id, symbol, trade_id, price, quantity, quote_value, side, trade_time, detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		) ON CONFLICT (symbol, trade_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		alert.ID, strings.ToUpper(alert.Symbol), alert.TradeID,
		alert.Price, alert.Quantity, alert.Value,
		string(alert.Side), alert.TradeTime, alert.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert whale alert %s/%d: %w", alert.Symbol, alert.TradeID, err)
	}
	return nil
}

// ListRecent returns the most recent alerts for a symbol, newest first.
func (s *WhaleAlertStore) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.WhaleAlert, error) {
	const query = `
		SELECT id, symbol, trade_id, price, quantity, quote_value, side, trade_time, detected_at
		FROM whale_alerts
		WHERE symbol = $1
		ORDER BY detected_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list whale alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.WhaleAlert
	for rows.Next() {
		var (
			a    domain.WhaleAlert
			side string
		)
		if err := rows.Scan(
			&a.ID, &a.Symbol, &a.TradeID,
			&a.Price, &a.Quantity, &a.Value,
			&side, &a.TradeTime, &a.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan whale alert: %w", err)
		}
		a.Side = domain.Side(side)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate whale alerts: %w", err)
	}
	return alerts, nil
}

// Compile-time interface check.
var _ domain.WhaleAlertStore = (*WhaleAlertStore)(nil)
