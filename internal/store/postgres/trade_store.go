package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `trade_id, price, quantity, side, executed_at`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var (
			t         domain.Trade
			price     decimal.Decimal
			quantity  decimal.Decimal
			side      string
			executed  time.Time
		)
		if err := rows.Scan(&t.ID, &price, &quantity, &side, &executed); err != nil {
			return nil, err
		}
		t.Price = price
		t.Quantity = quantity
		t.Time = executed
		// Side is derived from the maker flag on the way in; invert it on
		// the way out. A sell aggressor means the buyer was the maker.
		t.IsBuyerMaker = domain.Side(side) == domain.SideSell
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertBatch inserts trades for one symbol using a pgx Batch. Duplicates
// (same symbol and trade_id) are silently skipped via ON CONFLICT DO NOTHING.
func (s *TradeStore) InsertBatch(ctx context.Context, symbol string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trades (
			symbol, trade_id, price, quantity, quote_value, side, executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		) ON CONFLICT (symbol, trade_id) DO NOTHING`

	for _, t := range trades {
		batch.Queue(query,
			symbol, t.ID, t.Price, t.Quantity, t.Value(), string(t.Side()), t.Time,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListBySymbol returns trades for a symbol with pagination and optional
// time filtering, newest first.
func (s *TradeStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE symbol = $1`
	args := []any{strings.ToUpper(symbol)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND executed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND executed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY executed_at DESC, trade_id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by symbol: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by symbol: %w", err)
	}
	return trades, nil
}

// LastTradeID returns the highest persisted trade ID for a symbol, or zero
// when no trades exist. The archiver uses it to skip already-drained trades.
func (s *TradeStore) LastTradeID(ctx context.Context, symbol string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(trade_id), 0) FROM trades WHERE symbol = $1",
		strings.ToUpper(symbol),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: last trade id %s: %w", symbol, err)
	}
	return id, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
