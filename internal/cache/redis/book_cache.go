package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// BookCache implements domain.BookCache. The latest book summary per
// symbol is stored as a JSON string with a TTL, so a dashboard that reads
// through Redis never sees a summary older than the TTL.
//
// Key schema:
//
//	book:summary:{SYMBOL} - JSON-encoded domain.BookSummary
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func summaryKey(symbol string) string {
	return "book:summary:" + strings.ToUpper(symbol)
}

// SetSummary stores the summary under the symbol's key with the given TTL.
func (bc *BookCache) SetSummary(ctx context.Context, symbol string, summary domain.BookSummary, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("redis: marshal summary %s: %w", symbol, err)
	}
	if err := bc.rdb.Set(ctx, summaryKey(symbol), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set summary %s: %w", symbol, err)
	}
	return nil
}

// GetSummary returns the cached summary, or domain.ErrNotFound when the
// key is absent or expired.
func (bc *BookCache) GetSummary(ctx context.Context, symbol string) (domain.BookSummary, error) {
	data, err := bc.rdb.Get(ctx, summaryKey(symbol)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.BookSummary{}, domain.ErrNotFound
		}
		return domain.BookSummary{}, fmt.Errorf("redis: get summary %s: %w", symbol, err)
	}

	var summary domain.BookSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return domain.BookSummary{}, fmt.Errorf("redis: decode summary %s: %w", symbol, err)
	}
	return summary, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
