package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotFetcher obtains an initial order-book snapshot from the exchange
// REST API. It is the only blocking external call in the core, made once per
// Track().
type SnapshotFetcher interface {
	FetchDepth(ctx context.Context, symbol string, limit int) (DepthSnapshotMsg, error)
}

// ListOpts carries pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists trades drained from the in-memory tape.
type TradeStore interface {
	InsertBatch(ctx context.Context, symbol string, trades []Trade) error
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]Trade, error)
	LastTradeID(ctx context.Context, symbol string) (int64, error)
}

// WhaleAlert records a detected large trade.
type WhaleAlert struct {
	ID         uuid.UUID       `json:"id"`
	Symbol     string          `json:"symbol"`
	TradeID    int64           `json:"trade_id"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Value      decimal.Decimal `json:"value"`
	Side       Side            `json:"side"`
	TradeTime  time.Time       `json:"trade_time"`
	DetectedAt time.Time       `json:"detected_at"`
}

// WhaleAlertStore persists whale alerts.
type WhaleAlertStore interface {
	Insert(ctx context.Context, alert WhaleAlert) error
	ListRecent(ctx context.Context, symbol string, limit int) ([]WhaleAlert, error)
}

// BookCache stores the latest book summary per symbol for out-of-process
// consumers (dashboards).
type BookCache interface {
	SetSummary(ctx context.Context, symbol string, summary BookSummary, ttl time.Duration) error
	GetSummary(ctx context.Context, symbol string) (BookSummary, error)
}

// StreamMessage is a single entry read from a durable signal stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus publishes market-data events to out-of-process consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// BlobWriter uploads archive objects (trade-history batches) to object
// storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BookEventKind classifies a book integrity event.
type BookEventKind string

const (
	BookEventSequenceGap BookEventKind = "sequence_gap"
	BookEventCrossedBook BookEventKind = "crossed_book"
)

// BookEvent is emitted by the service when a symbol's book is marked stale.
type BookEvent struct {
	Symbol string
	Kind   BookEventKind
	Err    error
	Time   time.Time
}
