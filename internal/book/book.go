// Package book maintains a per-symbol order book under a stream of depth
// snapshots and diffs. The mutable Book is owned by a single writer; every
// read query runs against an immutable Snapshot published by that writer, so
// readers never observe a torn or crossed view.
package book

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// levels is one side of the book, kept sorted best-price-first: bids
// descending, asks ascending. Every stored level has quantity > 0.
type levels struct {
	entries []domain.PriceLevel
	desc    bool
}

// search returns the insertion index for price and whether a level at exactly
// that price already exists.
func (l *levels) search(price decimal.Decimal) (int, bool) {
	idx := sort.Search(len(l.entries), func(i int) bool {
		c := l.entries[i].Price.Cmp(price)
		if l.desc {
			return c <= 0
		}
		return c >= 0
	})
	if idx < len(l.entries) && l.entries[idx].Price.Equal(price) {
		return idx, true
	}
	return idx, false
}

// apply upserts a level, or deletes it when quantity is zero.
func (l *levels) apply(price, quantity decimal.Decimal) {
	idx, found := l.search(price)
	switch {
	case quantity.Sign() > 0 && found:
		l.entries[idx].Quantity = quantity
	case quantity.Sign() > 0:
		l.entries = append(l.entries, domain.PriceLevel{})
		copy(l.entries[idx+1:], l.entries[idx:])
		l.entries[idx] = domain.PriceLevel{Price: price, Quantity: quantity}
	case found:
		l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	}
}

func (l *levels) reset() {
	l.entries = l.entries[:0]
}

// Book is the mutable per-symbol order book. It must only ever be mutated by
// one goroutine (the symbol's worker); concurrent readers use Snapshot.
type Book struct {
	symbol string
	bids   levels
	asks   levels

	lastUpdateID   uint64
	seqSeen        bool
	lastUpdateTime time.Time

	stale    bool
	staleErr error
}

// New creates an empty book for a symbol.
func New(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   levels{desc: true},
		asks:   levels{},
	}
}

// ApplyBidLevels upserts bid levels; a zero quantity deletes the level.
func (b *Book) ApplyBidLevels(lvls []domain.PriceLevel) {
	for _, lvl := range lvls {
		b.bids.apply(lvl.Price, lvl.Quantity)
	}
}

// ApplyAskLevels upserts ask levels; a zero quantity deletes the level.
func (b *Book) ApplyAskLevels(lvls []domain.PriceLevel) {
	for _, lvl := range lvls {
		b.asks.apply(lvl.Price, lvl.Quantity)
	}
}

// ApplySnapshot replaces the entire book state. A snapshot clears any
// staleness from a previous gap or corruption; re-snapshotting is how the
// caller recovers a stale symbol.
func (b *Book) ApplySnapshot(msg domain.DepthSnapshotMsg, now time.Time) error {
	b.bids.reset()
	b.asks.reset()
	b.stale = false
	b.staleErr = nil

	b.ApplyBidLevels(msg.Bids)
	b.ApplyAskLevels(msg.Asks)
	b.lastUpdateID = msg.LastUpdateID
	b.seqSeen = true
	b.lastUpdateTime = now

	return b.checkCrossed()
}

// ApplyDiff applies an incremental update after validating the update-ID
// sequence. A diff entirely at or below the current update ID is a transport
// replay and is dropped silently. A diff whose range starts beyond the next
// expected ID is a gap: the book is marked stale and the diff is NOT applied.
func (b *Book) ApplyDiff(msg domain.DepthDiffMsg, now time.Time) error {
	if b.seqSeen {
		if msg.LastUpdateID <= b.lastUpdateID {
			return nil
		}
		if msg.FirstUpdateID > b.lastUpdateID+1 {
			b.markStale(domain.ErrStaleBook)
			return fmt.Errorf("book %s: diff %d..%d does not follow %d: %w",
				b.symbol, msg.FirstUpdateID, msg.LastUpdateID, b.lastUpdateID, domain.ErrStaleBook)
		}
	}

	b.ApplyBidLevels(msg.Bids)
	b.ApplyAskLevels(msg.Asks)
	b.lastUpdateID = msg.LastUpdateID
	b.seqSeen = true
	b.lastUpdateTime = now

	return b.checkCrossed()
}

// checkCrossed enforces the non-crossed invariant. A crossed book indicates
// feed corruption; the book is marked stale and keeps serving reads flagged.
func (b *Book) checkCrossed() error {
	if len(b.bids.entries) == 0 || len(b.asks.entries) == 0 {
		return nil
	}
	bestBid := b.bids.entries[0].Price
	bestAsk := b.asks.entries[0].Price
	if bestBid.GreaterThanOrEqual(bestAsk) {
		b.markStale(domain.ErrBookCorruption)
		return fmt.Errorf("book %s: bid %s >= ask %s: %w",
			b.symbol, bestBid, bestAsk, domain.ErrBookCorruption)
	}
	return nil
}

func (b *Book) markStale(err error) {
	b.stale = true
	b.staleErr = err
}

// Stale reports whether a sequence gap or crossed book has been detected
// since the last snapshot.
func (b *Book) Stale() bool {
	return b.stale
}

// LastUpdateID returns the most recently applied exchange update ID.
func (b *Book) LastUpdateID() uint64 {
	return b.lastUpdateID
}

// Snapshot publishes an immutable copy of the current book state.
func (b *Book) Snapshot() *Snapshot {
	s := &Snapshot{
		Symbol:       b.symbol,
		Bids:         append([]domain.PriceLevel(nil), b.bids.entries...),
		Asks:         append([]domain.PriceLevel(nil), b.asks.entries...),
		LastUpdateID: b.lastUpdateID,
		Time:         b.lastUpdateTime,
		Stale:        b.stale,
	}
	if b.staleErr != nil {
		s.StaleReason = b.staleErr.Error()
	}
	return s
}
