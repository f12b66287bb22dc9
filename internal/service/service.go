// Package service hosts the market microstructure core. Each tracked
// symbol is owned by a single worker goroutine that consumes a FIFO
// message channel, applies depth updates to a mutable order book and
// publishes immutable snapshots through an atomic pointer. Read paths
// never contend with the write path on the book itself.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Fuuurma/FinanceHub-sub000/internal/book"
	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
	"github.com/Fuuurma/FinanceHub-sub000/internal/tape"
)

const (
	// DefaultQueueSize bounds each symbol's message channel. Apply drops
	// messages rather than block the feed when a worker falls behind.
	DefaultQueueSize = 1024

	// DefaultSnapshotDepth is the number of levels requested from the
	// snapshot fetcher when tracking begins.
	DefaultSnapshotDepth = 1000

	// trendHistorySize bounds the rolling imbalance and best-bid/offer
	// rings kept per symbol.
	trendHistorySize = 100
)

// Config tunes per-symbol buffer sizes. Zero values fall back to defaults.
type Config struct {
	QueueSize     int
	SnapshotDepth int
	HistorySize   int
	DisplaySize   int
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.SnapshotDepth <= 0 {
		c.SnapshotDepth = DefaultSnapshotDepth
	}
	if c.HistorySize <= 0 {
		c.HistorySize = tape.DefaultHistorySize
	}
	if c.DisplaySize <= 0 {
		c.DisplaySize = tape.DefaultDisplaySize
	}
	return c
}

// Stats are cumulative counters across all symbols.
type Stats struct {
	MessagesApplied uint64 `json:"messages_applied"`
	MessagesDropped uint64 `json:"messages_dropped"`
	SequenceGaps    uint64 `json:"sequence_gaps"`
	CrossedBooks    uint64 `json:"crossed_books"`
	TrackedSymbols  int    `json:"tracked_symbols"`
}

// symbolState is everything owned on behalf of one symbol. The book is
// touched only by the worker goroutine; readers load snap. The mutex
// guards the tape, the trade stats and the history rings.
type symbolState struct {
	symbol string
	msgs   chan domain.Message
	done   chan struct{}

	bk   *book.Book
	snap atomic.Pointer[book.Snapshot]

	mu        sync.RWMutex
	tape      *tape.Tape
	stats     *tape.Stats
	imbalance *tape.Ring[book.Imbalance]
	bbo       *tape.Ring[book.BBOSample]
}

// Service multiplexes order books, trade tapes and analytics for a set
// of tracked symbols.
type Service struct {
	cfg     Config
	fetcher domain.SnapshotFetcher
	logger  *slog.Logger
	onEvent func(domain.BookEvent)

	mu      sync.RWMutex
	symbols map[string]*symbolState
	stopped bool

	applied atomic.Uint64
	dropped atomic.Uint64
	gaps    atomic.Uint64
	crossed atomic.Uint64
}

// New builds a Service. The fetcher provides the initial depth snapshot
// when a symbol is tracked (and again on recovery).
func New(fetcher domain.SnapshotFetcher, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		fetcher: fetcher,
		logger:  logger.With("component", "service"),
		symbols: make(map[string]*symbolState),
	}
}

// SetEventHandler registers a callback invoked from worker goroutines
// whenever a book degrades (sequence gap, crossed book). It must be set
// before the first Track call; the handler must not block.
func (s *Service) SetEventHandler(fn func(domain.BookEvent)) {
	s.onEvent = fn
}

// Track begins (or restarts) tracking a symbol. The initial book state
// is fetched through the snapshot fetcher and enqueued on the symbol's
// channel, so it is ordered with respect to any diffs already queued.
// Calling Track on an already-tracked symbol re-snapshots it, which is
// the recovery path after a sequence gap marked the book stale.
func (s *Service) Track(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(symbol)

	snap, err := s.fetcher.FetchDepth(ctx, symbol, s.cfg.SnapshotDepth)
	if err != nil {
		return fmt.Errorf("service: track %s: %w", symbol, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return domain.ErrServiceStopped
	}
	st, ok := s.symbols[symbol]
	if !ok {
		st = &symbolState{
			symbol:    symbol,
			msgs:      make(chan domain.Message, s.cfg.QueueSize),
			done:      make(chan struct{}),
			bk:        book.New(symbol),
			tape:      tape.New(s.cfg.HistorySize, s.cfg.DisplaySize),
			stats:     tape.NewStats(),
			imbalance: tape.NewRing[book.Imbalance](trendHistorySize),
			bbo:       tape.NewRing[book.BBOSample](trendHistorySize),
		}
		s.symbols[symbol] = st
		go s.runWorker(st)
	}

	select {
	case st.msgs <- snap:
	default:
		s.mu.Unlock()
		s.dropped.Add(1)
		return fmt.Errorf("service: track %s: queue full", symbol)
	}
	s.mu.Unlock()

	s.logger.Info("tracking symbol", "symbol", symbol, "last_update_id", snap.LastUpdateID)
	return nil
}

// Apply enqueues a feed message for the symbol's worker. It never
// blocks: when the worker's queue is full the message is dropped and
// counted, and the book will recover through gap detection plus a
// re-Track. Messages for untracked symbols return ErrNotTracked.
func (s *Service) Apply(symbol string, msg domain.Message) error {
	symbol = strings.ToUpper(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return domain.ErrServiceStopped
	}
	st, ok := s.symbols[symbol]
	if !ok {
		return fmt.Errorf("service: apply %s: %w", symbol, domain.ErrNotTracked)
	}
	select {
	case st.msgs <- msg:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Debug("message dropped, queue full", "symbol", symbol)
		return nil
	}
}

// Stop shuts down every worker and clears the tracked set. It is
// idempotent. Each symbol's channel is closed under the write lock, so
// no Apply can race the close, and the worker is awaited afterwards.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	states := make([]*symbolState, 0, len(s.symbols))
	for _, st := range s.symbols {
		states = append(states, st)
	}
	s.symbols = make(map[string]*symbolState)
	for _, st := range states {
		close(st.msgs)
	}
	s.mu.Unlock()

	for _, st := range states {
		<-st.done
	}
	s.logger.Info("service stopped", "symbols", len(states))
}

// Untrack stops a single symbol's worker and discards its state.
func (s *Service) Untrack(symbol string) error {
	symbol = strings.ToUpper(symbol)

	s.mu.Lock()
	st, ok := s.symbols[symbol]
	if ok {
		delete(s.symbols, symbol)
		close(st.msgs)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("service: untrack %s: %w", symbol, domain.ErrNotTracked)
	}
	<-st.done
	return nil
}

// Symbols returns the tracked symbols in sorted order.
func (s *Service) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Stats reports cumulative message counters.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	tracked := len(s.symbols)
	s.mu.RUnlock()
	return Stats{
		MessagesApplied: s.applied.Load(),
		MessagesDropped: s.dropped.Load(),
		SequenceGaps:    s.gaps.Load(),
		CrossedBooks:    s.crossed.Load(),
		TrackedSymbols:  tracked,
	}
}

func (s *Service) runWorker(st *symbolState) {
	defer close(st.done)
	for msg := range st.msgs {
		s.handle(st, msg)
	}
}

func (s *Service) handle(st *symbolState, msg domain.Message) {
	now := time.Now().UTC()

	switch m := msg.(type) {
	case domain.DepthSnapshotMsg:
		if err := st.bk.ApplySnapshot(m, now); err != nil {
			s.bookDegraded(st, err, now)
		}
		s.publish(st)
		s.applied.Add(1)
	case domain.DepthDiffMsg:
		if err := st.bk.ApplyDiff(m, now); err != nil {
			s.bookDegraded(st, err, now)
		}
		s.publish(st)
		s.applied.Add(1)
	case domain.TradeMsg:
		st.mu.Lock()
		st.tape.Push(m.Trade)
		st.stats.Record(m.Trade)
		st.mu.Unlock()
		s.applied.Add(1)
	case domain.AggTradeMsg:
		st.mu.Lock()
		st.tape.PushAgg(m.Trade)
		st.stats.Record(m.Trade.Trade)
		st.mu.Unlock()
		s.applied.Add(1)
	default:
		s.dropped.Add(1)
		s.logger.Warn("unknown message type", "symbol", st.symbol)
	}
}

// publish stores a fresh immutable snapshot and extends the imbalance and
// best-bid/offer histories when both sides have depth.
func (s *Service) publish(st *symbolState) {
	snap := st.bk.Snapshot()
	st.snap.Store(snap)

	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		imb := snap.Imbalance(book.DefaultImbalanceLevels)
		st.mu.Lock()
		st.imbalance.Push(imb)
		st.bbo.Push(book.BBOSample{
			Bid:  snap.Bids[0],
			Ask:  snap.Asks[0],
			Time: snap.Time,
		})
		st.mu.Unlock()
	}
}

func (s *Service) bookDegraded(st *symbolState, err error, at time.Time) {
	kind := domain.BookEventSequenceGap
	if errors.Is(err, domain.ErrBookCorruption) {
		kind = domain.BookEventCrossedBook
		s.crossed.Add(1)
	} else {
		s.gaps.Add(1)
	}
	s.logger.Warn("book degraded", "symbol", st.symbol, "kind", string(kind), "error", err)

	if s.onEvent != nil {
		s.onEvent(domain.BookEvent{
			Symbol: st.symbol,
			Kind:   kind,
			Err:    err,
			Time:   at,
		})
	}
}
