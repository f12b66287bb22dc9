package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	rediscache "github.com/Fuuurma/FinanceHub-sub000/internal/cache/redis"
	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
	"github.com/Fuuurma/FinanceHub-sub000/internal/feed"
	"github.com/Fuuurma/FinanceHub-sub000/internal/notify"
	"github.com/Fuuurma/FinanceHub-sub000/internal/pipeline"
	"github.com/Fuuurma/FinanceHub-sub000/internal/server"
	"github.com/Fuuurma/FinanceHub-sub000/internal/server/handler"
	"github.com/Fuuurma/FinanceHub-sub000/internal/service"
	"github.com/shopspring/decimal"
)

// summaryLevels is the book depth written into the cached summaries.
const summaryLevels = 20

// LiveMode runs the websocket feed into the in-memory book engine and serves
// the HTTP API over it. Nothing is persisted.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode")

	g, ctx := errgroup.WithContext(ctx)

	svc := a.buildMarketService(deps)
	defer svc.Stop()

	a.trackConfiguredSymbols(ctx, svc)
	wsFeed := a.startFeed(ctx, g, svc)
	a.startSummaryCache(ctx, g, deps, svc)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc, wsFeed)
	}

	return g.Wait()
}

// ServerMode serves the HTTP API without a live feed. Books are populated
// on demand from REST depth snapshots when a client tracks a symbol, and
// trade history comes from the stores.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	svc := a.buildMarketService(deps)
	defer svc.Stop()

	// Server mode always exposes the API regardless of server.enabled.
	a.startHTTPServer(ctx, g, deps, svc, nil)

	return g.Wait()
}

// MonitorMode runs the feed, pipelines, and notifications without the HTTP
// API. Useful as a headless collector.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	svc := a.buildMarketService(deps)
	defer svc.Stop()

	a.trackConfiguredSymbols(ctx, svc)
	a.startFeed(ctx, g, svc)
	a.startSummaryCache(ctx, g, deps, svc)
	a.startPipelines(ctx, g, deps, svc)

	return g.Wait()
}

// FullMode starts all subsystems: the live feed, the book engine, pipelines,
// and the HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	svc := a.buildMarketService(deps)
	defer svc.Stop()

	a.trackConfiguredSymbols(ctx, svc)
	wsFeed := a.startFeed(ctx, g, svc)
	a.startSummaryCache(ctx, g, deps, svc)
	a.startPipelines(ctx, g, deps, svc)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc, wsFeed)
	}

	return g.Wait()
}

// buildMarketService constructs the book engine and hooks its integrity
// events into the signal bus, the notifier, and automatic recovery.
func (a *App) buildMarketService(deps *Dependencies) *service.Service {
	svc := service.New(deps.Exchange, service.Config{
		QueueSize:     a.cfg.Market.QueueSize,
		SnapshotDepth: a.cfg.Market.SnapshotDepth,
		HistorySize:   a.cfg.Market.HistorySize,
		DisplaySize:   a.cfg.Market.DisplaySize,
	}, a.logger)

	svc.SetEventHandler(func(ev domain.BookEvent) {
		// Handler runs on the symbol worker; fan out asynchronously.
		go a.handleBookEvent(svc, deps, ev)
	})

	return svc
}

// handleBookEvent publishes a book integrity event, notifies operators, and
// re-snapshots the affected symbol so the book recovers.
func (a *App) handleBookEvent(svc *service.Service, deps *Dependencies, ev domain.BookEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a.logger.Warn("book integrity event",
		slog.String("symbol", ev.Symbol),
		slog.String("kind", string(ev.Kind)),
		slog.String("error", ev.Err.Error()),
	)

	if deps.SignalBus != nil {
		if sb, ok := deps.SignalBus.(*rediscache.SignalBus); ok {
			if err := sb.PublishBookEvent(ctx, ev); err != nil {
				a.logger.Warn("publish book event failed",
					slog.String("symbol", ev.Symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if deps.Notifier != nil {
		event := notify.EventBookStale
		if ev.Kind == domain.BookEventCrossedBook {
			event = notify.EventBookCorruption
		}
		_ = deps.Notifier.Notify(ctx, event,
			fmt.Sprintf("Book %s %s", ev.Kind, ev.Symbol),
			ev.Err.Error(),
		)
	}

	// Recover by re-snapshotting the book.
	if err := svc.Track(ctx, ev.Symbol); err != nil && !errors.Is(err, domain.ErrServiceStopped) {
		a.logger.Error("book recovery failed",
			slog.String("symbol", ev.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

// trackConfiguredSymbols seeds the engine with the configured symbol set.
// Failures are logged and skipped; the symbol can be tracked later through
// the API or recovered on the next integrity event.
func (a *App) trackConfiguredSymbols(ctx context.Context, svc *service.Service) {
	for _, symbol := range a.cfg.Market.Symbols {
		if err := svc.Track(ctx, symbol); err != nil {
			a.logger.WarnContext(ctx, "initial track failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}

// startFeed adds the websocket feed goroutine to the errgroup and returns the
// feed for stats reporting.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, svc *service.Service) *feed.BinanceWS {
	wsFeed := feed.NewBinanceWS(
		a.cfg.Binance.WsHost,
		a.cfg.Market.Symbols,
		func(symbol string, msg domain.Message) {
			if err := svc.Apply(symbol, msg); err != nil && !errors.Is(err, domain.ErrNotTracked) {
				a.logger.Warn("apply feed message failed",
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
			}
		},
		a.logger,
	)

	g.Go(func() error {
		defer wsFeed.Close()
		return wsFeed.Run(ctx)
	})

	return wsFeed
}

// startSummaryCache periodically writes per-symbol book summaries to the
// Redis cache. No-op when Redis is disabled.
func (a *App) startSummaryCache(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.Service) {
	if deps.BookCache == nil {
		return
	}

	ttl := a.cfg.Redis.SummaryTTL.Duration
	g.Go(func() error {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				for _, symbol := range svc.Symbols() {
					summary, err := svc.BookSummary(symbol, summaryLevels)
					if err != nil {
						continue
					}
					// TTL is double the refresh period so entries survive a
					// slow refresh.
					if err := deps.BookCache.SetSummary(ctx, symbol, summary, 2*ttl); err != nil {
						a.logger.Warn("cache book summary failed",
							slog.String("symbol", symbol),
							slog.String("error", err.Error()),
						)
					}
				}
			}
		}
	})
}

// startPipelines adds the trade archiver and whale watcher goroutines when
// enabled and their dependencies are wired.
func (a *App) startPipelines(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.Service) {
	if a.cfg.Archive.Enabled && deps.TradeStore != nil {
		archiver := pipeline.NewArchiver(svc, deps.TradeStore, deps.BlobWriter, pipeline.ArchiverConfig{
			Interval:   a.cfg.Archive.Interval.Duration,
			BatchLimit: a.cfg.Archive.BatchLimit,
		}, a.logger)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	if a.cfg.Whale.Enabled {
		stream := ""
		if deps.SignalBus != nil {
			stream = rediscache.WhaleAlertStream
		}
		watcher := pipeline.NewWhaleWatcher(svc, deps.WhaleStore, deps.Notifier, deps.SignalBus, pipeline.WhaleWatcherConfig{
			Interval:   a.cfg.Whale.Interval.Duration,
			Multiplier: decimal.NewFromFloat(a.cfg.Whale.Multiplier),
			Limit:      a.cfg.Whale.Limit,
			Stream:     stream,
		}, a.logger)
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}
}

// startHTTPServer adds the HTTP API server to the errgroup and shuts it down
// gracefully when the context is cancelled. wsFeed may be nil when no feed is
// running.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.Service, wsFeed *feed.BinanceWS) {
	var feedStats func() feed.Stats
	if wsFeed != nil {
		feedStats = wsFeed.Stats
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(svc.Stats, feedStats, a.logger),
		Book:   handler.NewBookHandler(svc, a.logger),
		Trades: handler.NewTradesHandler(svc, deps.Exchange, deps.TradeStore, deps.WhaleStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
