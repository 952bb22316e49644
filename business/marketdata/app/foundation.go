// Package app glues the price store, OHLC engine and subscription registry
// into a single public surface (the Exchange Foundation) that is driven by
// one or more venue adapters.
package app

import (
	"context"
	"fmt"

	"github.com/fd1az/marketfeed/business/marketdata/domain"
	"github.com/fd1az/marketfeed/internal/apperror"
	"github.com/fd1az/marketfeed/internal/logger"
	"github.com/fd1az/marketfeed/internal/transport"
)

// VenueAdapter is the capability interface every venue (OKX, Binance, ...)
// implements. Venue differences are expressed through this interface, never
// through a class hierarchy rooted at Foundation.
type VenueAdapter interface {
	Name() string
	VenueSubscribe(symbols []string) error
	VenueUnsubscribe(symbols []string) error
}

// Config carries the symbols each adapter should subscribe to at Start.
type Config struct {
	Symbols map[string][]string // adapter name -> symbols
}

// Foundation is the public API a consumer of this library drives: it owns
// the price store, OHLC engine and subscription registry, and forwards
// Start/Close to the transport host and configured venue adapters.
type Foundation struct {
	cfg      Config
	log      logger.LoggerInterface
	host     *transport.Host
	adapters []VenueAdapter

	store    *domain.PriceStore
	ohlc     *domain.OHLCEngine
	registry *domain.Registry
}

// New constructs a Foundation wired to host and the given adapters. Venue
// adapters are typically constructed after the Foundation itself (they
// need its OnPriceUpdate method as their callback), so SetAdapters is
// available to attach them once built.
func New(cfg Config, host *transport.Host, log logger.LoggerInterface, adapters ...VenueAdapter) *Foundation {
	store := domain.NewPriceStore()
	return &Foundation{
		cfg:      cfg,
		log:      log,
		host:     host,
		adapters: adapters,
		store:    store,
		ohlc:     domain.NewOHLCEngine(),
		registry: domain.NewRegistry(store),
	}
}

// SetAdapters attaches the venue adapters Start/Close will drive. Intended
// to be called once, after adapters have been constructed with this
// Foundation's OnPriceUpdate as their callback.
func (f *Foundation) SetAdapters(adapters ...VenueAdapter) {
	f.adapters = adapters
}

// SetSymbols sets the per-adapter symbol list Start subscribes to.
func (f *Foundation) SetSymbols(symbols map[string][]string) {
	f.cfg.Symbols = symbols
}

// OnPriceUpdate is the callback a venue adapter invokes for every decoded
// tick. It folds the tick into the store/OHLC engine and dispatches it to
// the subscription registry.
func (f *Foundation) OnPriceUpdate(update domain.PriceUpdate) {
	fp, ts, err := f.store.SetLastPrice(update.Symbol, update.Price, update.Timestamp)
	if err != nil {
		if f.log != nil {
			f.log.Warn(context.Background(), "dropping malformed price update",
				"symbol", update.Symbol, "price", update.Price, "error", err)
		}
		return
	}

	f.ohlc.Fold(update.Symbol, fp.Value, fp.Scale, ts)

	f.registry.Dispatch(domain.PriceUpdate{
		Symbol:    update.Symbol,
		Price:     domain.FormatPrice(fp.Value, fp.Scale),
		Timestamp: ts,
	})
}

// Listen registers cb as the persistent listener for symbol, replacing any
// previous registration.
func (f *Foundation) Listen(symbol string, cb domain.Callback) {
	f.registry.Listen(symbol, cb)
}

// Unlisten removes the persistent listener for symbol.
func (f *Foundation) Unlisten(symbol string) {
	f.registry.Unlisten(symbol)
}

// ListenBatch registers cb for every symbol in symbols.
func (f *Foundation) ListenBatch(symbols []string, cb domain.Callback) {
	f.registry.ListenBatch(symbols, cb)
}

// ListenBatchEach registers one callback per symbol.
func (f *Foundation) ListenBatchEach(symbols []string, cbs []domain.Callback) {
	f.registry.ListenBatchEach(symbols, cbs)
}

// UnlistenBatch removes the persistent listener for every symbol in symbols.
func (f *Foundation) UnlistenBatch(symbols []string) {
	f.registry.UnlistenBatch(symbols)
}

// GetLastPrice returns the last known price for symbol, optionally also
// enqueuing cb to be invoked on the next tick.
func (f *Foundation) GetLastPrice(symbol string, cb domain.Callback) (domain.FixedPrice, bool) {
	return f.registry.GetLastPrice(symbol, cb)
}

// FormatPrice renders a fixed-point value as a decimal string.
func FormatPrice(value, scale uint64) string {
	return domain.FormatPrice(value, scale)
}

// DumpOHLC logs the most recent bar of each resolution in symbol's
// OHLCGroup through the structured logger, one line per resolution, each
// price rendered through FormatPrice. Older bars are not logged.
func (f *Foundation) DumpOHLC(ctx context.Context, symbol string) {
	group := f.ohlc.Group(symbol)
	if group == nil {
		f.log.Info(ctx, "no OHLC data for symbol", "symbol", symbol)
		return
	}
	for _, res := range domain.AllResolutions {
		bars := group.Series[res].Bars()
		if len(bars) == 0 {
			continue
		}
		last := bars[len(bars)-1]
		f.log.Info(ctx, "ohlc bar",
			"symbol", symbol,
			"resolution_seconds", uint64(res),
			"open", domain.FormatPrice(last.Open, last.Scale),
			"high", domain.FormatPrice(last.High, last.Scale),
			"low", domain.FormatPrice(last.Low, last.Scale),
			"close", domain.FormatPrice(last.Close, last.Scale),
			"ts_open", last.TsOpen,
			"ts_close", last.TsClose,
		)
	}
}

// Start subscribes every adapter to its configured symbols and starts the
// transport host.
func (f *Foundation) Start(ctx context.Context) error {
	for _, a := range f.adapters {
		symbols := f.cfg.Symbols[a.Name()]
		if len(symbols) == 0 {
			continue
		}
		if err := a.VenueSubscribe(symbols); err != nil {
			return apperror.Wrap(fmt.Errorf("%s: %w", a.Name(), err), apperror.CodeSubscriptionRejected, a.Name())
		}
	}
	f.host.RunBackground(ctx)
	return nil
}

// Close unsubscribes every adapter and tears down the transport host.
func (f *Foundation) Close() error {
	for _, a := range f.adapters {
		symbols := f.cfg.Symbols[a.Name()]
		if len(symbols) == 0 {
			continue
		}
		_ = a.VenueUnsubscribe(symbols)
	}
	return f.host.Close()
}
