package domain

import (
	"fmt"
	"sync"

	"github.com/fd1az/marketfeed/internal/apperror"
)

// Callback receives a dispatched price update. Callbacks are invoked with
// no registry locks held, so a callback may legally call back into Listen,
// Unlisten or GetLastPrice without deadlocking.
type Callback func(PriceUpdate)

// Registry tracks persistent per-symbol listeners and one-shot "next tick"
// callbacks, and dispatches ticks to both once a price has been folded.
type Registry struct {
	mu        sync.Mutex
	listeners map[Symbol]Callback
	oneShots  map[Symbol][]Callback
	store     *PriceStore
}

// NewRegistry constructs a Registry backed by store for GetLastPrice reads.
func NewRegistry(store *PriceStore) *Registry {
	return &Registry{
		listeners: make(map[Symbol]Callback),
		oneShots:  make(map[Symbol][]Callback),
		store:     store,
	}
}

// Listen replaces any existing persistent listener for symbol.
func (r *Registry) Listen(symbol Symbol, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[symbol] = cb
}

// Unlisten removes the persistent listener for symbol, a no-op if absent.
func (r *Registry) Unlisten(symbol Symbol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, symbol)
}

// ListenBatch calls Listen(symbol, cb) for every symbol in symbols.
func (r *Registry) ListenBatch(symbols []Symbol, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range symbols {
		r.listeners[s] = cb
	}
}

// ListenBatchEach calls Listen with one callback paired per symbol;
// len(symbols) must equal len(cbs). A cardinality mismatch is a fatal
// misuse by the caller, not a runtime condition to recover from, so it
// panics rather than silently truncating to the shorter vector.
func (r *Registry) ListenBatchEach(symbols []Symbol, cbs []Callback) {
	if len(symbols) != len(cbs) {
		panic(apperror.New(apperror.CodeConfigInvalid,
			apperror.WithMessage(fmt.Sprintf(
				"ListenBatchEach: symbols and callbacks must have equal length, got %d and %d",
				len(symbols), len(cbs))),
		))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range symbols {
		r.listeners[s] = cbs[i]
	}
}

// UnlistenBatch calls Unlisten for every symbol in symbols.
func (r *Registry) UnlistenBatch(symbols []Symbol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range symbols {
		delete(r.listeners, s)
	}
}

// GetLastPrice returns the last known price for symbol synchronously. If cb
// is non-nil it is additionally enqueued onto the symbol's one-shot queue
// and will be invoked (with the tick that triggered it) on the next
// Dispatch for that symbol.
func (r *Registry) GetLastPrice(symbol Symbol, cb Callback) (FixedPrice, bool) {
	fp, ok := r.store.GetLastPrice(symbol)
	if cb != nil {
		r.mu.Lock()
		r.oneShots[symbol] = append(r.oneShots[symbol], cb)
		r.mu.Unlock()
	}
	return fp, ok
}

// Dispatch delivers update to the persistent listener (if any) and drains
// every one-shot callback queued for update.Symbol, invoking all of them,
// in FIFO order, with the registry lock released.
func (r *Registry) Dispatch(update PriceUpdate) {
	r.mu.Lock()
	listener, hasListener := r.listeners[update.Symbol]
	oneShots := r.oneShots[update.Symbol]
	delete(r.oneShots, update.Symbol)
	r.mu.Unlock()

	if hasListener {
		listener(update)
	}
	for _, cb := range oneShots {
		cb(update)
	}
}
