package domain

import "sync"

// OHLCEngine folds incoming prices into the eight always-maintained
// resolutions for every symbol it sees. Gap windows are never backfilled:
// if ticks stop arriving for several bucket widths and then resume, only
// the bucket containing the resuming tick is created.
type OHLCEngine struct {
	mu     sync.Mutex
	groups map[Symbol]*OHLCGroup
}

// NewOHLCEngine constructs an empty engine.
func NewOHLCEngine() *OHLCEngine {
	return &OHLCEngine{groups: make(map[Symbol]*OHLCGroup)}
}

// Fold updates every resolution's series for symbol with a tick of the
// given fixed-point value/scale observed at ts (ms epoch).
func (e *OHLCEngine) Fold(symbol Symbol, value, scale, ts uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[symbol]
	if !ok {
		g = newOHLCGroup()
		e.groups[symbol] = g
	}

	for _, res := range AllResolutions {
		foldSeries(g.Series[res], uint64(res), value, scale, ts)
	}
}

// Group returns the OHLCGroup for symbol, or nil if no tick has been folded
// for it yet.
func (e *OHLCEngine) Group(symbol Symbol) *OHLCGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.groups[symbol]
}

// foldSeries applies one tick to a single resolution's series, windowed by
// w seconds.
func foldSeries(series *OHLCSeries, w, value, scale, ts uint64) {
	windowMs := w * 1000
	tsClose := (((ts / 1000) - (ts/1000)%w) + w) * 1000

	last := series.Last()
	if last == nil || ts >= last.TsClose {
		series.push(OHLCBar{
			TsLast:  ts,
			TsOpen:  tsClose - windowMs,
			TsClose: tsClose,
			Open:    value,
			High:    value,
			Low:     value,
			Close:   value,
			Curr:    value,
			Prev:    value,
			Scale:   scale,
		})
		return
	}

	bar := last
	effScale := bar.Scale
	if scale > effScale {
		effScale = scale
	}
	if effScale != bar.Scale {
		rescaleBar(bar, effScale)
	}
	tickValue := rescale(value, scale, effScale)

	if tickValue > bar.High {
		bar.High = tickValue
	}
	if tickValue < bar.Low {
		bar.Low = tickValue
	}
	bar.Close = tickValue
	bar.Prev = bar.Curr
	bar.Curr = tickValue
	bar.TsLast = ts
}

// rescaleBar brings every OHLC field on bar up to newScale (newScale must
// be >= bar.Scale; a bar's scale never shrinks within its own lifetime,
// matching the price store's monotonicity rule).
func rescaleBar(bar *OHLCBar, newScale uint64) {
	if newScale <= bar.Scale {
		return
	}
	bar.Open = rescale(bar.Open, bar.Scale, newScale)
	bar.High = rescale(bar.High, bar.Scale, newScale)
	bar.Low = rescale(bar.Low, bar.Scale, newScale)
	bar.Close = rescale(bar.Close, bar.Scale, newScale)
	bar.Curr = rescale(bar.Curr, bar.Scale, newScale)
	bar.Prev = rescale(bar.Prev, bar.Scale, newScale)
	bar.Scale = newScale
}
