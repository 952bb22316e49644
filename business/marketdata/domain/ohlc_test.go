package domain

import "testing"

func TestOHLCEngine_CreatesFirstBarPerResolution(t *testing.T) {
	e := NewOHLCEngine()
	e.Fold("BTC-USDT", 500001, 1, 1_000)

	g := e.Group("BTC-USDT")
	if g == nil {
		t.Fatal("expected a group after folding")
	}
	for _, res := range AllResolutions {
		series := g.Series[res]
		bars := series.Bars()
		if len(bars) != 1 {
			t.Fatalf("resolution %d: expected 1 bar, got %d", res, len(bars))
		}
		bar := bars[0]
		if bar.Open != 500001 || bar.High != 500001 || bar.Low != 500001 || bar.Close != 500001 {
			t.Fatalf("resolution %d: expected OHLC all 500001, got %+v", res, bar)
		}
		if bar.Curr != 500001 || bar.Prev != 500001 {
			t.Fatalf("resolution %d: expected Curr and Prev both 500001 on a single-tick bar, got %+v", res, bar)
		}
	}
}

func TestOHLCEngine_UpdatesBarWithinWindow(t *testing.T) {
	e := NewOHLCEngine()
	// ts=1_000ms puts the 1s bucket's close boundary at 2_000ms.
	e.Fold("BTC-USDT", 100, 0, 1_000)
	e.Fold("BTC-USDT", 150, 0, 1_500)
	e.Fold("BTC-USDT", 80, 0, 1_900)

	bar := e.Group("BTC-USDT").Series[Resolution1s].Last()
	if bar == nil {
		t.Fatal("expected a bar")
	}
	if bar.Open != 100 {
		t.Errorf("Open: expected 100, got %d", bar.Open)
	}
	if bar.High != 150 {
		t.Errorf("High: expected 150, got %d", bar.High)
	}
	if bar.Low != 80 {
		t.Errorf("Low: expected 80, got %d", bar.Low)
	}
	if bar.Close != 80 {
		t.Errorf("Close: expected 80, got %d", bar.Close)
	}
}

func TestOHLCEngine_NewBarOnBoundaryCross(t *testing.T) {
	e := NewOHLCEngine()
	e.Fold("BTC-USDT", 100, 0, 1_000) // bucket [1000,2000), tsClose=2000
	e.Fold("BTC-USDT", 200, 0, 2_500) // crosses into next 1s bucket

	bars := e.Group("BTC-USDT").Series[Resolution1s].Bars()
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars after boundary cross, got %d", len(bars))
	}
	if bars[1].Open != 200 {
		t.Errorf("expected second bar Open 200, got %d", bars[1].Open)
	}
}

func TestOHLCEngine_GapBarsNeverBackfilled(t *testing.T) {
	e := NewOHLCEngine()
	e.Fold("BTC-USDT", 100, 0, 1_000)
	// Silence for many 1s windows, then a tick resumes far later.
	e.Fold("BTC-USDT", 999, 0, 50_000)

	bars := e.Group("BTC-USDT").Series[Resolution1s].Bars()
	if len(bars) != 2 {
		t.Fatalf("expected exactly 2 bars (no synthetic gap bars), got %d", len(bars))
	}
}

func TestOHLCEngine_RingBufferEvictsOldest(t *testing.T) {
	e := NewOHLCEngine()
	for i := 0; i < seriesCap+10; i++ {
		e.Fold("BTC-USDT", uint64(i+1), 0, uint64(i)*1000)
	}
	bars := e.Group("BTC-USDT").Series[Resolution1s].Bars()
	if len(bars) != seriesCap {
		t.Fatalf("expected series capped at %d bars, got %d", seriesCap, len(bars))
	}
	if bars[0].Open == 1 {
		t.Error("expected the oldest bar to have been evicted")
	}
}

func TestOHLCEngine_RescalesBarOnFinerTick(t *testing.T) {
	e := NewOHLCEngine()
	e.Fold("BTC-USDT", 500001, 1, 1_000) // 50000.1
	e.Fold("BTC-USDT", 50000123, 3, 1_500) // 50000.123, same window

	bar := e.Group("BTC-USDT").Series[Resolution1s].Last()
	if bar.Scale != 3 {
		t.Fatalf("expected bar scale to upgrade to 3, got %d", bar.Scale)
	}
	if bar.Open != 50000100 {
		t.Fatalf("expected Open rescaled to 50000100, got %d", bar.Open)
	}
	if bar.High != 50000123 {
		t.Fatalf("expected High 50000123, got %d", bar.High)
	}
}
