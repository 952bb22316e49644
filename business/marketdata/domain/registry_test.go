package domain

import (
	"sync"
	"testing"
)

func TestRegistry_ReplaceOnListen(t *testing.T) {
	store := NewPriceStore()
	r := NewRegistry(store)

	var firstCalls, secondCalls int
	r.Listen("BTC-USDT", func(PriceUpdate) { firstCalls++ })
	r.Listen("BTC-USDT", func(PriceUpdate) { secondCalls++ })

	r.Dispatch(PriceUpdate{Symbol: "BTC-USDT"})

	if firstCalls != 0 {
		t.Errorf("expected the first listener to have been replaced, got %d calls", firstCalls)
	}
	if secondCalls != 1 {
		t.Errorf("expected the second listener to be invoked once, got %d", secondCalls)
	}
}

func TestRegistry_UnlistenIsNoOpIfAbsent(t *testing.T) {
	r := NewRegistry(NewPriceStore())
	r.Unlisten("BTC-USDT") // must not panic
}

func TestRegistry_OneShotDrainedExactlyOnce(t *testing.T) {
	store := NewPriceStore()
	r := NewRegistry(store)

	var calls int
	_, _ = r.GetLastPrice("BTC-USDT", func(PriceUpdate) { calls++ })

	r.Dispatch(PriceUpdate{Symbol: "BTC-USDT"})
	r.Dispatch(PriceUpdate{Symbol: "BTC-USDT"})

	if calls != 1 {
		t.Fatalf("expected one-shot callback invoked exactly once, got %d", calls)
	}
}

func TestRegistry_MultipleOneShotsDrainInFIFOOrder(t *testing.T) {
	r := NewRegistry(NewPriceStore())

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.GetLastPrice("BTC-USDT", func(PriceUpdate) { order = append(order, i) })
	}
	r.Dispatch(PriceUpdate{Symbol: "BTC-USDT"})

	want := []int{0, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("expected %d callbacks, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected FIFO order %v, got %v", want, order)
		}
	}
}

func TestRegistry_DispatchReleasesLockBeforeInvokingCallbacks(t *testing.T) {
	store := NewPriceStore()
	r := NewRegistry(store)

	reentered := make(chan struct{}, 1)
	r.Listen("BTC-USDT", func(PriceUpdate) {
		// Re-entrant call from within a callback must not deadlock.
		r.Listen("BTC-USDT", func(PriceUpdate) {})
		r.GetLastPrice("BTC-USDT", nil)
		reentered <- struct{}{}
	})

	done := make(chan struct{})
	go func() {
		r.Dispatch(PriceUpdate{Symbol: "BTC-USDT"})
		close(done)
	}()

	select {
	case <-reentered:
	case <-done:
		t.Fatal("dispatch completed without invoking the listener")
	}
	<-done
}

func TestRegistry_ListenBatchEachPairsOneCallbackPerSymbol(t *testing.T) {
	r := NewRegistry(NewPriceStore())

	var btcCalls, ethCalls int
	symbols := []Symbol{"BTC-USDT", "ETH-USDT"}
	cbs := []Callback{
		func(PriceUpdate) { btcCalls++ },
		func(PriceUpdate) { ethCalls++ },
	}
	r.ListenBatchEach(symbols, cbs)

	r.Dispatch(PriceUpdate{Symbol: "BTC-USDT"})
	r.Dispatch(PriceUpdate{Symbol: "ETH-USDT"})

	if btcCalls != 1 {
		t.Errorf("expected BTC-USDT callback invoked once, got %d", btcCalls)
	}
	if ethCalls != 1 {
		t.Errorf("expected ETH-USDT callback invoked once, got %d", ethCalls)
	}
}

func TestRegistry_ListenBatchEachPanicsOnCardinalityMismatch(t *testing.T) {
	r := NewRegistry(NewPriceStore())

	defer func() {
		if recover() == nil {
			t.Fatal("expected ListenBatchEach to panic on mismatched lengths")
		}
	}()

	r.ListenBatchEach([]Symbol{"BTC-USDT", "ETH-USDT"}, []Callback{func(PriceUpdate) {}})
}

func TestRegistry_BatchOperations(t *testing.T) {
	r := NewRegistry(NewPriceStore())

	var mu sync.Mutex
	calls := map[string]int{}
	cb := func(u PriceUpdate) {
		mu.Lock()
		calls[u.Symbol]++
		mu.Unlock()
	}

	symbols := []string{"BTC-USDT", "ETH-USDT"}
	r.ListenBatch(symbols, cb)
	r.Dispatch(PriceUpdate{Symbol: "BTC-USDT"})
	r.Dispatch(PriceUpdate{Symbol: "ETH-USDT"})

	r.UnlistenBatch(symbols)
	r.Dispatch(PriceUpdate{Symbol: "BTC-USDT"})

	mu.Lock()
	defer mu.Unlock()
	if calls["BTC-USDT"] != 1 || calls["ETH-USDT"] != 1 {
		t.Fatalf("expected each symbol dispatched once before unlisten, got %+v", calls)
	}
}
