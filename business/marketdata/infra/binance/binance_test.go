package binance

import (
	"io"
	"testing"

	"github.com/fd1az/marketfeed/business/marketdata/domain"
	"github.com/fd1az/marketfeed/internal/logger"
	"github.com/fd1az/marketfeed/internal/transport"
)

func testSession(t *testing.T) *transport.Session {
	t.Helper()
	sess, err := transport.NewSession(transport.DefaultConfig("wss://example.invalid/stream", "binance-test"),
		logger.New(io.Discard, logger.LevelError, "binance-test", nil))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func TestNormalizePair(t *testing.T) {
	if got := normalizePair("BTC-USDT"); got != "btcusdt" {
		t.Fatalf("expected btcusdt, got %s", got)
	}
}

func TestSuppressTrailingZeroes(t *testing.T) {
	cases := map[string]string{
		"50000.10000": "50000.1",
		"50000.00000": "50000",
		"50000":       "50000",
		"50000.5":     "50000.5",
	}
	for in, want := range cases {
		if got := suppressTrailingZeroes(in); got != want {
			t.Errorf("suppressTrailingZeroes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAdapter_SubscribeThenRouteAggTrade(t *testing.T) {
	sess := testSession(t)
	var got []domain.PriceUpdate
	adapter := New(sess, nil, nil, func(u domain.PriceUpdate) { got = append(got, u) })

	if err := adapter.VenueSubscribe([]string{"BTC-USDT"}); err != nil {
		t.Fatalf("VenueSubscribe: %v", err)
	}

	frame := `{"stream":"btcusdt@aggTrade","data":{"s":"BTCUSDT","p":"50000.10000","T":1700000000000}}`
	adapter.handleFrame(sess, []byte(frame))

	if len(got) != 1 {
		t.Fatalf("expected 1 routed update, got %d", len(got))
	}
	if got[0].Symbol != "BTC-USDT" {
		t.Errorf("expected canonical symbol BTC-USDT, got %s", got[0].Symbol)
	}
	if got[0].Price != "50000.1" {
		t.Errorf("expected trailing-zero-suppressed price 50000.1, got %s", got[0].Price)
	}
}

func TestAdapter_UnsubscribedSymbolDropped(t *testing.T) {
	sess := testSession(t)
	var calls int
	adapter := New(sess, nil, nil, func(domain.PriceUpdate) { calls++ })

	frame := `{"stream":"ethusdt@aggTrade","data":{"s":"ETHUSDT","p":"3000.5","T":1700000000000}}`
	adapter.handleFrame(sess, []byte(frame))

	if calls != 0 {
		t.Fatalf("expected unknown-symbol frame to be dropped, got %d calls", calls)
	}
}

func TestAdapter_UnsubscribeRemovesReverseMapping(t *testing.T) {
	sess := testSession(t)
	var calls int
	adapter := New(sess, nil, nil, func(domain.PriceUpdate) { calls++ })

	if err := adapter.VenueSubscribe([]string{"BTC-USDT"}); err != nil {
		t.Fatalf("VenueSubscribe: %v", err)
	}
	if err := adapter.VenueUnsubscribe([]string{"BTC-USDT"}); err != nil {
		t.Fatalf("VenueUnsubscribe: %v", err)
	}

	frame := `{"stream":"btcusdt@aggTrade","data":{"s":"BTCUSDT","p":"1","T":1}}`
	adapter.handleFrame(sess, []byte(frame))

	if calls != 0 {
		t.Fatalf("expected dropped frame after unsubscribe, got %d calls", calls)
	}
}

func TestAdapter_MonotonicRequestIDs(t *testing.T) {
	sess := testSession(t)
	adapter := New(sess, nil, nil, func(domain.PriceUpdate) {})

	first := adapter.nextID.Add(0)
	if err := adapter.VenueSubscribe([]string{"BTC-USDT"}); err != nil {
		t.Fatalf("VenueSubscribe: %v", err)
	}
	second := adapter.nextID.Add(0)
	if second <= first {
		t.Fatalf("expected request ID to increase, got %d -> %d", first, second)
	}
}
