// Package binance implements the Binance venue adapter: symbol
// normalization, wire encode/decode for the combined aggTrade stream, and
// trailing-zero suppression on outbound price strings.
package binance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/fd1az/marketfeed/business/marketdata/domain"
	"github.com/fd1az/marketfeed/internal/apperror"
	"github.com/fd1az/marketfeed/internal/logger"
	"github.com/fd1az/marketfeed/internal/ratelimit"
	"github.com/fd1az/marketfeed/internal/transport"
)

// DefaultHost and DefaultURI are Binance's combined-stream endpoint.
const (
	DefaultHost = "stream.binance.com"
	DefaultPort = 443
	DefaultURI  = "/stream"
)

type subscribeFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type aggTradeData struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
	Trade  int64  `json:"T"`
}

type streamEvent struct {
	Stream string       `json:"stream"`
	Data   aggTradeData `json:"data"`
}

// Adapter is a VenueAdapter for Binance.
type Adapter struct {
	session  *transport.Session
	limiter  *ratelimit.Limiter
	log      logger.LoggerInterface
	onUpdate func(domain.PriceUpdate)

	nextID atomic.Int64

	mu        sync.Mutex
	reverse   map[string]string // normalized -> canonical
}

// New constructs a Binance adapter bound to session.
func New(session *transport.Session, limiter *ratelimit.Limiter, log logger.LoggerInterface, onUpdate func(domain.PriceUpdate)) *Adapter {
	a := &Adapter{
		session:  session,
		limiter:  limiter,
		log:      log,
		onUpdate: onUpdate,
		reverse:  make(map[string]string),
	}
	session.OnRead(a.handleFrame)
	session.OnConnect(func(sess *transport.Session) { sess.ReadAfter() })
	return a
}

// Name identifies this adapter for Foundation config lookups.
func (a *Adapter) Name() string { return "binance" }

func (a *Adapter) handleFrame(sess *transport.Session, data []byte) int {
	defer sess.ReadAfter()

	var evt streamEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		if a.log != nil {
			a.log.Warn(context.Background(), "binance: malformed frame", "error", err)
		}
		return len(data)
	}

	if !strings.HasSuffix(evt.Stream, "@aggTrade") {
		return len(data)
	}
	norm := strings.TrimSuffix(evt.Stream, "@aggTrade")

	a.mu.Lock()
	canonical, ok := a.reverse[norm]
	a.mu.Unlock()
	if !ok {
		// Symbol not subscribed (no reverse-map entry): silently dropped
		// per the subscribe-time reverse map contract.
		return len(data)
	}

	price := evt.Data.Price
	if price == "" {
		return len(data)
	}
	if _, err := decimal.NewFromString(price); err != nil {
		if a.log != nil {
			a.log.Warn(context.Background(), "binance: malformed price field", "symbol", canonical, "price", price)
		}
		return len(data)
	}

	a.onUpdate(domain.PriceUpdate{
		Symbol:    canonical,
		Price:     suppressTrailingZeroes(price),
		Timestamp: uint64(evt.Data.Trade),
	})
	return len(data)
}

// VenueSubscribe normalizes every symbol, records it in the reverse map and
// sends a batched SUBSCRIBE frame.
func (a *Adapter) VenueSubscribe(symbols []string) error {
	a.mu.Lock()
	for _, s := range symbols {
		a.reverse[normalizePair(s)] = s
	}
	a.mu.Unlock()
	return a.send("SUBSCRIBE", symbols)
}

// VenueUnsubscribe removes each symbol from the reverse map and sends a
// batched UNSUBSCRIBE frame, symmetric to VenueSubscribe.
func (a *Adapter) VenueUnsubscribe(symbols []string) error {
	if err := a.send("UNSUBSCRIBE", symbols); err != nil {
		return err
	}
	a.mu.Lock()
	for _, s := range symbols {
		delete(a.reverse, normalizePair(s))
	}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) send(method string, symbols []string) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(context.Background()); err != nil {
			return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
		}
	}

	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, normalizePair(s)+"@aggTrade")
	}

	frame := subscribeFrame{Method: method, Params: params, ID: a.nextID.Add(1)}
	data, err := json.Marshal(frame)
	if err != nil {
		return apperror.New(apperror.CodeSubscriptionRejected, apperror.WithCause(err))
	}

	a.session.Write(data)
	return nil
}

// normalizePair lowercases a canonical symbol and strips the hyphen, e.g.
// "BTC-USDT" -> "btcusdt".
func normalizePair(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "-", ""))
}

// suppressTrailingZeroes trims trailing zero digits (and a bare trailing
// '.') from a decimal string: "50000.10000" -> "50000.1",
// "50000.00000" -> "50000".
func suppressTrailingZeroes(s string) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
