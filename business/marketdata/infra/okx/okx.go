// Package okx implements the OKX venue adapter: wire encode/decode for the
// public tickers/mark-price channels over the transport session owned by
// the caller.
package okx

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fd1az/marketfeed/business/marketdata/domain"
	"github.com/fd1az/marketfeed/internal/apperror"
	"github.com/fd1az/marketfeed/internal/logger"
	"github.com/fd1az/marketfeed/internal/ratelimit"
	"github.com/fd1az/marketfeed/internal/transport"
)

// DefaultHost and DefaultURI are OKX's public WebSocket endpoint.
const (
	DefaultHost = "wspri.okx.com"
	DefaultPort = 8443
	DefaultURI  = "/ws/v5/ipublic"
)

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type subscribeFrame struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type tickerData struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	MarkPx string `json:"markPx"`
	Ts     string `json:"ts"`
}

type inboundFrame struct {
	Arg struct {
		Channel string `json:"channel"`
	} `json:"arg"`
	Data []tickerData `json:"data"`
}

// Adapter is a VenueAdapter for OKX.
type Adapter struct {
	session *transport.Session
	limiter *ratelimit.Limiter
	log     logger.LoggerInterface
	onUpdate func(domain.PriceUpdate)
}

// New constructs an OKX adapter bound to session. onUpdate is invoked for
// every decoded tick from either the tickers or mark-price channel.
func New(session *transport.Session, limiter *ratelimit.Limiter, log logger.LoggerInterface, onUpdate func(domain.PriceUpdate)) *Adapter {
	a := &Adapter{session: session, limiter: limiter, log: log, onUpdate: onUpdate}
	session.OnRead(a.handleFrame)
	session.OnConnect(func(sess *transport.Session) { sess.ReadAfter() })
	return a
}

// Name identifies this adapter for Foundation config lookups.
func (a *Adapter) Name() string { return "okx" }

func (a *Adapter) handleFrame(sess *transport.Session, data []byte) int {
	defer sess.ReadAfter()

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		if a.log != nil {
			a.log.Warn(context.Background(), "okx: malformed frame", "error", err)
		}
		return len(data)
	}

	switch frame.Arg.Channel {
	case "tickers", "mark-price":
	default:
		return len(data)
	}

	for _, d := range frame.Data {
		price := d.Last
		if frame.Arg.Channel == "mark-price" {
			price = d.MarkPx
		}
		if price == "" {
			continue
		}
		if _, err := decimal.NewFromString(price); err != nil {
			if a.log != nil {
				a.log.Warn(context.Background(), "okx: malformed price field", "instId", d.InstID, "price", price)
			}
			continue
		}

		a.onUpdate(domain.PriceUpdate{
			Symbol:    d.InstID,
			Price:     price,
			Timestamp: parseMs(d.Ts),
		})
	}
	return len(data)
}

// VenueSubscribe sends a batched subscribe frame for the tickers channel of
// every symbol.
func (a *Adapter) VenueSubscribe(symbols []string) error {
	return a.send("subscribe", symbols)
}

// VenueUnsubscribe sends a batched unsubscribe frame, symmetric to
// VenueSubscribe.
func (a *Adapter) VenueUnsubscribe(symbols []string) error {
	return a.send("unsubscribe", symbols)
}

func (a *Adapter) send(op string, symbols []string) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(context.Background()); err != nil {
			return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
		}
	}

	frame := subscribeFrame{Op: op, Args: make([]subscribeArg, 0, len(symbols))}
	for _, s := range symbols {
		frame.Args = append(frame.Args, subscribeArg{Channel: "tickers", InstID: s})
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return apperror.New(apperror.CodeSubscriptionRejected, apperror.WithCause(err))
	}

	a.session.Write(data)
	return nil
}

func parseMs(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}
