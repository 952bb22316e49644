// Package marketdata implements the market-data bounded context: a
// transport host driving OKX and Binance venue sessions into a single
// Exchange Foundation.
package marketdata

import (
	"context"

	"github.com/fd1az/marketfeed/business/marketdata/app"
	marketdataDI "github.com/fd1az/marketfeed/business/marketdata/di"
	"github.com/fd1az/marketfeed/business/marketdata/infra/binance"
	"github.com/fd1az/marketfeed/business/marketdata/infra/okx"
	"github.com/fd1az/marketfeed/internal/config"
	"github.com/fd1az/marketfeed/internal/di"
	"github.com/fd1az/marketfeed/internal/logger"
	"github.com/fd1az/marketfeed/internal/monolith"
	"github.com/fd1az/marketfeed/internal/ratelimit"
	"github.com/fd1az/marketfeed/internal/transport"
)

// Module implements the marketdata bounded context.
type Module struct{}

// RegisterServices wires the transport host, venue adapters and Exchange
// Foundation into the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketdataDI.TransportHost, func(sr di.ServiceRegistry) *transport.Host {
		log := sr.Get("logger").(logger.LoggerInterface)
		return transport.NewHost(log)
	})

	di.RegisterToken(c, marketdataDI.Foundation, func(sr di.ServiceRegistry) *app.Foundation {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		host := di.GetToken[*transport.Host](sr, marketdataDI.TransportHost)

		limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)

		// The foundation's OnPriceUpdate method is each adapter's callback,
		// so the foundation is built first and adapters are attached after.
		foundation := app.New(app.Config{}, host, log)

		var adapters []app.VenueAdapter
		symbols := make(map[string][]string)

		if len(cfg.OKX.Symbols) > 0 {
			sess, err := host.CreateSession("okx", "wss", cfg.OKX.Host, cfg.OKX.Port, cfg.OKX.URI,
				withTransportConfig(cfg.Transport))
			if err != nil {
				panic("failed to create okx session: " + err.Error())
			}
			adapters = append(adapters, okx.New(sess, limiter, log, foundation.OnPriceUpdate))
			symbols["okx"] = cfg.OKX.Symbols
		}

		if len(cfg.Binance.Symbols) > 0 {
			sess, err := host.CreateSession("binance", "wss", cfg.Binance.Host, cfg.Binance.Port, cfg.Binance.URI,
				withTransportConfig(cfg.Transport))
			if err != nil {
				panic("failed to create binance session: " + err.Error())
			}
			adapters = append(adapters, binance.New(sess, limiter, log, foundation.OnPriceUpdate))
			symbols["binance"] = cfg.Binance.Symbols
		}

		foundation.SetAdapters(adapters...)
		foundation.SetSymbols(symbols)

		return foundation
	})

	return nil
}

func withTransportConfig(tc config.TransportConfig) func(*transport.Config) {
	return func(c *transport.Config) {
		if tc.HandshakeTimeout > 0 {
			c.HandshakeTimeout = tc.HandshakeTimeout
		}
		if tc.InitialBackoff > 0 {
			c.InitialBackoff = tc.InitialBackoff
		}
		if tc.MaxBackoff > 0 {
			c.MaxBackoff = tc.MaxBackoff
		}
		c.MaxReconnects = tc.MaxReconnects
	}
}

// Startup starts the Foundation, which subscribes every venue adapter to
// its configured symbols and then starts the transport host.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	foundation := di.GetToken[*app.Foundation](mono.Services(), marketdataDI.Foundation)

	if err := foundation.Start(ctx); err != nil {
		return err
	}

	log.Info(ctx, "marketdata module started")
	return nil
}
