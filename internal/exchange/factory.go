package exchange

import (
	"github.com/openquant/tradehook/internal/app/domain/tradingaccount"
	"github.com/openquant/tradehook/internal/errors"
)

// Builder constructs a venue client for a given exchange and market type.
// Implementations live in the venue subpackages and are registered by the
// application wiring, which keeps this package free of venue SDK imports.
type Builder func(creds Credentials) (Client, error)

// Factory resolves exchange and market combinations to client builders.
type Factory struct {
	builders map[string]Builder
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{builders: make(map[string]Builder)}
}

func key(exchange tradingaccount.Exchange, market tradingaccount.MarketType) string {
	return string(exchange) + "/" + string(market)
}

// Register binds a builder to an exchange and market combination.
func (f *Factory) Register(exchange tradingaccount.Exchange, market tradingaccount.MarketType, builder Builder) {
	f.builders[key(exchange, market)] = builder
}

// New builds a client for the combination. Combinations without a registered
// builder yield a validation error so callers surface it as a 400 rather than
// a venue failure.
func (f *Factory) New(exchange tradingaccount.Exchange, market tradingaccount.MarketType, creds Credentials) (Client, error) {
	if !exchange.Valid() {
		return nil, errors.Validation("unknown exchange %q", exchange)
	}
	if !market.Valid() {
		return nil, errors.Validation("unknown market type %q", market)
	}

	builder, ok := f.builders[key(exchange, market)]
	if !ok {
		return nil, errors.Validation("unsupported exchange/market combination: %s %s", exchange, market)
	}
	return builder(creds)
}

// Supported reports whether the combination has a registered builder.
func (f *Factory) Supported(exchange tradingaccount.Exchange, market tradingaccount.MarketType) bool {
	_, ok := f.builders[key(exchange, market)]
	return ok
}
