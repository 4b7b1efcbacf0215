package tradingaccount

import "time"

// Exchange identifies a supported venue.
type Exchange string

const (
	ExchangeBinance Exchange = "binance"
	ExchangeBybit   Exchange = "bybit"
	ExchangeKuCoin  Exchange = "kucoin"
	ExchangeOKX     Exchange = "okx"
	ExchangeMEXC    Exchange = "mexc"
)

// Valid reports whether the exchange is a known venue.
func (e Exchange) Valid() bool {
	switch e {
	case ExchangeBinance, ExchangeBybit, ExchangeKuCoin, ExchangeOKX, ExchangeMEXC:
		return true
	}
	return false
}

// RequiresPassphrase reports whether the venue needs an API passphrase in
// addition to key and secret.
func (e Exchange) RequiresPassphrase() bool {
	return e == ExchangeKuCoin || e == ExchangeOKX
}

// MarketType selects the market an account trades on.
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// Valid reports whether the market type is known.
func (m MarketType) Valid() bool {
	return m == MarketSpot || m == MarketFutures
}

// Account stores per-venue API credentials for a user. Secrets are never
// serialized into HTTP responses.
type Account struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Exchange   Exchange   `json:"exchange"`
	MarketType MarketType `json:"market_type"`
	APIKey     string     `json:"-"`
	APISecret  string     `json:"-"`
	Passphrase string     `json:"-"`
	Testnet    bool       `json:"testnet"`
	Verified   bool       `json:"verified"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
