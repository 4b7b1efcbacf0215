// Package exchange abstracts venue APIs behind a single client interface so
// the trading service does not care which exchange executes an order.
package exchange

import (
	"context"

	"github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/domain/trade"
)

// Credentials holds venue API credentials.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
	Testnet    bool
}

// OrderRequest describes an order to place. Quantity and Price stay
// string-typed; exchanges are strict about precision and the webhook payload
// already carries exchange-ready values.
type OrderRequest struct {
	Symbol      string
	Side        trade.Side
	Type        trade.Type
	Quantity    string
	Price       string
	ReduceOnly  bool
	TimeInForce string
}

// OrderResult is the venue's acknowledgement of a placed order.
type OrderResult struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	OrigQuantity  string `json:"orig_quantity"`
	ExecutedQty   string `json:"executed_quantity"`
	Price         string `json:"price"`
	AvgPrice      string `json:"avg_price"`
	UpdateTime    int64  `json:"update_time"`
}

// Client is the venue-facing surface the services depend on.
type Client interface {
	// Ping verifies connectivity and credentials with a signed request.
	Ping(ctx context.Context) error
	// AccountBalances returns wallet balances for all assets.
	AccountBalances(ctx context.Context) ([]portfolio.Balance, error)
	// Positions returns position information, optionally filtered by symbol.
	Positions(ctx context.Context, symbol string) ([]portfolio.Position, error)
	// SetLeverage adjusts leverage for a symbol. Venues without leverage
	// return a validation error.
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	// PlaceOrder submits an order and returns the venue acknowledgement.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
