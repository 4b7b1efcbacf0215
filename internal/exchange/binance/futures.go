// Package binance implements the exchange client against Binance USDⓈ-M
// futures using the official-style go-binance SDK.
package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/domain/trade"
	"github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/internal/exchange"
)

// FuturesClient talks to the Binance futures API.
type FuturesClient struct {
	client *futures.Client
}

var _ exchange.Client = (*FuturesClient)(nil)

// NewFuturesClient builds a futures client. Testnet credentials route to the
// Binance futures testnet.
func NewFuturesClient(creds exchange.Credentials) (*FuturesClient, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("binance futures: api key and secret are required")
	}

	client := futures.NewClient(creds.APIKey, creds.APISecret)
	if creds.Testnet {
		// NewClient resolves its endpoint from the package-level UseTestnet
		// flag, so route this client explicitly instead of mutating a global
		// that would redirect every client built afterwards.
		client.BaseURL = futures.BaseApiTestnetUrl
	}

	return &FuturesClient{client: client}, nil
}

// Ping issues a signed balance request so that bad credentials fail here
// instead of on the first order.
func (c *FuturesClient) Ping(ctx context.Context) error {
	if _, err := c.client.NewGetBalanceService().Do(ctx); err != nil {
		return errors.ExchangeUnavailable(err)
	}
	return nil
}

func (c *FuturesClient) AccountBalances(ctx context.Context) ([]portfolio.Balance, error) {
	balances, err := c.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, errors.ExchangeUnavailable(err)
	}

	now := time.Now().UnixMilli()
	out := make([]portfolio.Balance, len(balances))
	for i, b := range balances {
		out[i] = mapBalance(b, now)
	}
	return out, nil
}

// mapBalance converts an SDK balance to the domain type. The futures balance
// payload carries no timestamp, so the caller stamps the retrieval time.
func mapBalance(b *futures.Balance, retrievedAt int64) portfolio.Balance {
	return portfolio.Balance{
		Asset:              b.Asset,
		Balance:            b.Balance,
		CrossWalletBalance: b.CrossWalletBalance,
		AvailableBalance:   b.AvailableBalance,
		UpdateTime:         retrievedAt,
	}
}

func (c *FuturesClient) Positions(ctx context.Context, symbol string) ([]portfolio.Position, error) {
	svc := c.client.NewGetPositionRiskService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	positions, err := svc.Do(ctx)
	if err != nil {
		return nil, errors.ExchangeUnavailable(err)
	}

	now := time.Now().UnixMilli()
	out := make([]portfolio.Position, len(positions))
	for i, p := range positions {
		out[i] = mapPosition(p, now)
	}
	return out, nil
}

// mapPosition converts an SDK position risk entry to the domain type. Like
// balances, the payload has no timestamp of its own.
func mapPosition(p *futures.PositionRisk, retrievedAt int64) portfolio.Position {
	return portfolio.Position{
		Symbol:           p.Symbol,
		PositionSide:     p.PositionSide,
		PositionAmt:      p.PositionAmt,
		EntryPrice:       p.EntryPrice,
		MarkPrice:        p.MarkPrice,
		UnrealizedProfit: p.UnRealizedProfit,
		LiquidationPrice: p.LiquidationPrice,
		Leverage:         p.Leverage,
		UpdateTime:       retrievedAt,
	}
}

func (c *FuturesClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := c.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return errors.ExchangeUnavailable(err)
	}
	return nil
}

func (c *FuturesClient) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	svc := c.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type)).
		Quantity(req.Quantity).
		ReduceOnly(req.ReduceOnly)

	if req.Type == trade.TypeLimit {
		tif := req.TimeInForce
		if tif == "" {
			tif = string(futures.TimeInForceTypeGTC)
		}
		svc = svc.Price(req.Price).TimeInForce(futures.TimeInForceType(tif))
	}

	order, err := svc.Do(ctx)
	if err != nil {
		return exchange.OrderResult{}, errors.ExchangeUnavailable(err)
	}

	return exchange.OrderResult{
		OrderID:       fmt.Sprintf("%d", order.OrderID),
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Status:        string(order.Status),
		Side:          string(order.Side),
		Type:          string(order.Type),
		OrigQuantity:  order.OrigQuantity,
		ExecutedQty:   order.ExecutedQuantity,
		Price:         order.Price,
		AvgPrice:      order.AvgPrice,
		UpdateTime:    order.UpdateTime,
	}, nil
}
