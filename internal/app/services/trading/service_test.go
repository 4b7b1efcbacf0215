package trading

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/domain/trade"
	"github.com/openquant/tradehook/internal/app/storage/memory"
	svcerrors "github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/internal/exchange"
)

type fakeExchange struct {
	leverageCalls []struct {
		symbol   string
		leverage int
	}
	orders     []exchange.OrderRequest
	orderErr   error
	leverErr   error
	nextResult exchange.OrderResult
}

func (f *fakeExchange) Ping(ctx context.Context) error { return nil }

func (f *fakeExchange) AccountBalances(ctx context.Context) ([]portfolio.Balance, error) {
	return nil, nil
}

func (f *fakeExchange) Positions(ctx context.Context, symbol string) ([]portfolio.Position, error) {
	return nil, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.leverageCalls = append(f.leverageCalls, struct {
		symbol   string
		leverage int
	}{symbol, leverage})
	return f.leverErr
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	f.orders = append(f.orders, req)
	if f.orderErr != nil {
		return exchange.OrderResult{}, f.orderErr
	}
	res := f.nextResult
	if res.OrderID == "" {
		res.OrderID = "1001"
	}
	res.Symbol = req.Symbol
	return res, nil
}

func validPayload() WebhookPayload {
	return WebhookPayload{
		Passphrase: "secret",
		Action:     trade.ActionOpenLong,
		Symbol:     "BTCUSDT",
		Quantity:   0.01,
		Leverage:   10,
		Price:      "market",
	}
}

func TestExecuteRejectsBadPassphrase(t *testing.T) {
	svc := NewService("secret", &fakeExchange{}, memory.New(), nil)

	payload := validPayload()
	payload.Passphrase = "wrong"

	_, err := svc.Execute(context.Background(), payload)
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusForbidden {
		t.Fatalf("expected 403 service error, got %v", err)
	}
}

func TestExecuteValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*WebhookPayload)
	}{
		{"unknown action", func(p *WebhookPayload) { p.Action = "go_long" }},
		{"non-usdt symbol", func(p *WebhookPayload) { p.Symbol = "BTCEUR" }},
		{"short symbol", func(p *WebhookPayload) { p.Symbol = "USDT" }},
		{"zero quantity", func(p *WebhookPayload) { p.Quantity = 0 }},
		{"negative quantity", func(p *WebhookPayload) { p.Quantity = -1 }},
		{"leverage too low", func(p *WebhookPayload) { p.Leverage = 0 }},
		{"leverage too high", func(p *WebhookPayload) { p.Leverage = 126 }},
		{"bad price", func(p *WebhookPayload) { p.Price = "cheap" }},
		{"negative price", func(p *WebhookPayload) { p.Price = "-5" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &fakeExchange{}
			svc := NewService("secret", ex, memory.New(), nil)

			payload := validPayload()
			tc.mutate(&payload)

			_, err := svc.Execute(context.Background(), payload)
			svcErr := svcerrors.GetServiceError(err)
			if svcErr == nil || svcErr.HTTPStatus != http.StatusBadRequest {
				t.Fatalf("expected 400 service error, got %v", err)
			}
			if len(ex.orders) != 0 {
				t.Fatalf("no order should be placed on validation failure")
			}
		})
	}
}

func TestExecuteActionMapping(t *testing.T) {
	cases := []struct {
		action     trade.Action
		side       trade.Side
		reduceOnly bool
	}{
		{trade.ActionOpenLong, trade.SideBuy, false},
		{trade.ActionOpenShort, trade.SideSell, false},
		{trade.ActionCloseLong, trade.SideSell, true},
		{trade.ActionCloseShort, trade.SideBuy, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.action), func(t *testing.T) {
			ex := &fakeExchange{}
			svc := NewService("secret", ex, memory.New(), nil)

			payload := validPayload()
			payload.Action = tc.action

			res, err := svc.Execute(context.Background(), payload)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if len(ex.orders) != 1 {
				t.Fatalf("expected one order, got %d", len(ex.orders))
			}
			order := ex.orders[0]
			if order.Side != tc.side || order.ReduceOnly != tc.reduceOnly {
				t.Fatalf("action %s mapped to side=%s reduceOnly=%v", tc.action, order.Side, order.ReduceOnly)
			}
			if res.Trade.Side != tc.side || res.Trade.ReduceOnly != tc.reduceOnly {
				t.Fatalf("recorded trade side=%s reduceOnly=%v", res.Trade.Side, res.Trade.ReduceOnly)
			}
		})
	}
}

func TestExecuteMarketOrder(t *testing.T) {
	ex := &fakeExchange{nextResult: exchange.OrderResult{AvgPrice: "64250.5"}}
	svc := NewService("secret", ex, memory.New(), nil)

	res, err := svc.Execute(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	order := ex.orders[0]
	if order.Type != trade.TypeMarket {
		t.Fatalf("expected MARKET order, got %s", order.Type)
	}
	if order.Price != "" || order.TimeInForce != "" {
		t.Fatalf("market order must not carry price or time in force")
	}
	if res.Trade.Price != 64250.5 {
		t.Fatalf("expected avg fill price 64250.5, got %v", res.Trade.Price)
	}
	if res.Trade.Status != "EXECUTED" {
		t.Fatalf("expected EXECUTED status, got %s", res.Trade.Status)
	}
}

func TestExecuteLimitOrder(t *testing.T) {
	ex := &fakeExchange{}
	svc := NewService("secret", ex, memory.New(), nil)

	payload := validPayload()
	payload.Price = "64000"

	res, err := svc.Execute(context.Background(), payload)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	order := ex.orders[0]
	if order.Type != trade.TypeLimit {
		t.Fatalf("expected LIMIT order, got %s", order.Type)
	}
	if order.Price != "64000" || order.TimeInForce != "GTC" {
		t.Fatalf("limit order got price=%q tif=%q", order.Price, order.TimeInForce)
	}
	if res.Trade.Price != 64000 {
		t.Fatalf("expected limit price fallback 64000, got %v", res.Trade.Price)
	}
}

func TestExecuteSetsLeverageBeforeOrder(t *testing.T) {
	ex := &fakeExchange{}
	svc := NewService("secret", ex, memory.New(), nil)

	payload := validPayload()
	payload.Symbol = "ethusdt"
	payload.Leverage = 25

	if _, err := svc.Execute(context.Background(), payload); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(ex.leverageCalls) != 1 {
		t.Fatalf("expected one leverage call, got %d", len(ex.leverageCalls))
	}
	call := ex.leverageCalls[0]
	if call.symbol != "ETHUSDT" || call.leverage != 25 {
		t.Fatalf("leverage call %+v", call)
	}
}

func TestExecuteLeverageFailureSkipsOrder(t *testing.T) {
	ex := &fakeExchange{leverErr: svcerrors.ExchangeUnavailable(errors.New("boom"))}
	svc := NewService("secret", ex, memory.New(), nil)

	_, err := svc.Execute(context.Background(), validPayload())
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("expected 502 service error, got %v", err)
	}
	if len(ex.orders) != 0 {
		t.Fatalf("order must not be placed when leverage fails")
	}
}

func TestExecuteWithoutExchangeClient(t *testing.T) {
	svc := NewService("secret", nil, memory.New(), nil)

	_, err := svc.Execute(context.Background(), validPayload())
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("expected 502 service error, got %v", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	ex := &fakeExchange{}
	store := memory.New()
	svc := NewService("secret", ex, store, nil)

	first := validPayload()
	second := validPayload()
	second.Symbol = "ETHUSDT"

	if _, err := svc.Execute(context.Background(), first); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := svc.Execute(context.Background(), second); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	trades, err := svc.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected two trades, got %d", len(trades))
	}
	if trades[0].Symbol != "ETHUSDT" {
		t.Fatalf("expected newest trade first, got %s", trades[0].Symbol)
	}
}
