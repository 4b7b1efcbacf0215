// Package trading turns webhook alerts into exchange orders and records the
// resulting trades.
package trading

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openquant/tradehook/internal/app/domain/trade"
	"github.com/openquant/tradehook/internal/app/storage"
	"github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/internal/exchange"
	"github.com/openquant/tradehook/pkg/logger"
)

const (
	minLeverage = 1
	maxLeverage = 125
)

// WebhookPayload is the alert body posted by the signal source. Price is
// either the literal "market" or a limit price.
type WebhookPayload struct {
	Passphrase string       `json:"passphrase"`
	Action     trade.Action `json:"action"`
	Symbol     string       `json:"symbol"`
	Quantity   float64      `json:"quantity"`
	Leverage   int          `json:"leverage"`
	Price      string       `json:"price"`
}

// ExecutionResult reports a completed webhook execution.
type ExecutionResult struct {
	Trade trade.Trade          `json:"trade"`
	Order exchange.OrderResult `json:"order"`
}

// Service validates webhook alerts, executes them against the exchange and
// persists the outcome.
type Service struct {
	passphrase string
	client     exchange.Client
	trades     storage.TradeStore
	log        *logger.Logger
}

// NewService builds the trading service. A nil logger falls back to the
// default component logger.
func NewService(passphrase string, client exchange.Client, trades storage.TradeStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("trading")
	}
	return &Service{
		passphrase: passphrase,
		client:     client,
		trades:     trades,
		log:        log,
	}
}

// Execute runs the full webhook pipeline: passphrase check, validation,
// leverage adjustment, order placement and persistence.
func (s *Service) Execute(ctx context.Context, payload WebhookPayload) (ExecutionResult, error) {
	if payload.Passphrase != s.passphrase {
		s.log.Warn("webhook rejected: passphrase mismatch")
		return ExecutionResult{}, errors.InvalidPassphrase()
	}

	normalized, err := normalize(payload)
	if err != nil {
		return ExecutionResult{}, err
	}

	if s.client == nil {
		return ExecutionResult{}, errors.ExchangeUnavailable(fmt.Errorf("no exchange credentials configured"))
	}

	side, reduceOnly := normalized.Action.Order()

	if err := s.client.SetLeverage(ctx, normalized.Symbol, normalized.Leverage); err != nil {
		s.log.WithError(err).WithField("symbol", normalized.Symbol).Error("set leverage failed")
		return ExecutionResult{}, err
	}

	req := exchange.OrderRequest{
		Symbol:     normalized.Symbol,
		Side:       side,
		Type:       normalized.orderType,
		Quantity:   strconv.FormatFloat(normalized.Quantity, 'f', -1, 64),
		ReduceOnly: reduceOnly,
	}
	if normalized.orderType == trade.TypeLimit {
		req.Price = strconv.FormatFloat(normalized.limitPrice, 'f', -1, 64)
		req.TimeInForce = "GTC"
	}

	order, err := s.client.PlaceOrder(ctx, req)
	if err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{
			"symbol": normalized.Symbol,
			"action": normalized.Action,
		}).Error("order placement failed")
		return ExecutionResult{}, err
	}

	executed := trade.Trade{
		Symbol:     normalized.Symbol,
		Side:       side,
		Type:       normalized.orderType,
		Quantity:   normalized.Quantity,
		Price:      executionPrice(order, normalized.limitPrice),
		Leverage:   normalized.Leverage,
		ReduceOnly: reduceOnly,
		Status:     "EXECUTED",
		OrderID:    order.OrderID,
	}
	if normalized.orderType == trade.TypeLimit {
		executed.TimeInForce = req.TimeInForce
	}

	stored, err := s.trades.CreateTrade(ctx, executed)
	if err != nil {
		// The order is already filled at this point, so the venue
		// acknowledgement rides along in the error details.
		s.log.WithError(err).WithField("order_id", order.OrderID).Error("failed to record executed trade")
		return ExecutionResult{}, errors.Internal("order executed but failed to record trade", err).
			WithDetails("order", order)
	}

	s.log.WithFields(map[string]interface{}{
		"trade_id": stored.ID,
		"symbol":   stored.Symbol,
		"action":   normalized.Action,
		"order_id": order.OrderID,
	}).Info("webhook executed")

	return ExecutionResult{Trade: stored, Order: order}, nil
}

// History returns executed trades newest-first.
func (s *Service) History(ctx context.Context) ([]trade.Trade, error) {
	trades, err := s.trades.ListTrades(ctx)
	if err != nil {
		return nil, errors.Internal("failed to list trades", err)
	}
	return trades, nil
}

type normalizedPayload struct {
	WebhookPayload
	orderType  trade.Type
	limitPrice float64
}

func normalize(p WebhookPayload) (normalizedPayload, error) {
	out := normalizedPayload{WebhookPayload: p}

	if !p.Action.Valid() {
		return out, errors.Validation("invalid action %q: must be one of open_long, open_short, close_long, close_short", p.Action)
	}

	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if len(symbol) < 5 || !strings.HasSuffix(symbol, "USDT") {
		return out, errors.Validation("invalid symbol %q: expected an uppercase USDT pair like BTCUSDT", p.Symbol)
	}
	out.Symbol = symbol

	if p.Quantity <= 0 {
		return out, errors.Validation("quantity must be positive, got %v", p.Quantity)
	}

	if p.Leverage < minLeverage || p.Leverage > maxLeverage {
		return out, errors.Validation("leverage must be between %d and %d, got %d", minLeverage, maxLeverage, p.Leverage)
	}

	price := strings.ToLower(strings.TrimSpace(p.Price))
	if price == "" || price == "market" {
		out.orderType = trade.TypeMarket
		return out, nil
	}

	limit, err := strconv.ParseFloat(price, 64)
	if err != nil || limit <= 0 {
		return out, errors.Validation("invalid price %q: expected \"market\" or a positive number", p.Price)
	}
	out.orderType = trade.TypeLimit
	out.limitPrice = limit
	return out, nil
}

// executionPrice prefers the venue's average fill price, then the order
// price, then the requested limit price. Market orders without fills record
// zero.
func executionPrice(order exchange.OrderResult, limitPrice float64) float64 {
	if v, err := strconv.ParseFloat(order.AvgPrice, 64); err == nil && v > 0 {
		return v
	}
	if v, err := strconv.ParseFloat(order.Price, 64); err == nil && v > 0 {
		return v
	}
	return limitPrice
}
