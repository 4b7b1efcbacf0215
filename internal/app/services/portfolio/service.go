// Package portfolio exposes account balances and open positions from the
// exchange, with an optional Redis cache in front of the balance endpoint.
package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/openquant/tradehook/internal/app/cache"
	domain "github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/internal/exchange"
	"github.com/openquant/tradehook/pkg/logger"
)

const usdtBalanceCacheKey = "portfolio:balance:usdt"

// Service reads account state from the exchange.
type Service struct {
	client exchange.Client
	cache  *cache.Cache
	log    *logger.Logger
}

// NewService builds the portfolio service. cache may be nil.
func NewService(client exchange.Client, c *cache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("portfolio")
	}
	return &Service{client: client, cache: c, log: log}
}

func (s *Service) requireClient() error {
	if s.client == nil {
		return errors.ExchangeUnavailable(fmt.Errorf("no exchange credentials configured"))
	}
	return nil
}

// USDTBalance returns the USDT wallet balance. Responses are served from the
// cache when present so dashboard polling does not hammer the venue.
func (s *Service) USDTBalance(ctx context.Context) (domain.Balance, error) {
	if data, ok := s.cache.Get(ctx, usdtBalanceCacheKey); ok {
		var cached domain.Balance
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.cache.Invalidate(ctx, usdtBalanceCacheKey)
	}

	if err := s.requireClient(); err != nil {
		return domain.Balance{}, err
	}

	balances, err := s.client.AccountBalances(ctx)
	if err != nil {
		return domain.Balance{}, err
	}

	for _, b := range balances {
		if b.Asset != "USDT" {
			continue
		}
		if data, err := json.Marshal(b); err == nil {
			s.cache.Set(ctx, usdtBalanceCacheKey, data)
		}
		return b, nil
	}
	return domain.Balance{}, errors.NotFound("USDT balance not found")
}

// InvalidateBalance drops the cached balance. Called after order execution
// so the next read reflects the fill.
func (s *Service) InvalidateBalance(ctx context.Context) {
	s.cache.Invalidate(ctx, usdtBalanceCacheKey)
}

// OpenPositions returns every position with a nonzero amount.
func (s *Service) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	if err := s.requireClient(); err != nil {
		return nil, err
	}

	positions, err := s.client.Positions(ctx, "")
	if err != nil {
		return nil, err
	}

	open := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if amt, err := strconv.ParseFloat(p.PositionAmt, 64); err == nil && amt != 0 {
			open = append(open, p)
		}
	}
	return open, nil
}

// PositionInfo returns position data for one symbol, open or not.
func (s *Service) PositionInfo(ctx context.Context, symbol string) ([]domain.Position, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.Validation("symbol is required")
	}

	if err := s.requireClient(); err != nil {
		return nil, err
	}

	positions, err := s.client.Positions(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, errors.NotFound("no position information for symbol %s", symbol)
	}
	return positions, nil
}
