package portfolio

import (
	"context"
	"net/http"
	"testing"

	domain "github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/storage/memory"
	svcerrors "github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/internal/exchange"
)

type stubExchange struct {
	balances  []domain.Balance
	positions []domain.Position
	err       error

	positionCalls []string
}

func (s *stubExchange) Ping(ctx context.Context) error { return nil }

func (s *stubExchange) AccountBalances(ctx context.Context) ([]domain.Balance, error) {
	return s.balances, s.err
}

func (s *stubExchange) Positions(ctx context.Context, symbol string) ([]domain.Position, error) {
	s.positionCalls = append(s.positionCalls, symbol)
	if s.err != nil {
		return nil, s.err
	}
	if symbol == "" {
		return s.positions, nil
	}
	var out []domain.Position
	for _, p := range s.positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (s *stubExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	return exchange.OrderResult{}, nil
}

func TestUSDTBalanceFiltersAsset(t *testing.T) {
	ex := &stubExchange{balances: []domain.Balance{
		{Asset: "BNB", Balance: "2.5"},
		{Asset: "USDT", Balance: "1500.25", AvailableBalance: "1200"},
	}}
	svc := NewService(ex, nil, nil)

	balance, err := svc.USDTBalance(context.Background())
	if err != nil {
		t.Fatalf("USDTBalance: %v", err)
	}
	if balance.Asset != "USDT" || balance.Balance != "1500.25" {
		t.Fatalf("unexpected balance %+v", balance)
	}
}

func TestUSDTBalanceMissing(t *testing.T) {
	ex := &stubExchange{balances: []domain.Balance{{Asset: "BTC", Balance: "1"}}}
	svc := NewService(ex, nil, nil)

	_, err := svc.USDTBalance(context.Background())
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestOpenPositionsFiltersZeroAmounts(t *testing.T) {
	ex := &stubExchange{positions: []domain.Position{
		{Symbol: "BTCUSDT", PositionAmt: "0.5"},
		{Symbol: "ETHUSDT", PositionAmt: "0"},
		{Symbol: "SOLUSDT", PositionAmt: "-3"},
	}}
	svc := NewService(ex, nil, nil)

	open, err := svc.OpenPositions(context.Background())
	if err != nil {
		t.Fatalf("OpenPositions: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected two open positions, got %d", len(open))
	}
	if open[0].Symbol != "BTCUSDT" || open[1].Symbol != "SOLUSDT" {
		t.Fatalf("unexpected positions %+v", open)
	}
}

func TestPositionInfo(t *testing.T) {
	ex := &stubExchange{positions: []domain.Position{
		{Symbol: "BTCUSDT", PositionAmt: "0"},
	}}
	svc := NewService(ex, nil, nil)

	positions, err := svc.PositionInfo(context.Background(), "btcusdt")
	if err != nil {
		t.Fatalf("PositionInfo: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one row, got %d", len(positions))
	}
	if ex.positionCalls[0] != "BTCUSDT" {
		t.Fatalf("symbol not normalized, exchange saw %q", ex.positionCalls[0])
	}

	_, err = svc.PositionInfo(context.Background(), "XRPUSDT")
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown symbol, got %v", err)
	}

	_, err = svc.PositionInfo(context.Background(), "  ")
	svcErr = svcerrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank symbol, got %v", err)
	}
}

func TestWithoutExchangeClient(t *testing.T) {
	svc := NewService(nil, nil, nil)

	if _, err := svc.USDTBalance(context.Background()); err == nil {
		t.Fatal("expected error without exchange client")
	}
	_, err := svc.OpenPositions(context.Background())
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
}

func TestSnapshotPollerCollect(t *testing.T) {
	ex := &stubExchange{balances: []domain.Balance{
		{Asset: "USDT", Balance: "1000.5", AvailableBalance: "900.25"},
	}}
	store := memory.New()
	svc := NewService(ex, nil, nil)

	poller, err := NewSnapshotPoller(svc, store, "@every 1h", nil)
	if err != nil {
		t.Fatalf("NewSnapshotPoller: %v", err)
	}

	if err := poller.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	snaps, err := poller.History(context.Background(), "USDT", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snaps))
	}
	if snaps[0].Balance != 1000.5 || snaps[0].AvailableBalance != 900.25 {
		t.Fatalf("unexpected snapshot %+v", snaps[0])
	}
}

func TestSnapshotPollerRejectsBadSpec(t *testing.T) {
	if _, err := NewSnapshotPoller(NewService(nil, nil, nil), memory.New(), "whenever", nil); err == nil {
		t.Fatal("invalid schedule spec must be rejected")
	}
}

func TestSnapshotPollerStartStop(t *testing.T) {
	ex := &stubExchange{balances: []domain.Balance{{Asset: "USDT", Balance: "1", AvailableBalance: "1"}}}
	poller, err := NewSnapshotPoller(NewService(ex, nil, nil), memory.New(), "@every 1h", nil)
	if err != nil {
		t.Fatalf("NewSnapshotPoller: %v", err)
	}

	if err := poller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := poller.Start(context.Background()); err != nil {
		t.Fatalf("second Start must be a no-op: %v", err)
	}
	if err := poller.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := poller.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop must be a no-op: %v", err)
	}
}
