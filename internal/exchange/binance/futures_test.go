package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/openquant/tradehook/internal/exchange"
)

func TestNewFuturesClientRoutesTestnetPerClient(t *testing.T) {
	testnet, err := NewFuturesClient(exchange.Credentials{
		APIKey:    "key",
		APISecret: "secret",
		Testnet:   true,
	})
	if err != nil {
		t.Fatalf("NewFuturesClient(testnet): %v", err)
	}
	if got := testnet.client.BaseURL; got != futures.BaseApiTestnetUrl {
		t.Fatalf("testnet client BaseURL = %q, want %q", got, futures.BaseApiTestnetUrl)
	}

	// Building a testnet client must not redirect clients built afterwards.
	mainnet, err := NewFuturesClient(exchange.Credentials{
		APIKey:    "key",
		APISecret: "secret",
	})
	if err != nil {
		t.Fatalf("NewFuturesClient(mainnet): %v", err)
	}
	if got := mainnet.client.BaseURL; got != futures.BaseApiMainUrl {
		t.Fatalf("mainnet client BaseURL = %q, want %q", got, futures.BaseApiMainUrl)
	}
}

func TestNewFuturesClientRequiresCredentials(t *testing.T) {
	if _, err := NewFuturesClient(exchange.Credentials{APIKey: "key"}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewFuturesClient(exchange.Credentials{APISecret: "secret"}); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestMapBalanceStampsRetrievalTime(t *testing.T) {
	b := &futures.Balance{
		Asset:              "USDT",
		Balance:            "1000.5",
		CrossWalletBalance: "1000.5",
		AvailableBalance:   "900.25",
	}

	got := mapBalance(b, 1700000000000)
	if got.Asset != "USDT" || got.Balance != "1000.5" || got.AvailableBalance != "900.25" {
		t.Fatalf("unexpected balance mapping: %+v", got)
	}
	if got.UpdateTime != 1700000000000 {
		t.Fatalf("UpdateTime = %d, want retrieval time", got.UpdateTime)
	}
}

func TestMapPositionStampsRetrievalTime(t *testing.T) {
	p := &futures.PositionRisk{
		Symbol:           "BTCUSDT",
		PositionSide:     "BOTH",
		PositionAmt:      "0.5",
		EntryPrice:       "42000.0",
		MarkPrice:        "42100.0",
		UnRealizedProfit: "50.0",
		LiquidationPrice: "30000.0",
		Leverage:         "10",
	}

	got := mapPosition(p, 1700000000000)
	if got.Symbol != "BTCUSDT" || got.PositionAmt != "0.5" || got.Leverage != "10" {
		t.Fatalf("unexpected position mapping: %+v", got)
	}
	if got.UnrealizedProfit != "50.0" {
		t.Fatalf("UnrealizedProfit = %q, want %q", got.UnrealizedProfit, "50.0")
	}
	if got.UpdateTime != 1700000000000 {
		t.Fatalf("UpdateTime = %d, want retrieval time", got.UpdateTime)
	}
}

func TestPingIssuesSignedRequest(t *testing.T) {
	var gotPath, gotKey, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-MBX-APIKEY")
		gotQuery = r.URL.RawQuery
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client, err := NewFuturesClient(exchange.Credentials{APIKey: "key", APISecret: "secret"})
	if err != nil {
		t.Fatalf("NewFuturesClient: %v", err)
	}
	client.client.BaseURL = srv.URL

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if gotPath != "/fapi/v2/balance" {
		t.Fatalf("ping hit %q, want the signed balance endpoint", gotPath)
	}
	if gotKey != "key" {
		t.Fatalf("X-MBX-APIKEY = %q, want %q", gotKey, "key")
	}
	if !strings.Contains(gotQuery, "signature=") {
		t.Fatalf("query %q missing request signature", gotQuery)
	}
}
