package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openquant/tradehook/internal/exchange"
)

func newTestClient(t *testing.T, handler http.Handler) *SpotClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewSpotClient(exchange.Credentials{APIKey: "key", APISecret: "secret"})
	if err != nil {
		t.Fatalf("NewSpotClient: %v", err)
	}
	client.baseURL = srv.URL
	return client
}

func TestPingIssuesSignedRequest(t *testing.T) {
	var gotPath, gotKey, gotSign, gotTimestamp, gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-BAPI-API-KEY")
		gotSign = r.Header.Get("X-BAPI-SIGN")
		gotTimestamp = r.Header.Get("X-BAPI-TIMESTAMP")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{}}`))
	}))

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if gotPath != "/v5/account/wallet-balance" {
		t.Fatalf("ping hit %q, want the signed wallet-balance endpoint", gotPath)
	}
	if gotKey != "key" {
		t.Fatalf("X-BAPI-API-KEY = %q, want %q", gotKey, "key")
	}
	if gotQuery != "accountType=UNIFIED" {
		t.Fatalf("query = %q, want accountType=UNIFIED", gotQuery)
	}

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(gotTimestamp + "key" + recvWindow + gotQuery))
	if want := hex.EncodeToString(mac.Sum(nil)); gotSign != want {
		t.Fatalf("X-BAPI-SIGN = %q, want %q", gotSign, want)
	}
}

func TestPingSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10003,"retMsg":"API key is invalid.","result":{}}`))
	}))

	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error for rejected credentials")
	}
}

func TestNewSpotClientEndpoints(t *testing.T) {
	testnet, err := NewSpotClient(exchange.Credentials{APIKey: "key", APISecret: "secret", Testnet: true})
	if err != nil {
		t.Fatalf("NewSpotClient(testnet): %v", err)
	}
	if testnet.baseURL != testnetURL {
		t.Fatalf("testnet baseURL = %q, want %q", testnet.baseURL, testnetURL)
	}

	mainnet, err := NewSpotClient(exchange.Credentials{APIKey: "key", APISecret: "secret"})
	if err != nil {
		t.Fatalf("NewSpotClient(mainnet): %v", err)
	}
	if mainnet.baseURL != mainnetURL {
		t.Fatalf("mainnet baseURL = %q, want %q", mainnet.baseURL, mainnetURL)
	}
}
