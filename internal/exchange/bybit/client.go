// Package bybit implements a spot exchange client over the Bybit V5 REST
// API. Only the endpoints the service needs are covered.
package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/domain/trade"
	"github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/internal/exchange"
)

const (
	mainnetURL = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"

	recvWindow = "5000"
)

// SpotClient talks to the Bybit spot API.
type SpotClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

var _ exchange.Client = (*SpotClient)(nil)

// NewSpotClient builds a spot client for the given credentials.
func NewSpotClient(creds exchange.Credentials) (*SpotClient, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("bybit spot: api key and secret are required")
	}

	baseURL := mainnetURL
	if creds.Testnet {
		baseURL = testnetURL
	}

	return &SpotClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     creds.APIKey,
		apiSecret:  creds.APISecret,
	}, nil
}

type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (c *SpotClient) sign(timestamp, params string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(timestamp + c.apiKey + recvWindow + params))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *SpotClient) request(ctx context.Context, method, endpoint string, query url.Values, body interface{}) (json.RawMessage, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var paramsStr string
	var bodyReader io.Reader
	if method == http.MethodGet {
		paramsStr = query.Encode()
	} else if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		paramsStr = string(data)
		bodyReader = bytes.NewReader(data)
	}

	apiURL := c.baseURL + endpoint
	if method == http.MethodGet && len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", c.sign(timestamp, paramsStr))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bybit API returned status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed apiResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.RetCode != 0 {
		return nil, fmt.Errorf("bybit API error %d: %s", parsed.RetCode, parsed.RetMsg)
	}
	return parsed.Result, nil
}

// Ping issues a signed wallet-balance request so that bad credentials fail
// here instead of on the first order.
func (c *SpotClient) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("accountType", "UNIFIED")

	if _, err := c.request(ctx, http.MethodGet, "/v5/account/wallet-balance", query, nil); err != nil {
		return errors.ExchangeUnavailable(err)
	}
	return nil
}

func (c *SpotClient) AccountBalances(ctx context.Context) ([]portfolio.Balance, error) {
	query := url.Values{}
	query.Set("accountType", "UNIFIED")

	result, err := c.request(ctx, http.MethodGet, "/v5/account/wallet-balance", query, nil)
	if err != nil {
		return nil, errors.ExchangeUnavailable(err)
	}

	var parsed struct {
		List []struct {
			Coin []struct {
				Coin             string `json:"coin"`
				WalletBalance    string `json:"walletBalance"`
				AvailableToTrade string `json:"availableToWithdraw"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, errors.ExchangeUnavailable(fmt.Errorf("decode wallet balance: %w", err))
	}

	now := time.Now().UnixMilli()
	var balances []portfolio.Balance
	for _, account := range parsed.List {
		for _, coin := range account.Coin {
			balances = append(balances, portfolio.Balance{
				Asset:            coin.Coin,
				Balance:          coin.WalletBalance,
				AvailableBalance: coin.AvailableToTrade,
				UpdateTime:       now,
			})
		}
	}
	return balances, nil
}

// Positions is not available on spot markets.
func (c *SpotClient) Positions(ctx context.Context, symbol string) ([]portfolio.Position, error) {
	return nil, errors.Validation("positions are not available on spot markets")
}

// SetLeverage is not available on spot markets.
func (c *SpotClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return errors.Validation("leverage is not available on spot markets")
}

func (c *SpotClient) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	body := map[string]string{
		"category":  "spot",
		"symbol":    req.Symbol,
		"side":      titleCase(string(req.Side)),
		"orderType": titleCase(string(req.Type)),
		"qty":       req.Quantity,
	}
	if req.Type == trade.TypeLimit {
		body["price"] = req.Price
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		body["timeInForce"] = tif
	}

	result, err := c.request(ctx, http.MethodPost, "/v5/order/create", nil, body)
	if err != nil {
		return exchange.OrderResult{}, errors.ExchangeUnavailable(err)
	}

	var parsed struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return exchange.OrderResult{}, errors.ExchangeUnavailable(fmt.Errorf("decode order response: %w", err))
	}

	return exchange.OrderResult{
		OrderID:       parsed.OrderID,
		ClientOrderID: parsed.OrderLinkID,
		Symbol:        req.Symbol,
		Status:        "NEW",
		Side:          string(req.Side),
		Type:          string(req.Type),
		OrigQuantity:  req.Quantity,
		Price:         req.Price,
		UpdateTime:    time.Now().UnixMilli(),
	}, nil
}

// titleCase maps BUY -> Buy, LIMIT -> Limit as the V5 API expects.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
