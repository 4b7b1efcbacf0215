package portfolio

import "time"

// Balance is a futures wallet balance for one asset, as reported by the
// exchange. String-typed amounts pass through unparsed; the exchange is the
// source of truth for precision.
type Balance struct {
	Asset              string `json:"asset"`
	Balance            string `json:"balance"`
	CrossWalletBalance string `json:"cross_wallet_balance"`
	AvailableBalance   string `json:"available_balance"`
	UpdateTime         int64  `json:"update_time"`
}

// Position is an open futures position.
type Position struct {
	Symbol           string `json:"symbol"`
	PositionSide     string `json:"position_side"`
	PositionAmt      string `json:"position_amt"`
	EntryPrice       string `json:"entry_price"`
	MarkPrice        string `json:"mark_price"`
	UnrealizedProfit string `json:"unrealized_profit"`
	LiquidationPrice string `json:"liquidation_price"`
	Leverage         string `json:"leverage"`
	UpdateTime       int64  `json:"update_time"`
}

// Snapshot is a recorded balance observation, collected by the background
// poller so balance history survives restarts.
type Snapshot struct {
	ID               string    `json:"id"`
	Asset            string    `json:"asset"`
	Balance          float64   `json:"balance"`
	AvailableBalance float64   `json:"available_balance"`
	CollectedAt      time.Time `json:"collected_at"`
}
