package trade

import "time"

// Side is the order direction sent to the exchange.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Type selects market or limit execution.
type Type string

const (
	TypeMarket Type = "MARKET"
	TypeLimit  Type = "LIMIT"
)

// Action is a webhook trading instruction. Open actions establish exposure,
// close actions are reduce-only.
type Action string

const (
	ActionOpenLong   Action = "open_long"
	ActionOpenShort  Action = "open_short"
	ActionCloseLong  Action = "close_long"
	ActionCloseShort Action = "close_short"
)

// Valid reports whether the action is one of the four supported values.
func (a Action) Valid() bool {
	switch a {
	case ActionOpenLong, ActionOpenShort, ActionCloseLong, ActionCloseShort:
		return true
	}
	return false
}

// Order returns the side and reduce-only flag the action maps to.
func (a Action) Order() (Side, bool) {
	switch a {
	case ActionOpenLong:
		return SideBuy, false
	case ActionOpenShort:
		return SideSell, false
	case ActionCloseLong:
		return SideSell, true
	case ActionCloseShort:
		return SideBuy, true
	}
	return "", false
}

// Trade is an executed order recorded for the history endpoint.
type Trade struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Type        Type      `json:"type"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Leverage    int       `json:"leverage"`
	ReduceOnly  bool      `json:"reduce_only"`
	TimeInForce string    `json:"time_in_force,omitempty"`
	Status      string    `json:"status"`
	OrderID     string    `json:"order_id"`
	CreatedAt   time.Time `json:"created_at"`
}
