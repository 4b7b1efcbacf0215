package storage

import (
	"context"
	"errors"

	"github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/domain/trade"
	"github.com/openquant/tradehook/internal/app/domain/tradingaccount"
	"github.com/openquant/tradehook/internal/app/domain/user"
)

// ErrNotFound is returned by every store when the requested record does not
// exist. Implementations wrap their backend's sentinel into this one so
// callers never depend on driver errors.
var ErrNotFound = errors.New("record not found")

// DuplicateError reports a uniqueness violation on a named field.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return e.Field + " " + e.Value + " already exists"
}

// ErrDuplicateUsername builds the duplicate error for the users table's
// unique username constraint.
func ErrDuplicateUsername(username string) error {
	return &DuplicateError{Field: "username", Value: username}
}

// IsDuplicate reports whether err is a uniqueness violation.
func IsDuplicate(err error) bool {
	var dup *DuplicateError
	return errors.As(err, &dup)
}

// TradeStore persists executed trades.
type TradeStore interface {
	CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error)
	GetTrade(ctx context.Context, id string) (trade.Trade, error)
	// ListTrades returns trades newest-first.
	ListTrades(ctx context.Context) ([]trade.Trade, error)
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// TradingAccountStore persists per-venue API credentials.
type TradingAccountStore interface {
	CreateTradingAccount(ctx context.Context, acct tradingaccount.Account) (tradingaccount.Account, error)
	UpdateTradingAccount(ctx context.Context, acct tradingaccount.Account) (tradingaccount.Account, error)
	GetTradingAccount(ctx context.Context, id string) (tradingaccount.Account, error)
	ListTradingAccounts(ctx context.Context, userID string) ([]tradingaccount.Account, error)
	DeleteTradingAccountsForUser(ctx context.Context, userID string) error
}

// SnapshotStore persists balance snapshots recorded by the poller.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snap portfolio.Snapshot) (portfolio.Snapshot, error)
	// ListSnapshots returns snapshots newest-first, capped at limit when
	// limit is positive.
	ListSnapshots(ctx context.Context, asset string, limit int) ([]portfolio.Snapshot, error)
}
