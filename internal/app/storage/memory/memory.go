// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is intended for tests and
// credential-less local runs; production deployments point DATABASE_URL at
// PostgreSQL instead.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/domain/trade"
	"github.com/openquant/tradehook/internal/app/domain/tradingaccount"
	"github.com/openquant/tradehook/internal/app/domain/user"
	"github.com/openquant/tradehook/internal/app/storage"
)

// Store implements every storage interface backed by maps.
type Store struct {
	mu              sync.RWMutex
	trades          map[string]trade.Trade
	tradeOrder      []string
	users           map[string]user.User
	usersByName     map[string]string
	tradingAccounts map[string]tradingaccount.Account
	snapshots       []portfolio.Snapshot
}

var _ storage.TradeStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.TradingAccountStore = (*Store)(nil)
var _ storage.SnapshotStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		trades:          make(map[string]trade.Trade),
		users:           make(map[string]user.User),
		usersByName:     make(map[string]string),
		tradingAccounts: make(map[string]tradingaccount.Account),
	}
}

// TradeStore implementation --------------------------------------------------

func (s *Store) CreateTrade(_ context.Context, t trade.Trade) (trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	s.trades[t.ID] = t
	s.tradeOrder = append(s.tradeOrder, t.ID)
	return t, nil
}

func (s *Store) GetTrade(_ context.Context, id string) (trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return trade.Trade{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTrades(_ context.Context) ([]trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]trade.Trade, 0, len(s.tradeOrder))
	for i := len(s.tradeOrder) - 1; i >= 0; i-- {
		trades = append(trades, s.trades[s.tradeOrder[i]])
	}
	return trades, nil
}

// UserStore implementation ---------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, exists := s.usersByName[key]; exists {
		return user.User{}, storage.ErrDuplicateUsername(u.Username)
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	s.users[u.ID] = u
	s.usersByName[key] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[strings.ToLower(username)]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	delete(s.usersByName, strings.ToLower(u.Username))
	for acctID, acct := range s.tradingAccounts {
		if acct.UserID == id {
			delete(s.tradingAccounts, acctID)
		}
	}
	return nil
}

// TradingAccountStore implementation -----------------------------------------

func (s *Store) CreateTradingAccount(_ context.Context, acct tradingaccount.Account) (tradingaccount.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[acct.UserID]; !ok {
		return tradingaccount.Account{}, storage.ErrNotFound
	}

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.tradingAccounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) UpdateTradingAccount(_ context.Context, acct tradingaccount.Account) (tradingaccount.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tradingAccounts[acct.ID]
	if !ok {
		return tradingaccount.Account{}, storage.ErrNotFound
	}

	acct.UserID = original.UserID
	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	s.tradingAccounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) GetTradingAccount(_ context.Context, id string) (tradingaccount.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.tradingAccounts[id]
	if !ok {
		return tradingaccount.Account{}, storage.ErrNotFound
	}
	return acct, nil
}

func (s *Store) ListTradingAccounts(_ context.Context, userID string) ([]tradingaccount.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]tradingaccount.Account, 0)
	for _, acct := range s.tradingAccounts {
		if acct.UserID == userID {
			accounts = append(accounts, acct)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CreatedAt.Before(accounts[j].CreatedAt) })
	return accounts, nil
}

func (s *Store) DeleteTradingAccountsForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, acct := range s.tradingAccounts {
		if acct.UserID == userID {
			delete(s.tradingAccounts, id)
		}
	}
	return nil
}

// SnapshotStore implementation -----------------------------------------------

func (s *Store) CreateSnapshot(_ context.Context, snap portfolio.Snapshot) (portfolio.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = time.Now().UTC()
	}

	s.snapshots = append(s.snapshots, snap)
	return snap, nil
}

func (s *Store) ListSnapshots(_ context.Context, asset string, limit int) ([]portfolio.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := make([]portfolio.Snapshot, 0)
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		snap := s.snapshots[i]
		if asset != "" && !strings.EqualFold(snap.Asset, asset) {
			continue
		}
		snaps = append(snaps, snap)
		if limit > 0 && len(snaps) == limit {
			break
		}
	}
	return snaps, nil
}
