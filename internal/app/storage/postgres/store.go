// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openquant/tradehook/internal/app/domain/portfolio"
	"github.com/openquant/tradehook/internal/app/domain/trade"
	"github.com/openquant/tradehook/internal/app/domain/tradingaccount"
	"github.com/openquant/tradehook/internal/app/domain/user"
	"github.com/openquant/tradehook/internal/app/storage"
)

// Store implements the storage interfaces over a sqlx handle.
type Store struct {
	db *sqlx.DB
}

var _ storage.TradeStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.TradingAccountStore = (*Store)(nil)
var _ storage.SnapshotStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, applies pool settings and verifies the
// connection before returning.
func Open(dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if connMaxLifetime > 0 {
		db.SetConnMaxLifetime(connMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Row types keep column mapping out of the domain packages.

type tradeRow struct {
	ID          string    `db:"id"`
	Symbol      string    `db:"symbol"`
	Side        string    `db:"side"`
	Type        string    `db:"type"`
	Quantity    float64   `db:"quantity"`
	Price       float64   `db:"price"`
	Leverage    int       `db:"leverage"`
	ReduceOnly  bool      `db:"reduce_only"`
	TimeInForce string    `db:"time_in_force"`
	Status      string    `db:"status"`
	OrderID     string    `db:"order_id"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r tradeRow) domain() trade.Trade {
	return trade.Trade{
		ID:          r.ID,
		Symbol:      r.Symbol,
		Side:        trade.Side(r.Side),
		Type:        trade.Type(r.Type),
		Quantity:    r.Quantity,
		Price:       r.Price,
		Leverage:    r.Leverage,
		ReduceOnly:  r.ReduceOnly,
		TimeInForce: r.TimeInForce,
		Status:      r.Status,
		OrderID:     r.OrderID,
		CreatedAt:   r.CreatedAt,
	}
}

type userRow struct {
	ID        string    `db:"id"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) domain() user.User {
	return user.User{ID: r.ID, Username: r.Username, CreatedAt: r.CreatedAt}
}

type tradingAccountRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Exchange   string    `db:"exchange"`
	MarketType string    `db:"market_type"`
	APIKey     string    `db:"api_key"`
	APISecret  string    `db:"api_secret"`
	Passphrase string    `db:"passphrase"`
	Testnet    bool      `db:"testnet"`
	Verified   bool      `db:"verified"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r tradingAccountRow) domain() tradingaccount.Account {
	return tradingaccount.Account{
		ID:         r.ID,
		UserID:     r.UserID,
		Exchange:   tradingaccount.Exchange(r.Exchange),
		MarketType: tradingaccount.MarketType(r.MarketType),
		APIKey:     r.APIKey,
		APISecret:  r.APISecret,
		Passphrase: r.Passphrase,
		Testnet:    r.Testnet,
		Verified:   r.Verified,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type snapshotRow struct {
	ID               string    `db:"id"`
	Asset            string    `db:"asset"`
	Balance          float64   `db:"balance"`
	AvailableBalance float64   `db:"available_balance"`
	CollectedAt      time.Time `db:"collected_at"`
}

func (r snapshotRow) domain() portfolio.Snapshot {
	return portfolio.Snapshot{
		ID:               r.ID,
		Asset:            r.Asset,
		Balance:          r.Balance,
		AvailableBalance: r.AvailableBalance,
		CollectedAt:      r.CollectedAt,
	}
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// --- TradeStore -------------------------------------------------------------

func (s *Store) CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, side, type, quantity, price, leverage, reduce_only, time_in_force, status, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.Symbol, string(t.Side), string(t.Type), t.Quantity, t.Price, t.Leverage, t.ReduceOnly, t.TimeInForce, t.Status, t.OrderID, t.CreatedAt)
	if err != nil {
		return trade.Trade{}, err
	}
	return t, nil
}

func (s *Store) GetTrade(ctx context.Context, id string) (trade.Trade, error) {
	var row tradeRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, symbol, side, type, quantity, price, leverage, reduce_only, time_in_force, status, order_id, created_at
		FROM trades WHERE id = $1
	`, id)
	if err != nil {
		return trade.Trade{}, mapErr(err)
	}
	return row.domain(), nil
}

func (s *Store) ListTrades(ctx context.Context) ([]trade.Trade, error) {
	var rows []tradeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, symbol, side, type, quantity, price, leverage, reduce_only, time_in_force, status, order_id, created_at
		FROM trades ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	trades := make([]trade.Trade, len(rows))
	for i, row := range rows {
		trades[i] = row.domain()
	}
	return trades, nil
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, created_at)
		VALUES ($1, $2, $3)
	`, u.ID, u.Username, u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return user.User{}, storage.ErrDuplicateUsername(u.Username)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT id, username, created_at FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return row.domain(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT id, username, created_at FROM users WHERE lower(username) = lower($1)`, username)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return row.domain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, username, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	users := make([]user.User, len(rows))
	for i, row := range rows {
		users[i] = row.domain()
	}
	return users, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- TradingAccountStore ------------------------------------------------------

func (s *Store) CreateTradingAccount(ctx context.Context, acct tradingaccount.Account) (tradingaccount.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trading_accounts (id, user_id, exchange, market_type, api_key, api_secret, passphrase, testnet, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, acct.ID, acct.UserID, string(acct.Exchange), string(acct.MarketType), acct.APIKey, acct.APISecret, acct.Passphrase, acct.Testnet, acct.Verified, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return tradingaccount.Account{}, storage.ErrNotFound
		}
		return tradingaccount.Account{}, err
	}
	return acct, nil
}

func (s *Store) UpdateTradingAccount(ctx context.Context, acct tradingaccount.Account) (tradingaccount.Account, error) {
	existing, err := s.GetTradingAccount(ctx, acct.ID)
	if err != nil {
		return tradingaccount.Account{}, err
	}

	acct.UserID = existing.UserID
	acct.CreatedAt = existing.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE trading_accounts
		SET exchange = $2, market_type = $3, api_key = $4, api_secret = $5, passphrase = $6, testnet = $7, verified = $8, updated_at = $9
		WHERE id = $1
	`, acct.ID, string(acct.Exchange), string(acct.MarketType), acct.APIKey, acct.APISecret, acct.Passphrase, acct.Testnet, acct.Verified, acct.UpdatedAt)
	if err != nil {
		return tradingaccount.Account{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return tradingaccount.Account{}, storage.ErrNotFound
	}
	return acct, nil
}

func (s *Store) GetTradingAccount(ctx context.Context, id string) (tradingaccount.Account, error) {
	var row tradingAccountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, exchange, market_type, api_key, api_secret, passphrase, testnet, verified, created_at, updated_at
		FROM trading_accounts WHERE id = $1
	`, id)
	if err != nil {
		return tradingaccount.Account{}, mapErr(err)
	}
	return row.domain(), nil
}

func (s *Store) ListTradingAccounts(ctx context.Context, userID string) ([]tradingaccount.Account, error) {
	var rows []tradingAccountRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, exchange, market_type, api_key, api_secret, passphrase, testnet, verified, created_at, updated_at
		FROM trading_accounts WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	accounts := make([]tradingaccount.Account, len(rows))
	for i, row := range rows {
		accounts[i] = row.domain()
	}
	return accounts, nil
}

func (s *Store) DeleteTradingAccountsForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trading_accounts WHERE user_id = $1`, userID)
	return err
}

// --- SnapshotStore ------------------------------------------------------------

func (s *Store) CreateSnapshot(ctx context.Context, snap portfolio.Snapshot) (portfolio.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balance_snapshots (id, asset, balance, available_balance, collected_at)
		VALUES ($1, $2, $3, $4, $5)
	`, snap.ID, snap.Asset, snap.Balance, snap.AvailableBalance, snap.CollectedAt)
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) ListSnapshots(ctx context.Context, asset string, limit int) ([]portfolio.Snapshot, error) {
	query := `
		SELECT id, asset, balance, available_balance, collected_at
		FROM balance_snapshots
	`
	args := []interface{}{}
	if asset != "" {
		query += ` WHERE lower(asset) = lower($1)`
		args = append(args, asset)
	}
	query += ` ORDER BY collected_at DESC`
	if limit > 0 {
		if asset != "" {
			query += ` LIMIT $2`
		} else {
			query += ` LIMIT $1`
		}
		args = append(args, limit)
	}

	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	snaps := make([]portfolio.Snapshot, len(rows))
	for i, row := range rows {
		snaps[i] = row.domain()
	}
	return snaps, nil
}
