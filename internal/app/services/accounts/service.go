// Package accounts manages users and their per-venue trading accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openquant/tradehook/internal/app/domain/tradingaccount"
	"github.com/openquant/tradehook/internal/app/domain/user"
	"github.com/openquant/tradehook/internal/app/storage"
	svcerrors "github.com/openquant/tradehook/internal/errors"
	"github.com/openquant/tradehook/internal/exchange"
	"github.com/openquant/tradehook/pkg/logger"
)

const maxUsernameLength = 64

// Store is the persistence surface the service needs.
type Store interface {
	storage.UserStore
	storage.TradingAccountStore
}

// Service implements user and trading account management.
type Service struct {
	store   Store
	factory *exchange.Factory
	log     *logger.Logger
}

// NewService builds the accounts service. The factory is used to verify
// stored credentials against the venue.
func NewService(store Store, factory *exchange.Factory, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{store: store, factory: factory, log: log}
}

// CreateUser registers a new user.
func (s *Service) CreateUser(ctx context.Context, username string) (user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return user.User{}, svcerrors.Validation("username is required")
	}
	if len(username) > maxUsernameLength {
		return user.User{}, svcerrors.Validation("username must be at most %d characters", maxUsernameLength)
	}

	created, err := s.store.CreateUser(ctx, user.User{Username: username})
	if err != nil {
		if storage.IsDuplicate(err) {
			return user.User{}, svcerrors.Conflict("username %q is already taken", username)
		}
		return user.User{}, svcerrors.Internal("failed to create user", err)
	}

	s.log.WithField("username", created.Username).Info("user created")
	return created, nil
}

// GetUser resolves a user by username.
func (s *Service) GetUser(ctx context.Context, username string) (user.User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerrors.NotFound("user %q not found", username)
		}
		return user.User{}, svcerrors.Internal("failed to load user", err)
	}
	return u, nil
}

// ListUsers returns all registered users.
func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, svcerrors.Internal("failed to list users", err)
	}
	return users, nil
}

// DeleteUser removes a user and every trading account attached to them.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	u, err := s.GetUser(ctx, username)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTradingAccountsForUser(ctx, u.ID); err != nil {
		return svcerrors.Internal("failed to delete trading accounts", err)
	}
	if err := s.store.DeleteUser(ctx, u.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("user %q not found", username)
		}
		return svcerrors.Internal("failed to delete user", err)
	}

	s.log.WithField("username", u.Username).Info("user deleted")
	return nil
}

// CreateAccountInput is the payload for registering venue credentials.
type CreateAccountInput struct {
	Exchange   tradingaccount.Exchange   `json:"exchange"`
	MarketType tradingaccount.MarketType `json:"market_type"`
	APIKey     string                    `json:"api_key"`
	APISecret  string                    `json:"api_secret"`
	Passphrase string                    `json:"passphrase"`
	Testnet    bool                      `json:"testnet"`
}

func (in CreateAccountInput) validate() error {
	if !in.Exchange.Valid() {
		return svcerrors.Validation("unknown exchange %q", in.Exchange)
	}
	if !in.MarketType.Valid() {
		return svcerrors.Validation("unknown market type %q", in.MarketType)
	}
	if strings.TrimSpace(in.APIKey) == "" || strings.TrimSpace(in.APISecret) == "" {
		return svcerrors.Validation("api_key and api_secret are required")
	}
	if in.Exchange.RequiresPassphrase() && strings.TrimSpace(in.Passphrase) == "" {
		return svcerrors.Validation("exchange %s requires an api passphrase", in.Exchange)
	}
	return nil
}

// CreateAccount attaches venue credentials to a user.
func (s *Service) CreateAccount(ctx context.Context, username string, in CreateAccountInput) (tradingaccount.Account, error) {
	if err := in.validate(); err != nil {
		return tradingaccount.Account{}, err
	}

	u, err := s.GetUser(ctx, username)
	if err != nil {
		return tradingaccount.Account{}, err
	}

	created, err := s.store.CreateTradingAccount(ctx, tradingaccount.Account{
		UserID:     u.ID,
		Exchange:   in.Exchange,
		MarketType: in.MarketType,
		APIKey:     strings.TrimSpace(in.APIKey),
		APISecret:  strings.TrimSpace(in.APISecret),
		Passphrase: strings.TrimSpace(in.Passphrase),
		Testnet:    in.Testnet,
	})
	if err != nil {
		return tradingaccount.Account{}, svcerrors.Internal("failed to create trading account", err)
	}

	s.log.WithFields(map[string]interface{}{
		"username": u.Username,
		"exchange": created.Exchange,
		"market":   created.MarketType,
	}).Info("trading account created")
	return created, nil
}

// ListAccounts returns a user's trading accounts.
func (s *Service) ListAccounts(ctx context.Context, username string) ([]tradingaccount.Account, error) {
	u, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	accts, err := s.store.ListTradingAccounts(ctx, u.ID)
	if err != nil {
		return nil, svcerrors.Internal("failed to list trading accounts", err)
	}
	return accts, nil
}

// GetAccount loads a trading account by id.
func (s *Service) GetAccount(ctx context.Context, id string) (tradingaccount.Account, error) {
	acct, err := s.store.GetTradingAccount(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tradingaccount.Account{}, svcerrors.NotFound("trading account %q not found", id)
		}
		return tradingaccount.Account{}, svcerrors.Internal("failed to load trading account", err)
	}
	return acct, nil
}

// UpdateAccountInput carries the mutable trading account fields. Nil fields
// are left unchanged.
type UpdateAccountInput struct {
	APIKey     *string `json:"api_key"`
	APISecret  *string `json:"api_secret"`
	Passphrase *string `json:"passphrase"`
	Testnet    *bool   `json:"testnet"`
}

// UpdateAccount patches a trading account's credentials. Any credential
// change resets the verified flag.
func (s *Service) UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (tradingaccount.Account, error) {
	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return tradingaccount.Account{}, err
	}

	changed := false
	if in.APIKey != nil {
		if strings.TrimSpace(*in.APIKey) == "" {
			return tradingaccount.Account{}, svcerrors.Validation("api_key must not be empty")
		}
		acct.APIKey = strings.TrimSpace(*in.APIKey)
		changed = true
	}
	if in.APISecret != nil {
		if strings.TrimSpace(*in.APISecret) == "" {
			return tradingaccount.Account{}, svcerrors.Validation("api_secret must not be empty")
		}
		acct.APISecret = strings.TrimSpace(*in.APISecret)
		changed = true
	}
	if in.Passphrase != nil {
		acct.Passphrase = strings.TrimSpace(*in.Passphrase)
		changed = true
	}
	if in.Testnet != nil {
		acct.Testnet = *in.Testnet
	}
	if acct.Exchange.RequiresPassphrase() && acct.Passphrase == "" {
		return tradingaccount.Account{}, svcerrors.Validation("exchange %s requires an api passphrase", acct.Exchange)
	}
	if changed {
		acct.Verified = false
	}

	updated, err := s.store.UpdateTradingAccount(ctx, acct)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tradingaccount.Account{}, svcerrors.NotFound("trading account %q not found", id)
		}
		return tradingaccount.Account{}, svcerrors.Internal("failed to update trading account", err)
	}
	return updated, nil
}

// VerifyAccount checks the stored credentials against the venue and records
// the result.
func (s *Service) VerifyAccount(ctx context.Context, id string) (tradingaccount.Account, error) {
	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return tradingaccount.Account{}, err
	}
	if s.factory == nil {
		return tradingaccount.Account{}, svcerrors.Internal("exchange factory not configured", nil)
	}

	client, err := s.factory.New(acct.Exchange, acct.MarketType, exchange.Credentials{
		APIKey:     acct.APIKey,
		APISecret:  acct.APISecret,
		Passphrase: acct.Passphrase,
		Testnet:    acct.Testnet,
	})
	if err != nil {
		if svcErr := svcerrors.GetServiceError(err); svcErr != nil {
			return tradingaccount.Account{}, svcErr
		}
		return tradingaccount.Account{}, svcerrors.Internal("failed to build exchange client", err)
	}

	if err := client.Ping(ctx); err != nil {
		s.log.WithError(err).WithField("account_id", id).Warn("credential verification failed")
		if svcErr := svcerrors.GetServiceError(err); svcErr != nil {
			return tradingaccount.Account{}, svcErr
		}
		return tradingaccount.Account{}, svcerrors.ExchangeUnavailable(fmt.Errorf("verification ping failed: %w", err))
	}

	acct.Verified = true
	updated, err := s.store.UpdateTradingAccount(ctx, acct)
	if err != nil {
		return tradingaccount.Account{}, svcerrors.Internal("failed to record verification", err)
	}

	s.log.WithField("account_id", id).Info("trading account verified")
	return updated, nil
}
