// Package runtime assembles the application: configuration, storage,
// exchange clients, services, HTTP surface and lifecycle management.
package runtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openquant/tradehook/internal/app/cache"
	"github.com/openquant/tradehook/internal/app/domain/tradingaccount"
	"github.com/openquant/tradehook/internal/app/httpapi"
	"github.com/openquant/tradehook/internal/app/services/accounts"
	"github.com/openquant/tradehook/internal/app/services/portfolio"
	"github.com/openquant/tradehook/internal/app/services/trading"
	"github.com/openquant/tradehook/internal/app/storage"
	"github.com/openquant/tradehook/internal/app/storage/memory"
	"github.com/openquant/tradehook/internal/app/storage/postgres"
	"github.com/openquant/tradehook/internal/app/system"
	"github.com/openquant/tradehook/internal/config"
	"github.com/openquant/tradehook/internal/exchange"
	"github.com/openquant/tradehook/internal/exchange/binance"
	"github.com/openquant/tradehook/internal/exchange/bybit"
	"github.com/openquant/tradehook/internal/httpserver"
	"github.com/openquant/tradehook/internal/metrics"
	"github.com/openquant/tradehook/internal/middleware"
	"github.com/openquant/tradehook/pkg/logger"
)

// authSkipPaths stay reachable without a bearer token. The webhook carries
// its own passphrase and the other routes are infrastructure surfaces.
var authSkipPaths = []string{"/webhook", "/healthz", "/metrics", "/auth/token"}

// Store combines every persistence interface the application uses.
type Store interface {
	storage.TradeStore
	storage.UserStore
	storage.TradingAccountStore
	storage.SnapshotStore
}

// Application owns the wired component graph.
type Application struct {
	cfg     config.Config
	log     *logger.Logger
	manager *system.Manager

	handler http.Handler
	cache   *cache.Cache
	limiter *middleware.RateLimiter
	closeDB func() error
}

// New wires the application from configuration.
func New(cfg config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.New(logger.LoggingConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
			Dir:    cfg.Logging.DataDir,
		})
	}

	app := &Application{cfg: cfg, log: log, manager: system.NewManager()}

	store, err := app.buildStore()
	if err != nil {
		return nil, err
	}

	factory := exchange.NewFactory()
	factory.Register(tradingaccount.ExchangeBinance, tradingaccount.MarketFutures, func(creds exchange.Credentials) (exchange.Client, error) {
		return binance.NewFuturesClient(creds)
	})
	factory.Register(tradingaccount.ExchangeBybit, tradingaccount.MarketSpot, func(creds exchange.Credentials) (exchange.Client, error) {
		return bybit.NewSpotClient(creds)
	})

	client, err := app.buildExchangeClient()
	if err != nil {
		return nil, err
	}

	app.cache = app.buildCache()

	tradingSvc := trading.NewService(cfg.Exchange.WebhookPassphrase, client, store, log.WithField("component", "trading"))
	accountsSvc := accounts.NewService(store, factory, log.WithField("component", "accounts"))
	portfolioSvc := portfolio.NewService(client, app.cache, log.WithField("component", "portfolio"))

	var poller *portfolio.SnapshotPoller
	if cfg.Snapshots.Interval != "" && client != nil {
		poller, err = portfolio.NewSnapshotPoller(portfolioSvc, store, cfg.Snapshots.Interval, log.WithField("component", "snapshot-poller"))
		if err != nil {
			return nil, fmt.Errorf("invalid SNAPSHOT_INTERVAL: %w", err)
		}
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, authSkipPaths, log.WithField("component", "auth"))
	if !auth.Enabled() {
		log.Warn("JWT_SECRET not set, management API authentication disabled")
	}

	m := metrics.New()
	app.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, log.WithField("component", "ratelimit"))

	apiHandler := httpapi.New(httpapi.Config{
		Trading:           tradingSvc,
		Accounts:          accountsSvc,
		Portfolio:         portfolioSvc,
		Poller:            poller,
		Auth:              auth,
		Metrics:           m,
		Logger:            log.WithField("component", "httpapi"),
		WebhookPassphrase: cfg.Exchange.WebhookPassphrase,
	})

	app.handler = middleware.Chain(
		apiHandler.Routes(),
		middleware.CORS,
		middleware.Logging(log.WithField("component", "http")),
		middleware.Instrument(m),
		auth.Middleware,
		app.limiter.Middleware,
	)

	if err := app.manager.Register(httpserver.New(cfg.Server.Addr(), app.handler, log.WithField("component", "httpserver"))); err != nil {
		return nil, err
	}
	if poller != nil {
		if err := app.manager.Register(poller); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func (a *Application) buildStore() (Store, error) {
	if a.cfg.Database.URL == "" {
		a.log.Warn("DATABASE_URL not set, using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}

	db, err := postgres.Open(
		a.cfg.Database.URL,
		a.cfg.Database.MaxOpenConns,
		a.cfg.Database.MaxIdleConns,
		a.cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := postgres.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	a.closeDB = db.Close
	a.log.Info("postgres storage ready")
	return postgres.New(db), nil
}

func (a *Application) buildExchangeClient() (exchange.Client, error) {
	if !a.cfg.Exchange.Configured() {
		a.log.Warn("exchange credentials not set, webhook execution disabled")
		return nil, nil
	}

	client, err := binance.NewFuturesClient(exchange.Credentials{
		APIKey:    a.cfg.Exchange.APIKey,
		APISecret: a.cfg.Exchange.APISecret,
		Testnet:   !a.cfg.Server.Production(),
	})
	if err != nil {
		return nil, err
	}
	if !a.cfg.Server.Production() {
		a.log.Warn("non-production environment, routing orders to the futures testnet")
	}
	return client, nil
}

func (a *Application) buildCache() *cache.Cache {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	c, err := cache.New(context.Background(), a.cfg.Redis.Addr, a.cfg.Redis.CacheTTL, a.log.WithField("component", "cache"))
	if err != nil {
		a.log.WithError(err).Warn("redis unavailable, responses will not be cached")
		return nil
	}
	a.log.WithField("addr", a.cfg.Redis.Addr).Info("redis cache connected")
	return c
}

// Handler exposes the routed middleware stack, mainly for tests.
func (a *Application) Handler() http.Handler { return a.handler }

// Start brings every registered service up.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts services down in reverse order and releases shared resources.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)

	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.closeDB != nil {
		if cerr := a.closeDB(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
