package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/config"
	"github.com/iliyamo/trading-storefront/internal/database"
	"github.com/iliyamo/trading-storefront/internal/handler"
	"github.com/iliyamo/trading-storefront/internal/lock"
	"github.com/iliyamo/trading-storefront/internal/logging"
	"github.com/iliyamo/trading-storefront/internal/mailer"
	"github.com/iliyamo/trading-storefront/internal/metrics"
	"github.com/iliyamo/trading-storefront/internal/middleware"
	"github.com/iliyamo/trading-storefront/internal/payment"
	"github.com/iliyamo/trading-storefront/internal/queue"
	"github.com/iliyamo/trading-storefront/internal/ratelimit"
	"github.com/iliyamo/trading-storefront/internal/recordstore"
	"github.com/iliyamo/trading-storefront/internal/repository"
	"github.com/iliyamo/trading-storefront/internal/router"
	"github.com/iliyamo/trading-storefront/internal/service"
)

const (
	shutdownTimeout  = 10 * time.Second
	processorTimeout = 15 * time.Second
	lockWait         = 5 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.Load())
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logging.Init(logging.Config{Env: cfg.Env, Level: cfg.LogLevel, ServiceName: "storefront-api"})
	defer func() { _ = logging.Sync() }()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; using in-process limiter, locks and no response cache")
	} else {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e := newServer(cfg, deps{
		store:   store,
		redis:   rdb,
		gateway: payment.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, processorTimeout),
		mail:    newMailer(cfg, log),
		events:  newPublisher(cfg, log),
		metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		log:     log,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Backend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

// deps are the process-level collaborators newServer wires together.
type deps struct {
	store   recordstore.Store
	redis   *redis.Client
	gateway payment.Gateway
	mail    service.Notifier
	events  service.EventPublisher
	metrics http.Handler
	log     *zap.Logger
}

// newServer builds the echo instance with every service, middleware and
// route in place.  A nil redis client selects the in-process fallbacks.
func newServer(cfg config.Config, d deps) *echo.Echo {
	log := d.log
	users := repository.NewUserRepo(d.store, cfg.Store.UsersTable)
	orders := repository.NewOrderRepo(d.store, cfg.Store.OrdersTable)
	products := repository.NewProductRepo(d.store, cfg.Store.ProductsTable)
	promos := repository.NewPromoRepo(d.store, cfg.Store.PromoTable)

	rlCfg := config.LoadRateLimitConfig()
	var (
		limiter ratelimit.Limiter
		locker  lock.Locker
	)
	if d.redis != nil {
		limiter = ratelimit.NewRedisLimiter(d.redis, rlCfg.Prefix)
		locker = lock.NewRedisLocker(d.redis, "storefront:lock:", lockWait)
	} else {
		limiter = ratelimit.NewMemoryLimiter(rlCfg.Prefix)
		locker = lock.NewLocalLocker(lockWait)
	}

	tokens := service.NewTokenService(users, service.TokenTTLs{
		Verification: cfg.VerifyTTL,
		Reset:        cfg.ResetTTL,
		Refresh:      cfg.RefreshTTL,
	})
	auth := service.NewAuthService(users, tokens, d.mail, locker, service.AuthConfig{
		AccessSecret:      cfg.JWTSecret,
		RefreshSecret:     cfg.JWTRefreshSecret,
		AccessTTL:         cfg.AccessTTL,
		RefreshWrapperTTL: cfg.RefreshWrapperTTL,
		VerifyTTL:         cfg.VerifyTTL,
		ResetTTL:          cfg.ResetTTL,
		BcryptCost:        cfg.BcryptCost,
	}, log.Named("auth"))
	catalog := service.NewCatalogService(products, promos, log.Named("catalog"))
	checkout := service.NewCheckoutService(d.gateway, catalog, orders, users, locker, d.events, service.CheckoutConfig{
		FrontendURL:           cfg.FrontendURL,
		Currency:              cfg.Stripe.Currency,
		TrustClientFinalPrice: cfg.TrustClientFinalPrice,
	}, log.Named("checkout"))
	orderSvc := service.NewOrderService(orders, products, log.Named("orders"))
	admin := service.NewAdminService(users, log.Named("admin"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// The API runs behind one reverse proxy; the client IP is the last hop it appends.
	e.IPExtractor = echo.ExtractIPFromXFFHeader()
	e.Use(
		echomw.Recover(),
		middleware.RequestID(),
		middleware.RequestLogger(log.Named("http")),
		middleware.Metrics(),
		echomw.SecureWithConfig(echomw.SecureConfig{
			XSSProtection:      "1; mode=block",
			ContentTypeNosniff: "nosniff",
			XFrameOptions:      "DENY",
			HSTSMaxAge:         hstsMaxAge(cfg),
		}),
		echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     []string{cfg.FrontendURL},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, middleware.CSRFHeader, echo.HeaderXRequestID},
			AllowCredentials: true,
		}),
	)

	guards := router.Guards{
		JWTSecret: cfg.JWTSecret,
		Limits:    middleware.NewRateLimiter(rlCfg, limiter, log.Named("ratelimit")),
		Cache:     middleware.NewResponseCache(config.LoadCacheConfig(), d.redis, log.Named("cache")),
		CSRF:      cfg.CSRFEnabled,
	}
	catalogH := handler.NewCatalogHandler(catalog)
	ordersH := handler.NewOrderHandler(orderSvc)

	router.RegisterRoutes(e, handler.NewStatusHandler(cfg.Env, cfg.FrontendURL), d.metrics)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), guards)
	router.RegisterCustomer(e, router.Storefront{
		Catalog:  catalogH,
		Checkout: handler.NewCheckoutHandler(checkout),
		Orders:   ordersH,
		CSRF:     handler.NewCSRFHandler(cfg.IsProd()),
	}, guards)
	router.RegisterAdmin(e, catalogH, handler.NewAdminUserHandler(admin), guards)
	router.RegisterAdminOrders(e, ordersH, guards)
	router.RegisterNotFound(e, guards)
	return e
}

func hstsMaxAge(cfg config.Config) int {
	if cfg.IsProd() {
		return 31536000
	}
	return 0
}

// openStore selects the record-store backend.  The returned func releases
// the MySQL pool when one was opened.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (recordstore.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Backend {
	case "airtable":
		return recordstore.NewHTTPStore(cfg.Store.APIURL, cfg.Store.BaseID, cfg.Store.Token, cfg.Store.Timeout), noop, nil
	case "memory":
		log.Warn("using in-memory record store; data is lost on restart")
		return recordstore.NewMemoryStore(), noop, nil
	case "mysql":
		db, err := database.Open(cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("db open: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return recordstore.NewSQLStore(db, cfg.Store.Timeout), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
}

func newMailer(cfg config.Config, log *zap.Logger) *mailer.Mailer {
	var sender mailer.Sender = mailer.LogSender{Log: log.Named("mailer")}
	if cfg.SMTP.Host != "" {
		sender = mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.User, cfg.SMTP.Pass, log.Named("mailer"))
	}
	return mailer.New(sender, cfg.FrontendURL)
}

func newPublisher(cfg config.Config, log *zap.Logger) service.EventPublisher {
	if cfg.Queue.URL == "" {
		log.Info("RABBITMQ_URL not set; order events are not published")
		return queue.NopPublisher{}
	}
	return queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Queue, log.Named("events"))
}
