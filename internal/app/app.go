package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
	"github.com/xenking/plantshop/internal/domain/wishlist"
	"github.com/xenking/plantshop/internal/handler"
	"github.com/xenking/plantshop/internal/storage/postgres"
	redisstore "github.com/xenking/plantshop/internal/storage/redis"
	"github.com/xenking/plantshop/pkg/health"
	"github.com/xenking/plantshop/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Checkout coordination: Redis when configured, in-process otherwise.
	orderOpts := []order.Option{
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		checkout := redisstore.NewCheckout(rdb, cfg.Checkout.LockTTL)
		orderOpts = append(orderOpts, order.WithLocker(checkout), order.WithIdempotency(checkout))
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb))
		lg.Info("Checkout coordination via Redis")
	} else {
		lg.Warn("REDIS_URL not set, checkout locks are local to this replica")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	sellerRepo := postgres.NewSellerRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	orderService, err := order.NewService(productRepo, userRepo, sellerRepo, orderRepo, orderOpts...)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	h := handler.NewHandler(handler.Config{ImageBaseURL: cfg.ImageBaseURL}, handler.Services{
		Orders:   orderService,
		Cart:     cart.NewService(userRepo, productRepo, sellerRepo),
		Wishlist: wishlist.NewService(userRepo, productRepo, sellerRepo),
		Catalog:  product.NewCatalog(productRepo, sellerRepo),
		Sellers:  seller.NewAdmin(sellerRepo),
		Auth:     auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
	})

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Router())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{
					"Content-Type", "Authorization", handler.APIKeyHeader, handler.IdempotencyKeyHeader,
				},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("plantshop-api", m),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
