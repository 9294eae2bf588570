package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-inventory/internal/config"
	authmw "github.com/georgemunganga/printa-inventory/internal/middleware"
	"github.com/georgemunganga/printa-inventory/internal/modules/cart"
	"github.com/georgemunganga/printa-inventory/internal/modules/inventory"
	"github.com/georgemunganga/printa-inventory/internal/modules/order"
	"github.com/georgemunganga/printa-inventory/internal/modules/promotion"
	"github.com/georgemunganga/printa-inventory/internal/modules/purchasing"
	"github.com/georgemunganga/printa-inventory/internal/platform/events"
	"github.com/georgemunganga/printa-inventory/internal/platform/metrics"
	"github.com/georgemunganga/printa-inventory/internal/platform/observability"
)

// repositories groups one storage backend for every module.
type repositories struct {
	products   inventory.Repository
	purchases  purchasing.Repository
	orders     order.Repository
	promotions promotion.Repository
	carts      cart.Repository
}

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, config.ServiceName)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, config.ServiceName)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// ── Storage ─────────────────────────────────────────────
	repos := memoryRepositories()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("ping database", zap.Error(err))
		}
		logger.Info("connected to the database")
		repos = postgresRepositories(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// ── Events & Metrics ────────────────────────────────────
	var publisher events.Publisher = events.NewLogPublisher(logger.Named("events"))
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()
	reg := metrics.NewRegistry()

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Handle("/metrics", reg.Handler())
	jwt := authmw.NewJWT(cfg.JWTSecret)

	// ── Phase 1: Stock Ledger & Status ──────────────────────
	ledger := inventory.NewService(repos.products, logger.Named("inventory"), reg, publisher,
		inventory.WithStatusRules(inventory.StatusRules{
			LowStockThreshold: cfg.LowStockThreshold,
			ExpiringWindow:    cfg.ExpiringWindow,
		}))
	inventory.NewHandler(ledger).RegisterRoutes(router)

	// ── Phase 2: Purchase Orders & Replenishment ────────────
	replenisher := purchasing.NewReplenisher(repos.purchases, ledger, logger.Named("replenisher"), reg, publisher)
	purchasingService := purchasing.NewService(repos.purchases, ledger, replenisher, logger.Named("purchasing"), reg, publisher)
	purchasing.NewHandler(purchasingService).RegisterRoutes(router, jwt.Protect)

	// ── Phase 3: Checkout collaborators ─────────────────────
	promotionService := promotion.NewService(repos.promotions)
	promotion.NewHandler(promotionService).RegisterRoutes(router)

	cartService := cart.NewService(repos.carts)
	cart.NewHandler(cartService).RegisterRoutes(router)

	// ── Phase 4: Order Fulfillment ──────────────────────────
	orderService := order.NewService(repos.orders, ledger, promotionService, cartService, purchasingService,
		logger.Named("order"), reg, publisher)
	order.NewHandler(orderService).RegisterRoutes(router)

	// ── Start Server ────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("printa inventory server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func memoryRepositories() repositories {
	return repositories{
		products:   inventory.NewMemoryRepository(),
		purchases:  purchasing.NewMemoryRepository(),
		orders:     order.NewMemoryRepository(),
		promotions: promotion.NewMemoryRepository(),
		carts:      cart.NewMemoryRepository(),
	}
}

func postgresRepositories(db *sql.DB) repositories {
	return repositories{
		products:   inventory.NewPostgresRepository(db),
		purchases:  purchasing.NewPostgresRepository(db),
		orders:     order.NewPostgresRepository(db),
		promotions: promotion.NewPostgresRepository(db),
		carts:      cart.NewPostgresRepository(db),
	}
}
