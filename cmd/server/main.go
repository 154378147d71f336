package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	carthandler "storefront/internal/cart/handler"
	cartservice "storefront/internal/cart/service"
	cartstore "storefront/internal/cart/store"
	cataloghandler "storefront/internal/catalog/handler"
	catalogservice "storefront/internal/catalog/service"
	catalogstore "storefront/internal/catalog/store"
	checkouthandler "storefront/internal/checkout/handler"
	checkoutmodels "storefront/internal/checkout/models"
	checkoutservice "storefront/internal/checkout/service"
	"storefront/internal/currency"
	identityhandler "storefront/internal/identity/handler"
	identityservice "storefront/internal/identity/service"
	identitystore "storefront/internal/identity/store"
	jwttoken "storefront/internal/jwt_token"
	orderhandler "storefront/internal/order/handler"
	ordermetrics "storefront/internal/order/metrics"
	orderservice "storefront/internal/order/service"
	orderstore "storefront/internal/order/store"
	"storefront/internal/payment"
	"storefront/internal/platform/config"
	"storefront/internal/platform/httpserver"
	"storefront/internal/platform/logger"
	"storefront/internal/platform/metrics"
	"storefront/internal/platform/postgres"
	"storefront/internal/platform/redis"
	"storefront/internal/platform/sweeper"
	httptransport "storefront/internal/transport/http"
	"storefront/pkg/platform/audit"
	"storefront/pkg/platform/audit/publisher"
	"storefront/pkg/platform/audit/relay"
	auditmemory "storefront/pkg/platform/audit/store/memory"
	auditpostgres "storefront/pkg/platform/audit/store/postgres"
	"storefront/pkg/platform/circuit"
	"storefront/pkg/platform/middleware/ratelimit"
	txcontext "storefront/pkg/platform/tx"
)

// infra holds the optional backing services. Nil fields fall back to
// in-memory implementations so the server runs with no dependencies.
type infra struct {
	db    *sql.DB
	redis *redis.Client
}

type stores struct {
	catalog  catalogservice.Store
	identity identityservice.Store
	orders   orderservice.Store
	carts    cartservice.Store
	audit    audit.Store
	tx       txcontext.Runner
}

// main wires dependencies, then runs the HTTP server, the unpaid-order
// sweeper and the outbox relay until SIGINT or SIGTERM.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("storefront stopped", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close()

	st := buildStores(cfg, in)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewWith(registry)

	auditPublisher := publisher.NewPublisher(st.audit, publisher.WithAsyncBuffer(256), publisher.WithLogger(log))
	defer auditPublisher.Close()

	rates, err := currency.ParseRates(cfg.CurrencyRates)
	if err != nil {
		return fmt.Errorf("parse currency rates: %w", err)
	}
	converter, err := currency.New(cfg.BaseCurrency, rates)
	if err != nil {
		return fmt.Errorf("currency converter: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	identity := identityservice.New(st.identity, jwtService,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithMetrics(appMetrics),
		identityservice.WithTxRunner(st.tx),
		identityservice.WithTokenTTL(cfg.JWTTTL),
	)
	if cfg.AdminEmail != "" {
		if _, err := identity.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		log.InfoContext(ctx, "admin account ensured", "email", cfg.AdminEmail)
	}

	catalog := catalogservice.New(st.catalog, cfg.BaseCurrency,
		catalogservice.WithLogger(log),
		catalogservice.WithAuditPublisher(auditPublisher),
		catalogservice.WithTxRunner(st.tx),
	)
	carts := cartservice.New(st.carts, catalog, converter, cartservice.WithLogger(log))

	gateway, err := newGateway(cfg.Payment, log)
	if err != nil {
		return err
	}

	orders := orderservice.New(st.orders, catalog,
		orderservice.WithPaymentGateway(gateway),
		orderservice.WithUserDirectory(identity),
		orderservice.WithAuditPublisher(auditPublisher),
		orderservice.WithMetrics(ordermetrics.NewWith(registry)),
		orderservice.WithTxRunner(st.tx),
		orderservice.WithLogger(log),
	)

	checkout := checkoutservice.New(carts, catalog, orders, identity, gateway, converter,
		checkoutservice.WithLogger(log),
		checkoutservice.WithShippingPolicy(checkoutmodels.ShippingPolicy{
			FlatFee:       cfg.ShippingFlatFee,
			FreeThreshold: cfg.FreeShippingThreshold,
		}),
	)

	loginLimiter := ratelimit.New(cfg.LoginRatePerSec, cfg.LoginBurst, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Validator:      jwttoken.NewJWTServiceAdapter(jwtService),
		LoginLimiter:   loginLimiter,
		Latency:        appMetrics,
		Gatherer:       registry,
		RequestTimeout: cfg.RequestTimeout,
		TrustedProxies: cfg.TrustedProxies,
		HealthChecks:   in.healthChecks(),
		Identity:       identityhandler.New(identity, log),
		Catalog:        cataloghandler.New(catalog, converter, log),
		Currency:       currency.NewHandler(converter),
		Cart:           carthandler.New(carts, log),
		Checkout:       checkouthandler.New(checkout, log),
		Orders:         orderhandler.New(orders, log),
		Webhooks:       payment.NewWebhookHandler(orders, cfg.Payment.WebhookSecret, payment.NewMetricsWith(registry), log),
	})

	unpaid := sweeper.New(orders, cfg.UnpaidOrderTTL,
		sweeper.WithLogger(log),
		sweeper.WithSchedule(cfg.SweepSchedule),
		sweeper.WithObserver(appMetrics),
	)

	g, gctx := errgroup.WithContext(ctx)

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.InfoContext(gctx, "starting storefront", "addr", cfg.Addr)
		return httpserver.Run(gctx, srv, cfg.ShutdownTimeout)
	})
	g.Go(func() error { return unpaid.Run(gctx) })
	g.Go(func() error { return sweepLimiter(gctx, loginLimiter) })

	if len(cfg.Kafka.Brokers) > 0 {
		source, ok := st.audit.(relay.Source)
		if !ok {
			log.WarnContext(ctx, "kafka brokers set but outbox requires DATABASE_URL; relay disabled")
		} else {
			producer, err := relay.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return err
			}
			defer producer.Close()
			outbox := relay.New(source, producer,
				relay.WithInterval(cfg.Kafka.PollInterval),
				relay.WithLogger(log),
			)
			g.Go(func() error { return outbox.Run(gctx) })
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("storefront shut down cleanly")
	return nil
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		in.db = db
		log.InfoContext(ctx, "postgres connected, migrations applied")
	} else {
		log.WarnContext(ctx, "DATABASE_URL not set; using in-memory stores")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close()
		return nil, err
	}
	if client == nil {
		log.WarnContext(ctx, "REDIS_URL not set; carts are kept in memory")
	}
	in.redis = client
	return in, nil
}

func (in *infra) close() {
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}

func buildStores(cfg config.Server, in *infra) stores {
	st := stores{
		catalog:  catalogstore.NewInMemory(),
		identity: identitystore.NewInMemory(),
		orders:   orderstore.NewInMemory(),
		carts:    cartstore.NewInMemory(),
		audit:    auditmemory.NewInMemoryStore(),
		tx:       txcontext.NewMemoryRunner(),
	}
	if in.db != nil {
		st.catalog = catalogstore.NewPostgres(in.db)
		st.identity = identitystore.NewPostgres(in.db)
		st.orders = orderstore.NewPostgres(in.db)
		st.audit = auditpostgres.New(in.db)
		st.tx = txcontext.NewPostgresRunner(in.db)
	}
	if in.redis != nil {
		st.carts = cartstore.NewRedis(in.redis.Client, cartstore.WithCartTTL(cfg.Redis.CartTTL))
	}
	return st
}

// newGateway picks the card provider. With no API URL every intent is
// approved locally, which is only suitable for development.
func newGateway(cfg config.PaymentConfig, log *slog.Logger) (payment.Gateway, error) {
	if cfg.APIURL == "" {
		log.Warn("PAYMENT_API_URL not set; using the local payment gateway")
		return payment.NoopGateway{}, nil
	}
	gateway, err := payment.NewHTTPGateway(payment.ClientConfig{
		BaseURL:    cfg.APIURL,
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	},
		payment.WithBreaker(circuit.New("payment-gateway",
			circuit.WithFailureThreshold(5),
			circuit.WithCooldown(30*time.Second),
		)),
		payment.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}
	return gateway, nil
}

// sweepLimiter drops idle login limiter buckets so the map stays bounded.
func sweepLimiter(ctx context.Context, limiter *ratelimit.Limiter) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			limiter.Sweep(now)
		}
	}
}
