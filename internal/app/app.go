package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/catalog-service/internal/domain/product"
	"github.com/xenking/catalog-service/internal/exchange"
	"github.com/xenking/catalog-service/internal/handler"
	"github.com/xenking/catalog-service/internal/notify"
	"github.com/xenking/catalog-service/internal/storage/memory"
	"github.com/xenking/catalog-service/internal/storage/postgres"
	"github.com/xenking/catalog-service/pkg/health"
	"github.com/xenking/catalog-service/pkg/httpmiddleware"
)

const serviceName = "catalog-api"

// Telemetry provides the OpenTelemetry providers, as *app.Telemetry does.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
}

var _ Telemetry = (*app.Telemetry)(nil)

// stores holds the repositories selected by the storage driver.
type stores struct {
	products product.Repository
	security *handler.SecurityHandler
	close    func()
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, healthSvc *health.Health) (*stores, error) {
	if cfg.Storage.Driver == DriverMemory {
		lg.Warn("Using in-memory product store, data is lost on exit")
		return &stores{products: memory.NewProductRepository(), close: func() {}}, nil
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	s := &stores{
		products: postgres.NewProductRepository(pool),
		close:    pool.Close,
	}
	if cfg.Auth.Enabled {
		s.security = handler.NewSecurityHandler(postgres.NewAPIKeyRepository(pool), []byte(cfg.Auth.Pepper))
	}
	return s, nil
}

// newNotifier returns the product notifier and a func that flushes pending
// deliveries on shutdown.
func newNotifier(lg *zap.Logger, cfg *Config) (product.Notifier, func(context.Context) error, error) {
	if !cfg.Notify.Enabled {
		nop := func(context.Context) error { return nil }
		return notify.NewProductNotifier(notify.NopSender{}, cfg.Notify.To), nop, nil
	}
	sender, err := notify.NewSMTPSender(cfg.smtpConfig())
	if err != nil {
		return nil, nil, errors.Wrap(err, "create smtp sender")
	}
	lg.Info("Product notifications enabled",
		zap.String("to", cfg.Notify.To),
		zap.String("smtp_host", cfg.Notify.SMTP.Host),
		zap.Int("workers", cfg.Notify.Queue.Workers),
	)
	q := notify.NewQueue(notify.NewProductNotifier(sender, cfg.Notify.To), notify.QueueConfig{
		Size:    cfg.Notify.Queue.Size,
		Workers: cfg.Notify.Queue.Workers,
		Timeout: cfg.Notify.Queue.Timeout,
	})
	return q, q.Close, nil
}

// NewRouter builds the routing tree: health endpoints plus the catalog API.
// Tracing and request logging run inside the router so the matched route
// pattern is known to them.
func NewRouter(h *handler.Handler, healthSvc *health.Health, m Telemetry) chi.Router {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Instrument(serviceName, m.MeterProvider(), m.TracerProvider()),
		httpmiddleware.LogRequests(),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Mount(r)
	return r
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, err := openStores(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer st.close()

	// Exchange-rate pipeline.
	client, err := exchange.NewClient(exchange.ClientConfig{
		BaseURL:        cfg.Exchange.BaseURL,
		Timeout:        cfg.Exchange.Timeout,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create exchange client")
	}
	converter, err := exchange.NewConverter(client.Rate, cfg.exchangeConfig(), lg, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create converter")
	}

	// Domain service.
	notifier, closeNotifier, err := newNotifier(lg, cfg)
	if err != nil {
		return err
	}
	svc, err := product.NewService(product.ServiceConfig{
		Notifier:       notifier,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	}, st.products, converter)
	if err != nil {
		return errors.Wrap(err, "create product service")
	}

	// HTTP handlers.
	h := handler.NewHandler(handler.HandlerConfig{
		DefaultPageSize: cfg.Paging.DefaultSize,
		MaxPageSize:     cfg.Paging.MaxSize,
		Security:        st.security,
	}, svc, converter.Cache())

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(NewRouter(h, healthSvc, m),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isProbe,
			}),
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
		if err := closeNotifier(shutdownCtx); err != nil {
			lg.Warn("Pending notifications dropped", zap.Error(err))
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
