package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/Domenick1991/appointments/api"
	"github.com/Domenick1991/appointments/internal/auth"
	"github.com/Domenick1991/appointments/internal/bootstrap"
	"github.com/Domenick1991/appointments/internal/kafka"
	"github.com/Domenick1991/appointments/internal/metrics"
	"github.com/Domenick1991/appointments/internal/notify"
	"github.com/Domenick1991/appointments/internal/observability"
	"github.com/Domenick1991/appointments/internal/service/audit"
	"github.com/Domenick1991/appointments/internal/service/availability"
	"github.com/Domenick1991/appointments/internal/service/booking"
	"github.com/Domenick1991/appointments/internal/service/catalog"
	"github.com/Domenick1991/appointments/internal/service/inventory"
)

const serviceName = "appointments-api"

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg := bootstrap.NewLogger(cfg, serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing, serviceName)
	if err != nil {
		log.Fatalf("setup tracing: %v", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg, logg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	redisCache, err := bootstrap.OpenRedis(ctx, cfg, logg)
	if err != nil {
		log.Fatalf("open redis: %v", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Booking.TokenSecret, cfg.Booking.TokenTTL())
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	dispatcher := notify.NewKafkaDispatcher(producer, cfg.Kafka.NotificationsTopic, logg,
		notify.WithRetries(cfg.Kafka.PublishRetries),
		notify.WithMetrics(bookingMetrics),
	)

	trail := audit.NewTrail(store)
	ledger := inventory.NewLedger(store, trail,
		inventory.WithDispatcher(dispatcher),
		inventory.WithMetrics(bookingMetrics),
		inventory.WithLogger(logg),
	)
	lifecycleOpts := []booking.Option{
		booking.WithDispatcher(dispatcher),
		booking.WithMetrics(bookingMetrics),
		booking.WithLogger(logg),
	}
	var serviceCache catalog.ServiceCache
	if redisCache != nil {
		lifecycleOpts = append(lifecycleOpts, booking.WithSlotHolds(redisCache, cfg.Booking.SlotHold()))
		serviceCache = redisCache
	}
	lifecycle := booking.NewLifecycle(store, ledger, trail, lifecycleOpts...)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Dependencies{
		Bookings:     lifecycle,
		Availability: availability.NewEngine(store),
		Catalog:      catalog.NewCatalog(store, serviceCache, cfg.Redis.CacheTTL(), logg),
		Inventory:    ledger,
		Activity:     trail,
		Tokens:       tokens,
		Logger:       logg,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Checks: map[string]api.HealthCheck{
			"database": store.DB().PingContext,
			"kafka":    producer.CheckConnection,
		},
	})

	runErr := bootstrap.Run(ctx, cfg, router, logg)

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	closeErr := multierr.Combine(
		dispatcher.Wait(drainCtx),
		producer.Close(),
		store.Close(),
		shutdownTracing(drainCtx),
	)
	if redisCache != nil {
		closeErr = multierr.Append(closeErr, redisCache.Close())
	}
	if err := multierr.Append(runErr, closeErr); err != nil {
		logg.Error(context.Background(), "api stopped with errors", err)
		log.Fatalf("server error: %v", err)
	}
	logg.Info(context.Background(), "api stopped")
}
