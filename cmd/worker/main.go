package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/Domenick1991/appointments/internal/bootstrap"
	"github.com/Domenick1991/appointments/internal/cron"
	"github.com/Domenick1991/appointments/internal/email"
	"github.com/Domenick1991/appointments/internal/kafka"
	"github.com/Domenick1991/appointments/internal/metrics"
	"github.com/Domenick1991/appointments/internal/notify"
	"github.com/Domenick1991/appointments/internal/observability"
	"github.com/Domenick1991/appointments/internal/service/audit"
	"github.com/Domenick1991/appointments/internal/service/sweeps"
)

const (
	serviceName  = "appointments-worker"
	sweepLockKey = "appointments:sweeps:lock"
)

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

	reg := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(reg)
	cronMetrics := metrics.NewCronJobMetrics(reg)

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	dispatcher := notify.NewKafkaDispatcher(producer, cfg.Kafka.NotificationsTopic, logg,
		notify.WithRetries(cfg.Kafka.PublishRetries),
		notify.WithMetrics(bookingMetrics),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logg)
	delivery := email.NewDelivery(store, email.NewSender(logg), logg, bookingMetrics)

	// Only one worker replica sweeps at a time when redis is shared.
	var lock cron.Lock = cron.NewLocalLock()
	if redisCache != nil {
		redisLock, err := cron.NewRedisLock(redisCache, sweepLockKey, 2*cfg.Worker.SweepInterval())
		if err != nil {
			log.Fatalf("sweep lock: %v", err)
		}
		lock = redisLock
	}

	deps := sweeps.Deps{
		Store:      store,
		Trail:      audit.NewTrail(store),
		Dispatcher: dispatcher,
		Logger:     logg,
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger: logg,
		Registry: cron.NewRegistry(
			&sweeps.ReminderJob{Deps: deps, Lead: cfg.Worker.ReminderLead()},
			&sweeps.FollowUpJob{Deps: deps, Delay: cfg.Worker.FollowUpDelay()},
			&sweeps.LowStockJob{Deps: deps, Realert: cfg.Worker.LowStockRealert()},
			&sweeps.ResendJob{Deps: deps, MaxAttempts: cfg.Worker.NotificationMaxAttempt},
		),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Worker.SweepInterval(),
	})
	if err != nil {
		log.Fatalf("cron service: %v", err)
	}

	metricsSrv := &http.Server{
		Addr:              cfg.Worker.MetricsAddr(),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- consumer.Consume(ctx, delivery.HandleMessage) }()
	go func() { errCh <- scheduler.Run(ctx) }()
	logg.Info(ctx, "worker started")

	var runErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			runErr = multierr.Append(runErr, err)
			stop()
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	closeErr := multierr.Combine(
		dispatcher.Wait(drainCtx),
		metricsSrv.Shutdown(drainCtx),
		consumer.Close(),
		producer.Close(),
		store.Close(),
		shutdownTracing(drainCtx),
	)
	if redisCache != nil {
		closeErr = multierr.Append(closeErr, redisCache.Close())
	}
	if err := multierr.Append(runErr, closeErr); err != nil {
		logg.Error(context.Background(), "worker stopped with errors", err)
		log.Fatalf("worker error: %v", err)
	}
	logg.Info(context.Background(), "worker stopped")
}
