package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"kittrack/internal/carrier"
	"kittrack/internal/dispatch"
	"kittrack/internal/dispatch/store/ledger"
	"kittrack/internal/kit/store/kits"
	"kittrack/internal/notify"
	"kittrack/internal/order"
	"kittrack/internal/participant"
	"kittrack/internal/participantevent"
	"kittrack/internal/platform/config"
	"kittrack/internal/platform/httpserver"
	kafkaconsumer "kittrack/internal/platform/kafka/consumer"
	"kittrack/internal/platform/logger"
	"kittrack/internal/platform/metrics"
	"kittrack/internal/platform/postgres"
	platformredis "kittrack/internal/platform/redis"
	"kittrack/internal/reminder"
	"kittrack/internal/results"
	historystore "kittrack/internal/results/store/history"
	resulttransport "kittrack/internal/results/transport"
	"kittrack/internal/study"
	"kittrack/internal/tracking"
	httptransport "kittrack/internal/transport/http"
)

// main wires dependencies and runs the three workloads: the carrier poller,
// the reminder sweep, and the lab result consumer. Business logic lives in
// the internal services packages.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		ledgerStore  dispatch.LedgerStore
		kitStore     tracking.KitStore
		kitSource    reminder.KitSource
		kitLookup    results.KitLookup
		historyStore results.HistoryStore
		studies      interface {
			tracking.StudyDirectory
			reminder.StudyDirectory
		}
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		ledgerStore = ledger.NewPostgres(db)
		pg := kits.NewPostgres(db)
		kitStore, kitSource, kitLookup = pg, pg, pg
		historyStore = historystore.NewPostgres(db)
		studies = study.NewPostgres(db)
		log.Info("using postgres persistence")
	} else {
		ledgerStore = ledger.New()
		mem := kits.NewMemory()
		kitStore, kitSource, kitLookup = mem, mem, mem
		historyStore = historystore.New()
		studies = study.NewMemory()
		log.Warn("no database configured, state is in-memory and volatile")
	}

	var events reminder.DirectEventStore = participantevent.NewMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		events = participantevent.NewRedis(redisClient)
		log.Info("using redis participant event store")
	}

	guard, err := dispatch.New(ledgerStore, dispatch.WithLogger(log), dispatch.WithMetrics(m))
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	carrierClient := carrier.NewClient(httpClient, carrier.Config{
		BaseURL:    cfg.CarrierBaseURL,
		Username:   cfg.CarrierUsername,
		Password:   cfg.CarrierPassword,
		LicenseKey: cfg.CarrierLicenseKey,
	}, log)

	notifier := notify.NewClient(httpClient, studies, log)

	participants := participant.NewHTTPDirectory(httpClient, cfg.ParticipantBaseURL)
	orderClient := order.NewClient(httpClient, order.Config{
		Endpoint:          cfg.OrderEndpoint,
		Account:           cfg.OrderAccount,
		ProviderFirstName: cfg.OrderProviderFirstName,
		ProviderLastName:  cfg.OrderProviderLastName,
		ProviderNPI:       cfg.OrderProviderNPI,
	}, participants, log)

	poller, err := tracking.New(carrierClient, kitStore, studies, guard, notifier, orderClient,
		tracking.WithLogger(log), tracking.WithMetrics(m))
	if err != nil {
		return err
	}

	reminders, err := reminder.New(kitSource, studies, guard, guard, events, notifier,
		reminder.WithLogger(log))
	if err != nil {
		return err
	}

	reconciler, err := results.New(historyStore, kitLookup, guard, notifier,
		results.WithLogger(log), results.WithMetrics(m))
	if err != nil {
		return err
	}

	handler := httptransport.NewHandler(reconciler, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler), httpserver.Config{
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting kittrack", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return poller.Run(gctx, cfg.PollInterval)
	})

	g.Go(func() error {
		return reminders.Run(gctx, cfg.ReminderInterval)
	})

	if len(cfg.KafkaBrokers) > 0 {
		resultHandler := resulttransport.NewHandler(reconciler, log)
		consumer, err := kafkaconsumer.New(kafkaconsumer.Config{
			Brokers: cfg.KafkaBrokers,
			Group:   cfg.KafkaGroup,
			Topics:  []string{cfg.KafkaTopic},
		}, resultHandler, log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Info("consuming lab results", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)
			return consumer.Run(gctx)
		})
	} else {
		log.Warn("no kafka brokers configured, lab results only via the HTTP webhook")
	}

	return g.Wait()
}
