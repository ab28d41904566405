package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/felanocare/internal/advice"
	"github.com/Freeeeeet/felanocare/internal/api"
	"github.com/Freeeeeet/felanocare/internal/api/handlers"
	"github.com/Freeeeeet/felanocare/internal/app"
	"github.com/Freeeeeet/felanocare/internal/cart"
	"github.com/Freeeeeet/felanocare/internal/config"
	"github.com/Freeeeeet/felanocare/internal/controller"
	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/controller/state"
	"github.com/Freeeeeet/felanocare/internal/events"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/metrics"
	"github.com/Freeeeeet/felanocare/internal/repository"
	"github.com/Freeeeeet/felanocare/internal/service"
	"github.com/Freeeeeet/felanocare/internal/store"
	"github.com/Freeeeeet/felanocare/internal/store/memory"
)

// runServe поднимает все компоненты и блокируется до SIGINT/SIGTERM
func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := app.NewLogger(cfg.Environment, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting FelanoCare",
		zap.String("environment", cfg.Environment),
		zap.Bool("env_file", cfg.EnvFileLoaded),
		zap.Bool("memory_store", cfg.UseMemoryStore()),
		zap.Bool("telegram", cfg.TelegramToken != ""))

	telemetry, err := app.InitTelemetry(ctx, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	g, gctx := errgroup.WithContext(ctx)

	// Хранилище: PostgreSQL, если задан DB_DSN, иначе память процесса
	var (
		slots    store.SlotStore
		profiles store.ProfileStore
		journals store.JournalStore
		products store.ProductStore
	)
	if cfg.UseMemoryStore() {
		logger.Warn("DB_DSN is not set, using in-memory store")
		slots = memory.NewSlotStore()
		profiles = memory.NewProfileStore()
		journals = memory.NewJournalStore()
		products = memory.NewProductStore()
	} else {
		pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			return err
		}
		if err := migrator.Run(ctx); err != nil {
			_ = migrator.Close()
			return err
		}
		_ = migrator.Close()

		slotHub, journalHub, productHub := store.NewHub(), store.NewHub(), store.NewHub()
		slots = repository.NewSlotRepository(pool, slotHub)
		profiles = repository.NewProfileRepository(pool)
		journals = repository.NewJournalRepository(pool, journalHub)
		products = repository.NewProductRepository(pool, productHub)

		listener := repository.NewListener(pool, slotHub, logger).
			Route(repository.JournalChangesChannel, journalHub).
			Route(repository.ProductChangesChannel, productHub)
		g.Go(func() error { return listener.Run(gctx) })
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(ctx, events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			return err
		}
		publisher = kp
	}
	defer publisher.Close()

	l := ledger.New(slots, publisher, m, logger)
	profileService := service.NewProfileService(profiles, logger)
	bookingService := service.NewBookingService(l, profiles, logger)
	professionalService := service.NewProfessionalService(l, profiles, logger)

	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("JWT_SECRET is not set, tokens will not survive a restart")
	}
	tokens := identity.NewTokenIssuer(secret, cfg.JWTTTL)

	dc, err := advice.NewDrugClient(cfg.OpenFDABaseURL, logger)
	if err != nil {
		return err
	}

	deps := handlers.Deps{
		Ledger:       l,
		Profiles:     profileService,
		Bookings:     bookingService,
		Professional: professionalService,
		Tokens:       tokens,
		Carts:        cart.NewRegistry(),
		Journal:      service.NewJournalService(journals, m, logger),
		Catalog:      service.NewCatalogService(products, dc, m, logger),
		Drugs:        dc,
		Logger:       logger,
	}
	if cfg.OpenAIKey != "" {
		ac, err := advice.NewAdviceClient(advice.AdviceConfig{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.OpenAIModel,
		}, logger)
		if err != nil {
			return err
		}
		deps.Advice = ac
	}

	server := api.NewServer(api.Config{
		Addr:     cfg.HTTPAddr,
		Handlers: handlers.New(deps),
		Tokens:   tokens,
		Ready:    l,
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	})
	g.Go(func() error { return server.Run(gctx) })

	scheduler, err := app.NewScheduler(l, cfg.SweepSchedule, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken, bot.WithErrorsHandler(func(err error) {
			logger.Error("Telegram bot error", zap.Error(err))
		}))
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}

		bc := controller.NewBotController(b, &common.Deps{
			Profiles:     profileService,
			Bookings:     bookingService,
			Professional: professionalService,
			Ledger:       l,
			State:        state.NewManager(),
			Live:         common.NewLiveViews(cfg.LiveViewTimeout, logger),
			Logger:       logger,
		})
		if err := bc.RegisterHandlers(ctx); err != nil {
			return err
		}
		g.Go(func() error { return bc.Start(gctx) })
	}

	err = g.Wait()
	logger.Info("FelanoCare stopped", zap.Error(err))
	return err
}

func randomSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
