package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/application/events"
	"github.com/jhoicas/agro-inventario/internal/application/ledger"
	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/application/purchase"
	"github.com/jhoicas/agro-inventario/internal/application/valuation"
	"github.com/jhoicas/agro-inventario/internal/application/verification"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
	"github.com/jhoicas/agro-inventario/internal/infrastructure/kafka"
	"github.com/jhoicas/agro-inventario/internal/infrastructure/memory"
	infmongo "github.com/jhoicas/agro-inventario/internal/infrastructure/mongo"
	"github.com/jhoicas/agro-inventario/internal/infrastructure/pdf"
	"github.com/jhoicas/agro-inventario/internal/infrastructure/postgres"
	infredis "github.com/jhoicas/agro-inventario/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/agro-inventario/internal/interfaces/http"
	"github.com/jhoicas/agro-inventario/pkg/config"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("la aplicación terminó con error")
		os.Exit(1)
	}
}

// run arma las dependencias y sirve hasta recibir una señal. Los recursos abiertos
// se liberan por defer antes de volver, también ante un error de arranque.
func run(cfg *config.Config, log *logger.Logger) error {
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Ledger.Store).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	policy := authz.NewPolicy(cfg.AuthzOverrides)

	// Libro: PostgreSQL o memoria (LEDGER_STORE=memory, útil en desarrollo).
	var (
		txRunner      ports.TxRunner
		analyticsRepo repository.AnalyticsRepository
		outboxRepo    repository.OutboxRepository
	)
	switch cfg.Ledger.Store {
	case config.StoreMemory:
		store := memory.NewStore()
		txRunner = store
		analyticsRepo = memory.NewAnalyticsRepository(store)
		outboxRepo = store.Direct().Outbox()
		log.Warn().Msg("libro en memoria: los datos se pierden al reiniciar")
	default:
		if cfg.DB.RunMigrations {
			if err := postgres.RunMigrations(cfg.DB.ConnectionString()); err != nil {
				return fmt.Errorf("migraciones: %w", err)
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		defer pool.Close()
		txRunner = postgres.NewTxRunner(pool, cfg.DB.TxMaxRetries, log)
		analyticsRepo = postgres.NewAnalyticsRepository(pool)
		outboxRepo = postgres.NewOutboxRepository(pool)
	}

	// Facturas: GridFS si hay MONGO_URI.
	var docs repository.DocumentStore = memory.NewDocumentStore()
	if cfg.Mongo.URI != "" {
		client, db, err := infmongo.Connect(ctx, infmongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Bucket:   cfg.Mongo.Bucket,
		})
		if err != nil {
			return fmt.Errorf("conexión a MongoDB: %w", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		store, err := infmongo.NewDocumentStore(db, cfg.Mongo.Bucket)
		if err != nil {
			return fmt.Errorf("bucket de facturas: %w", err)
		}
		docs = store
	}

	// Respuestas idempotentes: Redis si hay REDIS_URL.
	var replay ports.ReplayStore = memory.NewReplayStore()
	if cfg.Redis.URL != "" {
		rdb, err := infredis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("conexión a Redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		replay = infredis.NewReplayStore(rdb)
	}

	// Relay del outbox hacia Kafka; sin brokers los eventos quedan PENDING.
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := kafka.NewPublisher(ctx, kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, log)
		if err != nil {
			return fmt.Errorf("publicador Kafka: %w", err)
		}
		defer func() { _ = publisher.Close() }()

		relay, err := events.NewRelay(events.Config{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			Workers:      cfg.Outbox.Workers,
		}, outboxRepo, publisher, log)
		if err != nil {
			return fmt.Errorf("relay de eventos: %w", err)
		}
		defer relay.Close()
		go relay.Start(ctx)
	} else {
		log.Info().Msg("KAFKA_BROKERS vacío: relay de eventos deshabilitado")
	}

	ledgerSvc := ledger.NewService(txRunner, policy, log, cfg.DB.TxTimeout)
	purchaseUC := purchase.NewUseCase(txRunner, ledgerSvc, docs, policy, log, purchase.Config{
		ReversalPolicy: cfg.Ledger.ReversalPolicy,
		TxTimeout:      cfg.DB.TxTimeout,
	})
	verificationUC := verification.NewUseCase(txRunner, ledgerSvc, pdf.NewMarotoReportGenerator(nil), policy, log, verification.Config{
		AllowRestart: cfg.Verification.AllowRestart,
		TxTimeout:    cfg.DB.TxTimeout,
	})
	valuationUC := valuation.NewUseCase(analyticsRepo, policy)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    12 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestID())
	app.Use(httpRouter.RequestLogger(log))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Agro Inventario API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:         ledgerSvc,
		Purchases:      purchaseUC,
		Verifications:  verificationUC,
		Valuation:      valuationUC,
		Policy:         policy,
		ReplayStore:    replay,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		JWTSecret:      cfg.JWT.Secret,
		Logger:         log,
	})

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(cfg.HTTP.Addr())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	case err := <-listenErr:
		return fmt.Errorf("servidor HTTP: %w", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("apagado del servidor: %w", err)
	}

	log.Info().Msg("aplicación detenida")
	return nil
}
