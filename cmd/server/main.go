// Command server wires the verification engine and runs its HTTP API. Main
// assembles dependencies and owns the process lifecycle; business logic lives
// in the internal services.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"veriflow/internal/audit"
	"veriflow/internal/broadcast"
	"veriflow/internal/notify"
	"veriflow/internal/platform/config"
	"veriflow/internal/platform/httpserver"
	"veriflow/internal/platform/logger"
	platformmetrics "veriflow/internal/platform/metrics"
	platformredis "veriflow/internal/platform/redis"
	"veriflow/internal/roles"
	"veriflow/internal/template"
	"veriflow/internal/verification/decision"
	decisionmetrics "veriflow/internal/verification/decision/metrics"
	"veriflow/internal/verification/handler"
	"veriflow/internal/verification/intake"
	"veriflow/internal/verification/ports"
	formconfigstore "veriflow/internal/verification/store/formconfig"
	requeststore "veriflow/internal/verification/store/request"
	"veriflow/internal/vouch"
	"veriflow/pkg/platform/middleware/admin"
	"veriflow/pkg/platform/middleware/metadata"
	"veriflow/pkg/platform/middleware/requestid"
	"veriflow/pkg/platform/middleware/requesttime"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		requests ports.RequestStore
		configs  ports.ConfigProvider
		trailDB  audit.Store
		db       *sql.DB
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		requests = requeststore.NewPostgres(db)
		configs = formconfigstore.NewPostgres(db)
		trailDB = audit.NewPostgres(db)
		log.Info("using postgres storage")
	} else {
		requests = requeststore.NewInMemory()
		configs = formconfigstore.NewInMemory()
		trailDB = audit.NewInMemoryStore()
		log.Warn("no database configured, storage is in-memory")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		configs = formconfigstore.NewRedisCache(redisClient.Client, configs, cfg.Redis.CacheTTL)
		log.Info("form-config cache enabled")
	}

	trail := audit.NewTrail(trailDB)
	templates := template.New()
	directory := roles.NewInMemory()
	notifier := notify.NewSlog(log)

	vouchSvc, err := vouch.New(cfg.VouchSigningKey, "veriflow", cfg.AdminLinkBase,
		notifier, templates, trail,
		vouch.WithTokenTTL(cfg.VouchTokenTTL),
		vouch.WithLogger(log),
	)
	if err != nil {
		return err
	}

	// Decisions fan out through a buffered channel so slow subscribers never
	// block the HTTP path.
	events := broadcast.NewChannel(256, log)
	sinks := []ports.Subscriber{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := broadcast.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer kafka.Close()
		sinks = append(sinks, kafka)
		log.Info("decision broadcast enabled", "topic", cfg.Kafka.Topic)
	}
	worker := broadcast.NewWorker(broadcast.NewFanout(log, sinks...), events.Inbox())

	intakeSvc, err := intake.New(requests, configs, directory, directory, notifier, templates, trail,
		intake.WithVouchDelegate(vouchSvc),
		intake.WithMetrics(platformmetrics.New()),
		intake.WithLogger(log),
		intake.WithAdminLinkBase(cfg.AdminLinkBase),
	)
	if err != nil {
		return err
	}

	decisionSvc, err := decision.New(requests, configs, directory, directory, notifier, templates, trail,
		decision.WithSubscriber(events),
		decision.WithMetrics(decisionmetrics.New()),
		decision.WithLogger(log),
	)
	if err != nil {
		return err
	}

	// With Postgres, the request insert and its audit entries share one
	// transaction.
	var intakeEndpoint handler.IntakeService = intakeSvc
	if db != nil {
		intakeEndpoint = newTxIntake(db, intakeSvc, log)
	}

	h := handler.New(intakeEndpoint, decisionSvc, requests, trail, log)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		if cfg.AdminToken != "" {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, log))
		} else {
			log.Warn("no admin token configured, operator endpoints are open")
		}
		h.Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting veriflow", "addr", cfg.Addr)
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

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
