package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-ingest/internal/api"
	"github.com/ignite/crm-ingest/internal/archive"
	"github.com/ignite/crm-ingest/internal/auth"
	"github.com/ignite/crm-ingest/internal/compose"
	"github.com/ignite/crm-ingest/internal/config"
	"github.com/ignite/crm-ingest/internal/ingest"
	"github.com/ignite/crm-ingest/internal/pkg/distlock"
	"github.com/ignite/crm-ingest/internal/repository/postgres"
	"github.com/ignite/crm-ingest/internal/service/activity"
	"github.com/ignite/crm-ingest/internal/service/deal"
	"github.com/ignite/crm-ingest/internal/service/ledger"
	"github.com/ignite/crm-ingest/internal/service/person"
	"github.com/ignite/crm-ingest/internal/service/tracker"
	"github.com/ignite/crm-ingest/internal/tracking"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	// Redis is optional: without it the ledger cache, engagement stream,
	// and Redis locks are skipped and Postgres carries everything.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("redis unavailable, continuing without it: %v", err)
			rdb = nil
		}
	}

	people := person.NewService(postgres.NewPersonRepo(db))
	activities := activity.NewService(postgres.NewActivityRepo(db))
	deals := deal.NewService(postgres.NewDealRepo(db), deal.Options{
		PipelineID:       cfg.Ingest.DefaultPipelineID,
		StageID:          cfg.Ingest.DefaultStageID,
		AttachToExisting: cfg.Ingest.AttachToExistingOpenDeal,
	})
	ledgerSvc := ledger.NewService(postgres.NewLedgerRepo(db), rdb)

	var pub tracker.EventPublisher
	if rdb != nil {
		pub = tracking.NewPublisher(rdb, cfg.Redis.Stream)
	}
	trk := tracker.NewService(postgres.NewTrackerRepo(db), pub,
		cfg.Tracking.BaseURL, cfg.Tracking.SigningKey, cfg.Tracking.TokenTTL())

	locks := func(key string, ttl time.Duration) distlock.DistLock {
		return distlock.NewLock(rdb, db, key, ttl)
	}
	gateway := ingest.NewGateway(ledgerSvc, people, activities, deals, trk,
		postgres.NewCompanyRepo(db), locks, cfg.Ingest.LockTTL())

	composer := compose.NewService(people, activities, trk)

	archiver, err := archive.New(context.Background(), cfg.Archive)
	if err != nil {
		log.Fatalf("init archive: %v", err)
	}

	keys := auth.NewKeyValidator(cfg.Auth, nil)
	handlers := api.NewHandlers(gateway, composer, people, activities, archiver)
	server := api.NewServer(cfg.Server, handlers, keys)

	// Apply engagement events in-process when no dedicated worker runs.
	var consumer *tracking.Consumer
	if rdb != nil && os.Getenv("INLINE_ENGAGEMENT_WORKER") == "true" {
		consumer = tracking.NewConsumer(rdb, cfg.Redis.Stream, trk, activities, people)
		consumer.Start(context.Background())
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		log.Printf("ingestion server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if consumer != nil {
		consumer.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
