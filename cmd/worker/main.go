// The worker binary consumes the Redis engagement stream and folds opens and
// clicks into person-level counters. Counters are derived data: the worker
// can lag or restart without affecting the authoritative engagement events.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-ingest/internal/config"
	"github.com/ignite/crm-ingest/internal/repository/postgres"
	"github.com/ignite/crm-ingest/internal/service/activity"
	"github.com/ignite/crm-ingest/internal/service/person"
	"github.com/ignite/crm-ingest/internal/service/tracker"
	"github.com/ignite/crm-ingest/internal/tracking"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Redis.Addr == "" {
		log.Fatal("REDIS_ADDR is required for the engagement worker")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	people := person.NewService(postgres.NewPersonRepo(db))
	activities := activity.NewService(postgres.NewActivityRepo(db))
	trk := tracker.NewService(postgres.NewTrackerRepo(db), nil,
		cfg.Tracking.BaseURL, cfg.Tracking.SigningKey, cfg.Tracking.TokenTTL())

	consumer := tracking.NewConsumer(rdb, cfg.Redis.Stream, trk, activities, people)

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	log.Printf("engagement worker consuming stream %s", cfg.Redis.Stream)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down worker...")

	cancel()
	consumer.Stop()
}
