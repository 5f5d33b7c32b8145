// The tracking binary serves only the public pixel and click-redirect
// endpoints. It can be deployed separately from the main server so that
// engagement traffic (which spikes with every send) never competes with
// webhook processing.
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
	"github.com/ignite/crm-ingest/internal/config"
	"github.com/ignite/crm-ingest/internal/ingest"
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
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pub tracker.EventPublisher
	if rdb != nil {
		pub = tracking.NewPublisher(rdb, cfg.Redis.Stream)
	}
	trk := tracker.NewService(postgres.NewTrackerRepo(db), pub,
		cfg.Tracking.BaseURL, cfg.Tracking.SigningKey, cfg.Tracking.TokenTTL())

	people := person.NewService(postgres.NewPersonRepo(db))
	activities := activity.NewService(postgres.NewActivityRepo(db))
	deals := deal.NewService(postgres.NewDealRepo(db), deal.Options{})
	ledgerSvc := ledger.NewService(postgres.NewLedgerRepo(db), rdb)

	gateway := ingest.NewGateway(ledgerSvc, people, activities, deals, trk,
		postgres.NewCompanyRepo(db), nil, 0)

	// Nil key validator: only the public tracking routes and the health
	// check are mounted.
	handlers := api.NewHandlers(gateway, nil, people, activities, nil)
	server := api.NewServer(cfg.Server, handlers, nil)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	addr := fmt.Sprintf("%s:%s", cfg.Server.GetHost(), port)
	go func() {
		log.Printf("tracking service listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down tracking service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
