package tracking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/pkg/logger"
	"github.com/ignite/crm-ingest/internal/service/activity"
	"github.com/ignite/crm-ingest/internal/service/person"
	"github.com/ignite/crm-ingest/internal/service/tracker"
)

const (
	group    = "crm-worker"
	consumer = "worker-1"
)

// Consumer reads engagement events off the Redis stream and maintains the
// per-person engagement counters. Counters are derived data: a lost message
// undercounts until a rebuild, it never corrupts the authoritative event rows.
type Consumer struct {
	rdb        *redis.Client
	stream     string
	tracker    *tracker.Service
	activities *activity.Service
	people     *person.Service
	done       chan struct{}
}

func NewConsumer(rdb *redis.Client, stream string, trackerSvc *tracker.Service, activities *activity.Service, people *person.Service) *Consumer {
	return &Consumer{
		rdb:        rdb,
		stream:     stream,
		tracker:    trackerSvc,
		activities: activities,
		people:     people,
		done:       make(chan struct{}),
	}
}

// Start begins consuming in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	// Group may already exist from a previous run.
	if err := c.rdb.XGroupCreateMkStream(ctx, c.stream, group, "0").Err(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		logger.Error("create consumer group", "error", err.Error(), "stream", c.stream)
	}
	logger.Info("engagement consumer started", "stream", c.stream, "group", group)
	go c.poll(ctx)
}

// Stop signals the polling loop to exit.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{c.stream, ">"},
			Count:    64,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			logger.Error("read engagement stream", "error", err.Error())
			time.Sleep(5 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := c.processMessage(ctx, msg); err != nil {
					logger.Error("process engagement event", "error", err.Error(), "id", msg.ID)
					continue
				}
				c.rdb.XAck(ctx, c.stream, group, msg.ID)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		// Malformed entry: ack and drop, redelivery won't fix it.
		c.rdb.XAck(ctx, c.stream, group, msg.ID)
		return nil
	}
	var evt domain.EngagementEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		c.rdb.XAck(ctx, c.stream, group, msg.ID)
		return nil
	}
	return c.apply(ctx, evt)
}

// apply walks token -> activity -> person and bumps that person's counters.
func (c *Consumer) apply(ctx context.Context, evt domain.EngagementEvent) error {
	tok, err := c.tracker.Resolve(ctx, evt.Token)
	if err != nil {
		// Token expired between record and consume; nothing to aggregate.
		return nil
	}
	act, err := c.activities.Get(ctx, tok.ActivityID)
	if err != nil {
		return err
	}
	if err := c.people.RecordEngagement(ctx, act.PersonID, evt.Kind, evt.OccurredAt); err != nil {
		return err
	}
	logger.Debug("engagement aggregated", "kind", string(evt.Kind), "person_id", act.PersonID)
	return nil
}
