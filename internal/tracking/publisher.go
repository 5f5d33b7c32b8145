// Package tracking fans engagement events out to the aggregation worker over
// a Redis stream. Publishing is fire-and-forget: the tracking endpoints must
// stay fast and never fail because the stream is down, and the counters the
// worker maintains are derived data that can be rebuilt from the event table.
package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/pkg/logger"
)

// maxStreamLen caps the stream size; the worker normally keeps up, so the
// cap only matters when it has been down for a long time.
const maxStreamLen = 100000

// Publisher writes engagement events to the Redis stream.
type Publisher struct {
	rdb    *redis.Client
	stream string
}

func NewPublisher(rdb *redis.Client, stream string) *Publisher {
	return &Publisher{rdb: rdb, stream: stream}
}

// PublishEngagement enqueues the event asynchronously. Errors are logged and
// dropped; the event row itself is already durable in Postgres.
func (p *Publisher) PublishEngagement(_ context.Context, evt domain.EngagementEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error("marshal engagement event", "error", err.Error())
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := p.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: maxStreamLen,
			Approx: true,
			Values: map[string]interface{}{"event": string(body)},
		}).Err()
		if err != nil {
			logger.Error("publish engagement event", "error", err.Error(), "stream", p.stream)
		}
	}()
}
