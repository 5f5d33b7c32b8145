// Package archive stores raw inbound payloads for audit and replay. Archiving
// is best-effort and runs outside the ingestion pipeline's commit path: a
// failed archive write never fails the webhook.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/crm-ingest/internal/config"
	"github.com/ignite/crm-ingest/internal/pkg/logger"
)

// Archiver stores one raw payload per (channel, event key).
type Archiver interface {
	Store(ctx context.Context, channel, eventKey string, payload interface{}) error
}

// New builds an archiver from configuration. Type "" disables archiving.
func New(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Type {
	case "s3":
		return newS3Archiver(ctx, cfg.S3Bucket, cfg.AWSRegion)
	case "local":
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
		return &localArchiver{root: cfg.LocalPath}, nil
	case "":
		return noopArchiver{}, nil
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

// StoreAsync archives in the background, logging failures instead of
// returning them.
func StoreAsync(a Archiver, channel, eventKey string, payload interface{}) {
	if a == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Store(ctx, channel, eventKey, payload); err != nil {
			logger.Warn("archive write failed", "channel", channel, "event_key", eventKey, "error", err.Error())
		}
	}()
}

type noopArchiver struct{}

func (noopArchiver) Store(context.Context, string, string, interface{}) error { return nil }

// localArchiver writes one JSON file per event under {root}/{channel}/.
type localArchiver struct {
	root string
}

func (a *localArchiver) Store(_ context.Context, channel, eventKey string, payload interface{}) error {
	dir := filepath.Join(a.root, filepath.Base(channel))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, filepath.Base(eventKey)+".json")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
