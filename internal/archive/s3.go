package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Archiver stores payloads as JSON objects under
// s3://{bucket}/ingest/{channel}/{date}/{eventKey}.json.
type s3Archiver struct {
	client *s3.Client
	bucket string
}

func newS3Archiver(ctx context.Context, bucket, region string) (*s3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &s3Archiver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

func (a *s3Archiver) Store(ctx context.Context, channel, eventKey string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	key := fmt.Sprintf("ingest/%s/%s/%s.json", channel, time.Now().UTC().Format("2006-01-02"), eventKey)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting archive object: %w", err)
	}
	return nil
}
