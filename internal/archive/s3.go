package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"

	"github.com/arkilian/tracestore/pkg/types"
)

// S3Archiver uploads snappy-compressed, newline-delimited JSON batches
// of evicted events to S3, one object per Archive call, grounded on
// the teacher's S3Storage client construction idiom
// (config.LoadDefaultConfig + s3.NewFromConfig).
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config configures an S3Archiver.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3Archiver loads the default AWS config and constructs an
// S3Archiver for cfg.Bucket.
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to load AWS config: %w", err)
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Archive encodes evicted as snappy-framed newline-delimited JSON and
// uploads it as a single timestamped object under s.prefix.
func (s *S3Archiver) Archive(ctx context.Context, evicted []*types.Event) error {
	if len(evicted) == 0 {
		return nil
	}

	var buf bytes.Buffer
	sw := snappy.NewBufferedWriter(&buf)
	enc := json.NewEncoder(sw)
	for _, e := range evicted {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("archive: failed to encode event %s: %w", e.EventID, err)
		}
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("archive: failed to flush snappy writer: %w", err)
	}

	key := fmt.Sprintf("%s%d.ndjson.snappy", s.prefix, archiveTimestamp(evicted))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("archive: failed to upload %s: %w", key, err)
	}
	return nil
}

// archiveTimestamp picks a stable object-key timestamp from the
// eviction batch: the earliest event timestamp, as stored on the
// event, so repeated exports of overlapping batches sort
// predictably by eviction watermark rather than wall-clock upload time.
func archiveTimestamp(evicted []*types.Event) int64 {
	min := evicted[0].Timestamp
	for _, e := range evicted[1:] {
		if e.Timestamp < min {
			min = e.Timestamp
		}
	}
	return min
}
