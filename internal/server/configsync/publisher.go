// Package configsync mirrors data record configs into an S3 compatible
// bucket so that workers can read them without database access.
package configsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/recordapi/internal/server/config"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
)

// ObjectClient is the subset of *s3.Client the publisher needs.
type ObjectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Publisher writes and removes record config objects.
type Publisher interface {
	Publish(ctx context.Context, rec *models.DataRecord) error
	Remove(ctx context.Context, id int64) error
}

// Nop discards everything. It is used when no bucket is configured.
type Nop struct{}

func (Nop) Publish(context.Context, *models.DataRecord) error { return nil }
func (Nop) Remove(context.Context, int64) error               { return nil }

// document is the object body stored for each record.
type document struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Config    models.JSONMap `json:"config"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type S3Publisher struct {
	client ObjectClient
	bucket string
	prefix string
}

func NewS3Publisher(client ObjectClient, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix}
}

var loadDefaultConfig = awsconfig.LoadDefaultConfig

// New returns an S3 publisher for cfg, or Nop when cfg.Bucket is empty.
func New(ctx context.Context, cfg config.S3) (Publisher, error) {
	if cfg.Bucket == "" {
		return Nop{}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.User != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.User, cfg.Password, "")))
	}

	awsCfg, err := loadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return NewS3Publisher(client, cfg.Bucket, cfg.Prefix), nil
}

// Key returns the object key holding record id.
func (p *S3Publisher) Key(id int64) string {
	return path.Join(p.prefix, strconv.FormatInt(id, 10)+".json")
}

func (p *S3Publisher) Publish(ctx context.Context, rec *models.DataRecord) error {
	cfg := rec.Config
	if cfg == nil {
		cfg = models.JSONMap{}
	}
	body, err := json.Marshal(document{
		ID:        rec.ID,
		Name:      rec.Name,
		Status:    rec.Status,
		Config:    cfg,
		UpdatedAt: rec.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode record %d: %w", rec.ID, err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.Key(rec.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", p.Key(rec.ID), err)
	}
	return nil
}

func (p *S3Publisher) Remove(ctx context.Context, id int64) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.Key(id)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", p.Key(id), err)
	}
	return nil
}
