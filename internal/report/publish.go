package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/yourorg/featuregen/internal/config"
)

var ErrNoBucket = errors.New("report bucket is not configured")

// objectPutter is the part of the S3 client the publisher uses.
type objectPutter interface {
	PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads rendered reports under <prefix>/<date>/<runID>/.
type S3Publisher struct {
	Bucket string
	Prefix string
	Logger *slog.Logger

	client objectPutter
}

// NewS3Publisher builds a publisher from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewS3Publisher(cfg config.S3Config, logger *slog.Logger) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Publisher{
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
		Logger: logger,
		client: s3.New(sess),
	}, nil
}

// Key is the object key for an artifact of runID published at now.
func (p *S3Publisher) Key(runID string, now time.Time, filename string) string {
	if runID == "" {
		runID = "adhoc"
	}
	return path.Join(p.Prefix, now.Format("2006-01-02"), runID, filename)
}

// Publish uploads a and returns its s3:// location.
func (p *S3Publisher) Publish(ctx context.Context, runID string, a *Artifact, now time.Time) (string, error) {
	key := p.Key(runID, now, a.Filename)
	_, err := p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(a.Data),
		ContentType: aws.String(a.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", p.Bucket, key, err)
	}
	location := fmt.Sprintf("s3://%s/%s", p.Bucket, key)
	p.logger().Info("report published", "location", location, "bytes", len(a.Data))
	return location, nil
}

func (p *S3Publisher) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
