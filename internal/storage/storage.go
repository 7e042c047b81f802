// Package storage archives uploaded study material to an S3-compatible
// bucket (Cloudflare R2). Archival is best effort: quiz generation never
// fails because the archive write did.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"quizai/internal/logger"
	"quizai/internal/sanitize"
)

type Client struct {
	s3Client *s3.Client
	bucket   string
	log      *logger.Logger
}

// NewClient builds an R2 client from environment variables. It returns
// (nil, nil) when the variables are not fully set so the caller can run with
// archival disabled.
func NewClient(log *logger.Logger) (*Client, error) {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	bucket := os.Getenv("R2_BUCKET_NAME")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	secretAccessKey := os.Getenv("R2_SECRET_ACCESS_KEY")

	if accountID == "" || bucket == "" || accessKeyID == "" || secretAccessKey == "" {
		log.Warn("object storage not configured, upload archival disabled")
		return nil, nil
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	log.Info("object storage initialized", "bucket", bucket)
	return &Client{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucket,
		log:      log,
	}, nil
}

// ArchiveUpload stores one uploaded file under
// material/<userID>/<uploadID>/<filename>. Safe to call on a nil client.
func (c *Client) ArchiveUpload(ctx context.Context, userID, uploadID uuid.UUID, filename string, content io.Reader) error {
	if c == nil || c.s3Client == nil {
		return nil
	}

	safeName := sanitize.SanitizeFileName(filename)
	key := fmt.Sprintf("material/%s/%s/%s", userID, uploadID, safeName)

	contentType := mime.TypeByExtension(filepath.Ext(safeName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("archive upload %q: %w", key, err)
	}

	c.log.Debug("upload archived", "key", key)
	return nil
}
