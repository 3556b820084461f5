package mirror

import (
	"bytes"
	"context"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioDriveClient stores rendered checklist PDFs in an S3-compatible
// bucket and hands back a presigned link for the mirror row.
type MinioDriveClient struct {
	client *minio.Client
	bucket string
	linkTTL time.Duration
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewMinioDriveClient(cfg MinioConfig) (*MinioDriveClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioDriveClient{
		client:  client,
		bucket:  cfg.Bucket,
		linkTTL: 7 * 24 * time.Hour,
	}, nil
}

// EnsureBucket creates the bucket on first boot if it does not exist.
func (c *MinioDriveClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
}

func (c *MinioDriveClient) Upload(ctx context.Context, name string, data []byte) (string, string, error) {
	_, err := c.client.PutObject(ctx, c.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return "", "", &StepError{Step: StepPDFUpload, Message: err.Error(), Retryable: true}
	}

	link, err := c.client.PresignedGetObject(ctx, c.bucket, name, c.linkTTL, url.Values{})
	if err != nil {
		return "", "", &StepError{Step: StepPDFUpload, Message: err.Error(), Retryable: true}
	}

	return name, link.String(), nil
}
