package storage

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"jobledger/logger"
)

// ErrNotFound is returned by GetOutput when no object exists under the key.
var ErrNotFound = errors.New("object not found")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// Client archives captured job output in an S3-compatible bucket.
type Client struct {
	mc     *minio.Client
	config Config
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "s3 client")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "jobledger-outputs"
	}
	return &Client{mc: mc, config: cfg}, nil
}

// EnsureBucket creates the output bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	name := c.config.Bucket
	exists, err := c.mc.BucketExists(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", name)
	}
	if exists {
		return nil
	}
	region := c.config.Region
	if region == "" {
		region = "us-east-1"
	}
	if err := c.mc.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: region}); err != nil {
		return errors.Wrapf(err, "create bucket %s", name)
	}
	logger.Logger.Infow("s3: created bucket", "bucket", name)
	return nil
}

// OutputKey is the object key for the output of one execution.
func OutputKey(job, execID string) string {
	return path.Join(job, execID+".log")
}

// PutOutput uploads output and returns its key.
func (c *Client) PutOutput(ctx context.Context, job, execID string, data []byte) (string, error) {
	key := OutputKey(job, execID)
	_, err := c.mc.PutObject(ctx, c.config.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", errors.Wrapf(err, "put %s", key)
	}
	return key, nil
}

func (c *Client) GetOutput(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "read %s", key)
	}
	return data, nil
}

func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.mc.BucketExists(ctx, c.config.Bucket)
	return err
}

func (c *Client) Bucket() string {
	return c.config.Bucket
}
