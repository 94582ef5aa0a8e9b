package minio

import (
	"context"
	"strings"

	"careerloop-engine/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("minio.client", fx.Provide(registerClient, NewObjectChecker))

// ObjectChecker confirms that an uploaded evidence file exists. Uploads happen
// outside the engine; only existence is checked.
type ObjectChecker interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

func registerClient(c *config.Config) *minio.Client {
	if strings.TrimSpace(c.Minio.Endpoint) == "" {
		zap.L().Info("MinIO endpoint not configured, evidence objects will not be checked")
		return nil
	}

	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		zap.L().Fatal("failed to create MinIO client", zap.Error(err))
	}
	exists, errBucketExists := client.BucketExists(context.Background(), c.Minio.BucketName)
	if errBucketExists != nil {
		zap.L().Fatal("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(errBucketExists))
	}
	zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.Bool("bucketExists", exists))
	return client
}

type bucketChecker struct {
	client *minio.Client
	bucket string
}

// NewObjectChecker returns nil when no MinIO client is configured.
func NewObjectChecker(client *minio.Client, c *config.Config) ObjectChecker {
	if client == nil {
		return nil
	}
	return &bucketChecker{client: client, bucket: c.Minio.BucketName}
}

func (b *bucketChecker) Exists(ctx context.Context, ref string) (bool, error) {
	key := strings.TrimPrefix(strings.TrimSpace(ref), b.bucket+"/")
	_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
