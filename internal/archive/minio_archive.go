package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

// MinioArchive mirrors verbatim provider payloads to object storage, keyed
// <location>/<observed_at>.json, so the history can be reprocessed against
// future schema changes without re-fetching.
type MinioArchive struct {
	client *minio.Client
	bucket string
	logger logger.Logger
}

func NewMinioArchive(endpoint, accessKey, secretKey, bucket string, useSSL bool, log logger.Logger) (*MinioArchive, error) {
	archiveLog := log.WithField("component", "minio_archive")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		archiveLog.Infof("Created archive bucket: %s", bucket)
	}

	archiveLog.Info("Minio payload archive initialized")
	return &MinioArchive{
		client: client,
		bucket: bucket,
		logger: archiveLog,
	}, nil
}

func (m *MinioArchive) Archive(ctx context.Context, reading entities.Reading) error {
	if len(reading.RawPayload) == 0 {
		return nil
	}

	key := fmt.Sprintf("%s/%s.json", reading.LocationID, reading.ObservedAt.UTC().Format(time.RFC3339))

	_, err := m.client.PutObject(ctx, m.bucket, key,
		bytes.NewReader(reading.RawPayload), int64(len(reading.RawPayload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to archive payload %s: %w", key, err)
	}

	m.logger.Debugf("Archived raw payload: %s", key)
	return nil
}

var _ ports.Archiver = (*MinioArchive)(nil)
