package config

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinIOClient connects to the object store holding the notification
// template catalog. The bucket must already exist; this service only reads.
func NewMinIOClient(cfg *Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), cfg.TemplatesBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("template bucket %q does not exist", cfg.TemplatesBucket)
	}

	return client, nil
}
