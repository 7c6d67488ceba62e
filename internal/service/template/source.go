package template

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
)

type FileSource struct {
	Path string
}

func (s FileSource) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return data, nil
}

// ObjectGetter is the part of *minio.Client the catalog needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

type MinIOSource struct {
	client ObjectGetter
	bucket string
	object string
}

func NewMinIOSource(client ObjectGetter, bucket, object string) *MinIOSource {
	return &MinIOSource{client: client, bucket: bucket, object: object}
}

func (s *MinIOSource) Load(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", s.bucket, s.object, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", s.bucket, s.object, err)
	}
	return data, nil
}

// StaticSource serves an in-memory document.
type StaticSource []byte

func (s StaticSource) Load(context.Context) ([]byte, error) {
	return s, nil
}
