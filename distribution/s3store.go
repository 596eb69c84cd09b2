package distribution

import (
	"context"
	"fmt"
	"log"
	"path"

	"shortsbot/common"
)

// S3Storage backs videos up to an S3 bucket under <prefix>/<run>/<lang>/<file>
type S3Storage struct {
	store  common.ObjectStore
	bucket string
	prefix string
}

// NewS3Storage wraps an object store
func NewS3Storage(store common.ObjectStore, bucket, prefix string) *S3Storage {
	return &S3Storage{store: store, bucket: bucket, prefix: prefix}
}

// Save uploads path unless the key is already present
func (s *S3Storage) Save(ctx context.Context, localPath string) (string, error) {
	key := s.key(localPath)
	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)

	exists, err := s.store.Exists(ctx, s.bucket, key)
	if err != nil {
		return "", fmt.Errorf("s3 head %s: %w", location, err)
	}
	if exists {
		log.Printf("💾 %s already backed up", location)
		return location, nil
	}
	if err := common.PutFile(ctx, s.store, s.bucket, key, localPath, "video/mp4"); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", location, err)
	}
	return location, nil
}

func (s *S3Storage) key(localPath string) string {
	parts := tailParts(localPath, 3)
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return path.Join(parts...)
}
