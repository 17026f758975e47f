package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

/*
Storage provider for S3-compatible object storage, using the minio client
library.
*/

////////////////////////////////////////////////////////////////////////////////

const minioCodeNoSuchKey = "NoSuchKey"

// S3Store is a storage provider for one S3 bucket.
type S3Store struct {
	mc     *minio.Client
	bucket string
}

// NewS3Store returns a provider over bucket.
func NewS3Store(mc *minio.Client, bucket string) *S3Store {
	return &S3Store{
		mc:     mc,
		bucket: bucket,
	}
}

func translate(err error) error {
	if minio.ToErrorResponse(err).Code == minioCodeNoSuchKey {
		return ErrObjectNotFound
	}
	return err
}

// Put uploads an object. Unknown lengths are streamed as multipart uploads.
func (s *S3Store) Put(ctx context.Context, id string, r io.Reader) error {
	if _, err := s.mc.PutObject(ctx, s.bucket, id, r, -1, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, id string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, id, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", translate(err))
	}
	// GetObject is lazy; Stat surfaces missing keys before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		err = translate(err)
		if errors.Is(err, ErrObjectNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return obj, nil
}

// Get returns a reader over an object.
func (s *S3Store) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	return s.get(ctx, id, minio.GetObjectOptions{})
}

// GetRange returns a reader over length bytes starting at offset.
func (s *S3Store) GetRange(ctx context.Context, id string, offset int64, length int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, offset+length-1); err != nil {
		return nil, fmt.Errorf("failed to set range: %w", err)
	}
	return s.get(ctx, id, opts)
}

// Size returns the size of an object.
func (s *S3Store) Size(ctx context.Context, id string) (int64, error) {
	info, err := s.mc.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{})
	if err != nil {
		err = translate(err)
		if errors.Is(err, ErrObjectNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to stat object: %w", err)
	}
	return info.Size, nil
}

// Delete removes an object. S3 treats missing keys as already deleted.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *S3Store) String() string {
	return fmt.Sprintf("s3(%s)", s.bucket)
}
