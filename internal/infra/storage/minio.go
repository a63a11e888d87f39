package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

// Store is one MinIO bucket. It serves as the evidence FileStore in direct
// mode, the functions' object reader, and the report artifact store.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

var (
	_ evidence.FileStore     = (*Store)(nil)
	_ evidence.ObjectReader  = (*Store)(nil)
	_ evidence.ArtifactStore = (*Store)(nil)
)

// Options for a MinIO connection.
type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func newClient(o Options) (*minio.Client, error) {
	return minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure: o.UseSSL,
		Region: o.Region,
	})
}

// New connects to MinIO and makes sure bucket exists.
func New(ctx context.Context, o Options, bucket string) (*Store, error) {
	cli, err := newClient(o)
	if err != nil {
		return nil, err
	}
	s := &Store{client: cli, bucketName: bucket, region: o.Region}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Bucket returns a Store for another bucket on the same connection, creating
// the bucket when missing.
func (s *Store) Bucket(ctx context.Context, bucket string) (*Store, error) {
	other := &Store{client: s.client, bucketName: bucket, region: s.region}
	if err := other.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return other, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucketName, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucketName, err)
		}
	}
	return nil
}

func (s *Store) Name() string { return s.bucketName }

// Upload stores body under path.
func (s *Store) Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, path, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return s.mapErr("upload", err)
	}
	return nil
}

// Put is Upload under the artifact-store name.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return s.Upload(ctx, key, body, size, contentType)
}

// Remove deletes every path. Missing objects are not an error.
func (s *Store) Remove(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := s.client.RemoveObject(ctx, s.bucketName, p, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, s.mapErr("remove "+p, err))
		}
	}
	return errors.Join(errs...)
}

// Open returns the object body. The caller closes it.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr("open", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, s.mapErr("open", err)
	}
	return obj, nil
}

// URL returns a presigned download link valid for expiry.
func (s *Store) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, expiry, nil)
	if err != nil {
		return "", s.mapErr("presign", err)
	}
	return u.String(), nil
}

// Check implements middleware.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucketName)
	}
	return nil
}

func (s *Store) mapErr(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return failure.Wrap(failure.ErrNotFound, "storage "+op, err)
	case resp.StatusCode != 0:
		return failure.Backend("storage "+op, resp.StatusCode, resp.Message)
	default:
		return fmt.Errorf("storage %s: %w", op, err)
	}
}
