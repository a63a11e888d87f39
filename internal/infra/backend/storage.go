package backend

import (
	"context"
	"io"
	"net/http"

	"github.com/reclaimai/reclaim/internal/domain/evidence"
)

// Storage is one bucket of the hosted object store.
type Storage struct {
	c      *Client
	bucket string
}

func NewStorage(c *Client, bucket string) *Storage {
	return &Storage{c: c, bucket: bucket}
}

var _ evidence.FileStore = (*Storage)(nil)

func (s *Storage) Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := http.Header{}
	header.Set("x-upsert", "false")
	header.Set("cache-control", "3600")
	_, err := s.c.send(ctx, request{
		op:          "upload file",
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + s.bucket + "/" + escapePath(path),
		body:        body,
		contentType: contentType,
		header:      header,
	})
	return err
}

func (s *Storage) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.c.sendJSON(ctx, request{
		op:     "remove file",
		method: http.MethodDelete,
		path:   "/storage/v1/object/" + s.bucket,
	}, map[string][]string{"prefixes": paths}, nil)
}
