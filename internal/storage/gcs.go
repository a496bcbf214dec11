package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/yoockh/clonehub/internal/utils"
	"google.golang.org/api/option"
)

func NewGCSClient(ctx context.Context, credentialsFile string) (*gcs.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return gcs.NewClient(ctx, opts...)
}

// GCSStore keeps documents as private objects. Handles are object names.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

func NewGCSStore(client *gcs.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *GCSStore) Store(ctx context.Context, name, contentType string, r io.Reader) (string, int64, error) {
	objectName := path.Join(s.prefix, uuid.NewString(), blobName(name))

	// cancelling wctx before Close aborts the resumable upload
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := s.client.Bucket(s.bucket).Object(objectName)
	w := obj.If(gcs.Conditions{DoesNotExist: true}).NewWriter(wctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"original_name": name,
		"upload_date":   time.Now().UTC().Format(time.RFC3339),
	}

	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return "", 0, err
	}
	if err := w.Close(); err != nil {
		return "", 0, err
	}
	return objectName, n, nil
}

func (s *GCSStore) Open(ctx context.Context, handle string, offset, length int64) (*Blob, error) {
	rd, err := s.client.Bucket(s.bucket).Object(handle).NewRangeReader(ctx, offset, length)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("gcs object %q: %w", handle, utils.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &Blob{
		Body:   rd,
		Size:   rd.Attrs.Size,
		Offset: rd.Attrs.StartOffset,
		Length: rd.Remain(),
	}, nil
}

func (s *GCSStore) Delete(ctx context.Context, handle string) error {
	err := s.client.Bucket(s.bucket).Object(handle).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

// GCSMediaHost publishes images as world-readable objects and returns their
// public URL.
type GCSMediaHost struct {
	client *gcs.Client
	bucket string
}

func NewGCSMediaHost(client *gcs.Client, bucket string) *GCSMediaHost {
	return &GCSMediaHost{client: client, bucket: bucket}
}

func (h *GCSMediaHost) Upload(ctx context.Context, img Image, folder, quality string) (string, error) {
	ct := img.ContentType
	if ct == "" {
		ct = http.DetectContentType(img.Data)
	}
	objectName := path.Join(folder, uuid.NewString()+path.Ext(img.Filename))
	obj := h.client.Bucket(h.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = ct
	if quality != "" {
		w.Metadata = map[string]string{"quality": quality}
	}

	if _, err := w.Write(img.Data); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	// make public (frontend renders it directly)
	if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
		return "", err
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", h.bucket, objectName), nil
}
