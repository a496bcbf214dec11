package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/yoockh/clonehub/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps documents as chunked files in a MongoDB GridFS bucket.
// Handles are the hex object id of the GridFS file.
type GridFSStore struct {
	db     *mongo.Database
	bucket string
}

func NewGridFSStore(db *mongo.Database, bucket string) *GridFSStore {
	if bucket == "" {
		bucket = "pdfs"
	}
	return &GridFSStore{db: db, bucket: bucket}
}

// open builds a bucket per call: deadlines are bucket state, not call state.
func (s *GridFSStore) open(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.bucket))
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := b.SetWriteDeadline(dl); err != nil {
			return nil, err
		}
		if err := b.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (s *GridFSStore) Store(ctx context.Context, name, contentType string, r io.Reader) (string, int64, error) {
	b, err := s.open(ctx)
	if err != nil {
		return "", 0, err
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{
		"original_name": name,
		"mime_type":     contentType,
		"upload_date":   time.Now().UTC(),
	})
	us, err := b.OpenUploadStream(blobName(name), opts)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(us, ctxReader{ctx: ctx, r: r})
	if err != nil {
		// drop any chunks already written
		_ = us.Abort()
		return "", 0, err
	}
	if err := us.Close(); err != nil {
		return "", 0, err
	}

	oid, ok := us.FileID.(primitive.ObjectID)
	if !ok {
		return "", 0, fmt.Errorf("gridfs: unexpected file id type %T", us.FileID)
	}
	return oid.Hex(), n, nil
}

func (s *GridFSStore) Open(ctx context.Context, handle string, offset, length int64) (*Blob, error) {
	oid, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return nil, fmt.Errorf("gridfs handle %q: %w", handle, utils.ErrNotFound)
	}
	b, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	ds, err := b.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("gridfs handle %q: %w", handle, utils.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	size := ds.GetFile().Length
	if offset < 0 || offset > size {
		_ = ds.Close()
		return nil, fmt.Errorf("gridfs: offset %d outside object of %d bytes", offset, size)
	}
	if offset > 0 {
		if _, err := ds.Skip(offset); err != nil {
			_ = ds.Close()
			return nil, err
		}
	}
	if length < 0 || offset+length > size {
		length = size - offset
	}

	return &Blob{
		Body:   readCloser{Reader: io.LimitReader(ds, length), Closer: ds},
		Size:   size,
		Offset: offset,
		Length: length,
	}, nil
}

func (s *GridFSStore) Delete(ctx context.Context, handle string) error {
	oid, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return nil
	}
	b, err := s.open(ctx)
	if err != nil {
		return err
	}
	if err := b.Delete(oid); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return err
	}
	return nil
}

func blobName(original string) string {
	return fmt.Sprintf("%d-%s", time.Now().UTC().UnixMilli(), original)
}
