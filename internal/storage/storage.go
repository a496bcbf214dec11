package storage

import (
	"context"
	"io"
)

// BlobStore streams documents into a chunked object store. Handles are
// opaque to callers.
type BlobStore interface {
	Store(ctx context.Context, name, contentType string, r io.Reader) (handle string, size int64, err error)
	// Open reads length bytes starting at offset; length < 0 reads to the end.
	// A missing handle yields an error wrapping utils.ErrNotFound.
	Open(ctx context.Context, handle string, offset, length int64) (*Blob, error)
	Delete(ctx context.Context, handle string) error
}

type Blob struct {
	Body   io.ReadCloser
	Size   int64 // whole object
	Offset int64
	Length int64 // bytes available from Body
}

// Image is a small in-memory payload destined for the media host.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

type MediaHost interface {
	Upload(ctx context.Context, img Image, folder, quality string) (url string, err error)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

type readCloser struct {
	io.Reader
	io.Closer
}
