package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/yoockh/clonehub/internal/models"
	"github.com/yoockh/clonehub/internal/storage"
	"github.com/yoockh/clonehub/internal/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errBoom = errors.New("boom")

type fakeClones struct {
	mu        sync.Mutex
	byID      map[string]*models.Clone
	createErr error
	addErr    error
	gets      int
}

func newFakeClones() *fakeClones { return &fakeClones{byID: map[string]*models.Clone{}} }

func (f *fakeClones) Create(_ context.Context, c *models.Clone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	cp.FileUploads = append([]string{}, c.FileUploads...)
	f.byID[c.CloneID] = &cp
	return nil
}

func (f *fakeClones) GetByCloneID(_ context.Context, id string) (*models.Clone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	c, ok := f.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *c
	cp.FileUploads = append([]string{}, c.FileUploads...)
	return &cp, nil
}

func (f *fakeClones) List(_ context.Context, limit int64) ([]models.Clone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Clone{}
	for _, c := range f.byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeClones) mutate(id string, fn func(c *models.Clone)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	fn(c)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeClones) SetImage(_ context.Context, id, image string) error {
	return f.mutate(id, func(c *models.Clone) { c.Image = image })
}

func (f *fakeClones) AddFileUploads(_ context.Context, id string, ids []string) error {
	if f.addErr != nil {
		return f.addErr
	}
	return f.mutate(id, func(c *models.Clone) { c.FileUploads = append(c.FileUploads, ids...) })
}

func (f *fakeClones) SetLinkUpload(_ context.Context, id, linkID string) error {
	return f.mutate(id, func(c *models.Clone) { c.LinkUploadID = linkID })
}

func (f *fakeClones) SetStatus(_ context.Context, id string, s models.CloneStatus) error {
	return f.mutate(id, func(c *models.Clone) { c.Status = s })
}

func (f *fakeClones) get(id string) models.Clone {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

type fakeFiles struct {
	mu        sync.Mutex
	rows      []models.FileUpload
	insertErr error
}

func (f *fakeFiles) Insert(_ context.Context, doc *models.FileUpload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	doc.ID = primitive.NewObjectID()
	f.rows = append(f.rows, *doc)
	return nil
}

func (f *fakeFiles) GetByID(_ context.Context, id string) (*models.FileUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID.Hex() == id {
			r := f.rows[i]
			return &r, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeFiles) GetByIDs(_ context.Context, ids []string) ([]models.FileUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []models.FileUpload{}
	for _, r := range f.rows {
		if want[r.ID.Hex()] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFiles) byClone(cloneID string) []models.FileUpload {
	out := []models.FileUpload{}
	for _, r := range f.rows {
		if r.CloneID == cloneID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return out
}

func (f *fakeFiles) ListByClone(_ context.Context, cloneID string, skip, limit int64) ([]models.FileUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.byClone(cloneID)
	if skip >= int64(len(rows)) {
		return []models.FileUpload{}, nil
	}
	end := skip + limit
	if end > int64(len(rows)) {
		end = int64(len(rows))
	}
	return rows[skip:end], nil
}

func (f *fakeFiles) CountByClone(_ context.Context, cloneID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byClone(cloneID))), nil
}

type fakeLinks struct {
	mu        sync.Mutex
	byClone   map[string]*models.LinkUpload
	createErr error
}

func newFakeLinks() *fakeLinks { return &fakeLinks{byClone: map[string]*models.LinkUpload{}} }

func (f *fakeLinks) Create(_ context.Context, l *models.LinkUpload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	l.ID = primitive.NewObjectID()
	cp := *l
	f.byClone[l.CloneID] = &cp
	return nil
}

func (f *fakeLinks) GetByID(_ context.Context, id string) (*models.LinkUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.byClone {
		if l.ID.Hex() == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeLinks) ReplaceBucket(_ context.Context, cloneID string, b models.LinkBucket, links []string) (*models.LinkUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byClone[cloneID]
	if !ok {
		l = &models.LinkUpload{ID: primitive.NewObjectID(), CloneID: cloneID, YoutubeLinks: []string{}, OtherLinks: []string{}}
		f.byClone[cloneID] = l
	}
	if b == models.BucketYoutube {
		l.YoutubeLinks = links
	} else {
		l.OtherLinks = links
	}
	cp := *l
	return &cp, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	err   error
	links map[string]string
}

func (f *fakeUsers) SetCloneID(_ context.Context, userID, cloneID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.links == nil {
		f.links = map[string]string{}
	}
	f.links[userID] = cloneID
	return nil
}

type fakeBlobs struct {
	mu        sync.Mutex
	data      map[string][]byte
	seq       int
	storeErr  func(name string) error
	deleteErr error
	deletes   int
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{data: map[string][]byte{}} }

func (f *fakeBlobs) Store(_ context.Context, name, _ string, r io.Reader) (string, int64, error) {
	if f.storeErr != nil {
		if err := f.storeErr(name); err != nil {
			return "", 0, err
		}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	h := fmt.Sprintf("blob-%d", f.seq)
	f.data[h] = b
	return h, int64(len(b)), nil
}

func (f *fakeBlobs) Open(_ context.Context, handle string, offset, length int64) (*storage.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[handle]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", handle, utils.ErrNotFound)
	}
	if length < 0 {
		length = int64(len(b)) - offset
	}
	return &storage.Blob{
		Body:   io.NopCloser(bytes.NewReader(b[offset : offset+length])),
		Size:   int64(len(b)),
		Offset: offset,
		Length: length,
	}, nil
}

func (f *fakeBlobs) Delete(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.data, handle)
	return nil
}

func (f *fakeBlobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

type mediaFunc func(ctx context.Context, img storage.Image, folder, quality string) (string, error)

func (m mediaFunc) Upload(ctx context.Context, img storage.Image, folder, quality string) (string, error) {
	return m(ctx, img, folder, quality)
}

type fakeOrphans struct {
	mu      sync.Mutex
	handles []string
}

func (f *fakeOrphans) Enqueue(_ context.Context, handle, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles = append(f.handles, handle)
	return nil
}

func upload(name, contentType string, body []byte) Upload {
	return Upload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		},
	}
}

func pdf(name string) Upload {
	return upload(name, models.MimePDF, []byte("%PDF-1.4 "+name))
}

func stringsReader(s string) io.Reader { return bytes.NewReader([]byte(s)) }

// pausingLinks holds the first GetByID after it has read the collection
// until release is closed.
type pausingLinks struct {
	*fakeLinks
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingLinks) GetByID(ctx context.Context, id string) (*models.LinkUpload, error) {
	lu, err := p.fakeLinks.GetByID(ctx, id)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return lu, err
}
