package services

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/clonehub/internal/cache"
	"github.com/yoockh/clonehub/internal/links"
	"github.com/yoockh/clonehub/internal/models"
	"github.com/yoockh/clonehub/internal/storage"
	"github.com/yoockh/clonehub/internal/utils"
)

type harness struct {
	clones  *fakeClones
	files   *fakeFiles
	links   *fakeLinks
	users   *fakeUsers
	blobs   *fakeBlobs
	orphans *fakeOrphans
	hook    *test.Hook
	svc     CloneService
}

func newHarness(t *testing.T, media storage.MediaHost, opts ...func(*CloneServiceDeps)) *harness {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		clones:  newFakeClones(),
		files:   &fakeFiles{},
		links:   newFakeLinks(),
		users:   &fakeUsers{},
		blobs:   newFakeBlobs(),
		orphans: &fakeOrphans{},
		hook:    hook,
	}
	deps := CloneServiceDeps{
		Clones:  h.clones,
		Files:   h.files,
		Links:   h.links,
		Users:   h.users,
		Blobs:   h.blobs,
		Media:   media,
		Orphans: h.orphans,
		Logger:  logger,
		Config: IngestConfig{
			BackendURL:        "https://api.example.com",
			ImageTimeout:      200 * time.Millisecond,
			ImageMaxBytes:     5 << 20,
			UploadConcurrency: 3,
		},
	}
	for _, o := range opts {
		o(&deps)
	}
	h.svc = NewCloneService(deps)
	return h
}

func okMedia(url string) storage.MediaHost {
	return mediaFunc(func(context.Context, storage.Image, string, string) (string, error) { return url, nil })
}

func baseInput() CreateCloneInput {
	return CreateCloneInput{
		Name:   "Ada",
		Tone:   []string{"warm"},
		Style:  []string{"concise"},
		Values: []string{"honesty", "honesty", "curiosity"},
	}
}

func entryFor(hook *test.Hook, asset string) *logrus.Entry {
	for _, e := range hook.AllEntries() {
		if e.Data["asset"] == asset {
			return e
		}
	}
	return nil
}

func TestCreate_AllAssetsAttached(t *testing.T) {
	h := newHarness(t, okMedia("https://img.example.com/ada.png"))

	in := baseInput()
	in.UserID = "64b000000000000000000001"
	img := upload("ada.png", "image/png", []byte("png-bytes"))
	in.Image = &img
	in.Documents = []Upload{pdf("a.pdf"), upload("notes.png", "image/png", []byte("x")), pdf("b.pdf")}
	in.Links = []links.RawLink{
		links.Raw("https://youtube.com/watch?v=abc"),
		links.Wrapped("https://example.com/page"),
		links.Raw("https://YOUTU.BE/xyz"),
	}

	res, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Regexp(t, `^clone_u_[0-9a-f]{12}$`, res.CloneID)
	assert.Equal(t, models.StatusDraft, res.Status)
	assert.Equal(t, []string{"honesty", "curiosity"}, res.Values)
	assert.Equal(t, "https://img.example.com/ada.png", res.Image)
	require.Len(t, res.FileUploads, 2)
	assert.Equal(t, "https://api.example.com/file/"+res.FileUploads[0].FileID, res.FileUploads[0].Link)
	assert.Equal(t, []string{"https://youtube.com/watch?v=abc", "https://YOUTU.BE/xyz"}, res.YoutubeLinks)
	assert.Equal(t, []string{"https://example.com/page"}, res.OtherLinks)

	require.Len(t, res.Assets.Documents, 3)
	assert.Equal(t, "attached", res.Assets.Documents[0].Status)
	assert.Equal(t, "skipped", res.Assets.Documents[1].Status)
	assert.Equal(t, "attached", res.Assets.Documents[2].Status)
	assert.Equal(t, "attached", res.Assets.Image.Status)
	assert.Equal(t, "attached", res.Assets.Links.Status)
	assert.Equal(t, "attached", res.Assets.UserLink.Status)

	stored := h.clones.get(res.CloneID)
	assert.Equal(t, "https://img.example.com/ada.png", stored.Image)
	assert.Len(t, stored.FileUploads, 2)
	assert.Equal(t, res.LinkUploadID, stored.LinkUploadID)
	assert.Equal(t, res.CloneID, h.users.links[in.UserID])
	assert.Equal(t, 2, h.blobs.count())
}

func TestCreate_MinimalInput(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.svc.Create(context.Background(), baseInput())
	require.NoError(t, err)

	assert.Equal(t, models.DefaultImage, res.Image)
	assert.Empty(t, res.FileUploads)
	assert.NotNil(t, res.FileUploads)
	assert.Empty(t, res.LinkUploadID)
	assert.Nil(t, res.Assets.Image)
	assert.Nil(t, res.Assets.Links)
	assert.Nil(t, res.Assets.UserLink)
	assert.Empty(t, h.hook.AllEntries()[1:], "only the creation line is logged")
}

func TestCreate_ImageTimeoutKeepsDefault(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	hanging := mediaFunc(func(context.Context, storage.Image, string, string) (string, error) {
		<-release
		return "https://late.example.com/x.png", nil
	})
	h := newHarness(t, hanging, func(d *CloneServiceDeps) { d.Config.ImageTimeout = 50 * time.Millisecond })

	in := baseInput()
	img := upload("ada.png", "image/png", []byte("png"))
	in.Image = &img
	in.Documents = []Upload{pdf("a.pdf")}

	start := time.Now()
	res, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, models.DefaultImage, res.Image)
	assert.Equal(t, "failed", res.Assets.Image.Status)
	assert.Len(t, res.FileUploads, 1)
	assert.Equal(t, models.DefaultImage, h.clones.get(res.CloneID).Image)

	e := entryFor(h.hook, "image")
	require.NotNil(t, e)
	assert.Equal(t, res.CloneID, e.Data["clone_id"])
	assert.Equal(t, utils.CodeTimeout, utils.CodeOf(e.Data[logrus.ErrorKey].(error)))
}

func TestCreate_MediaErrorKeepsDefault(t *testing.T) {
	failing := mediaFunc(func(context.Context, storage.Image, string, string) (string, error) { return "", errBoom })
	h := newHarness(t, failing)

	in := baseInput()
	img := upload("ada.png", "image/png", []byte("png"))
	in.Image = &img

	res, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultImage, res.Image)
	assert.Equal(t, "failed", res.Assets.Image.Status)
}

func TestCreate_PrimaryWriteFailureAborts(t *testing.T) {
	h := newHarness(t, okMedia("https://img.example.com/a.png"))
	h.clones.createErr = errBoom

	in := baseInput()
	in.UserID = "64b000000000000000000001"
	in.Documents = []Upload{pdf("a.pdf")}
	in.Links = []links.RawLink{links.Raw("https://example.com")}

	_, err := h.svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, utils.CodeStorage, utils.CodeOf(err))

	assert.Equal(t, 0, h.blobs.count())
	assert.Empty(t, h.users.links)
	assert.Empty(t, h.links.byClone)
}

func TestCreate_UserLinkFailureIsTolerated(t *testing.T) {
	h := newHarness(t, nil)
	h.users.err = utils.ErrNotFound

	in := baseInput()
	in.UserID = "not-a-user"

	res, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "failed", res.Assets.UserLink.Status)

	e := entryFor(h.hook, "user_link")
	require.NotNil(t, e)
	assert.Equal(t, logrus.WarnLevel, e.Level)
	assert.Equal(t, res.CloneID, e.Data["clone_id"])
}

func TestCreate_PartialDocumentFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.blobs.storeErr = func(name string) error {
		if name == "bad.pdf" {
			return errBoom
		}
		return nil
	}

	in := baseInput()
	in.Documents = []Upload{pdf("one.pdf"), pdf("bad.pdf"), pdf("two.pdf")}

	res, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.FileUploads, 2)
	names := []string{res.FileUploads[0].OriginalName, res.FileUploads[1].OriginalName}
	assert.ElementsMatch(t, []string{"one.pdf", "two.pdf"}, names)
	assert.Equal(t, "failed", res.Assets.Documents[1].Status)
	assert.Len(t, h.clones.get(res.CloneID).FileUploads, 2)
	assert.NotNil(t, entryFor(h.hook, "document"))
}

func TestCreate_MetadataFailureDeletesBlob(t *testing.T) {
	h := newHarness(t, nil)
	h.files.insertErr = errBoom

	in := baseInput()
	in.Documents = []Upload{pdf("a.pdf")}

	res, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.FileUploads)
	assert.Equal(t, 0, h.blobs.count())
	assert.Empty(t, h.orphans.handles)
}

func TestCreate_UndeletableBlobIsQueued(t *testing.T) {
	h := newHarness(t, nil)
	h.files.insertErr = errBoom
	h.blobs.deleteErr = errBoom

	in := baseInput()
	in.Documents = []Upload{pdf("a.pdf")}

	_, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"blob-1"}, h.orphans.handles)
}

func TestCreate_ReferenceUpdateFailureReportsDocuments(t *testing.T) {
	h := newHarness(t, nil)
	h.clones.addErr = errBoom

	in := baseInput()
	in.Documents = []Upload{pdf("a.pdf")}

	res, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.FileUploads)
	assert.Equal(t, "failed", res.Assets.Documents[0].Status)

	var logged bool
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "failed to append document references" {
			logged = true
			assert.ErrorIs(t, e.Data[logrus.ErrorKey].(error), errBoom)
		}
	}
	assert.True(t, logged)
}

func TestCreate_Validation(t *testing.T) {
	cases := map[string]func(in *CreateCloneInput){
		"missing name":   func(in *CreateCloneInput) { in.Name = "  " },
		"missing tone":   func(in *CreateCloneInput) { in.Tone = nil },
		"blank style":    func(in *CreateCloneInput) { in.Style = []string{" "} },
		"missing values": func(in *CreateCloneInput) { in.Values = []string{} },
		"oversize image": func(in *CreateCloneInput) {
			img := upload("big.png", "image/png", nil)
			img.Size = 6 << 20
			in.Image = &img
		},
		"invalid link": func(in *CreateCloneInput) { in.Links = []links.RawLink{links.Raw("not a url")} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, okMedia("https://img.example.com/a.png"))
			in := baseInput()
			mutate(&in)

			_, err := h.svc.Create(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))
			assert.Empty(t, h.clones.byID, "nothing persisted")
		})
	}
}

func TestCreate_ConcurrentStagesDoNotLoseWrites(t *testing.T) {
	h := newHarness(t, okMedia("https://img.example.com/a.png"))

	in := baseInput()
	in.UserID = "64b000000000000000000001"
	img := upload("ada.png", "image/png", []byte("png"))
	in.Image = &img
	for i := 0; i < 20; i++ {
		in.Documents = append(in.Documents, pdf(fmt.Sprintf("doc-%02d.pdf", i)))
	}
	in.Links = []links.RawLink{links.Raw("https://youtu.be/a"), links.Raw("https://example.com/b")}

	res, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)

	stored := h.clones.get(res.CloneID)
	assert.Equal(t, "https://img.example.com/a.png", stored.Image)
	assert.Len(t, stored.FileUploads, 20)
	assert.NotEmpty(t, stored.LinkUploadID)
	assert.Equal(t, res.CloneID, h.users.links[in.UserID])
}

func TestCreate_DisconnectedClientStillFinishes(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	in := baseInput()
	in.Documents = []Upload{pdf("a.pdf")}
	in.Documents[0].Open = func() (io.ReadCloser, error) {
		cancel()
		return pdf("a.pdf").Open()
	}

	res, err := h.svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Len(t, res.FileUploads, 1)
}

func TestGet_ResolvesAndCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	h := newHarness(t, nil, func(d *CloneServiceDeps) { d.Cache = rc })

	in := baseInput()
	in.Documents = []Upload{pdf("a.pdf")}
	in.Links = []links.RawLink{links.Raw("https://youtube.com/watch?v=1")}
	created, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)

	v, err := h.svc.Get(context.Background(), created.CloneID)
	require.NoError(t, err)
	require.Len(t, v.FileUploads, 1)
	assert.Equal(t, "a.pdf", v.FileUploads[0].OriginalName)
	assert.Equal(t, []string{"https://youtube.com/watch?v=1"}, v.YoutubeLinks)
	assert.Equal(t, []string{}, v.OtherLinks)

	gets := h.clones.gets
	again, err := h.svc.Get(context.Background(), created.CloneID)
	require.NoError(t, err)
	assert.Equal(t, gets, h.clones.gets, "second read served from cache")
	assert.Equal(t, v.CloneID, again.CloneID)

	updated, err := h.svc.SetStatus(context.Background(), created.CloneID, models.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, updated.Status)
}

func TestGet_WriteDuringLoadIsNotServedAfterwards(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	pl := &pausingLinks{read: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, nil, func(d *CloneServiceDeps) {
		d.Cache = rc
		pl.fakeLinks = d.Links.(*fakeLinks)
		d.Links = pl
	})
	ctx := context.Background()

	in := baseInput()
	in.Links = []links.RawLink{links.Raw("https://example.com/old")}
	created, err := h.svc.Create(ctx, in)
	require.NoError(t, err)

	loaded := make(chan *CloneView, 1)
	go func() {
		v, err := h.svc.Get(ctx, created.CloneID)
		assert.NoError(t, err)
		loaded <- v
	}()

	<-pl.read
	_, err = h.svc.ReplaceLinks(ctx, created.CloneID, models.BucketOther,
		[]links.RawLink{links.Raw("https://example.com/new")})
	close(pl.release)
	require.NoError(t, err)

	stale := <-loaded
	require.NotNil(t, stale)
	assert.Equal(t, []string{"https://example.com/old"}, stale.OtherLinks)

	v, err := h.svc.Get(ctx, created.CloneID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/new"}, v.OtherLinks)

	cached, err := h.svc.Get(ctx, created.CloneID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/new"}, cached.OtherLinks)
}

func TestGet_NotFound(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Get(context.Background(), "clone_u_000000000000")
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t, nil)
	created, err := h.svc.Create(context.Background(), baseInput())
	require.NoError(t, err)

	_, err = h.svc.SetStatus(context.Background(), created.CloneID, "archived")
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))

	_, err = h.svc.SetStatus(context.Background(), "clone_u_missing", models.StatusApproved)
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))

	v, err := h.svc.SetStatus(context.Background(), created.CloneID, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, v.Status)
}

func TestList_Limits(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 3; i++ {
		_, err := h.svc.Create(context.Background(), baseInput())
		require.NoError(t, err)
	}

	out, err := h.svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	out, err = h.svc.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = h.svc.List(context.Background(), 101)
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))
}

func TestAppendDocuments(t *testing.T) {
	h := newHarness(t, nil)
	in := baseInput()
	in.Documents = []Upload{pdf("first.pdf")}
	created, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)

	res, err := h.svc.AppendDocuments(context.Background(), created.CloneID,
		[]Upload{pdf("second.pdf"), upload("x.txt", "text/plain", []byte("x"))})
	require.NoError(t, err)
	assert.Len(t, res.FileUploads, 1)
	assert.Equal(t, "skipped", res.Documents[1].Status)
	assert.Len(t, h.clones.get(created.CloneID).FileUploads, 2)

	_, err = h.svc.AppendDocuments(context.Background(), "clone_u_missing", []Upload{pdf("a.pdf")})
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))

	_, err = h.svc.AppendDocuments(context.Background(), created.CloneID, nil)
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))
}

func TestReplaceLinks(t *testing.T) {
	h := newHarness(t, nil)
	created, err := h.svc.Create(context.Background(), baseInput())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = h.svc.ReplaceLinks(ctx, created.CloneID, models.BucketYoutube,
		[]links.RawLink{links.Raw("https://example.com/article")})
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))

	lv, err := h.svc.ReplaceLinks(ctx, created.CloneID, models.BucketYoutube,
		[]links.RawLink{links.Raw("https://youtu.be/1"), links.Raw("https://youtube.com/watch?v=2")})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://youtu.be/1", "https://youtube.com/watch?v=2"}, lv.YoutubeLinks)
	assert.Equal(t, []string{}, lv.OtherLinks)
	assert.Equal(t, lv.ID, h.clones.get(created.CloneID).LinkUploadID)

	lv, err = h.svc.ReplaceLinks(ctx, created.CloneID, models.BucketOther,
		[]links.RawLink{links.Raw("https://example.com/a")})
	require.NoError(t, err)
	assert.Len(t, lv.YoutubeLinks, 2, "other bucket replacement leaves videos alone")
	assert.Equal(t, []string{"https://example.com/a"}, lv.OtherLinks)

	_, err = h.svc.ReplaceLinks(ctx, "clone_u_missing", models.BucketOther, nil)
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
}
