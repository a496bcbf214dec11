package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/clonehub/internal/cache"
	"github.com/yoockh/clonehub/internal/links"
	"github.com/yoockh/clonehub/internal/metrics"
	"github.com/yoockh/clonehub/internal/models"
	mongorepo "github.com/yoockh/clonehub/internal/repositories/mongo"
	"github.com/yoockh/clonehub/internal/storage"
	"github.com/yoockh/clonehub/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100

	// bounds the user back-pointer and link writes of the asset stage
	writeTimeout = 30 * time.Second
)

type CloneService interface {
	Create(ctx context.Context, in CreateCloneInput) (*CreateResult, error)
	Get(ctx context.Context, cloneID string) (*CloneView, error)
	List(ctx context.Context, limit int) ([]models.Clone, error)
	AppendDocuments(ctx context.Context, cloneID string, uploads []Upload) (*AppendResult, error)
	ReplaceLinks(ctx context.Context, cloneID string, bucket models.LinkBucket, raw []links.RawLink) (*LinkView, error)
	SetStatus(ctx context.Context, cloneID string, status models.CloneStatus) (*CloneView, error)
}

// PageCounter reports the page count of a PDF. Implementations must leave
// rs positioned at its start.
type PageCounter interface {
	PageCount(rs io.ReadSeeker, size int64) (int, error)
}

type OrphanQueue interface {
	Enqueue(ctx context.Context, handle, reason string) error
}

type IngestConfig struct {
	BackendURL        string
	MediaFolder       string
	MediaQuality      string
	ImageTimeout      time.Duration
	ImageMaxBytes     int64
	DocumentMaxBytes  int64
	DocumentTimeout   time.Duration
	UploadConcurrency int
	CacheTTL          time.Duration
}

type CloneServiceDeps struct {
	Clones mongorepo.CloneRepository
	Files  mongorepo.FileRepository
	Links  mongorepo.LinkRepository
	Users  mongorepo.UserRepository

	Blobs storage.BlobStore
	// Media may be nil; image uploads then fail and the default stays.
	Media   storage.MediaHost
	Pages   PageCounter
	Orphans OrphanQueue
	Cache   cache.Cache

	Logger logrus.FieldLogger
	Config IngestConfig
}

type cloneService struct {
	clones  mongorepo.CloneRepository
	files   mongorepo.FileRepository
	links   mongorepo.LinkRepository
	users   mongorepo.UserRepository
	blobs   storage.BlobStore
	media   storage.MediaHost
	pages   PageCounter
	orphans OrphanQueue
	cache   cache.Cache
	log     logrus.FieldLogger
	cfg     IngestConfig
}

func NewCloneService(d CloneServiceDeps) CloneService {
	cfg := d.Config
	if cfg.MediaFolder == "" {
		cfg.MediaFolder = "clone-images"
	}
	if cfg.MediaQuality == "" {
		cfg.MediaQuality = "auto"
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = 15 * time.Second
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = 10 * time.Minute
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 4
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	c := d.Cache
	if c == nil {
		c = cache.Nop{}
	}
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &cloneService{
		clones:  d.Clones,
		files:   d.Files,
		links:   d.Links,
		users:   d.Users,
		blobs:   d.Blobs,
		media:   d.Media,
		pages:   d.Pages,
		orphans: d.Orphans,
		cache:   c,
		log:     log,
		cfg:     cfg,
	}
}

// Cached views are keyed by the clone's write version, so a view loaded
// before a write can never be served after it.
func viewKey(cloneID string, ver int64) string {
	return "clone:view:" + cloneID + ":" + strconv.FormatInt(ver, 10)
}

func versionKey(cloneID string) string { return "clone:ver:" + cloneID }

// Create validates the input, persists the clone and then attaches the
// optional assets concurrently. Only validation and the clone write can fail
// the call; asset failures are logged and reported in the result.
func (s *cloneService) Create(ctx context.Context, in CreateCloneInput) (*CreateResult, error) {
	const op = "CloneService.Create"

	v, err := validateCreate(in, s.cfg.ImageMaxBytes)
	if err != nil {
		metrics.ClonesCreated.WithLabelValues("invalid").Inc()
		return nil, err
	}
	clone := v.clone

	if err := s.clones.Create(ctx, clone); err != nil {
		metrics.ClonesCreated.WithLabelValues("storage_error").Inc()
		return nil, utils.E(utils.CodeStorage, op, "failed to save clone", err)
	}
	metrics.ClonesCreated.WithLabelValues("created").Inc()

	log := s.log.WithField("clone_id", clone.CloneID)
	log.Info("clone created")

	// The clone exists now; asset work finishes even if the client goes away.
	bg := context.WithoutCancel(ctx)

	var (
		report  AssetReport
		imgURL  string
		docs    []FileView
		linkOut *LinkView
	)

	var g errgroup.Group
	if clone.CreatedBy != "" {
		g.Go(func() error {
			report.UserLink = s.linkUser(bg, log, clone.CreatedBy, clone.CloneID)
			return nil
		})
	}
	if in.Image != nil {
		g.Go(func() error {
			imgURL, report.Image = s.attachImage(bg, log, clone.CloneID, in.Image)
			return nil
		})
	}
	if len(in.Documents) > 0 {
		g.Go(func() error {
			var err error
			docs, report.Documents, err = s.attachDocuments(bg, log, clone.CloneID, in.Documents)
			if err != nil {
				log.WithError(err).Error("failed to append document references")
			}
			return nil
		})
	}
	if len(in.Links) > 0 {
		g.Go(func() error {
			linkOut, report.Links = s.attachLinks(bg, log, clone.CloneID, v.videoLinks, v.otherLinks)
			return nil
		})
	}
	_ = g.Wait()

	s.invalidate(bg, clone.CloneID)

	view := toCloneView(clone)
	if imgURL != "" {
		view.Image = imgURL
	}
	if docs != nil {
		view.FileUploads = docs
	}
	if linkOut != nil {
		view.LinkUploadID = linkOut.ID
		view.YoutubeLinks = linkOut.YoutubeLinks
		view.OtherLinks = linkOut.OtherLinks
	}
	return &CreateResult{CloneView: *view, Assets: report}, nil
}

func (s *cloneService) linkUser(ctx context.Context, log logrus.FieldLogger, userID, cloneID string) *AssetStatus {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := s.users.SetCloneID(ctx, userID, cloneID); err != nil {
		log.WithError(err).WithFields(logrus.Fields{"asset": "user_link", "user_id": userID}).
			Warn("failed to link clone to user")
		metrics.Asset("user_link", metrics.ResultFailed)
		return &AssetStatus{Status: metrics.ResultFailed, Error: "user could not be linked"}
	}
	metrics.Asset("user_link", metrics.ResultAttached)
	return &AssetStatus{Status: metrics.ResultAttached}
}

func (s *cloneService) attachImage(ctx context.Context, log logrus.FieldLogger, cloneID string, up *Upload) (string, *AssetStatus) {
	log = log.WithField("asset", "image")
	fail := func(err error, msg string) (string, *AssetStatus) {
		log.WithError(err).Warn(msg)
		metrics.Asset("image", metrics.ResultFailed)
		return "", &AssetStatus{Status: metrics.ResultFailed, Error: msg}
	}

	data, err := readUpload(up, s.cfg.ImageMaxBytes)
	if err != nil {
		return fail(err, "failed to read clone image")
	}

	start := time.Now()
	url, err := storage.UploadWithDeadline(ctx, s.media, storage.Image{
		Data:        data,
		Filename:    up.Filename,
		ContentType: up.ContentType,
	}, s.cfg.MediaFolder, s.cfg.MediaQuality, s.cfg.ImageTimeout)
	result := "ok"
	if err != nil {
		result = "error"
		if utils.CodeOf(err) == utils.CodeTimeout {
			result = "timeout"
		}
	}
	metrics.MediaUploadDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(err, "image upload failed")
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.clones.SetImage(wctx, cloneID, url); err != nil {
		return fail(err, "failed to save image reference")
	}

	metrics.Asset("image", metrics.ResultAttached)
	return url, &AssetStatus{Status: metrics.ResultAttached}
}

func readUpload(up *Upload, max int64) ([]byte, error) {
	rc, err := up.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if max > 0 {
		r = io.LimitReader(rc, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if max > 0 && int64(len(data)) > max {
		return nil, fmt.Errorf("image exceeds %d bytes", max)
	}
	return data, nil
}

// attachDocuments stores every PDF among uploads and appends the successful
// ones to the clone in a single update. Outcomes line up with uploads.
func (s *cloneService) attachDocuments(ctx context.Context, log logrus.FieldLogger, cloneID string, uploads []Upload) ([]FileView, []FileOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DocumentTimeout)
	defer cancel()

	log = log.WithField("asset", "document")
	outcomes := make([]FileOutcome, len(uploads))
	stored := make([]*models.FileUpload, len(uploads))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.UploadConcurrency)
	for i, up := range uploads {
		outcomes[i].OriginalName = up.Filename

		if !isPDF(up.ContentType) {
			outcomes[i].Status = metrics.ResultSkipped
			outcomes[i].Reason = "only PDF documents are accepted"
			metrics.Asset("document", metrics.ResultSkipped)
			continue
		}
		if s.cfg.DocumentMaxBytes > 0 && up.Size > s.cfg.DocumentMaxBytes {
			outcomes[i].Status = metrics.ResultSkipped
			outcomes[i].Reason = "document too large"
			metrics.Asset("document", metrics.ResultSkipped)
			continue
		}

		g.Go(func() error {
			doc, err := s.storeDocument(ctx, cloneID, up)
			if err != nil {
				log.WithError(err).WithField("file", up.Filename).Warn("document upload failed")
				metrics.Asset("document", metrics.ResultFailed)
				outcomes[i].Status = metrics.ResultFailed
				outcomes[i].Reason = "upload failed"
				return nil
			}
			stored[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]string, 0, len(uploads))
	for _, doc := range stored {
		if doc != nil {
			ids = append(ids, doc.ID.Hex())
		}
	}
	if len(ids) > 0 {
		if err := s.clones.AddFileUploads(ctx, cloneID, ids); err != nil {
			// Records stay listable by clone_id; only the reference list is stale.
			for i, doc := range stored {
				if doc != nil {
					outcomes[i].Status = metrics.ResultFailed
					outcomes[i].Reason = "document reference could not be saved"
					metrics.Asset("document", metrics.ResultFailed)
				}
			}
			return []FileView{}, outcomes, err
		}
	}

	views := make([]FileView, 0, len(ids))
	for i, doc := range stored {
		if doc == nil {
			continue
		}
		views = append(views, toFileView(doc, s.cfg.BackendURL))
		outcomes[i].Status = metrics.ResultAttached
		outcomes[i].FileID = doc.ID.Hex()
		metrics.Asset("document", metrics.ResultAttached)
	}
	return views, outcomes, nil
}

func (s *cloneService) storeDocument(ctx context.Context, cloneID string, up Upload) (*models.FileUpload, error) {
	const op = "CloneService.storeDocument"

	rc, err := up.Open()
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "failed to open upload", err)
	}
	defer rc.Close()

	pages := 0
	if s.pages != nil {
		if rs, ok := rc.(io.ReadSeeker); ok {
			if n, err := s.pages.PageCount(rs, up.Size); err == nil {
				pages = n
			} else {
				s.log.WithError(err).WithField("file", up.Filename).Debug("page count unavailable")
			}
		}
	}

	handle, size, err := s.blobs.Store(ctx, up.Filename, models.MimePDF, rc)
	if err != nil {
		return nil, utils.E(utils.CodeStorage, op, "failed to store document", err)
	}
	metrics.BlobBytesStored.Add(float64(size))

	doc := &models.FileUpload{
		CloneID:      cloneID,
		Handle:       handle,
		OriginalName: up.Filename,
		FileSize:     size,
		MimeType:     models.MimePDF,
		PageCount:    pages,
		UploadDate:   time.Now().UTC(),
	}
	if err := s.files.Insert(ctx, doc); err != nil {
		s.discardBlob(ctx, handle)
		return nil, utils.E(utils.CodeStorage, op, "failed to save document record", err)
	}
	return doc, nil
}

// discardBlob removes a blob that has no metadata record. When the delete
// fails the handle goes to the orphan queue.
func (s *cloneService) discardBlob(ctx context.Context, handle string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	log := s.log.WithField("handle", handle)
	err := s.blobs.Delete(ctx, handle)
	if err == nil || errors.Is(err, utils.ErrNotFound) {
		metrics.OrphanBlobs.WithLabelValues(metrics.OrphanDeleted).Inc()
		return
	}
	if s.orphans == nil {
		log.WithError(err).Error("orphaned blob could not be deleted")
		metrics.OrphanBlobs.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}
	if qerr := s.orphans.Enqueue(ctx, handle, "metadata insert failed"); qerr != nil {
		log.WithError(qerr).Error("orphaned blob could not be queued for cleanup")
		metrics.OrphanBlobs.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}
	log.WithError(err).Warn("orphaned blob queued for cleanup")
	metrics.OrphanBlobs.WithLabelValues(metrics.OrphanQueued).Inc()
}

func (s *cloneService) attachLinks(ctx context.Context, log logrus.FieldLogger, cloneID string, video, other []string) (*LinkView, *AssetStatus) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	log = log.WithField("asset", "links")
	lu := &models.LinkUpload{
		CloneID:      cloneID,
		YoutubeLinks: video,
		OtherLinks:   other,
	}
	if err := s.links.Create(ctx, lu); err != nil {
		log.WithError(err).Warn("failed to save link collection")
		metrics.Asset("links", metrics.ResultFailed)
		return nil, &AssetStatus{Status: metrics.ResultFailed, Error: "links could not be saved"}
	}
	if err := s.clones.SetLinkUpload(ctx, cloneID, lu.ID.Hex()); err != nil {
		log.WithError(err).Warn("failed to save link collection reference")
		metrics.Asset("links", metrics.ResultFailed)
		return nil, &AssetStatus{Status: metrics.ResultFailed, Error: "links could not be attached"}
	}
	metrics.Asset("links", metrics.ResultAttached)
	return &LinkView{ID: lu.ID.Hex(), YoutubeLinks: video, OtherLinks: other}, &AssetStatus{Status: metrics.ResultAttached}
}

func (s *cloneService) invalidate(ctx context.Context, cloneID string) {
	if err := s.cache.Bump(ctx, versionKey(cloneID)); err != nil {
		s.log.WithError(err).WithField("clone_id", cloneID).Warn("cache invalidation failed")
	}
}

func (s *cloneService) getClone(ctx context.Context, op, cloneID string) (*models.Clone, error) {
	if cloneID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "clone id is required", nil)
	}
	c, err := s.clones.GetByCloneID(ctx, cloneID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "clone not found", err)
		}
		return nil, utils.E(utils.CodeStorage, op, "failed to load clone", err)
	}
	return c, nil
}

// Get returns the clone with its documents and links resolved. Views are
// cached until the next write to the clone.
func (s *cloneService) Get(ctx context.Context, cloneID string) (*CloneView, error) {
	const op = "CloneService.Get"

	ver, verErr := s.cache.Version(ctx, versionKey(cloneID))
	if verErr != nil {
		s.log.WithError(verErr).Debug("clone view version read failed")
	} else {
		var cached CloneView
		if ok, err := s.cache.GetJSON(ctx, viewKey(cloneID, ver), &cached); err != nil {
			s.log.WithError(err).Debug("clone view cache read failed")
		} else if ok {
			return &cached, nil
		}
	}

	c, err := s.getClone(ctx, op, cloneID)
	if err != nil {
		return nil, err
	}
	view := toCloneView(c)

	if len(c.FileUploads) > 0 {
		docs, err := s.files.GetByIDs(ctx, c.FileUploads)
		if err != nil {
			return nil, utils.E(utils.CodeStorage, op, "failed to load documents", err)
		}
		for i := range docs {
			view.FileUploads = append(view.FileUploads, toFileView(&docs[i], s.cfg.BackendURL))
		}
	}

	if c.LinkUploadID != "" {
		lu, err := s.links.GetByID(ctx, c.LinkUploadID)
		switch {
		case err == nil:
			view.YoutubeLinks = nonNil(lu.YoutubeLinks)
			view.OtherLinks = nonNil(lu.OtherLinks)
		case errors.Is(err, utils.ErrNotFound):
			s.log.WithField("clone_id", cloneID).Warn("clone references a missing link collection")
		default:
			return nil, utils.E(utils.CodeStorage, op, "failed to load links", err)
		}
	}

	if verErr == nil {
		if err := s.cache.SetJSON(ctx, viewKey(cloneID, ver), view, s.cfg.CacheTTL); err != nil {
			s.log.WithError(err).Debug("clone view cache write failed")
		}
	}
	return view, nil
}

func (s *cloneService) List(ctx context.Context, limit int) ([]models.Clone, error) {
	const op = "CloneService.List"

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("limit must be between 1 and %d", MaxListLimit), nil)
	}
	out, err := s.clones.List(ctx, int64(limit))
	if err != nil {
		return nil, utils.E(utils.CodeStorage, op, "failed to list clones", err)
	}
	return out, nil
}

func (s *cloneService) AppendDocuments(ctx context.Context, cloneID string, uploads []Upload) (*AppendResult, error) {
	const op = "CloneService.AppendDocuments"

	if len(uploads) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "no files uploaded", nil)
	}
	if _, err := s.getClone(ctx, op, cloneID); err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	log := s.log.WithField("clone_id", cloneID)
	views, outcomes, err := s.attachDocuments(bg, log, cloneID, uploads)
	s.invalidate(bg, cloneID)
	if err != nil {
		log.WithError(err).Error("failed to append document references")
		return nil, utils.E(utils.CodeStorage, op, "failed to attach documents", err)
	}
	return &AppendResult{FileUploads: views, Documents: outcomes}, nil
}

// ReplaceLinks overwrites one bucket of the clone's link collection. Every
// link must classify into that bucket.
func (s *cloneService) ReplaceLinks(ctx context.Context, cloneID string, bucket models.LinkBucket, raw []links.RawLink) (*LinkView, error) {
	const op = "CloneService.ReplaceLinks"

	if bucket != models.BucketYoutube && bucket != models.BucketOther {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown link bucket", nil)
	}
	video, other, err := links.Classify(raw)
	if err != nil {
		return nil, err
	}
	target := video
	if bucket == models.BucketYoutube {
		if len(other) > 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "non-video link in youtube bucket: "+other[0], nil)
		}
	} else {
		if len(video) > 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "video link in other bucket: "+video[0], nil)
		}
		target = other
	}

	c, err := s.getClone(ctx, op, cloneID)
	if err != nil {
		return nil, err
	}

	lu, err := s.links.ReplaceBucket(ctx, cloneID, bucket, target)
	if err != nil {
		return nil, utils.E(utils.CodeStorage, op, "failed to save links", err)
	}
	if c.LinkUploadID != lu.ID.Hex() {
		if err := s.clones.SetLinkUpload(ctx, cloneID, lu.ID.Hex()); err != nil {
			return nil, utils.E(utils.CodeStorage, op, "failed to attach links", err)
		}
	}
	s.invalidate(ctx, cloneID)

	return &LinkView{
		ID:           lu.ID.Hex(),
		YoutubeLinks: nonNil(lu.YoutubeLinks),
		OtherLinks:   nonNil(lu.OtherLinks),
	}, nil
}

func (s *cloneService) SetStatus(ctx context.Context, cloneID string, status models.CloneStatus) (*CloneView, error) {
	const op = "CloneService.SetStatus"

	if !status.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "status must be draft, approved or published", nil)
	}
	if err := s.clones.SetStatus(ctx, cloneID, status); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "clone not found", err)
		}
		return nil, utils.E(utils.CodeStorage, op, "failed to update status", err)
	}
	s.invalidate(ctx, cloneID)
	return s.Get(ctx, cloneID)
}
