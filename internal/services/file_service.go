package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/clonehub/internal/models"
	mongorepo "github.com/yoockh/clonehub/internal/repositories/mongo"
	"github.com/yoockh/clonehub/internal/storage"
	"github.com/yoockh/clonehub/internal/utils"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalFiles  int64 `json:"totalFiles"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

type FilePage struct {
	Files      []FileView `json:"files"`
	Pagination Pagination `json:"pagination"`
}

type FileService interface {
	ListByClone(ctx context.Context, cloneID string, page, limit int) (*FilePage, error)
	Get(ctx context.Context, fileID string) (*models.FileUpload, error)
	// Open streams length bytes of the document starting at offset;
	// length < 0 reads to the end.
	Open(ctx context.Context, f *models.FileUpload, offset, length int64) (*storage.Blob, error)
}

type fileService struct {
	clones     mongorepo.CloneRepository
	files      mongorepo.FileRepository
	blobs      storage.BlobStore
	log        logrus.FieldLogger
	backendURL string
}

func NewFileService(clones mongorepo.CloneRepository, files mongorepo.FileRepository, blobs storage.BlobStore, log logrus.FieldLogger, backendURL string) FileService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &fileService{clones: clones, files: files, blobs: blobs, log: log, backendURL: backendURL}
}

func (s *fileService) ListByClone(ctx context.Context, cloneID string, page, limit int) (*FilePage, error) {
	const op = "FileService.ListByClone"

	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if page < 1 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "page must be at least 1", nil)
	}
	if limit < 1 || limit > MaxPageLimit {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("limit must be between 1 and %d", MaxPageLimit), nil)
	}

	if _, err := s.clones.GetByCloneID(ctx, cloneID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "clone not found", err)
		}
		return nil, utils.E(utils.CodeStorage, op, "failed to load clone", err)
	}

	total, err := s.files.CountByClone(ctx, cloneID)
	if err != nil {
		return nil, utils.E(utils.CodeStorage, op, "failed to count files", err)
	}
	docs, err := s.files.ListByClone(ctx, cloneID, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, utils.E(utils.CodeStorage, op, "failed to list files", err)
	}

	views := make([]FileView, 0, len(docs))
	for i := range docs {
		views = append(views, toFileView(&docs[i], s.backendURL))
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &FilePage{
		Files: views,
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalFiles:  total,
			HasNextPage: page < totalPages,
			HasPrevPage: page > 1,
		},
	}, nil
}

func (s *fileService) Get(ctx context.Context, fileID string) (*models.FileUpload, error) {
	const op = "FileService.Get"

	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "file not found", err)
		}
		return nil, utils.E(utils.CodeStorage, op, "failed to load file", err)
	}
	return f, nil
}

func (s *fileService) Open(ctx context.Context, f *models.FileUpload, offset, length int64) (*storage.Blob, error) {
	const op = "FileService.Open"

	b, err := s.blobs.Open(ctx, f.Handle, offset, length)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			s.log.WithFields(logrus.Fields{
				"file_id":  f.ID.Hex(),
				"clone_id": f.CloneID,
				"handle":   f.Handle,
			}).Error("file record points at a missing blob")
			return nil, utils.E(utils.CodeNotFound, op, "file content not found", err)
		}
		return nil, utils.E(utils.CodeStorage, op, "failed to open file", err)
	}
	if b.Size != f.FileSize {
		s.log.WithFields(logrus.Fields{
			"file_id":   f.ID.Hex(),
			"clone_id":  f.CloneID,
			"handle":    f.Handle,
			"file_size": f.FileSize,
			"blob_size": b.Size,
		}).Error("file record size disagrees with stored blob")
	}
	return b, nil
}
